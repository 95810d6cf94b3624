// Package pages resolves user-supplied page expressions ("1-3,5,7-9") into
// concrete page selections for a document of known length.
package pages

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrMalformedToken rejects the whole expression when any token fails to
	// parse as a positive integer or integer pair.
	ErrMalformedToken = errors.New("malformed page token")

	// ErrRemoveAll guards destructive removal that would leave no pages.
	ErrRemoveAll = errors.New("cannot remove all pages")
)

// Range is a 1-based inclusive page interval.
type Range struct {
	Start int
	End   int
}

// String renders the range in selection syntax ("3" or "3-5").
func (r Range) String() string {
	if r.Start == r.End {
		return strconv.Itoa(r.Start)
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// ResolveRanges parses a comma-separated range expression against a document
// of pageCount pages. Endpoints are clamped to [1, pageCount]; a range whose
// clamped start exceeds its clamped end is dropped, as is a single page that
// lies entirely outside the document. An empty expression yields an empty
// list; rejecting that is the caller's concern. Any token that is not an
// integer or integer pair fails the whole expression.
func ResolveRanges(expression string, pageCount int) ([]Range, error) {
	if pageCount < 1 {
		return nil, fmt.Errorf("invalid page count %d", pageCount)
	}
	out := []Range{}
	for _, token := range strings.Split(expression, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if strings.Contains(token, "-") {
			parts := strings.SplitN(token, "-", 2)
			start, err1 := parsePage(parts[0])
			end, err2 := parsePage(parts[1])
			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("%w: %q", ErrMalformedToken, token)
			}
			if start < 1 {
				start = 1
			}
			if end > pageCount {
				end = pageCount
			}
			if start <= end {
				out = append(out, Range{Start: start, End: end})
			}
			continue
		}
		n, err := parsePage(token)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrMalformedToken, token)
		}
		if n >= 1 && n <= pageCount {
			out = append(out, Range{Start: n, End: n})
		}
	}
	return out, nil
}

// ResolveSingles parses a comma-only page list into 1-based page numbers,
// dropping pages outside [1, pageCount]. Range tokens are not accepted here.
func ResolveSingles(expression string, pageCount int) ([]int, error) {
	if pageCount < 1 {
		return nil, fmt.Errorf("invalid page count %d", pageCount)
	}
	out := []int{}
	for _, token := range strings.Split(expression, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		n, err := parsePage(token)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrMalformedToken, token)
		}
		if n >= 1 && n <= pageCount {
			out = append(out, n)
		}
	}
	return out, nil
}

// KeepAfterRemoval resolves a removal expression (ranges allowed) and returns
// the 1-based pages to keep, in document order. Removing every page is a
// validation error rather than an empty document.
func KeepAfterRemoval(expression string, pageCount int) ([]int, error) {
	ranges, err := ResolveRanges(expression, pageCount)
	if err != nil {
		return nil, err
	}
	removed := make(map[int]bool)
	for _, r := range ranges {
		for p := r.Start; p <= r.End; p++ {
			removed[p] = true
		}
	}
	keep := []int{}
	for p := 1; p <= pageCount; p++ {
		if !removed[p] {
			keep = append(keep, p)
		}
	}
	if len(keep) == 0 {
		return nil, ErrRemoveAll
	}
	return keep, nil
}

// Permutation interprets the expression as an explicit output order of
// 1-based page numbers. Each listed page appears once, in the order listed;
// out-of-range pages are dropped; pages not listed are omitted from the
// result entirely.
func Permutation(expression string, pageCount int) ([]int, error) {
	if pageCount < 1 {
		return nil, fmt.Errorf("invalid page count %d", pageCount)
	}
	seen := make(map[int]bool)
	out := []int{}
	for _, token := range strings.Split(expression, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		n, err := parsePage(token)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrMalformedToken, token)
		}
		if n < 1 || n > pageCount || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out, nil
}

func parsePage(s string) (int, error) {
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("not a page number: %q", s)
	}
	return n, nil
}
