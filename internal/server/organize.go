package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/easypdf/internal/filetype"
	"github.com/local/easypdf/internal/pages"
	"github.com/local/easypdf/internal/pdfops"
)

// handleMerge combines two or more PDFs into one, in upload order.
func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ups, err := s.saveUploads(r, "files", filetype.PDF)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(ups) < 2 {
		s.fail(w, http.StatusBadRequest, "merge requires at least two PDF files")
		return
	}

	j := s.tracker.Begin(s.verifier.UserFromRequest(r), "merge", names(ups))

	inputs := make([]string, len(ups))
	for i, u := range ups {
		inputs[i] = u.Path
	}
	outPath, outName := s.outputPath("merge", "pdf")
	err = pdfops.Merge(inputs, outPath)
	s.tracker.Finish(j, outName, err)
	s.observe("merge", start, err)
	if err != nil {
		log.Error().Err(err).Int("files", len(ups)).Msg("merge failed")
		s.fail(w, http.StatusInternalServerError, "merge failed")
		return
	}
	s.mirrorAsync(outName, outPath)
	s.ok(w, "PDF files merged successfully", map[string]interface{}{
		"file":        outName,
		"downloadUrl": downloadURL("organize", outName),
		"inputCount":  len(ups),
	})
}

// handleSplit cuts the document into one output per resolved page range.
func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	up, err := s.saveUpload(r, filetype.PDF)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err.Error())
		return
	}
	expr := r.FormValue("pageRanges")
	if expr == "" {
		s.fail(w, http.StatusBadRequest, "pageRanges is required")
		return
	}

	count, err := pdfops.PageCount(up.Path)
	if err != nil {
		s.fail(w, http.StatusBadRequest, "could not read PDF page count")
		return
	}
	ranges, err := pages.ResolveRanges(expr, count)
	if err != nil {
		s.fail(w, http.StatusBadRequest, fmt.Sprintf("invalid pageRanges: %v", err))
		return
	}
	if len(ranges) == 0 {
		s.fail(w, http.StatusBadRequest, "pageRanges resolved to no pages")
		return
	}

	j := s.tracker.Begin(s.verifier.UserFromRequest(r), "split", []string{up.Name})

	type part struct {
		Range       string `json:"range"`
		File        string `json:"file"`
		DownloadURL string `json:"downloadUrl"`
	}
	parts := make([]part, 0, len(ranges))
	for _, rg := range ranges {
		outPath, outName := s.outputPath("split", "pdf")
		if err = pdfops.Trim(up.Path, outPath, []string{rg.String()}); err != nil {
			break
		}
		s.mirrorAsync(outName, outPath)
		parts = append(parts, part{
			Range:       rg.String(),
			File:        outName,
			DownloadURL: downloadURL("organize", outName),
		})
	}
	firstName := ""
	if len(parts) > 0 {
		firstName = parts[0].File
	}
	s.tracker.Finish(j, firstName, err)
	s.observe("split", start, err)
	if err != nil {
		log.Error().Err(err).Str("ranges", expr).Msg("split failed")
		s.fail(w, http.StatusInternalServerError, "split failed")
		return
	}
	s.ok(w, "PDF split successfully", map[string]interface{}{
		"parts": parts,
		"count": len(parts),
	})
}

// handleRemovePages keeps the complement of the removal expression.
func (s *Server) handleRemovePages(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	up, err := s.saveUpload(r, filetype.PDF)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err.Error())
		return
	}
	expr := r.FormValue("pagesToRemove")
	if expr == "" {
		s.fail(w, http.StatusBadRequest, "pagesToRemove is required")
		return
	}

	count, err := pdfops.PageCount(up.Path)
	if err != nil {
		s.fail(w, http.StatusBadRequest, "could not read PDF page count")
		return
	}
	keep, err := pages.KeepAfterRemoval(expr, count)
	if err != nil {
		if errors.Is(err, pages.ErrRemoveAll) {
			s.fail(w, http.StatusBadRequest, "cannot remove all pages")
			return
		}
		s.fail(w, http.StatusBadRequest, fmt.Sprintf("invalid pagesToRemove: %v", err))
		return
	}

	j := s.tracker.Begin(s.verifier.UserFromRequest(r), "remove_pages", []string{up.Name})

	outPath, outName := s.outputPath("remove_pages", "pdf")
	err = pdfops.Collect(up.Path, outPath, pdfops.SelectionFromPages(keep))
	s.tracker.Finish(j, outName, err)
	s.observe("remove_pages", start, err)
	if err != nil {
		log.Error().Err(err).Msg("page removal failed")
		s.fail(w, http.StatusInternalServerError, "page removal failed")
		return
	}
	s.mirrorAsync(outName, outPath)
	s.ok(w, "pages removed successfully", map[string]interface{}{
		"file":           outName,
		"downloadUrl":    downloadURL("organize", outName),
		"remainingPages": len(keep),
	})
}

// handleExtractPages produces a single PDF of the listed pages. The list
// takes individual page numbers only; range tokens are rejected.
func (s *Server) handleExtractPages(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	up, err := s.saveUpload(r, filetype.PDF)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err.Error())
		return
	}
	expr := r.FormValue("pageRanges")
	if expr == "" {
		s.fail(w, http.StatusBadRequest, "pageRanges is required")
		return
	}

	count, err := pdfops.PageCount(up.Path)
	if err != nil {
		s.fail(w, http.StatusBadRequest, "could not read PDF page count")
		return
	}
	selected, err := pages.ResolveSingles(expr, count)
	if err != nil {
		s.fail(w, http.StatusBadRequest, fmt.Sprintf("invalid pageRanges: %v", err))
		return
	}
	if len(selected) == 0 {
		s.fail(w, http.StatusBadRequest, "pageRanges resolved to no pages")
		return
	}

	j := s.tracker.Begin(s.verifier.UserFromRequest(r), "extract_pages", []string{up.Name})

	outPath, outName := s.outputPath("extract_pages", "pdf")
	err = pdfops.Collect(up.Path, outPath, pdfops.SelectionFromPages(selected))
	s.tracker.Finish(j, outName, err)
	s.observe("extract_pages", start, err)
	if err != nil {
		log.Error().Err(err).Msg("page extraction failed")
		s.fail(w, http.StatusInternalServerError, "page extraction failed")
		return
	}
	s.mirrorAsync(outName, outPath)
	s.ok(w, "pages extracted successfully", map[string]interface{}{
		"file":        outName,
		"downloadUrl": downloadURL("organize", outName),
	})
}

// handleOrganize rewrites the document in the explicit page order given.
// Pages not listed are dropped.
func (s *Server) handleOrganize(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	up, err := s.saveUpload(r, filetype.PDF)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err.Error())
		return
	}
	expr := r.FormValue("pageOrder")
	if expr == "" {
		s.fail(w, http.StatusBadRequest, "pageOrder is required")
		return
	}

	count, err := pdfops.PageCount(up.Path)
	if err != nil {
		s.fail(w, http.StatusBadRequest, "could not read PDF page count")
		return
	}
	order, err := pages.Permutation(expr, count)
	if err != nil {
		s.fail(w, http.StatusBadRequest, fmt.Sprintf("invalid pageOrder: %v", err))
		return
	}
	if len(order) == 0 {
		s.fail(w, http.StatusBadRequest, "pageOrder resolved to no pages")
		return
	}

	j := s.tracker.Begin(s.verifier.UserFromRequest(r), "organize", []string{up.Name})

	outPath, outName := s.outputPath("organize", "pdf")
	err = pdfops.Collect(up.Path, outPath, pdfops.SelectionFromPages(order))
	s.tracker.Finish(j, outName, err)
	s.observe("organize", start, err)
	if err != nil {
		log.Error().Err(err).Msg("reorder failed")
		s.fail(w, http.StatusInternalServerError, "reorder failed")
		return
	}
	s.mirrorAsync(outName, outPath)
	s.ok(w, "pages reordered successfully", map[string]interface{}{
		"file":        outName,
		"downloadUrl": downloadURL("organize", outName),
		"pageCount":   len(order),
	})
}

// handleScanToPDF assembles uploaded images into a single PDF, one page
// per image, in upload order.
func (s *Server) handleScanToPDF(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ups, err := s.saveUploads(r, "files", filetype.Image)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err.Error())
		return
	}

	j := s.tracker.Begin(s.verifier.UserFromRequest(r), "scan_to_pdf", names(ups))

	imgs := make([]string, len(ups))
	for i, u := range ups {
		imgs[i] = u.Path
	}
	outPath, outName := s.outputPath("scan_to_pdf", "pdf")
	err = pdfops.ImportImages(imgs, outPath)
	s.tracker.Finish(j, outName, err)
	s.observe("scan_to_pdf", start, err)
	if err != nil {
		log.Error().Err(err).Int("images", len(ups)).Msg("scan assembly failed")
		s.fail(w, http.StatusInternalServerError, "scan assembly failed")
		return
	}
	s.mirrorAsync(outName, outPath)
	s.ok(w, "images combined into PDF", map[string]interface{}{
		"file":        outName,
		"downloadUrl": downloadURL("organize", outName),
		"pageCount":   len(ups),
	})
}
