// Package render rasterizes PDF pages to JPEG files with go-fitz.
package render

import (
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"
)

// Options controls rasterization output.
type Options struct {
	DPI     int
	Quality int
}

func (o Options) withDefaults() Options {
	if o.DPI <= 0 {
		o.DPI = 150
	}
	if o.Quality <= 0 {
		o.Quality = 85
	}
	return o
}

// PagesToJPEG renders the given 1-based pages of a PDF into outDir, naming
// each file <baseName>-page-<n>.jpg. A nil or empty page list renders every
// page. Returns the written file names in page order.
func PagesToJPEG(pdfPath, outDir, baseName string, pageNums []int, opts Options) ([]string, error) {
	opts = opts.withDefaults()

	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	total := doc.NumPage()
	if len(pageNums) == 0 {
		pageNums = make([]int, total)
		for i := range pageNums {
			pageNums[i] = i + 1
		}
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	names := make([]string, 0, len(pageNums))
	for _, p := range pageNums {
		if p < 1 || p > total {
			continue
		}
		// go-fitz uses 0-based indexing
		img, err := doc.ImageDPI(p-1, float64(opts.DPI))
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", p, err)
		}

		name := fmt.Sprintf("%s-page-%d.jpg", baseName, p)
		f, err := os.Create(filepath.Join(outDir, name))
		if err != nil {
			return nil, fmt.Errorf("create page image: %w", err)
		}
		if err := jpeg.Encode(f, img, &jpeg.Options{Quality: opts.Quality}); err != nil {
			f.Close()
			return nil, fmt.Errorf("encode page %d: %w", p, err)
		}
		if err := f.Close(); err != nil {
			return nil, err
		}
		names = append(names, name)

		log.Debug().Int("page", p).Int("dpi", opts.DPI).Int("quality", opts.Quality).
			Str("file", name).Msg("rendered page to JPEG")
	}

	return names, nil
}
