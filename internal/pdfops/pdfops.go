// Package pdfops wraps the pdfcpu file API with the configuration and
// selection conventions used by the operation handlers.
package pdfops

import (
	"fmt"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// relaxed validation: user uploads are frequently produced by sloppy writers
func conf() *model.Configuration {
	c := model.NewDefaultConfiguration()
	c.ValidationMode = model.ValidationRelaxed
	return c
}

// PageCount returns the number of pages in a PDF file.
func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("pdf page count failed: %w", err)
	}
	return n, nil
}

// Merge concatenates the input PDFs into a single output file.
func Merge(inputs []string, outputPath string) error {
	if err := api.MergeCreateFile(inputs, outputPath, false, conf()); err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}
	return nil
}

// Trim writes only the selected pages, in document order.
func Trim(inputPath, outputPath string, selection []string) error {
	if err := api.TrimFile(inputPath, outputPath, selection, conf()); err != nil {
		return fmt.Errorf("trim failed: %w", err)
	}
	return nil
}

// Collect writes the selected pages in selection order, allowing an
// explicit permutation of the document.
func Collect(inputPath, outputPath string, selection []string) error {
	if err := api.CollectFile(inputPath, outputPath, selection, conf()); err != nil {
		return fmt.Errorf("collect failed: %w", err)
	}
	return nil
}

// Encrypt password-protects a PDF with AES-256, using the same password for
// user and owner.
func Encrypt(inputPath, outputPath, password string) error {
	c := conf()
	c.UserPW = password
	c.OwnerPW = password
	c.EncryptUsingAES = true
	c.EncryptKeyLength = 256
	if err := api.EncryptFile(inputPath, outputPath, c); err != nil {
		return fmt.Errorf("encrypt failed: %w", err)
	}
	return nil
}

// Repair validates the document with relaxed rules and rewrites it through
// the optimizer, which rebuilds the xref table and drops broken objects.
func Repair(inputPath, outputPath string) error {
	if err := api.ValidateFile(inputPath, conf()); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if err := api.OptimizeFile(inputPath, outputPath, conf()); err != nil {
		return fmt.Errorf("optimize failed: %w", err)
	}
	return nil
}

// Optimize rewrites the document through the pdfcpu optimizer without the
// validation gate.
func Optimize(inputPath, outputPath string) error {
	if err := api.OptimizeFile(inputPath, outputPath, conf()); err != nil {
		return fmt.Errorf("optimize failed: %w", err)
	}
	return nil
}

// ImportImages builds a PDF with one page per input image.
func ImportImages(imagePaths []string, outputPath string) error {
	if err := api.ImportImagesFile(imagePaths, outputPath, nil, conf()); err != nil {
		return fmt.Errorf("image import failed: %w", err)
	}
	return nil
}

// SelectionFromPages renders 1-based page numbers as selection strings.
func SelectionFromPages(ps []int) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, strconv.Itoa(p))
	}
	return out
}
