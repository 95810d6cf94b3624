package server

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/easypdf/internal/convert"
	"github.com/local/easypdf/internal/filetype"
	"github.com/local/easypdf/internal/pages"
	"github.com/local/easypdf/internal/pdfops"
	"github.com/local/easypdf/internal/render"
)

const toolLibreOffice = "libreoffice"

var officeClasses = map[string]filetype.Class{
	"word":       filetype.Word,
	"powerpoint": filetype.PowerPoint,
	"excel":      filetype.Excel,
	"html":       filetype.HTML,
}

// handleImageToPDF turns uploaded images into a PDF, one page per image.
func (s *Server) handleImageToPDF(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ups, err := s.saveUploads(r, "files", filetype.Image)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err.Error())
		return
	}

	j := s.tracker.Begin(s.verifier.UserFromRequest(r), "jpg_to_pdf", names(ups))

	imgs := make([]string, len(ups))
	for i, u := range ups {
		imgs[i] = u.Path
	}
	outPath, outName := s.outputPath("jpg_to_pdf", "pdf")
	err = pdfops.ImportImages(imgs, outPath)
	s.tracker.Finish(j, outName, err)
	s.observe("jpg_to_pdf", start, err)
	if err != nil {
		log.Error().Err(err).Msg("image conversion failed")
		s.fail(w, http.StatusInternalServerError, "image conversion failed")
		return
	}
	s.mirrorAsync(outName, outPath)
	s.ok(w, "images converted to PDF", map[string]interface{}{
		"file":        outName,
		"downloadUrl": downloadURL("convert-to-pdf", outName),
		"pageCount":   len(ups),
	})
}

// officeToPDF builds the handler converting one office document kind
// (word, powerpoint, excel, html) into PDF via LibreOffice.
func (s *Server) officeToPDF(kind string) http.HandlerFunc {
	op := kind + "_to_pdf"
	class := officeClasses[kind]
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if s.office == nil || !s.office.Available() {
			s.fail(w, http.StatusServiceUnavailable, "document conversion is not available on this server")
			return
		}
		if s.breaker.IsOpen(r.Context(), toolLibreOffice) {
			s.fail(w, http.StatusServiceUnavailable, "document conversion temporarily disabled, try again later")
			return
		}
		up, err := s.saveUpload(r, class)
		if err != nil {
			s.fail(w, http.StatusBadRequest, err.Error())
			return
		}

		release := s.admit(w, r)
		if release == nil {
			return
		}
		defer release()

		j := s.tracker.Begin(s.verifier.UserFromRequest(r), op, []string{up.Name})

		outPath, outName := s.outputPath(op, "pdf")
		err = s.office.Convert(r.Context(), up.Path, outPath, "pdf")
		s.tracker.Finish(j, outName, err)
		s.observe(op, start, err)
		if err != nil {
			s.respondConvertError(w, r, err, op)
			return
		}
		s.breaker.RecordSuccess(r.Context(), toolLibreOffice)
		s.mirrorAsync(outName, outPath)
		s.ok(w, "document converted to PDF", map[string]interface{}{
			"file":        outName,
			"downloadUrl": downloadURL("convert-to-pdf", outName),
		})
	}
}

// pdfToOffice builds the handler converting a PDF to an office format
// via LibreOffice.
func (s *Server) pdfToOffice(kind, targetFormat string) http.HandlerFunc {
	op := "pdf_to_" + kind
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if s.office == nil || !s.office.Available() {
			s.fail(w, http.StatusServiceUnavailable, "document conversion is not available on this server")
			return
		}
		if s.breaker.IsOpen(r.Context(), toolLibreOffice) {
			s.fail(w, http.StatusServiceUnavailable, "document conversion temporarily disabled, try again later")
			return
		}
		up, err := s.saveUpload(r, filetype.PDF)
		if err != nil {
			s.fail(w, http.StatusBadRequest, err.Error())
			return
		}

		release := s.admit(w, r)
		if release == nil {
			return
		}
		defer release()

		j := s.tracker.Begin(s.verifier.UserFromRequest(r), op, []string{up.Name})

		outPath, outName := s.outputPath(op, targetFormat)
		err = s.office.Convert(r.Context(), up.Path, outPath, targetFormat)
		s.tracker.Finish(j, outName, err)
		s.observe(op, start, err)
		if err != nil {
			s.respondConvertError(w, r, err, op)
			return
		}
		s.breaker.RecordSuccess(r.Context(), toolLibreOffice)
		s.mirrorAsync(outName, outPath)
		s.ok(w, "PDF converted successfully", map[string]interface{}{
			"file":        outName,
			"downloadUrl": downloadURL("convert-from-pdf", outName),
			"format":      targetFormat,
		})
	}
}

func (s *Server) respondConvertError(w http.ResponseWriter, r *http.Request, err error, op string) {
	switch {
	case errors.Is(err, convert.ErrProtected):
		s.fail(w, http.StatusBadRequest, "document is password protected")
	case errors.Is(err, convert.ErrUnavailable):
		s.fail(w, http.StatusServiceUnavailable, "document conversion is not available on this server")
	default:
		s.breaker.RecordFailure(r.Context(), toolLibreOffice)
		log.Error().Err(err).Str("operation", op).Msg("conversion failed")
		s.fail(w, http.StatusInternalServerError, "conversion failed")
	}
}

// handlePDFToJPG renders pages to JPEG files, honoring an optional
// pageRanges subset.
func (s *Server) handlePDFToJPG(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	up, err := s.saveUpload(r, filetype.PDF)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err.Error())
		return
	}

	var pageNums []int
	if expr := r.FormValue("pageRanges"); expr != "" {
		count, err := pdfops.PageCount(up.Path)
		if err != nil {
			s.fail(w, http.StatusBadRequest, "could not read PDF page count")
			return
		}
		ranges, err := pages.ResolveRanges(expr, count)
		if err != nil {
			s.fail(w, http.StatusBadRequest, "invalid pageRanges: "+err.Error())
			return
		}
		for _, rg := range ranges {
			for p := rg.Start; p <= rg.End; p++ {
				pageNums = append(pageNums, p)
			}
		}
		if len(pageNums) == 0 {
			s.fail(w, http.StatusBadRequest, "pageRanges resolved to no pages")
			return
		}
	}

	release := s.admit(w, r)
	if release == nil {
		return
	}
	defer release()

	j := s.tracker.Begin(s.verifier.UserFromRequest(r), "pdf_to_jpg", []string{up.Name})

	base := outputBase("pdf_to_jpg")
	rendered, err := render.PagesToJPEG(up.Path, s.cfg.Files.DownloadDir, base, pageNums, render.Options{
		DPI:     s.cfg.Render.DPI,
		Quality: s.cfg.Render.Quality,
	})
	first := ""
	if len(rendered) > 0 {
		first = rendered[0]
	}
	s.tracker.Finish(j, first, err)
	s.observe("pdf_to_jpg", start, err)
	if err != nil {
		log.Error().Err(err).Msg("render failed")
		s.fail(w, http.StatusInternalServerError, "render failed")
		return
	}

	type page struct {
		File        string `json:"file"`
		DownloadURL string `json:"downloadUrl"`
	}
	out := make([]page, len(rendered))
	for i, name := range rendered {
		s.mirrorAsync(name, filepath.Join(s.cfg.Files.DownloadDir, name))
		out[i] = page{File: name, DownloadURL: downloadURL("convert-from-pdf", name)}
	}
	s.ok(w, "PDF rendered to JPEG", map[string]interface{}{
		"pages": out,
		"count": len(out),
	})
}

// handlePDFToPDFA rewrites the document as PDF/A-2b through Ghostscript.
func (s *Server) handlePDFToPDFA(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if s.gs == nil || !s.gs.Available() {
		s.fail(w, http.StatusServiceUnavailable, "PDF/A conversion is not available on this server")
		return
	}
	if s.breaker.IsOpen(r.Context(), toolGhostscript) {
		s.fail(w, http.StatusServiceUnavailable, "PDF/A conversion temporarily disabled, try again later")
		return
	}
	up, err := s.saveUpload(r, filetype.PDF)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err.Error())
		return
	}

	release := s.admit(w, r)
	if release == nil {
		return
	}
	defer release()

	j := s.tracker.Begin(s.verifier.UserFromRequest(r), "pdf_to_pdfa", []string{up.Name})

	outPath, outName := s.outputPath("pdf_to_pdfa", "pdf")
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Tools.ConvertTimeout)
	defer cancel()
	err = s.gs.ToPDFA(ctx, up.Path, outPath)
	s.tracker.Finish(j, outName, err)
	s.observe("pdf_to_pdfa", start, err)
	if err != nil {
		s.breaker.RecordFailure(r.Context(), toolGhostscript)
		log.Error().Err(err).Msg("pdfa conversion failed")
		s.fail(w, http.StatusInternalServerError, "PDF/A conversion failed")
		return
	}
	s.breaker.RecordSuccess(r.Context(), toolGhostscript)
	s.mirrorAsync(outName, outPath)
	s.ok(w, "PDF converted to PDF/A", map[string]interface{}{
		"file":        outName,
		"downloadUrl": downloadURL("convert-from-pdf", outName),
	})
}
