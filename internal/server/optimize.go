package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/easypdf/internal/compress"
	"github.com/local/easypdf/internal/filetype"
	"github.com/local/easypdf/internal/metrics"
	"github.com/local/easypdf/internal/pdfops"
)

const toolGhostscript = "ghostscript"

// handleCompress shrinks a PDF through Ghostscript with escalating
// profiles. Accepts a named compressionLevel or a numeric
// compressionValue from 1 to 100.
func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if s.gs == nil || !s.gs.Available() {
		s.fail(w, http.StatusServiceUnavailable, "compression is not available on this server")
		return
	}
	if s.breaker.IsOpen(r.Context(), toolGhostscript) {
		s.fail(w, http.StatusServiceUnavailable, "compression temporarily disabled, try again later")
		return
	}

	up, err := s.saveUpload(r, filetype.PDF)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err.Error())
		return
	}

	percent, err := compressionPercent(r)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err.Error())
		return
	}

	release := s.admit(w, r)
	if release == nil {
		return
	}
	defer release()

	j := s.tracker.Begin(s.verifier.UserFromRequest(r), "compress", []string{up.Name})

	outPath, outName := s.outputPath("compress", "pdf")
	result, err := s.compressor.Run(r.Context(), up.Path, outPath, percent)
	s.tracker.Finish(j, outName, err)
	s.observe("compress", start, err)
	if err != nil {
		s.breaker.RecordFailure(r.Context(), toolGhostscript)
		if errors.Is(err, compress.ErrUnavailable) {
			s.fail(w, http.StatusServiceUnavailable, "compression is not available on this server")
			return
		}
		log.Error().Err(err).Msg("compression failed")
		s.fail(w, http.StatusInternalServerError, "compression failed")
		return
	}
	s.breaker.RecordSuccess(r.Context(), toolGhostscript)
	metrics.ObserveCompression(result.Ratio(), result.Attempts)
	s.mirrorAsync(outName, outPath)

	saved := result.OriginalSize - result.CompressedSize
	s.ok(w, "PDF compressed successfully", map[string]interface{}{
		"file":             outName,
		"downloadUrl":      downloadURL("optimize", outName),
		"originalSize":     result.OriginalSize,
		"compressedSize":   result.CompressedSize,
		"compressionRatio": result.Ratio(),
		"bytesSaved":       saved,
		"attempts":         result.Attempts,
		"profile":          result.ProfileName,
	})
}

func compressionPercent(r *http.Request) (int, error) {
	if level := r.FormValue("compressionLevel"); level != "" {
		percent, err := compress.LevelToPercent(level)
		if err != nil {
			return 0, fmt.Errorf("invalid compressionLevel %q", level)
		}
		return percent, nil
	}
	if raw := r.FormValue("compressionValue"); raw != "" {
		percent, err := strconv.Atoi(raw)
		if err != nil || percent < 1 || percent > 100 {
			return 0, fmt.Errorf("compressionValue must be a number from 1 to 100")
		}
		return percent, nil
	}
	// default matches the "recommended" level
	return 50, nil
}

// handleProtect encrypts the PDF with AES-256 under the given password.
func (s *Server) handleProtect(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	up, err := s.saveUpload(r, filetype.PDF)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err.Error())
		return
	}
	password := r.FormValue("password")
	if password == "" {
		s.fail(w, http.StatusBadRequest, "password is required")
		return
	}

	j := s.tracker.Begin(s.verifier.UserFromRequest(r), "protect", []string{up.Name})

	outPath, outName := s.outputPath("protect", "pdf")
	err = pdfops.Encrypt(up.Path, outPath, password)
	s.tracker.Finish(j, outName, err)
	s.observe("protect", start, err)
	if err != nil {
		log.Error().Err(err).Msg("encryption failed")
		s.fail(w, http.StatusInternalServerError, "encryption failed")
		return
	}
	s.mirrorAsync(outName, outPath)
	s.ok(w, "PDF protected successfully", map[string]interface{}{
		"file":        outName,
		"downloadUrl": downloadURL("optimize", outName),
	})
}

// handleRepair validates the document under relaxed rules and rewrites it.
func (s *Server) handleRepair(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	up, err := s.saveUpload(r, filetype.PDF)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err.Error())
		return
	}

	j := s.tracker.Begin(s.verifier.UserFromRequest(r), "repair", []string{up.Name})

	outPath, outName := s.outputPath("repair", "pdf")
	err = pdfops.Repair(up.Path, outPath)
	s.tracker.Finish(j, outName, err)
	s.observe("repair", start, err)
	if err != nil {
		log.Error().Err(err).Msg("repair failed")
		s.fail(w, http.StatusInternalServerError, "could not repair this PDF")
		return
	}
	s.mirrorAsync(outName, outPath)
	s.ok(w, "PDF repaired successfully", map[string]interface{}{
		"file":        outName,
		"downloadUrl": downloadURL("optimize", outName),
	})
}

// handleOCR re-optimizes the document and returns it. No text layer is
// produced; the response says so explicitly.
func (s *Server) handleOCR(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	up, err := s.saveUpload(r, filetype.PDF)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err.Error())
		return
	}
	language := r.FormValue("language")
	if language == "" {
		language = "eng"
	}

	j := s.tracker.Begin(s.verifier.UserFromRequest(r), "ocr", []string{up.Name})

	outPath, outName := s.outputPath("ocr", "pdf")
	err = pdfops.Repair(up.Path, outPath)
	s.tracker.Finish(j, outName, err)
	s.observe("ocr", start, err)
	if err != nil {
		log.Error().Err(err).Msg("ocr pass failed")
		s.fail(w, http.StatusInternalServerError, "could not process this PDF")
		return
	}
	s.mirrorAsync(outName, outPath)
	s.ok(w, "PDF processed; no text recognition layer was added", map[string]interface{}{
		"file":        outName,
		"downloadUrl": downloadURL("optimize", outName),
		"language":    language,
	})
}
