// Package server wires the HTTP surface: routing, request plumbing and
// the JSON response envelope.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/easypdf/internal/auth"
	"github.com/local/easypdf/internal/compress"
	"github.com/local/easypdf/internal/config"
	"github.com/local/easypdf/internal/convert"
	"github.com/local/easypdf/internal/job"
	"github.com/local/easypdf/internal/limiter"
	"github.com/local/easypdf/internal/metrics"
	"github.com/local/easypdf/internal/storage"
)

// Deps carries everything the handlers need. Optional members (Breaker,
// Mirror, Store) may be nil.
type Deps struct {
	Config     config.Config
	Verifier   *auth.Verifier
	Store      *job.Store
	Tracker    *job.Tracker
	Admission  *limiter.Admission
	Breaker    *limiter.Breaker
	Compressor *compress.Compressor
	Gs         *compress.Ghostscript
	Office     *convert.LibreOffice
	Mirror     *storage.Mirror
}

// Server handles the document processing API.
type Server struct {
	cfg        config.Config
	verifier   *auth.Verifier
	store      *job.Store
	tracker    *job.Tracker
	admission  *limiter.Admission
	breaker    *limiter.Breaker
	compressor *compress.Compressor
	gs         *compress.Ghostscript
	office     *convert.LibreOffice
	mirror     *storage.Mirror
}

// New builds a server from its dependencies.
func New(d Deps) *Server {
	return &Server{
		cfg:        d.Config,
		verifier:   d.Verifier,
		store:      d.Store,
		tracker:    d.Tracker,
		admission:  d.Admission,
		breaker:    d.Breaker,
		compressor: d.Compressor,
		gs:         d.Gs,
		office:     d.Office,
		mirror:     d.Mirror,
	}
}

// RegisterRoutes attaches all handlers to mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// organize
	mux.HandleFunc("/api/organize/merge", s.post(s.handleMerge))
	mux.HandleFunc("/api/organize/split", s.post(s.handleSplit))
	mux.HandleFunc("/api/organize/remove-pages", s.post(s.handleRemovePages))
	mux.HandleFunc("/api/organize/extract-pages", s.post(s.handleExtractPages))
	mux.HandleFunc("/api/organize/organize", s.post(s.handleOrganize))
	mux.HandleFunc("/api/organize/scan-to-pdf", s.post(s.handleScanToPDF))

	// optimize
	mux.HandleFunc("/api/optimize/compress", s.post(s.handleCompress))
	mux.HandleFunc("/api/optimize/protect", s.post(s.handleProtect))
	mux.HandleFunc("/api/optimize/repair", s.post(s.handleRepair))
	mux.HandleFunc("/api/optimize/ocr", s.post(s.handleOCR))

	// convert to PDF
	mux.HandleFunc("/api/convert-to-pdf/jpg", s.post(s.handleImageToPDF))
	mux.HandleFunc("/api/convert-to-pdf/word", s.post(s.officeToPDF("word")))
	mux.HandleFunc("/api/convert-to-pdf/powerpoint", s.post(s.officeToPDF("powerpoint")))
	mux.HandleFunc("/api/convert-to-pdf/excel", s.post(s.officeToPDF("excel")))
	mux.HandleFunc("/api/convert-to-pdf/html", s.post(s.officeToPDF("html")))

	// convert from PDF
	mux.HandleFunc("/api/convert-from-pdf/jpg", s.post(s.handlePDFToJPG))
	mux.HandleFunc("/api/convert-from-pdf/word", s.post(s.pdfToOffice("word", "docx")))
	mux.HandleFunc("/api/convert-from-pdf/powerpoint", s.post(s.pdfToOffice("powerpoint", "pptx")))
	mux.HandleFunc("/api/convert-from-pdf/excel", s.post(s.pdfToOffice("excel", "xlsx")))
	mux.HandleFunc("/api/convert-from-pdf/pdfa", s.post(s.handlePDFToPDFA))

	// downloads per group
	mux.HandleFunc("/api/organize/download/", s.handleDownload)
	mux.HandleFunc("/api/optimize/download/", s.handleDownload)
	mux.HandleFunc("/api/convert-to-pdf/download/", s.handleDownload)
	mux.HandleFunc("/api/convert-from-pdf/download/", s.handleDownload)

	mux.HandleFunc("/api/jobs", s.handleListJobs)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", metrics.Handler())
}

// post rejects every method except POST before running the handler.
func (s *Server) post(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			s.fail(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h(w, r)
	}
}

// envelope is the JSON shape every API response uses.
type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (s *Server) ok(w http.ResponseWriter, message string, data interface{}) {
	s.writeJSON(w, http.StatusOK, envelope{Success: true, Message: message, Data: data})
}

func (s *Server) fail(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, envelope{Success: false, Message: message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("response encode failed")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	type toolStatus struct {
		Ghostscript bool `json:"ghostscript"`
		LibreOffice bool `json:"libreoffice"`
		Breaker     bool `json:"breaker"`
	}
	status := toolStatus{
		Ghostscript: s.gs != nil && s.gs.Available(),
		LibreOffice: s.office != nil && s.office.Available(),
		Breaker:     s.breaker != nil,
	}
	s.ok(w, "ok", status)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.fail(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	user := s.verifier.UserFromRequest(r)
	if user == nil {
		s.fail(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if s.store == nil {
		s.ok(w, "job history disabled", []job.Job{})
		return
	}
	jobs, err := s.store.ListByUser(*user, 50)
	if err != nil {
		log.Error().Err(err).Msg("job listing failed")
		s.fail(w, http.StatusInternalServerError, "could not list jobs")
		return
	}
	s.ok(w, "jobs", jobs)
}

// admit takes a processing slot for heavy operations, answering 503 when
// the server stays saturated past the wait budget. The returned release
// func is nil when admission failed.
func (s *Server) admit(w http.ResponseWriter, r *http.Request) func() {
	ctx, cancel := context.WithCancel(r.Context())
	err := s.admission.Acquire(ctx)
	if err != nil {
		cancel()
		metrics.IncRejected()
		s.fail(w, http.StatusServiceUnavailable, "server busy, try again shortly")
		return nil
	}
	metrics.IncInflight()
	return func() {
		s.admission.Release()
		metrics.DecInflight()
		cancel()
	}
}

// observe records the operation outcome metric and job record in one place.
func (s *Server) observe(op string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.ObserveOperation(op, result, time.Since(start))
}
