package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/local/easypdf/internal/auth"
	"github.com/local/easypdf/internal/config"
	"github.com/local/easypdf/internal/job"
	"github.com/local/easypdf/internal/limiter"
	"github.com/local/easypdf/internal/pdfops"
)

// fakePDF is enough for magic-byte detection without being a real document.
var fakePDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

func testDeps(t *testing.T) Deps {
	t.Helper()
	cfg := config.Config{}
	cfg.Server.MaxUploadMB = 8
	cfg.Files.UploadDir = t.TempDir()
	cfg.Files.DownloadDir = t.TempDir()
	cfg.Limits.MaxConcurrentOps = 2
	cfg.Limits.AdmissionWait = 50 * time.Millisecond

	return Deps{
		Config:    cfg,
		Verifier:  auth.NewVerifier(""),
		Admission: limiter.NewAdmission(cfg.Limits.MaxConcurrentOps, cfg.Limits.AdmissionWait),
		Breaker:   limiter.NewBreaker(nil, 3, time.Second, time.Minute),
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return New(testDeps(t))
}

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	newTestServer(t).RegisterRoutes(mux)
	return mux
}

type filePart struct {
	field, name string
	body        []byte
}

func multipartRequest(t *testing.T, target string, fields url.Values, files ...filePart) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for key, vals := range fields {
		for _, v := range vals {
			require.NoError(t, mw.WriteField(key, v))
		}
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.body)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, target, &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func decodeEnvelope(t *testing.T, body io.Reader) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(body).Decode(&env))
	return env
}

func TestMergeRequiresTwoFiles(t *testing.T) {
	mux := newTestMux(t)

	r := multipartRequest(t, "/api/organize/merge", nil,
		filePart{"files", "only.pdf", fakePDF})
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w.Body)
	assert.False(t, env.Success)
	assert.Contains(t, env.Message, "at least two")
}

func TestMergeRequiresFiles(t *testing.T) {
	mux := newTestMux(t)

	r := multipartRequest(t, "/api/organize/merge", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMergeRejectsNonPDF(t *testing.T) {
	mux := newTestMux(t)

	r := multipartRequest(t, "/api/organize/merge", nil,
		filePart{"files", "a.pdf", fakePDF},
		filePart{"files", "b.txt", []byte("plain text, not a pdf")})
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w.Body)
	assert.False(t, env.Success)
}

func TestSplitRequiresPageRanges(t *testing.T) {
	mux := newTestMux(t)

	r := multipartRequest(t, "/api/organize/split", nil,
		filePart{"file", "doc.pdf", fakePDF})
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w.Body)
	assert.Contains(t, env.Message, "pageRanges")
}

func TestRemovePagesRequiresExpression(t *testing.T) {
	mux := newTestMux(t)

	r := multipartRequest(t, "/api/organize/remove-pages", nil,
		filePart{"file", "doc.pdf", fakePDF})
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w.Body)
	assert.Contains(t, env.Message, "pagesToRemove")
}

func TestProtectRequiresPassword(t *testing.T) {
	mux := newTestMux(t)

	r := multipartRequest(t, "/api/optimize/protect", nil,
		filePart{"file", "doc.pdf", fakePDF})
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w.Body)
	assert.Contains(t, env.Message, "password")
}

func TestCompressUnavailableWithoutGhostscript(t *testing.T) {
	mux := newTestMux(t)

	r := multipartRequest(t, "/api/optimize/compress", nil,
		filePart{"file", "doc.pdf", fakePDF})
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestOfficeConversionUnavailableWithoutLibreOffice(t *testing.T) {
	mux := newTestMux(t)

	for _, target := range []string{
		"/api/convert-to-pdf/word",
		"/api/convert-to-pdf/excel",
		"/api/convert-from-pdf/powerpoint",
	} {
		r := multipartRequest(t, target, nil, filePart{"file", "doc.pdf", fakePDF})
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, r)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, target)
	}
}

func TestCompressionPercent(t *testing.T) {
	form := func(key, val string) *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/api/optimize/compress",
			strings.NewReader(url.Values{key: {val}}.Encode()))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return r
	}

	p, err := compressionPercent(form("compressionLevel", "extreme"))
	require.NoError(t, err)
	assert.Equal(t, 90, p)

	p, err = compressionPercent(form("compressionValue", "42"))
	require.NoError(t, err)
	assert.Equal(t, 42, p)

	_, err = compressionPercent(form("compressionLevel", "nope"))
	assert.Error(t, err)

	_, err = compressionPercent(form("compressionValue", "0"))
	assert.Error(t, err)

	_, err = compressionPercent(form("compressionValue", "101"))
	assert.Error(t, err)

	p, err = compressionPercent(httptest.NewRequest(http.MethodPost, "/api/optimize/compress", nil))
	require.NoError(t, err)
	assert.Equal(t, 50, p)
}

func TestDownloadMissingFileIs404(t *testing.T) {
	mux := newTestMux(t)

	r := httptest.NewRequest(http.MethodGet, "/api/organize/download/absent.pdf", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDownloadServesExistingFile(t *testing.T) {
	srv := newTestServer(t)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	name := "merge-123-abc.pdf"
	require.NoError(t, os.WriteFile(filepath.Join(srv.cfg.Files.DownloadDir, name), fakePDF, 0o644))

	r := httptest.NewRequest(http.MethodGet, "/api/organize/download/"+name, nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), name)
	assert.Equal(t, fakePDF, w.Body.Bytes())
}

func TestDownloadSanitizesTraversal(t *testing.T) {
	srv := newTestServer(t)

	secret := filepath.Join(srv.cfg.Files.UploadDir, "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("private"), 0o644))

	r := httptest.NewRequest(http.MethodGet, "/api/organize/download/..%2F..%2Fsecret.txt", nil)
	w := httptest.NewRecorder()
	srv.handleDownload(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPostOnlyEndpointsRejectGet(t *testing.T) {
	mux := newTestMux(t)

	r := httptest.NewRequest(http.MethodGet, "/api/organize/merge", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHealth(t *testing.T) {
	mux := newTestMux(t)

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w.Body)
	assert.True(t, env.Success)
}

// jpegBytes produces a small valid JPEG for upload fixtures.
func jpegBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 40, 40)), nil))
	return buf.Bytes()
}

// makePDF builds a real PDF with the given page count through the image
// import pipeline.
func makePDF(t *testing.T, pageCount int) []byte {
	t.Helper()
	dir := t.TempDir()
	imgs := make([]string, pageCount)
	for i := range imgs {
		path := filepath.Join(dir, fmt.Sprintf("page%d.jpg", i))
		require.NoError(t, os.WriteFile(path, jpegBytes(t), 0o644))
		imgs[i] = path
	}
	out := filepath.Join(dir, "doc.pdf")
	require.NoError(t, pdfops.ImportImages(imgs, out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	return data
}

func dataMap(t *testing.T, env envelope) map[string]interface{} {
	t.Helper()
	m, ok := env.Data.(map[string]interface{})
	require.True(t, ok, "data should be an object")
	return m
}

func (s *Server) downloadFile(name string) string {
	return filepath.Join(s.cfg.Files.DownloadDir, name)
}

func TestMergeHappyPath(t *testing.T) {
	srv := newTestServer(t)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	r := multipartRequest(t, "/api/organize/merge", nil,
		filePart{"files", "a.pdf", makePDF(t, 1)},
		filePart{"files", "b.pdf", makePDF(t, 2)})
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	env := decodeEnvelope(t, w.Body)
	assert.True(t, env.Success)
	data := dataMap(t, env)

	name, _ := data["file"].(string)
	require.NotEmpty(t, name)
	count, err := pdfops.PageCount(srv.downloadFile(name))
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	dl, _ := data["downloadUrl"].(string)
	require.NotEmpty(t, dl)
	dw := httptest.NewRecorder()
	mux.ServeHTTP(dw, httptest.NewRequest(http.MethodGet, dl, nil))
	assert.Equal(t, http.StatusOK, dw.Code)
}

func TestSplitProducesOnePDFPerRange(t *testing.T) {
	srv := newTestServer(t)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	r := multipartRequest(t, "/api/organize/split",
		url.Values{"pageRanges": {"1-2,3"}},
		filePart{"file", "doc.pdf", makePDF(t, 3)})
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	env := decodeEnvelope(t, w.Body)
	data := dataMap(t, env)
	parts, _ := data["parts"].([]interface{})
	require.Len(t, parts, 2)

	wantPages := []int{2, 1}
	for i, raw := range parts {
		part, ok := raw.(map[string]interface{})
		require.True(t, ok)
		name, _ := part["file"].(string)
		count, err := pdfops.PageCount(srv.downloadFile(name))
		require.NoError(t, err)
		assert.Equal(t, wantPages[i], count)
	}
}

func TestExtractPagesHappyPath(t *testing.T) {
	srv := newTestServer(t)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	r := multipartRequest(t, "/api/organize/extract-pages",
		url.Values{"pageRanges": {"1,3"}},
		filePart{"file", "doc.pdf", makePDF(t, 3)})
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := dataMap(t, decodeEnvelope(t, w.Body))
	name, _ := data["file"].(string)
	count, err := pdfops.PageCount(srv.downloadFile(name))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestExtractPagesRejectsRangeTokens(t *testing.T) {
	mux := newTestMux(t)

	r := multipartRequest(t, "/api/organize/extract-pages",
		url.Values{"pageRanges": {"1-3"}},
		filePart{"file", "doc.pdf", makePDF(t, 3)})
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w.Body)
	assert.Contains(t, env.Message, "invalid pageRanges")
}

func TestRemovePagesHappyPath(t *testing.T) {
	srv := newTestServer(t)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	r := multipartRequest(t, "/api/organize/remove-pages",
		url.Values{"pagesToRemove": {"2"}},
		filePart{"file", "doc.pdf", makePDF(t, 3)})
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := dataMap(t, decodeEnvelope(t, w.Body))
	name, _ := data["file"].(string)
	count, err := pdfops.PageCount(srv.downloadFile(name))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestOrganizeDropsUnlistedPages(t *testing.T) {
	srv := newTestServer(t)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	r := multipartRequest(t, "/api/organize/organize",
		url.Values{"pageOrder": {"3,1"}},
		filePart{"file", "doc.pdf", makePDF(t, 3)})
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := dataMap(t, decodeEnvelope(t, w.Body))
	name, _ := data["file"].(string)
	count, err := pdfops.PageCount(srv.downloadFile(name))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestScanToPDFHappyPath(t *testing.T) {
	srv := newTestServer(t)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	r := multipartRequest(t, "/api/organize/scan-to-pdf", nil,
		filePart{"files", "s1.jpg", jpegBytes(t)},
		filePart{"files", "s2.jpg", jpegBytes(t)})
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := dataMap(t, decodeEnvelope(t, w.Body))
	name, _ := data["file"].(string)
	count, err := pdfops.PageCount(srv.downloadFile(name))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestAuthenticatedOperationRecordsJob(t *testing.T) {
	const secret = "server-test-secret"
	deps := testDeps(t)
	deps.Verifier = auth.NewVerifier(secret)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "jobs.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	store, err := job.NewStore(db)
	require.NoError(t, err)
	deps.Store = store
	deps.Tracker = job.NewTracker(store)

	srv := New(deps)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-9",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	r := multipartRequest(t, "/api/organize/extract-pages",
		url.Values{"pageRanges": {"1"}},
		filePart{"file", "doc.pdf", makePDF(t, 2)})
	r.Header.Set("Authorization", "Bearer "+signed)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	jobs, err := store.ListByUser("user-9", 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "extract_pages", jobs[0].Operation)
	assert.Equal(t, job.StatusCompleted, jobs[0].Status)
	assert.NotNil(t, jobs[0].CompletedAt)
	assert.Equal(t, []string{"doc.pdf"}, jobs[0].Files())
}

func TestOutputBaseIsCollisionResistant(t *testing.T) {
	a := outputBase("pdf_to_jpg")
	b := outputBase("pdf_to_jpg")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "pdf_to_jpg-"))
}

func TestJobsRequiresAuth(t *testing.T) {
	mux := newTestMux(t)

	r := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
