package server

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/easypdf/internal/filetype"
)

// upload is one saved multipart file.
type upload struct {
	Path string // location under the uploads directory
	Name string // original client file name
}

// saveUploads parses the multipart form and stores every file under the
// given field in the uploads directory, validated against the accepted
// classes. Returns a 400-mappable error on empty or invalid input.
func (s *Server) saveUploads(r *http.Request, field string, accepted ...filetype.Class) ([]upload, error) {
	if err := r.ParseMultipartForm(s.cfg.Server.MaxUploadMB << 20); err != nil {
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		return nil, fmt.Errorf("no file uploaded under %q", field)
	}

	var saved []upload
	for _, header := range r.MultipartForm.File[field] {
		u, err := s.saveOne(header, accepted...)
		if err != nil {
			return nil, err
		}
		saved = append(saved, u)
	}
	return saved, nil
}

// saveUpload is saveUploads for the single-file "file" field.
func (s *Server) saveUpload(r *http.Request, accepted ...filetype.Class) (upload, error) {
	files, err := s.saveUploads(r, "file", accepted...)
	if err != nil {
		return upload{}, err
	}
	return files[0], nil
}

func (s *Server) saveOne(header *multipart.FileHeader, accepted ...filetype.Class) (upload, error) {
	src, err := header.Open()
	if err != nil {
		return upload{}, fmt.Errorf("open upload %s: %w", header.Filename, err)
	}
	defer src.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	path := filepath.Join(s.cfg.Files.UploadDir, uuid.NewString()+ext)
	dst, err := os.Create(path)
	if err != nil {
		return upload{}, fmt.Errorf("store upload: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return upload{}, fmt.Errorf("store upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return upload{}, fmt.Errorf("store upload: %w", err)
	}

	if len(accepted) > 0 {
		if err := filetype.Check(path, accepted...); err != nil {
			os.Remove(path)
			return upload{}, fmt.Errorf("%s: %w", header.Filename, err)
		}
	}
	return upload{Path: path, Name: header.Filename}, nil
}

// outputBase builds a collision-resistant download name stem for op.
func outputBase(op string) string {
	return fmt.Sprintf("%s-%d-%s", op, time.Now().UnixNano(), uuid.NewString()[:8])
}

// outputPath builds a download file name for op and returns both the
// filesystem path and the bare file name.
func (s *Server) outputPath(op, ext string) (string, string) {
	name := outputBase(op) + "." + ext
	return filepath.Join(s.cfg.Files.DownloadDir, name), name
}

// downloadURL points the client at the group's download route.
func downloadURL(group, name string) string {
	return "/api/" + group + "/download/" + name
}

// names extracts the original client file names for the job record.
func names(ups []upload) []string {
	out := make([]string, len(ups))
	for i, u := range ups {
		out[i] = u.Name
	}
	return out
}

// mirrorAsync sends produced files to S3 when mirroring is enabled.
func (s *Server) mirrorAsync(name, path string) {
	if s.mirror == nil {
		return
	}
	s.mirror.PutAsync(name, path)
}

// handleDownload streams a produced file. The name is reduced to its base
// so traversal attempts cannot leave the downloads directory.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.fail(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	name := filepath.Base(strings.TrimSuffix(r.URL.Path, "/"))
	if name == "." || name == "/" || name == "download" {
		s.fail(w, http.StatusNotFound, "file not found")
		return
	}
	path := filepath.Join(s.cfg.Files.DownloadDir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		s.fail(w, http.StatusNotFound, "file not found")
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	log.Debug().Str("file", name).Msg("serving download")
	http.ServeFile(w, r, path)
}
