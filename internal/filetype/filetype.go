// Package filetype validates uploads by magic bytes rather than trusting
// extensions or the declared Content-Type.
package filetype

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Class identifies groups of inputs that operations accept.
type Class string

const (
	PDF        Class = "pdf"
	Image      Class = "image"
	Word       Class = "word"
	PowerPoint Class = "powerpoint"
	Excel      Class = "excel"
	HTML       Class = "html"
)

// mimeClasses maps detected MIME types to a Class. Office formats come in
// OOXML and legacy OLE flavors; both are accepted.
var mimeClasses = map[string]Class{
	"application/pdf": PDF,

	"image/jpeg": Image,
	"image/png":  Image,
	"image/tiff": Image,
	"image/webp": Image,

	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": Word,
	"application/msword": Word,

	"application/vnd.openxmlformats-officedocument.presentationml.presentation": PowerPoint,
	"application/vnd.ms-powerpoint": PowerPoint,

	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": Excel,
	"application/vnd.ms-excel": Excel,

	"text/html": HTML,
}

// Detect sniffs the file and returns its MIME type string.
func Detect(path string) (string, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("detect file type: %w", err)
	}
	return mt.String(), nil
}

// Check sniffs the file and verifies it belongs to one of the accepted
// classes. The returned error is suitable for a 400 response.
func Check(path string, accepted ...Class) error {
	mime, err := Detect(path)
	if err != nil {
		return err
	}
	class, ok := classify(mime)
	if !ok {
		return fmt.Errorf("unsupported file type %q", mime)
	}
	for _, a := range accepted {
		if class == a {
			return nil
		}
	}
	names := make([]string, len(accepted))
	for i, a := range accepted {
		names[i] = string(a)
	}
	return fmt.Errorf("got %s, expected %s", class, strings.Join(names, " or "))
}

func classify(mime string) (Class, bool) {
	// strip parameters like "; charset=utf-8"
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	c, ok := mimeClasses[mime]
	return c, ok
}
