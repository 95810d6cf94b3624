// Package convert shells out to headless LibreOffice for document format
// conversion in both directions (office/html to PDF, PDF to office).
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	// ErrUnavailable is returned when LibreOffice cannot be located.
	ErrUnavailable = errors.New("libreoffice not available")

	// ErrProtected marks password-protected source documents.
	ErrProtected = errors.New("document is password protected")
)

// LibreOffice serializes access to the soffice binary through a semaphore;
// concurrent profile directories keep parallel invocations from clobbering
// each other's lock files.
type LibreOffice struct {
	path      string
	semaphore chan struct{}
	timeout   time.Duration
}

// New locates the LibreOffice binary. A missing binary is reported through
// Available, not an error, so conversion endpoints can answer 503.
func New(maxWorkers int, timeout time.Duration) *LibreOffice {
	if maxWorkers <= 0 {
		maxWorkers = 2
	}
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	l := &LibreOffice{
		semaphore: make(chan struct{}, maxWorkers),
		timeout:   timeout,
	}
	for _, name := range []string{"libreoffice", "soffice"} {
		if p, err := exec.LookPath(name); err == nil {
			l.path = p
			break
		}
	}
	if l.path == "" {
		log.Warn().Msg("LibreOffice not found in PATH, conversion endpoints disabled")
		return l
	}
	if out, err := exec.Command(l.path, "--version").Output(); err == nil {
		log.Info().Str("version", strings.TrimSpace(string(out))).Msg("LibreOffice found")
	}
	return l
}

// Available reports whether the soffice binary was located.
func (l *LibreOffice) Available() bool { return l.path != "" }

// Convert converts inputPath to targetFormat ("pdf", "docx", "pptx", "xlsx")
// and moves the result to outputPath.
func (l *LibreOffice) Convert(ctx context.Context, inputPath, outputPath, targetFormat string) error {
	if !l.Available() {
		return ErrUnavailable
	}
	if err := l.validateInput(inputPath); err != nil {
		return err
	}

	l.semaphore <- struct{}{}
	defer func() { <-l.semaphore }()

	cctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if protected, _ := l.checkPasswordProtection(cctx, inputPath); protected {
		return ErrProtected
	}

	// Unique profile directory per conversion
	profileDir := filepath.Join(os.TempDir(), "lo_profile_"+uuid.NewString())
	if err := os.MkdirAll(profileDir, 0o755); err != nil {
		return fmt.Errorf("create profile directory: %w", err)
	}
	defer os.RemoveAll(profileDir)

	outputDir := filepath.Dir(outputPath)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	cmd := exec.CommandContext(cctx, l.path,
		fmt.Sprintf("-env:UserInstallation=file://%s", profileDir),
		"--headless",
		"--convert-to", targetFormat,
		"--outdir", outputDir,
		inputPath,
	)
	log.Debug().Str("cmd", strings.Join(cmd.Args, " ")).Msg("LibreOffice command")

	start := time.Now()
	output, err := cmd.CombinedOutput()
	if err != nil {
		if cctx.Err() != nil {
			return fmt.Errorf("conversion timeout after %v", l.timeout)
		}
		return fmt.Errorf("conversion failed: %v, output: %s", err, string(output))
	}

	// LibreOffice names the result after the input file
	produced := l.producedPath(inputPath, outputDir, targetFormat)
	if produced != outputPath {
		if err := os.Rename(produced, outputPath); err != nil {
			return fmt.Errorf("output file not created: %w", err)
		}
	}
	if _, err := os.Stat(outputPath); err != nil {
		return fmt.Errorf("output file not created: %w", err)
	}

	log.Info().Str("output", outputPath).Str("format", targetFormat).
		Dur("duration", time.Since(start)).Msg("conversion successful")
	return nil
}

func (l *LibreOffice) validateInput(filePath string) error {
	info, err := os.Stat(filePath)
	if err != nil {
		return fmt.Errorf("file not found: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file")
	}
	if info.Size() == 0 {
		return fmt.Errorf("file is empty")
	}
	return nil
}

// checkPasswordProtection probes the document with --cat and looks for
// encryption markers in the failure output. The probe runs under the same
// deadline as the conversion so a hung soffice cannot pin a worker slot.
func (l *LibreOffice) checkPasswordProtection(ctx context.Context, filePath string) (bool, error) {
	cmd := exec.CommandContext(ctx, l.path, "--headless", "--cat", filePath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		s := strings.ToLower(string(output))
		if strings.Contains(s, "password") || strings.Contains(s, "encrypted") || strings.Contains(s, "protected") {
			return true, nil
		}
	}
	return false, nil
}

func (l *LibreOffice) producedPath(inputPath, outputDir, targetFormat string) string {
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outputDir, stem+"."+targetFormat)
}
