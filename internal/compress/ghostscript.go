package compress

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

// ErrUnavailable is returned when Ghostscript cannot be located on the host.
var ErrUnavailable = errors.New("ghostscript not available")

// Runner executes one compression pass with a concrete profile.
type Runner interface {
	Available() bool
	Compress(ctx context.Context, inputPath, outputPath string, p Profile) error
}

// Ghostscript invokes the gs binary.
type Ghostscript struct {
	path string
}

// FindGhostscript locates the gs binary, preferring an explicit path from
// configuration over PATH lookup. A missing binary is not an error here;
// Available reports it and operations fail fast with ErrUnavailable.
func FindGhostscript(explicit string) *Ghostscript {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return &Ghostscript{path: explicit}
		}
		log.Warn().Str("path", explicit).Msg("configured ghostscript path not found")
	}
	for _, name := range []string{"gs", "ghostscript"} {
		if p, err := exec.LookPath(name); err == nil {
			return &Ghostscript{path: p}
		}
	}
	return &Ghostscript{}
}

// Available reports whether a gs binary was located.
func (g *Ghostscript) Available() bool { return g.path != "" }

// Path returns the located gs binary path, empty when unavailable.
func (g *Ghostscript) Path() string { return g.path }

// Compress rewrites inputPath to outputPath using the profile's preset and
// image downsampling parameters.
func (g *Ghostscript) Compress(ctx context.Context, inputPath, outputPath string, p Profile) error {
	if !g.Available() {
		return ErrUnavailable
	}

	args := []string{
		"-sDEVICE=pdfwrite",
		"-dPDFSETTINGS=" + p.PDFSettings,
		"-dCompatibilityLevel=1.4",
		"-dNOPAUSE",
		"-dQUIET",
		"-dBATCH",
		"-dAutoRotatePages=/None",
		"-dColorImageDownsampleType=/Bicubic",
		fmt.Sprintf("-dColorImageResolution=%d", p.ImageDPI),
		"-dGrayImageDownsampleType=/Bicubic",
		fmt.Sprintf("-dGrayImageResolution=%d", p.ImageDPI),
		"-dMonoImageDownsampleType=/Bicubic",
		fmt.Sprintf("-dMonoImageResolution=%d", p.ImageDPI),
		"-dColorConversionStrategy=/sRGB",
		fmt.Sprintf("-dEmbedAllFonts=%t", p.EmbedFonts),
		"-dSubsetFonts=true",
		"-dOptimize=true",
		"-dDownsampleColorImages=true",
		"-dDownsampleGrayImages=true",
		"-dDownsampleMonoImages=true",
		"-dAutoFilterColorImages=false",
		"-dColorImageFilter=/DCTEncode",
		fmt.Sprintf("-dJPEGQ=%d", p.ImageQuality),
	}
	if strings.HasPrefix(p.Name, "extreme") {
		args = append(args, "-dCompressFonts=true", "-dCompressStreams=true")
	}
	args = append(args, "-sOutputFile="+outputPath, inputPath)

	cmd := exec.CommandContext(ctx, g.path, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ghostscript failed: %v, output: %s", err, string(output))
	}
	if _, err := os.Stat(outputPath); os.IsNotExist(err) {
		return fmt.Errorf("ghostscript did not create output file")
	}
	return nil
}

// ToPDFA rewrites inputPath as PDF/A-2b.
func (g *Ghostscript) ToPDFA(ctx context.Context, inputPath, outputPath string) error {
	if !g.Available() {
		return ErrUnavailable
	}

	args := []string{
		"-dPDFA=2",
		"-dBATCH",
		"-dNOPAUSE",
		"-dQUIET",
		"-sDEVICE=pdfwrite",
		"-dPDFACompatibilityPolicy=1",
		"-sColorConversionStrategy=UseDeviceIndependentColor",
		"-sOutputFile=" + outputPath,
		inputPath,
	}

	cmd := exec.CommandContext(ctx, g.path, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("pdfa conversion failed: %v, output: %s", err, string(output))
	}
	if _, err := os.Stat(outputPath); os.IsNotExist(err) {
		return fmt.Errorf("ghostscript did not create output file")
	}
	return nil
}
