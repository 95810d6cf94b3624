package compress

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

const maxAttempts = 3

// Result describes the outcome of a compress request.
type Result struct {
	OutputPath     string
	OriginalSize   int64
	CompressedSize int64
	Attempts       int
	ProfileName    string
}

// Ratio reports compressed size as a fraction of the original.
func (r Result) Ratio() float64 {
	if r.OriginalSize == 0 {
		return 1
	}
	return float64(r.CompressedSize) / float64(r.OriginalSize)
}

// Compressor applies a resolved profile and escalates on insufficient
// reduction. It never loops past maxAttempts and returns the best-achieved
// output even when no pass beat the original size.
type Compressor struct {
	runner  Runner
	timeout time.Duration
}

// New builds a Compressor around a runner. timeout bounds each pass.
func New(runner Runner, timeout time.Duration) *Compressor {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Compressor{runner: runner, timeout: timeout}
}

// Run compresses inputPath into outputPath at the requested percentage.
// Attempt outputs are staged next to outputPath and the smallest one wins.
func (c *Compressor) Run(ctx context.Context, inputPath, outputPath string, percent int) (Result, error) {
	if !c.runner.Available() {
		return Result{}, ErrUnavailable
	}

	in, err := os.Stat(inputPath)
	if err != nil {
		return Result{}, fmt.Errorf("stat input: %w", err)
	}
	originalSize := in.Size()

	profile := ResolveProfile(percent)
	bestPath := ""
	bestSize := int64(-1)
	bestProfile := profile.Name
	attempts := 0

	for attempts < maxAttempts {
		attempts++
		stagePath := fmt.Sprintf("%s.attempt%d", outputPath, attempts)

		actx, cancel := context.WithTimeout(ctx, c.timeout)
		err := c.runner.Compress(actx, inputPath, stagePath, profile)
		cancel()
		if err != nil {
			c.discardStages(outputPath, attempts)
			return Result{}, err
		}

		st, err := os.Stat(stagePath)
		if err != nil {
			c.discardStages(outputPath, attempts)
			return Result{}, fmt.Errorf("stat attempt output: %w", err)
		}
		size := st.Size()
		if bestSize < 0 || size < bestSize {
			bestPath = stagePath
			bestSize = size
			bestProfile = profile.Name
		}

		if size < originalSize {
			break
		}
		log.Debug().Str("profile", profile.Name).Int64("in", originalSize).
			Int64("out", size).Int("attempt", attempts).Msg("compression did not shrink, escalating")
		profile = Escalate(profile)
	}

	if err := os.Rename(bestPath, outputPath); err != nil {
		c.discardStages(outputPath, attempts)
		return Result{}, fmt.Errorf("finalize output: %w", err)
	}
	c.discardStages(outputPath, attempts)

	return Result{
		OutputPath:     outputPath,
		OriginalSize:   originalSize,
		CompressedSize: bestSize,
		Attempts:       attempts,
		ProfileName:    bestProfile,
	}, nil
}

func (c *Compressor) discardStages(outputPath string, attempts int) {
	for i := 1; i <= attempts; i++ {
		_ = os.Remove(fmt.Sprintf("%s.attempt%d", outputPath, i))
	}
}
