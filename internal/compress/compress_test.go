package compress

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelToPercent(t *testing.T) {
	tests := []struct {
		level string
		want  int
	}{
		{"extreme", 90},
		{"high", 70},
		{"recommended", 50},
		{"low", 30},
		{"minimal", 10},
		{" Recommended ", 50},
	}
	for _, tt := range tests {
		got, err := LevelToPercent(tt.level)
		require.NoError(t, err, tt.level)
		assert.Equal(t, tt.want, got, tt.level)
	}

	_, err := LevelToPercent("bogus")
	assert.ErrorIs(t, err, ErrUnknownLevel)
}

func TestResolveProfileBuckets(t *testing.T) {
	tests := []struct {
		percent int
		want    string
	}{
		{100, "extreme"},
		{85, "extreme"},
		{80, "extreme"},
		{79, "high"},
		{60, "high"},
		{59, "medium"},
		{45, "medium"},
		{40, "medium"},
		{39, "light"},
		{1, "light"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveProfile(tt.percent).Name, "percent %d", tt.percent)
	}
}

func TestResolveProfileParameters(t *testing.T) {
	p := ResolveProfile(85)
	assert.Equal(t, 24, p.ImageDPI)
	assert.Equal(t, 5, p.ImageQuality)
	assert.False(t, p.EmbedFonts)

	p = ResolveProfile(10)
	assert.Equal(t, 300, p.ImageDPI)
	assert.Equal(t, 40, p.ImageQuality)
	assert.True(t, p.EmbedFonts)
}

func TestEscalateIsMonotonicAndTerminates(t *testing.T) {
	p := ResolveProfile(10)
	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		if seen[p.Name] {
			break
		}
		seen[p.Name] = true
		next := Escalate(p)
		if next.Name == p.Name {
			break
		}
		assert.LessOrEqual(t, next.ImageDPI, p.ImageDPI)
		assert.LessOrEqual(t, next.ImageQuality, p.ImageQuality)
		p = next
	}
	assert.Equal(t, "extreme3", p.Name)
	assert.Equal(t, "extreme3", Escalate(p).Name)
}

// fakeRunner writes outputs of scripted sizes, one per attempt.
type fakeRunner struct {
	sizes []int
	calls int
}

func (f *fakeRunner) Available() bool { return true }

func (f *fakeRunner) Compress(_ context.Context, _, outputPath string, _ Profile) error {
	size := f.sizes[len(f.sizes)-1]
	if f.calls < len(f.sizes) {
		size = f.sizes[f.calls]
	}
	f.calls++
	return os.WriteFile(outputPath, bytes.Repeat([]byte{'x'}, size), 0o644)
}

type unavailableRunner struct{}

func (unavailableRunner) Available() bool { return false }
func (unavailableRunner) Compress(context.Context, string, string, Profile) error {
	return ErrUnavailable
}

func writeInput(t *testing.T, dir string, size int) string {
	t.Helper()
	p := filepath.Join(dir, "input.pdf")
	require.NoError(t, os.WriteFile(p, bytes.Repeat([]byte{'i'}, size), 0o644))
	return p
}

func TestCompressorStopsOnceSmaller(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, 1000)
	out := filepath.Join(dir, "out.pdf")

	runner := &fakeRunner{sizes: []int{400}}
	res, err := New(runner, 0).Run(context.Background(), in, out, 50)
	require.NoError(t, err)

	assert.Equal(t, 1, runner.calls)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, int64(1000), res.OriginalSize)
	assert.Equal(t, int64(400), res.CompressedSize)
	assert.InDelta(t, 0.4, res.Ratio(), 0.001)

	st, err := os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, int64(400), st.Size())
}

func TestCompressorEscalationTerminatesAtThreeAttempts(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, 100)
	out := filepath.Join(dir, "out.pdf")

	// pathological input that never shrinks
	runner := &fakeRunner{sizes: []int{300, 200, 150}}
	res, err := New(runner, 0).Run(context.Background(), in, out, 90)
	require.NoError(t, err)

	assert.Equal(t, 3, runner.calls)
	assert.Equal(t, 3, res.Attempts)
	// best-achieved output is returned even without strict reduction
	assert.Equal(t, int64(150), res.CompressedSize)
	st, err := os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, int64(150), st.Size())

	// staged attempt files are cleaned up
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := []string{}
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"input.pdf", "out.pdf"}, names)
}

func TestCompressorKeepsSmallestOfAllAttempts(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, 100)
	out := filepath.Join(dir, "out.pdf")

	// middle attempt is the smallest
	runner := &fakeRunner{sizes: []int{300, 120, 250}}
	res, err := New(runner, 0).Run(context.Background(), in, out, 90)
	require.NoError(t, err)
	assert.Equal(t, int64(120), res.CompressedSize)
}

func TestCompressorUnavailableRunner(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, 100)

	_, err := New(unavailableRunner{}, 0).Run(context.Background(), in, filepath.Join(dir, "out.pdf"), 50)
	assert.ErrorIs(t, err, ErrUnavailable)
}
