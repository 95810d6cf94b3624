package convert

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertWithoutBinaryIsUnavailable(t *testing.T) {
	l := &LibreOffice{semaphore: make(chan struct{}, 1), timeout: time.Second}
	err := l.Convert(context.Background(), "in.docx", "out.pdf", "pdf")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestPasswordProbeHonorsDeadline(t *testing.T) {
	dir := t.TempDir()
	stub := filepath.Join(dir, "soffice-stub.sh")
	require.NoError(t, os.WriteFile(stub, []byte("#!/bin/sh\nsleep 5\n"), 0o755))

	l := &LibreOffice{path: stub, semaphore: make(chan struct{}, 1), timeout: time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	protected, _ := l.checkPasswordProtection(ctx, filepath.Join(dir, "doc.pdf"))
	assert.False(t, protected)
	assert.Less(t, time.Since(start), 2*time.Second, "probe must die with its context")
}

func TestProducedPathFollowsInputStem(t *testing.T) {
	l := &LibreOffice{}
	got := l.producedPath("/uploads/abc-123.docx", "/downloads", "pdf")
	assert.Equal(t, filepath.Join("/downloads", "abc-123.pdf"), got)
}
