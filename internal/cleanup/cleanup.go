// Package cleanup removes uploaded and processed files after the
// retention window expires.
package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/easypdf/internal/metrics"
)

// Sweeper deletes files older than the TTL from the watched directories.
type Sweeper struct {
	dirs     []string
	ttl      time.Duration
	interval time.Duration
}

// NewSweeper watches dirs and removes entries older than ttl on every
// interval tick.
func NewSweeper(dirs []string, ttl, interval time.Duration) *Sweeper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{dirs: dirs, ttl: ttl, interval: interval}
}

// Run sweeps immediately, then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	log.Info().Dur("ttl", s.ttl).Dur("interval", s.interval).
		Strs("dirs", s.dirs).Msg("file retention sweeper started")
	s.SweepAll()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("file retention sweeper stopped")
			return
		case <-ticker.C:
			s.SweepAll()
		}
	}
}

// SweepAll runs one pass over every watched directory.
func (s *Sweeper) SweepAll() {
	cutoff := time.Now().Add(-s.ttl)
	for _, dir := range s.dirs {
		n := s.sweepDir(dir, cutoff)
		if n > 0 {
			metrics.AddSwept(dir, n)
			log.Info().Str("dir", dir).Int("removed", n).Msg("expired files removed")
		}
	}
}

func (s *Sweeper) sweepDir(dir string, cutoff time.Time) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("dir", dir).Msg("sweep read failed")
		}
		return 0
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			log.Warn().Err(err).Str("file", path).Msg("sweep remove failed")
			continue
		}
		removed++
	}
	return removed
}
