package jobs

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// DefaultMaxAge is how long downloaded audio files may linger before
// the sweeper removes them. Files are normally deleted right after
// transcription; the sweeper catches leftovers from crashed requests.
const DefaultMaxAge = 1 * time.Hour

// TempFileSweeper removes stale audio files from the download
// directory. It implements the JobProcessor interface.
type TempFileSweeper struct {
	dir    string
	maxAge time.Duration
}

// NewTempFileSweeper creates a sweeper for dir. maxAge <= 0 uses
// DefaultMaxAge.
func NewTempFileSweeper(dir string, maxAge time.Duration) *TempFileSweeper {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &TempFileSweeper{dir: dir, maxAge: maxAge}
}

// ProcessJobs implements the JobProcessor interface
func (s *TempFileSweeper) ProcessJobs(ctx context.Context) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read temp dir: %w", err)
	}

	cutoff := time.Now().Add(-s.maxAge)
	removed := 0

	for _, entry := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
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

		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			log.Printf("Error removing stale temp file %s: %v", path, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		log.Printf("Removed %d stale temp files from %s", removed, s.dir)
	}
	return nil
}
