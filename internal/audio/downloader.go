package audio

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/coursewise/videokb/internal/domain"
)

// CommandRunner abstracts process execution so tests can fake yt-dlp.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Downloader extracts a video's audio track with yt-dlp, for videos
// that have no caption tracks.
type Downloader struct {
	runner  CommandRunner
	binPath string
	tempDir string
}

// NewDownloader creates a Downloader. binPath defaults to "yt-dlp" on
// PATH; tempDir defaults to the system temp directory.
func NewDownloader(runner CommandRunner, binPath, tempDir string) *Downloader {
	if runner == nil {
		runner = ExecRunner{}
	}
	if binPath == "" {
		binPath = "yt-dlp"
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Downloader{runner: runner, binPath: binPath, tempDir: tempDir}
}

// DownloadAudio fetches the audio track for videoID into the temp
// directory and returns the file path with a cleanup func. cleanup is
// safe to call even when the download failed partway.
func (d *Downloader) DownloadAudio(ctx context.Context, videoID string) (string, func(), error) {
	if err := os.MkdirAll(d.tempDir, 0o755); err != nil {
		return "", func() {}, fmt.Errorf("create temp dir: %w", err)
	}

	outPath := filepath.Join(d.tempDir, videoID+".m4a")
	cleanup := func() { removeQuietly(outPath) }

	args := []string{
		"--no-playlist",
		"-f", "bestaudio[ext=m4a]/bestaudio",
		"--extract-audio",
		"--audio-format", "m4a",
		"-o", outPath,
		"https://www.youtube.com/watch?v=" + videoID,
	}

	output, err := d.runner.Run(ctx, d.binPath, args...)
	if err != nil {
		cleanup()
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return "", func() {}, domain.NewDomainErrorWithCause(
				domain.ErrCodeTimeout, "audio download timed out", err)
		}
		return "", func() {}, domain.NewDomainErrorWithCause(
			domain.ErrCodeTranscriptFetchFailed,
			fmt.Sprintf("yt-dlp failed: %s", firstLine(output)),
			err,
		)
	}

	if _, err := os.Stat(outPath); err != nil {
		return "", func() {}, domain.NewDomainErrorWithCause(
			domain.ErrCodeTranscriptFetchFailed,
			"yt-dlp produced no audio file",
			err,
		)
	}

	return outPath, cleanup, nil
}

func removeQuietly(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("failed to remove temp audio file %s: %v", path, err)
	}
}

func firstLine(output []byte) string {
	for i, b := range output {
		if b == '\n' {
			return string(output[:i])
		}
	}
	return string(output)
}
