package service

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/coursewise/videokb/internal/domain"
	"github.com/coursewise/videokb/internal/telemetry"
	"github.com/coursewise/videokb/internal/youtube"
)

// CaptionSource fetches a cleaned caption transcript for a video.
type CaptionSource interface {
	FetchCaptions(ctx context.Context, videoID string) (*youtube.CaptionTranscript, error)
}

// AudioDownloader fetches a video's audio track to a local file.
type AudioDownloader interface {
	DownloadAudio(ctx context.Context, videoID string) (string, func(), error)
}

// SpeechToText converts a local audio file to text.
type SpeechToText interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// CaptionArchiver stores raw caption payloads for later reprocessing.
type CaptionArchiver interface {
	ArchiveCaptions(ctx context.Context, videoID string, payload []byte) error
}

// TranscriptResult is an acquired transcript with its provenance.
type TranscriptResult struct {
	Text     string
	Source   domain.TranscriptSource
	Language string
}

// TranscriptService acquires a transcript for a video: captions first,
// then optional speech-to-text when the video has no caption tracks.
type TranscriptService struct {
	captions CaptionSource
	audio    AudioDownloader
	speech   SpeechToText
	archive  CaptionArchiver
}

// NewTranscriptService creates a TranscriptService. audio and speech
// may be nil to disable the speech fallback; archive may be nil to
// disable caption archival.
func NewTranscriptService(
	captions CaptionSource,
	audio AudioDownloader,
	speech SpeechToText,
	archive CaptionArchiver,
) *TranscriptService {
	return &TranscriptService{
		captions: captions,
		audio:    audio,
		speech:   speech,
		archive:  archive,
	}
}

// Acquire returns the transcript for videoID. Captions win when
// present; NO_TRANSCRIPT triggers the speech fallback when one is
// configured. All other caption failures propagate unchanged.
func (s *TranscriptService) Acquire(ctx context.Context, videoID string) (*TranscriptResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "TranscriptService.Acquire", telemetry.SpanAttributes{
		VideoID:   videoID,
		Operation: "acquire_transcript",
	})
	defer span.End()

	captions, err := s.captions.FetchCaptions(ctx, videoID)
	if err == nil {
		s.archiveCaptions(ctx, videoID, captions.Raw)
		return &TranscriptResult{
			Text:     captions.Text,
			Source:   domain.TranscriptSourceCaptions,
			Language: captions.Language,
		}, nil
	}

	if !errors.Is(err, domain.ErrNoTranscriptAvailable) {
		span.SetError(err)
		return nil, err
	}

	if s.audio == nil || s.speech == nil {
		return nil, err
	}

	return s.transcribeAudio(ctx, videoID)
}

func (s *TranscriptService) transcribeAudio(ctx context.Context, videoID string) (*TranscriptResult, error) {
	path, cleanup, err := s.audio.DownloadAudio(ctx, videoID)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	text, err := s.speech.Transcribe(ctx, path)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.NewDomainErrorWithCause(
				domain.ErrCodeTimeout, "speech transcription timed out", err)
		}
		return nil, domain.NewDomainErrorWithCause(
			domain.ErrCodeTranscriptFetchFailed, "speech transcription failed", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.ErrNoTranscriptAvailable
	}

	return &TranscriptResult{
		Text:   text,
		Source: domain.TranscriptSourceSpeech,
	}, nil
}

// archiveCaptions is best-effort: archival failures are logged, never
// surfaced to the caller.
func (s *TranscriptService) archiveCaptions(ctx context.Context, videoID string, payload []byte) {
	if s.archive == nil || len(payload) == 0 {
		return
	}
	if err := s.archive.ArchiveCaptions(ctx, videoID, payload); err != nil {
		log.Printf("caption archive failed for %s: %v", videoID, err)
	}
}
