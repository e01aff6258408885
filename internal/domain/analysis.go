package domain

import (
	"fmt"
	"time"
)

// TranscriptSource records how a transcript was obtained
type TranscriptSource string

const (
	TranscriptSourceCaptions TranscriptSource = "captions"
	TranscriptSourceSpeech   TranscriptSource = "speech"
)

// VideoAnalysis represents an ingested YouTube video transcript
type VideoAnalysis struct {
	ID              string
	OwnerID         string
	VideoID         string
	URL             string
	Title           string
	Channel         string
	Transcript      string
	Source          TranscriptSource
	CaptionLanguage string // empty when Source is speech
	CreatedAt       time.Time
}

// NewVideoAnalysis creates a new VideoAnalysis instance
func NewVideoAnalysis(
	id, ownerID, videoID, url string,
	title, channel, transcript string,
	source TranscriptSource,
	captionLanguage string,
	createdAt time.Time,
) *VideoAnalysis {
	return &VideoAnalysis{
		ID:              id,
		OwnerID:         ownerID,
		VideoID:         videoID,
		URL:             url,
		Title:           title,
		Channel:         channel,
		Transcript:      transcript,
		Source:          source,
		CaptionLanguage: captionLanguage,
		CreatedAt:       createdAt,
	}
}

// ValidateVideoAnalysis validates a VideoAnalysis instance
func ValidateVideoAnalysis(a *VideoAnalysis) error {
	if a == nil {
		return fmt.Errorf("video analysis cannot be nil")
	}

	if a.ID == "" {
		return fmt.Errorf("video analysis ID is required")
	}

	if a.OwnerID == "" {
		return fmt.Errorf("video analysis OwnerID is required")
	}

	if a.VideoID == "" {
		return fmt.Errorf("video analysis VideoID is required")
	}

	if a.Transcript == "" {
		return fmt.Errorf("video analysis Transcript is required")
	}

	if !isValidTranscriptSource(a.Source) {
		return fmt.Errorf("video analysis Source is invalid: %s", a.Source)
	}

	return nil
}

// isValidTranscriptSource checks if a TranscriptSource is valid
func isValidTranscriptSource(s TranscriptSource) bool {
	switch s {
	case TranscriptSourceCaptions, TranscriptSourceSpeech:
		return true
	}
	return false
}
