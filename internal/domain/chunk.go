package domain

import "time"

// TranscriptChunk represents one overlapping segment of a transcript,
// indexed for similarity search.
type TranscriptChunk struct {
	ID         string
	AnalysisID string
	ChunkIndex int
	Content    string
	Embedding  []float32
	CreatedAt  time.Time
}
