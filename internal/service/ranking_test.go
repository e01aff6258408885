package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursewise/videokb/internal/domain"
)

func chunkWithEmbedding(index int, embedding []float32) *domain.TranscriptChunk {
	return &domain.TranscriptChunk{
		AnalysisID: "a1",
		ChunkIndex: index,
		Embedding:  embedding,
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1},
		{"orthogonal", []float32{1, 0, 0}, []float32{0, 1, 0}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"scaled", []float32{2, 0}, []float32{5, 0}, 1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"empty", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, cosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestRankChunks_OrdersBySimilarity(t *testing.T) {
	query := []float32{1, 0}
	chunks := []*domain.TranscriptChunk{
		chunkWithEmbedding(0, []float32{0, 1}),      // orthogonal
		chunkWithEmbedding(1, []float32{1, 0}),      // identical
		chunkWithEmbedding(2, []float32{0.9, 0.1}),  // close
		chunkWithEmbedding(3, []float32{-1, 0}),     // opposite
		chunkWithEmbedding(4, []float32{0.5, 0.5}),  // diagonal
	}

	ranked := rankChunks(query, chunks, 3)
	require.Len(t, ranked, 3)

	assert.Equal(t, 1, ranked[0].Chunk.ChunkIndex)
	assert.Equal(t, 2, ranked[1].Chunk.ChunkIndex)
	assert.Equal(t, 4, ranked[2].Chunk.ChunkIndex)
	assert.GreaterOrEqual(t, ranked[0].Score, ranked[1].Score)
	assert.GreaterOrEqual(t, ranked[1].Score, ranked[2].Score)
}

func TestRankChunks_FewerThanK(t *testing.T) {
	query := []float32{1, 0}
	chunks := []*domain.TranscriptChunk{
		chunkWithEmbedding(0, []float32{1, 0}),
		chunkWithEmbedding(1, []float32{0, 1}),
	}

	ranked := rankChunks(query, chunks, 3)
	assert.Len(t, ranked, 2)
}

func TestRankChunks_Empty(t *testing.T) {
	ranked := rankChunks([]float32{1, 0}, nil, 3)
	assert.Empty(t, ranked)
}

func TestRankChunks_StableTies(t *testing.T) {
	query := []float32{1, 0}
	// all identical scores: order must follow input order
	chunks := []*domain.TranscriptChunk{
		chunkWithEmbedding(0, []float32{1, 0}),
		chunkWithEmbedding(1, []float32{2, 0}),
		chunkWithEmbedding(2, []float32{3, 0}),
		chunkWithEmbedding(3, []float32{4, 0}),
	}

	ranked := rankChunks(query, chunks, 3)
	require.Len(t, ranked, 3)
	assert.Equal(t, 0, ranked[0].Chunk.ChunkIndex)
	assert.Equal(t, 1, ranked[1].Chunk.ChunkIndex)
	assert.Equal(t, 2, ranked[2].Chunk.ChunkIndex)
}
