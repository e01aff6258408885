package service

import (
	"math"
	"sort"

	"github.com/coursewise/videokb/internal/domain"
)

// topChunks is how many chunks feed answer synthesis.
const topChunks = 3

type rankedChunk struct {
	Chunk *domain.TranscriptChunk
	Score float64
}

// rankChunks orders chunks by cosine similarity to the query embedding
// and returns the top k. Ties keep chunk order, so ranking is
// deterministic for identical inputs.
func rankChunks(query []float32, chunks []*domain.TranscriptChunk, k int) []rankedChunk {
	ranked := make([]rankedChunk, 0, len(chunks))
	for _, c := range chunks {
		ranked = append(ranked, rankedChunk{
			Chunk: c,
			Score: cosineSimilarity(query, c.Embedding),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if k > 0 && len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

// cosineSimilarity returns the cosine of the angle between two vectors,
// or 0 when either has zero magnitude or the lengths differ.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
