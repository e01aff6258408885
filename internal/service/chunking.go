package service

import "strings"

// ChunkConfig controls transcript chunking for embeddings.
type ChunkConfig struct {
	Size      int // chunk length in runes
	Overlap   int // runes shared between consecutive chunks
	MaxChunks int // safety cap, 0 means unlimited
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:    1000,
		Overlap: 200,
	}
}

// chunkTranscript splits text into fixed-stride overlapping chunks.
// Chunk i starts at i*(Size-Overlap), so each chunk repeats the last
// Overlap runes of its predecessor and dropping that prefix from every
// chunk after the first reconstructs the original text exactly.
func chunkTranscript(text string, cfg ChunkConfig) []string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}
	if cfg.Size <= 0 || cfg.Overlap < 0 || cfg.Overlap >= cfg.Size {
		cfg = DefaultChunkConfig()
	}

	runes := []rune(clean)
	if len(runes) <= cfg.Size {
		return []string{clean}
	}

	stride := cfg.Size - cfg.Overlap
	chunks := make([]string, 0, len(runes)/stride+1)
	for start := 0; start < len(runes); start += stride {
		if cfg.MaxChunks > 0 && len(chunks) >= cfg.MaxChunks {
			break
		}

		end := start + cfg.Size
		if end > len(runes) {
			end = len(runes)
		}

		chunks = append(chunks, string(runes[start:end]))

		if end == len(runes) {
			break
		}
	}

	return chunks
}
