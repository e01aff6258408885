package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/coursewise/videokb/internal/domain"
)

// ChunkRepository handles persistence of embedded transcript chunks.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx pgx.Tx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

// CreateBatch inserts chunks preserving their index order.
func (r *ChunkRepository) CreateBatch(ctx context.Context, chunks []*domain.TranscriptChunk) error {
	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := r.db.Exec(ctx,
			`INSERT INTO transcript_chunks (id, analysis_id, chunk_index, content, embedding, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			c.ID,
			c.AnalysisID,
			c.ChunkIndex,
			c.Content,
			pgvector.NewVector(c.Embedding),
			createdAt,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// ListByAnalysis returns an analysis's chunks ordered by chunk index.
func (r *ChunkRepository) ListByAnalysis(ctx context.Context, analysisID string) ([]*domain.TranscriptChunk, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, analysis_id, chunk_index, content, embedding, created_at
		 FROM transcript_chunks WHERE analysis_id = $1 ORDER BY chunk_index ASC`,
		analysisID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.TranscriptChunk
	for rows.Next() {
		var c domain.TranscriptChunk
		var embedding pgvector.Vector
		if err := rows.Scan(&c.ID, &c.AnalysisID, &c.ChunkIndex, &c.Content, &embedding, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Embedding = embedding.Slice()
		results = append(results, &c)
	}
	return results, rows.Err()
}
