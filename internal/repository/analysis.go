package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coursewise/videokb/internal/domain"
	"github.com/coursewise/videokb/internal/pagination"
	"github.com/coursewise/videokb/internal/service"
)

type AnalysisRepository struct {
	db dbtx
}

func NewAnalysisRepository(pool *pgxpool.Pool) *AnalysisRepository {
	return &AnalysisRepository{db: pool}
}

func NewAnalysisRepositoryWithTx(tx pgx.Tx) *AnalysisRepository {
	return &AnalysisRepository{db: tx}
}

func (r *AnalysisRepository) Create(ctx context.Context, a *domain.VideoAnalysis) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO video_analyses (id, owner_id, video_id, url, title, channel, transcript, source, caption_language, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.OwnerID, a.VideoID, a.URL, a.Title, a.Channel, a.Transcript, a.Source, nullableString(a.CaptionLanguage), a.CreatedAt,
	)
	return err
}

func (r *AnalysisRepository) GetByID(ctx context.Context, id string) (*domain.VideoAnalysis, error) {
	var a domain.VideoAnalysis
	var captionLanguage *string
	err := r.db.QueryRow(ctx,
		`SELECT id, owner_id, video_id, url, title, channel, transcript, source, caption_language, created_at
		 FROM video_analyses WHERE id = $1`,
		id,
	).Scan(&a.ID, &a.OwnerID, &a.VideoID, &a.URL, &a.Title, &a.Channel, &a.Transcript, &a.Source, &captionLanguage, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAnalysisNotFound
		}
		return nil, err
	}
	if captionLanguage != nil {
		a.CaptionLanguage = *captionLanguage
	}
	return &a, nil
}

func (r *AnalysisRepository) ListByOwnerWithCursor(ctx context.Context, ownerID string, cursor *pagination.Cursor, limit int) (*service.AnalysisPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT id, owner_id, video_id, url, title, channel, transcript, source, caption_language, created_at
			 FROM video_analyses
			 WHERE owner_id = $1 AND (created_at, id) < ($2, $3)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $4`,
			ownerID, cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, owner_id, video_id, url, title, channel, transcript, source, caption_language, created_at
			 FROM video_analyses
			 WHERE owner_id = $1
			 ORDER BY created_at DESC, id DESC
			 LIMIT $2`,
			ownerID, limit+1,
		)
	}

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanAnalysisRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		lastItem := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(lastItem.ID, lastItem.CreatedAt)
	}

	return &service.AnalysisPageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func scanAnalysisRows(rows pgx.Rows) ([]*domain.VideoAnalysis, error) {
	var results []*domain.VideoAnalysis
	for rows.Next() {
		var a domain.VideoAnalysis
		var captionLanguage *string
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.VideoID, &a.URL, &a.Title, &a.Channel, &a.Transcript, &a.Source, &captionLanguage, &a.CreatedAt); err != nil {
			return nil, err
		}
		if captionLanguage != nil {
			a.CaptionLanguage = *captionLanguage
		}
		results = append(results, &a)
	}
	return results, rows.Err()
}
