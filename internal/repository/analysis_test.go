//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursewise/videokb/internal/domain"
	"github.com/coursewise/videokb/internal/pagination"
	"github.com/coursewise/videokb/internal/service"
	"github.com/coursewise/videokb/internal/testutil"
)

func insertOwner(ctx context.Context, t *testing.T, repo *OwnerRepository) *domain.Owner {
	t.Helper()
	owner := &domain.Owner{
		ID:        uuid.NewString(),
		Name:      "owner-" + uuid.NewString(),
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, repo.Create(ctx, owner))
	return owner
}

func newAnalysis(ownerID string, createdAt time.Time) *domain.VideoAnalysis {
	return &domain.VideoAnalysis{
		ID:              uuid.NewString(),
		OwnerID:         ownerID,
		VideoID:         "dQw4w9WgXcQ",
		URL:             "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		Title:           "Test Video",
		Channel:         "Test Channel",
		Transcript:      "never gonna give you up",
		Source:          domain.TranscriptSourceCaptions,
		CaptionLanguage: "en",
		CreatedAt:       createdAt,
	}
}

func TestAnalysisRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	owner := insertOwner(ctx, t, NewOwnerRepository(pool))
	repo := NewAnalysisRepository(pool)

	a := newAnalysis(owner.ID, time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, repo.Create(ctx, a))

	retrieved, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, retrieved.ID)
	assert.Equal(t, a.OwnerID, retrieved.OwnerID)
	assert.Equal(t, a.VideoID, retrieved.VideoID)
	assert.Equal(t, a.Title, retrieved.Title)
	assert.Equal(t, a.Transcript, retrieved.Transcript)
	assert.Equal(t, domain.TranscriptSourceCaptions, retrieved.Source)
	assert.Equal(t, "en", retrieved.CaptionLanguage)
}

func TestAnalysisRepository_Create_NoCaptionLanguage(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	owner := insertOwner(ctx, t, NewOwnerRepository(pool))
	repo := NewAnalysisRepository(pool)

	a := newAnalysis(owner.ID, time.Now().UTC().Truncate(time.Microsecond))
	a.Source = domain.TranscriptSourceSpeech
	a.CaptionLanguage = ""
	require.NoError(t, repo.Create(ctx, a))

	retrieved, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TranscriptSourceSpeech, retrieved.Source)
	assert.Empty(t, retrieved.CaptionLanguage)
}

func TestAnalysisRepository_GetByID_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewAnalysisRepository(pool)

	_, err := repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrAnalysisNotFound)
}

func TestAnalysisRepository_ListByOwnerWithCursor(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	owner := insertOwner(ctx, t, NewOwnerRepository(pool))
	other := insertOwner(ctx, t, NewOwnerRepository(pool))
	repo := NewAnalysisRepository(pool)

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, newAnalysis(owner.ID, base.Add(time.Duration(i)*time.Second))))
	}
	require.NoError(t, repo.Create(ctx, newAnalysis(other.ID, base)))

	page1, err := repo.ListByOwnerWithCursor(ctx, owner.ID, nil, 3)
	require.NoError(t, err)
	assert.Len(t, page1.Items, 3)
	assert.True(t, page1.HasMore)
	assert.NotEmpty(t, page1.NextCursor)

	cursor, err := pagination.DecodeCursor(page1.NextCursor)
	require.NoError(t, err)

	page2, err := repo.ListByOwnerWithCursor(ctx, owner.ID, cursor, 3)
	require.NoError(t, err)
	assert.Len(t, page2.Items, 2)
	assert.False(t, page2.HasMore)
	assert.Empty(t, page2.NextCursor)

	// newest first, no overlap between pages, no leakage across owners
	seen := map[string]bool{}
	var all []*domain.VideoAnalysis
	all = append(all, page1.Items...)
	all = append(all, page2.Items...)
	for _, item := range all {
		assert.Equal(t, owner.ID, item.OwnerID)
		assert.False(t, seen[item.ID])
		seen[item.ID] = true
	}
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].CreatedAt.After(all[i-1].CreatedAt))
	}
}

func TestTxRunner_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	owner := insertOwner(ctx, t, NewOwnerRepository(pool))
	runner := NewTxRunner(pool)
	a := newAnalysis(owner.ID, time.Now().UTC().Truncate(time.Microsecond))

	err := runner.WithTx(ctx, func(repos service.TxRepositories) error {
		if err := repos.Analyses().Create(ctx, a); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	_, err = NewAnalysisRepository(pool).GetByID(ctx, a.ID)
	assert.ErrorIs(t, err, domain.ErrAnalysisNotFound)
}

func TestTxRunner_CommitPersistsAnalysisAndChunks(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	owner := insertOwner(ctx, t, NewOwnerRepository(pool))
	runner := NewTxRunner(pool)
	a := newAnalysis(owner.ID, time.Now().UTC().Truncate(time.Microsecond))

	embedding := make([]float32, 1536)
	embedding[0] = 1
	chunk := &domain.TranscriptChunk{
		ID:         uuid.NewString(),
		AnalysisID: a.ID,
		ChunkIndex: 0,
		Content:    a.Transcript,
		Embedding:  embedding,
		CreatedAt:  a.CreatedAt,
	}

	err := runner.WithTx(ctx, func(repos service.TxRepositories) error {
		if err := repos.Analyses().Create(ctx, a); err != nil {
			return err
		}
		return repos.Chunks().CreateBatch(ctx, []*domain.TranscriptChunk{chunk})
	})
	require.NoError(t, err)

	chunks, err := NewChunkRepository(pool).ListByAnalysis(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, chunk.Content, chunks[0].Content)
}
