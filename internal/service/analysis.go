package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coursewise/videokb/internal/domain"
	"github.com/coursewise/videokb/internal/pagination"
	"github.com/coursewise/videokb/internal/telemetry"
	"github.com/coursewise/videokb/internal/youtube"
)

// defaultEmbedConcurrency bounds parallel embedding calls per analyze.
const defaultEmbedConcurrency = 4

// AnalysisRepositoryInterface defines the repository interface for analysis persistence
type AnalysisRepositoryInterface interface {
	Create(ctx context.Context, a *domain.VideoAnalysis) error
	GetByID(ctx context.Context, id string) (*domain.VideoAnalysis, error)
	ListByOwnerWithCursor(ctx context.Context, ownerID string, cursor *pagination.Cursor, limit int) (*AnalysisPageResult, error)
}

// ChunkRepositoryInterface defines the repository interface for chunk persistence
type ChunkRepositoryInterface interface {
	CreateBatch(ctx context.Context, chunks []*domain.TranscriptChunk) error
	ListByAnalysis(ctx context.Context, analysisID string) ([]*domain.TranscriptChunk, error)
}

type AnalysisPageResult struct {
	Items      []*domain.VideoAnalysis
	NextCursor string
	HasMore    bool
}

// MetadataSource fetches display metadata for a video, absorbing failures.
type MetadataSource interface {
	FetchMetadata(ctx context.Context, videoID string) youtube.Metadata
}

// EmbeddingClient generates one embedding vector per text.
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator generates time-ordered UUIDv7 strings, so
// lexicographic ID order follows creation order.
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// AnalysisService runs the video ingestion pipeline and serves stored
// analyses.
type AnalysisService struct {
	analysisRepo     AnalysisRepositoryInterface
	chunkRepo        ChunkRepositoryInterface
	txRunner         TxRunner
	metadata         MetadataSource
	transcripts      *TranscriptService
	embeddings       EmbeddingClient
	uuidGen          UUIDGenerator
	chunkCfg         ChunkConfig
	embedConcurrency int
}

// NewAnalysisService creates a new AnalysisService instance
func NewAnalysisService(
	analysisRepo AnalysisRepositoryInterface,
	chunkRepo ChunkRepositoryInterface,
	txRunner TxRunner,
	metadata MetadataSource,
	transcripts *TranscriptService,
	embeddings EmbeddingClient,
) *AnalysisService {
	return &AnalysisService{
		analysisRepo:     analysisRepo,
		chunkRepo:        chunkRepo,
		txRunner:         txRunner,
		metadata:         metadata,
		transcripts:      transcripts,
		embeddings:       embeddings,
		uuidGen:          &DefaultUUIDGenerator{},
		chunkCfg:         DefaultChunkConfig(),
		embedConcurrency: defaultEmbedConcurrency,
	}
}

// WithUUIDGen overrides the ID generator, used by tests.
func (s *AnalysisService) WithUUIDGen(gen UUIDGenerator) *AnalysisService {
	s.uuidGen = gen
	return s
}

// WithChunkConfig overrides the chunking parameters.
func (s *AnalysisService) WithChunkConfig(cfg ChunkConfig) *AnalysisService {
	s.chunkCfg = cfg
	return s
}

// AnalyzeInput represents the input for analyzing a video
type AnalyzeInput struct {
	OwnerID string
	URL     string
}

// Analyze ingests a YouTube video: extracts the ID, fetches metadata
// and transcript concurrently, chunks and embeds the transcript, and
// persists everything in a single transaction. Nothing is stored when
// any step fails.
func (s *AnalysisService) Analyze(ctx context.Context, input AnalyzeInput) (*domain.VideoAnalysis, error) {
	ctx, span := telemetry.StartSpan(ctx, "AnalysisService.Analyze", telemetry.SpanAttributes{
		OwnerID:   input.OwnerID,
		Operation: "analyze",
	})
	defer span.End()

	if input.OwnerID == "" {
		return nil, domain.ErrMissingRequiredField
	}

	videoID, err := youtube.ExtractVideoID(input.URL)
	if err != nil {
		return nil, err
	}

	var (
		wg         sync.WaitGroup
		meta       youtube.Metadata
		transcript *TranscriptResult
		trErr      error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		meta = s.metadata.FetchMetadata(ctx, videoID)
	}()
	go func() {
		defer wg.Done()
		transcript, trErr = s.transcripts.Acquire(ctx, videoID)
	}()
	wg.Wait()

	if trErr != nil {
		span.SetError(trErr)
		return nil, trErr
	}

	now := time.Now().UTC()
	analysis := &domain.VideoAnalysis{
		ID:              s.uuidGen.NewString(),
		OwnerID:         input.OwnerID,
		VideoID:         videoID,
		URL:             input.URL,
		Title:           meta.Title,
		Channel:         meta.Channel,
		Transcript:      transcript.Text,
		Source:          transcript.Source,
		CaptionLanguage: transcript.Language,
		CreatedAt:       now,
	}

	if err := domain.ValidateVideoAnalysis(analysis); err != nil {
		return nil, err
	}

	chunks, err := s.embedChunks(ctx, analysis.ID, transcript.Text, now)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Analyses().Create(ctx, analysis); err != nil {
			return err
		}
		return repos.Chunks().CreateBatch(ctx, chunks)
	})
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("persist analysis: %w", err)
	}

	return analysis, nil
}

// embedChunks splits the transcript and embeds every chunk with a
// bounded number of concurrent embedding calls. Any failure fails the
// whole batch.
func (s *AnalysisService) embedChunks(ctx context.Context, analysisID, transcript string, now time.Time) ([]*domain.TranscriptChunk, error) {
	parts := chunkTranscript(transcript, s.chunkCfg)

	chunks := make([]*domain.TranscriptChunk, len(parts))
	for i, content := range parts {
		chunks[i] = &domain.TranscriptChunk{
			ID:         s.uuidGen.NewString(),
			AnalysisID: analysisID,
			ChunkIndex: i,
			Content:    content,
			CreatedAt:  now,
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	concurrency := s.embedConcurrency
	if concurrency <= 0 {
		concurrency = defaultEmbedConcurrency
	}

	sem := make(chan struct{}, concurrency)
	errCh := make(chan error, len(chunks))
	var wg sync.WaitGroup

	for _, chunk := range chunks {
		wg.Add(1)
		go func(c *domain.TranscriptChunk) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
			defer func() { <-sem }()

			embedding, err := s.embeddings.GenerateEmbedding(ctx, c.Content)
			if err != nil {
				errCh <- err
				cancel()
				return
			}
			c.Embedding = embedding
		}(chunk)
	}
	wg.Wait()

	select {
	case err := <-errCh:
		return nil, domain.NewDomainErrorWithCause(
			domain.ErrCodeEmbeddingFailed,
			"failed to generate embeddings for the transcript",
			err,
		)
	default:
	}

	return chunks, nil
}

// GetByID retrieves an analysis owned by ownerID. Analyses belonging
// to other owners are reported as not found.
func (s *AnalysisService) GetByID(ctx context.Context, ownerID, id string) (*domain.VideoAnalysis, error) {
	ctx, span := telemetry.StartSpan(ctx, "AnalysisService.GetByID", telemetry.SpanAttributes{
		OwnerID:    ownerID,
		AnalysisID: id,
		Operation:  "get",
	})
	defer span.End()

	analysis, err := s.analysisRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if analysis.OwnerID != ownerID {
		return nil, domain.ErrAnalysisNotFound
	}
	return analysis, nil
}

// GetChunks returns the transcript chunks for an analysis in index order.
func (s *AnalysisService) GetChunks(ctx context.Context, ownerID, analysisID string) ([]*domain.TranscriptChunk, error) {
	if _, err := s.GetByID(ctx, ownerID, analysisID); err != nil {
		return nil, err
	}
	return s.chunkRepo.ListByAnalysis(ctx, analysisID)
}

type ListAnalysesInput struct {
	OwnerID string
	Cursor  string
	Limit   int
}

type ListAnalysesOutput struct {
	Items   []*domain.VideoAnalysis
	Cursor  string
	HasMore bool
}

// List returns an owner's analyses, newest first, with cursor pagination.
func (s *AnalysisService) List(ctx context.Context, input ListAnalysesInput) (*ListAnalysesOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "AnalysisService.List", telemetry.SpanAttributes{
		OwnerID:   input.OwnerID,
		Operation: "list",
	})
	defer span.End()

	cursor, _ := pagination.DecodeCursor(input.Cursor)
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	result, err := s.analysisRepo.ListByOwnerWithCursor(ctx, input.OwnerID, cursor, limit)
	if err != nil {
		return nil, err
	}

	return &ListAnalysesOutput{
		Items:   result.Items,
		Cursor:  result.NextCursor,
		HasMore: result.HasMore,
	}, nil
}
