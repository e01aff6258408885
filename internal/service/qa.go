package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coursewise/videokb/internal/domain"
	"github.com/coursewise/videokb/internal/telemetry"
)

// NoRelevantContentAnswer is returned, without calling the completion
// model, when an analysis has no chunks to ground an answer in.
const NoRelevantContentAnswer = "I couldn't find any relevant information in the video transcript to answer that question."

const answerSystemPrompt = "You answer questions about a YouTube video using only the transcript excerpts provided. " +
	"If the excerpts don't contain the answer, say so. Be concise."

// QuestionRepositoryInterface defines the repository interface for question persistence
type QuestionRepositoryInterface interface {
	Create(ctx context.Context, q *domain.Question) error
	ListByAnalysis(ctx context.Context, analysisID string) ([]*domain.Question, error)
}

// CompletionClient generates an answer from a system prompt and user message.
type CompletionClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// QAService answers questions about analyzed videos with
// retrieval-augmented generation over the stored chunks.
type QAService struct {
	analyses     *AnalysisService
	chunkRepo    ChunkRepositoryInterface
	questionRepo QuestionRepositoryInterface
	embeddings   EmbeddingClient
	completions  CompletionClient
	uuidGen      UUIDGenerator
}

// NewQAService creates a new QAService instance
func NewQAService(
	analyses *AnalysisService,
	chunkRepo ChunkRepositoryInterface,
	questionRepo QuestionRepositoryInterface,
	embeddings EmbeddingClient,
	completions CompletionClient,
) *QAService {
	return &QAService{
		analyses:     analyses,
		chunkRepo:    chunkRepo,
		questionRepo: questionRepo,
		embeddings:   embeddings,
		completions:  completions,
		uuidGen:      &DefaultUUIDGenerator{},
	}
}

// WithUUIDGen overrides the ID generator, used by tests.
func (s *QAService) WithUUIDGen(gen UUIDGenerator) *QAService {
	s.uuidGen = gen
	return s
}

// AskInput represents the input for asking a question about an analysis
type AskInput struct {
	OwnerID    string
	AnalysisID string
	Question   string
}

// Ask answers a question about an analyzed video and appends the
// exchange to the analysis's question history.
func (s *QAService) Ask(ctx context.Context, input AskInput) (*domain.Question, error) {
	ctx, span := telemetry.StartSpan(ctx, "QAService.Ask", telemetry.SpanAttributes{
		OwnerID:    input.OwnerID,
		AnalysisID: input.AnalysisID,
		Operation:  "ask",
	})
	defer span.End()

	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, domain.ErrEmptyQuestion
	}

	if _, err := s.analyses.GetByID(ctx, input.OwnerID, input.AnalysisID); err != nil {
		return nil, err
	}

	chunks, err := s.chunkRepo.ListByAnalysis(ctx, input.AnalysisID)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}

	var answer string
	if len(chunks) == 0 {
		answer = NoRelevantContentAnswer
	} else {
		answer, err = s.synthesizeAnswer(ctx, question, chunks)
		if err != nil {
			span.SetError(err)
			return nil, err
		}
	}

	record := &domain.Question{
		ID:         s.uuidGen.NewString(),
		AnalysisID: input.AnalysisID,
		Question:   question,
		Answer:     answer,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.questionRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("persist question: %w", err)
	}

	return record, nil
}

func (s *QAService) synthesizeAnswer(ctx context.Context, question string, chunks []*domain.TranscriptChunk) (string, error) {
	queryEmbedding, err := s.embeddings.GenerateEmbedding(ctx, question)
	if err != nil {
		return "", domain.NewDomainErrorWithCause(
			domain.ErrCodeEmbeddingFailed, "failed to embed the question", err)
	}

	ranked := rankChunks(queryEmbedding, chunks, topChunks)

	excerpts := make([]string, len(ranked))
	for i, r := range ranked {
		excerpts[i] = r.Chunk.Content
	}

	user := fmt.Sprintf(
		"Transcript excerpts:\n\n%s\n\nQuestion: %s",
		strings.Join(excerpts, "\n\n"),
		question,
	)

	answer, err := s.completions.Complete(ctx, answerSystemPrompt, user)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", domain.NewDomainErrorWithCause(
				domain.ErrCodeTimeout, "answer synthesis timed out", err)
		}
		return "", domain.NewDomainErrorWithCause(
			domain.ErrCodeUpstreamError, "answer synthesis failed", err)
	}

	return answer, nil
}

// History returns the question-and-answer history for an analysis,
// newest first.
func (s *QAService) History(ctx context.Context, ownerID, analysisID string) ([]*domain.Question, error) {
	ctx, span := telemetry.StartSpan(ctx, "QAService.History", telemetry.SpanAttributes{
		OwnerID:    ownerID,
		AnalysisID: analysisID,
		Operation:  "history",
	})
	defer span.End()

	if _, err := s.analyses.GetByID(ctx, ownerID, analysisID); err != nil {
		return nil, err
	}

	return s.questionRepo.ListByAnalysis(ctx, analysisID)
}
