package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coursewise/videokb/internal/domain"
)

// QuestionRepository persists the question-and-answer history of analyses.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

func (r *QuestionRepository) Create(ctx context.Context, q *domain.Question) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO questions (id, analysis_id, question, answer, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		q.ID, q.AnalysisID, q.Question, q.Answer, q.CreatedAt,
	)
	return err
}

func (r *QuestionRepository) ListByAnalysis(ctx context.Context, analysisID string) ([]*domain.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, analysis_id, question, answer, created_at
		 FROM questions WHERE analysis_id = $1 ORDER BY created_at DESC, id DESC`,
		analysisID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []*domain.Question
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.ID, &q.AnalysisID, &q.Question, &q.Answer, &q.CreatedAt); err != nil {
			return nil, err
		}
		questions = append(questions, &q)
	}
	return questions, rows.Err()
}
