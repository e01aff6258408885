package domain

import (
	"fmt"
	"time"
)

// Question is one entry in an analysis's question-and-answer history.
type Question struct {
	ID         string
	AnalysisID string
	Question   string
	Answer     string
	CreatedAt  time.Time
}

// ValidateQuestion validates a Question instance
func ValidateQuestion(q *Question) error {
	if q == nil {
		return fmt.Errorf("question cannot be nil")
	}

	if q.ID == "" {
		return fmt.Errorf("question ID is required")
	}

	if q.AnalysisID == "" {
		return fmt.Errorf("question AnalysisID is required")
	}

	if q.Question == "" {
		return fmt.Errorf("question text is required")
	}

	return nil
}
