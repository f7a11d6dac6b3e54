package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/hayat-interiors/appraisal-api/internal/models"
)

// QuestionRepository manages the legacy question catalog.
type QuestionRepository struct {
	db *sqlx.DB
}

// NewQuestionRepository constructs a QuestionRepository.
func NewQuestionRepository(db *sqlx.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// ListAll returns every question in catalog order.
func (r *QuestionRepository) ListAll(ctx context.Context) ([]models.Question, error) {
	var questions []models.Question
	query := "SELECT id, section, text, max_rating, weight FROM questions ORDER BY id"
	if err := r.db.SelectContext(ctx, &questions, query); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return questions, nil
}

// Count returns the number of catalog questions.
func (r *QuestionRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM questions"); err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return count, nil
}

// CreateBatch inserts the given questions in order.
func (r *QuestionRepository) CreateBatch(ctx context.Context, questions []models.Question) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin question batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for i := range questions {
		q := &questions[i]
		if err := tx.QueryRowxContext(ctx,
			"INSERT INTO questions (section, text, max_rating, weight) VALUES ($1, $2, $3, $4) RETURNING id",
			q.Section, q.Text, q.MaxRating, q.Weight,
		).Scan(&q.ID); err != nil {
			return fmt.Errorf("insert question: %w", err)
		}
	}

	return tx.Commit()
}
