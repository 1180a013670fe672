package postgres

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"mcqlab/internal/domain"
)

// QuizRepository persists quizzes and their question batches.
type QuizRepository struct {
	db *bun.DB
}

func NewQuizRepository(db *bun.DB) *QuizRepository {
	return &QuizRepository{db: db}
}

// InsertWithQuestions writes the quiz row and its MCQ batch in one
// transaction so a quiz can never exist half-populated.
func (r *QuizRepository) InsertWithQuestions(ctx context.Context, quiz *domain.Quiz, questions []domain.MCQ) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(quiz).Exec(ctx); err != nil {
			return fmt.Errorf("insert quiz: %w", err)
		}
		if len(questions) == 0 {
			return nil
		}
		if _, err := tx.NewInsert().Model(&questions).Exec(ctx); err != nil {
			return fmt.Errorf("insert mcqs: %w", err)
		}
		return nil
	})
}

