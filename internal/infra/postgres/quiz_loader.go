package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"mcqlab/internal/domain"
)

// QuizLoader serves the hot quiz-taking read path (quiz header plus its
// question batch) off a pgx pool, bypassing the ORM.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var quiz domain.Quiz
	err := l.pool.QueryRow(ctx,
		`SELECT id, resource_id, user_id, created_at FROM quizzes WHERE id=$1`, quizID).
		Scan(&quiz.ID, &quiz.ResourceID, &quiz.UserID, &quiz.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}

	rows, err := l.pool.Query(ctx,
		`SELECT id, quiz_id, question, option_a, option_b, option_c, option_d, correct_option
		 FROM mcqs WHERE quiz_id=$1 ORDER BY id`, quizID)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load mcqs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var q domain.MCQ
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Question,
			&q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD, &q.CorrectOption); err != nil {
			return domain.Quiz{}, fmt.Errorf("scan mcq: %w", err)
		}
		quiz.Questions = append(quiz.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return domain.Quiz{}, fmt.Errorf("iterate mcqs: %w", err)
	}
	return quiz, nil
}
