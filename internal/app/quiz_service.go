package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"mcqlab/internal/domain"
)

// QuizCache loads quiz content, usually through the Redis or in-memory cache.
type QuizCache interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// PerformanceStore persists quiz attempt scores.
type PerformanceStore interface {
	Insert(ctx context.Context, perf *domain.Performance) error
	ListByUser(ctx context.Context, userID string) ([]domain.Performance, error)
	Delete(ctx context.Context, id, userID string) error
}

// QuizService serves the quiz-taking read path and attempt recording.
type QuizService struct {
	quizzes      QuizCache
	performances PerformanceStore
	resources    ResourceStore
}

func NewQuizService(quizzes QuizCache, performances PerformanceStore, resources ResourceStore) *QuizService {
	return &QuizService{quizzes: quizzes, performances: performances, resources: resources}
}

// GetQuiz returns the quiz with its question batch.
func (s *QuizService) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return s.quizzes.GetQuiz(ctx, quizID)
}

// RecordPerformance stores one completed attempt. The quiz must exist and the
// reported totals must be sane for its question count.
func (s *QuizService) RecordPerformance(ctx context.Context, quizID, userID string, correctAnswers int) (domain.Performance, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Performance{}, err
	}
	total := len(quiz.Questions)
	if correctAnswers < 0 || correctAnswers > total {
		return domain.Performance{}, fmt.Errorf("%w: %d of %d", domain.ErrScoreOutOfRange, correctAnswers, total)
	}

	perf := domain.Performance{
		ID:             uuid.NewString(),
		QuizID:         quizID,
		UserID:         userID,
		CorrectAnswers: correctAnswers,
		TotalQuestions: total,
	}
	if err := s.performances.Insert(ctx, &perf); err != nil {
		return domain.Performance{}, err
	}
	return perf, nil
}

func (s *QuizService) ListPerformances(ctx context.Context, userID string) ([]domain.Performance, error) {
	return s.performances.ListByUser(ctx, userID)
}

func (s *QuizService) DeletePerformance(ctx context.Context, id, userID string) error {
	return s.performances.Delete(ctx, id, userID)
}

func (s *QuizService) ListResources(ctx context.Context, userID string) ([]domain.Resource, error) {
	return s.resources.ListByUser(ctx, userID)
}

func (s *QuizService) GetResource(ctx context.Context, id string) (domain.Resource, error) {
	return s.resources.Get(ctx, id)
}

// DeleteResource removes a resource; the database cascades to its quiz,
// questions and performances.
func (s *QuizService) DeleteResource(ctx context.Context, id, userID string) error {
	return s.resources.Delete(ctx, id, userID)
}
