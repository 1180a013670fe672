package postgres

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"mcqlab/internal/domain"
)

// PerformanceRepository stores quiz attempt scores.
type PerformanceRepository struct {
	db *bun.DB
}

func NewPerformanceRepository(db *bun.DB) *PerformanceRepository {
	return &PerformanceRepository{db: db}
}

func (r *PerformanceRepository) Insert(ctx context.Context, perf *domain.Performance) error {
	if _, err := r.db.NewInsert().Model(perf).Exec(ctx); err != nil {
		return fmt.Errorf("insert performance: %w", err)
	}
	return nil
}

func (r *PerformanceRepository) ListByUser(ctx context.Context, userID string) ([]domain.Performance, error) {
	var performances []domain.Performance
	err := r.db.NewSelect().
		Model(&performances).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list performances: %w", err)
	}
	return performances, nil
}

func (r *PerformanceRepository) Delete(ctx context.Context, id, userID string) error {
	res, err := r.db.NewDelete().
		Model((*domain.Performance)(nil)).
		Where("id = ? AND user_id = ?", id, userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete performance: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return domain.ErrPerformanceNotFound
	}
	return nil
}
