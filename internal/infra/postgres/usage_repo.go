package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"mcqlab/internal/domain"
)

// UsageRepository tracks per-period submission counters.
type UsageRepository struct {
	db *bun.DB
}

func NewUsageRepository(db *bun.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// Latest returns the most recent usage row for the user, covering now or
// not. The entitlement check distinguishes an ended period from a missing one.
func (r *UsageRepository) Latest(ctx context.Context, userID string) (domain.Usage, error) {
	var usage domain.Usage
	err := r.db.NewSelect().
		Model(&usage).
		Where("user_id = ?", userID).
		Order("period_start DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Usage{}, domain.ErrUsageNotFound
	}
	if err != nil {
		return domain.Usage{}, fmt.Errorf("latest usage: %w", err)
	}
	return usage, nil
}

// StartPeriod opens a fresh counter row for a billing period, replacing any
// row that already starts at the same instant.
func (r *UsageRepository) StartPeriod(ctx context.Context, usage *domain.Usage) error {
	_, err := r.db.NewInsert().
		Model(usage).
		On("CONFLICT (user_id, period_start) DO UPDATE").
		Set("period_end = EXCLUDED.period_end").
		Set("subscription_points = EXCLUDED.subscription_points").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("start usage period: %w", err)
	}
	return nil
}

// Increment bumps the submission counter for the period covering now.
func (r *UsageRepository) Increment(ctx context.Context, userID string, now time.Time) error {
	res, err := r.db.NewUpdate().
		Model((*domain.Usage)(nil)).
		Set("submission_count = submission_count + 1").
		Where("user_id = ? AND period_start <= ? AND period_end > ?", userID, now, now).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("increment usage: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return domain.ErrUsageNotFound
	}
	return nil
}
