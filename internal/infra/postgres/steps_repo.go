package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"mcqlab/internal/domain"
)

// StepRepository records submission saga step transitions.
type StepRepository struct {
	db *bun.DB
}

func NewStepRepository(db *bun.DB) *StepRepository {
	return &StepRepository{db: db}
}

func (r *StepRepository) Record(ctx context.Context, submissionID, step, status, errMsg string) error {
	now := time.Now().UTC()
	row := &domain.GenerationStep{
		ID:           uuid.NewString(),
		SubmissionID: submissionID,
		Step:         step,
		Status:       status,
		Error:        errMsg,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err := r.db.NewInsert().
		Model(row).
		On("CONFLICT (submission_id, step) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("error = EXCLUDED.error").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("record step: %w", err)
	}
	return nil
}

// Steps returns the recorded step rows for a submission in execution order.
func (r *StepRepository) Steps(ctx context.Context, submissionID string) ([]domain.GenerationStep, error) {
	var steps []domain.GenerationStep
	err := r.db.NewSelect().
		Model(&steps).
		Where("submission_id = ?", submissionID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	return steps, nil
}
