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

// ResourceRepository persists submitted learning items.
type ResourceRepository struct {
	db *bun.DB
}

func NewResourceRepository(db *bun.DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

func (r *ResourceRepository) Insert(ctx context.Context, resource *domain.Resource) error {
	if _, err := r.db.NewInsert().Model(resource).Exec(ctx); err != nil {
		return fmt.Errorf("insert resource: %w", err)
	}
	return nil
}

// AttachTutorial is the single mutation a resource sees after creation.
func (r *ResourceRepository) AttachTutorial(ctx context.Context, resourceID, tutorial string) error {
	res, err := r.db.NewUpdate().
		Model((*domain.Resource)(nil)).
		Set("tutorial = ?", tutorial).
		Where("id = ?", resourceID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("attach tutorial: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return domain.ErrResourceNotFound
	}
	return nil
}

func (r *ResourceRepository) Get(ctx context.Context, id string) (domain.Resource, error) {
	var resource domain.Resource
	err := r.db.NewSelect().Model(&resource).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Resource{}, domain.ErrResourceNotFound
	}
	if err != nil {
		return domain.Resource{}, fmt.Errorf("get resource: %w", err)
	}
	return resource, nil
}

func (r *ResourceRepository) ListByUser(ctx context.Context, userID string) ([]domain.Resource, error) {
	var resources []domain.Resource
	err := r.db.NewSelect().
		Model(&resources).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	return resources, nil
}

// Delete removes the resource; quizzes, mcqs and performances go with it via
// ON DELETE CASCADE.
func (r *ResourceRepository) Delete(ctx context.Context, id, userID string) error {
	res, err := r.db.NewDelete().
		Model((*domain.Resource)(nil)).
		Where("id = ? AND user_id = ?", id, userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return domain.ErrResourceNotFound
	}
	return nil
}

// CountCreatedSince backs the free-tier one-per-day rule.
func (r *ResourceRepository) CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	count, err := r.db.NewSelect().
		Model((*domain.Resource)(nil)).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count resources: %w", err)
	}
	return count, nil
}
