package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"mcqlab/internal/domain"
)

// UserRepository maps external auth-provider ids to internal user rows.
type UserRepository struct {
	db *bun.DB
}

func NewUserRepository(db *bun.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Ensure returns the user for an auth-provider id, creating the row on first
// sight. The auth provider owns identity; this table only anchors foreign keys.
func (r *UserRepository) Ensure(ctx context.Context, authProviderID, email string) (domain.User, error) {
	user := domain.User{
		ID:             uuid.NewString(),
		AuthProviderID: authProviderID,
		Email:          email,
		CreatedAt:      time.Now().UTC(),
	}
	_, err := r.db.NewInsert().
		Model(&user).
		On("CONFLICT (auth_provider_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return domain.User{}, fmt.Errorf("ensure user: %w", err)
	}

	var existing domain.User
	err = r.db.NewSelect().
		Model(&existing).
		Where("auth_provider_id = ?", authProviderID).
		Scan(ctx)
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	return existing, nil
}

func (r *UserRepository) ByEmail(ctx context.Context, email string) (domain.User, error) {
	var user domain.User
	err := r.db.NewSelect().Model(&user).Where("email = ?", email).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, fmt.Errorf("user %s: not found", email)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("user by email: %w", err)
	}
	return user, nil
}
