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

// BillingRepository owns subscription, payment and webhook-event rows.
type BillingRepository struct {
	db *bun.DB
}

func NewBillingRepository(db *bun.DB) *BillingRepository {
	return &BillingRepository{db: db}
}

// UpsertSubscription writes the provider state keyed by the internal user id.
// Every webhook path lands here, so a user has exactly one subscription row
// regardless of which provider event arrived first.
func (r *BillingRepository) UpsertSubscription(ctx context.Context, sub *domain.Subscription) error {
	sub.UpdatedAt = time.Now().UTC()
	_, err := r.db.NewInsert().
		Model(sub).
		On("CONFLICT (user_id) DO UPDATE").
		Set("user_email = EXCLUDED.user_email").
		Set("provider = EXCLUDED.provider").
		Set("provider_subscription_id = EXCLUDED.provider_subscription_id").
		Set("status = EXCLUDED.status").
		Set("plan_id = EXCLUDED.plan_id").
		Set("plan_name = EXCLUDED.plan_name").
		Set("card_brand = EXCLUDED.card_brand").
		Set("card_last_four = EXCLUDED.card_last_four").
		Set("renews_at = EXCLUDED.renews_at").
		Set("ends_at = EXCLUDED.ends_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

// UpdateSubscriptionStatus handles cancel/pause/expire events that only carry
// a status change.
func (r *BillingRepository) UpdateSubscriptionStatus(ctx context.Context, userID, status string, endsAt *time.Time) error {
	res, err := r.db.NewUpdate().
		Model((*domain.Subscription)(nil)).
		Set("status = ?", status).
		Set("ends_at = ?", endsAt).
		Set("updated_at = ?", time.Now().UTC()).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update subscription status: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return domain.ErrSubscriptionNotFound
	}
	return nil
}

// AddCredits tops up the one-time-payment balance.
func (r *BillingRepository) AddCredits(ctx context.Context, userID string, credits int) error {
	res, err := r.db.NewUpdate().
		Model((*domain.Subscription)(nil)).
		Set("credits = credits + ?", credits).
		Set("updated_at = ?", time.Now().UTC()).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("add credits: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return domain.ErrSubscriptionNotFound
	}
	return nil
}

func (r *BillingRepository) LatestSubscription(ctx context.Context, userID string) (domain.Subscription, error) {
	var sub domain.Subscription
	err := r.db.NewSelect().
		Model(&sub).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Subscription{}, domain.ErrSubscriptionNotFound
	}
	if err != nil {
		return domain.Subscription{}, fmt.Errorf("latest subscription: %w", err)
	}
	return sub, nil
}

// InsertPayment appends one payment row. The (provider, provider_order_id)
// unique index absorbs redelivered webhooks: a second insert for the same
// order is a no-op reported as ErrDuplicateEvent.
func (r *BillingRepository) InsertPayment(ctx context.Context, payment *domain.Payment) error {
	res, err := r.db.NewInsert().
		Model(payment).
		On("CONFLICT (provider, provider_order_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return domain.ErrDuplicateEvent
	}
	return nil
}

// MarkEventProcessed claims a webhook delivery for dedup and audit. A second
// delivery of the same provider event id reports ErrDuplicateEvent, unless the
// earlier attempt was marked failed, in which case the claim is retaken so the
// redelivery gets applied.
func (r *BillingRepository) MarkEventProcessed(ctx context.Context, event *domain.WebhookEvent) error {
	now := time.Now().UTC()
	event.ProcessedAt = &now
	res, err := r.db.NewInsert().
		Model(event).
		On("CONFLICT (provider, provider_event_id) DO UPDATE").
		Set("processed_at = EXCLUDED.processed_at").
		Set("processing_error = ''").
		Where("webhook_events.processing_error <> ''").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("record webhook event: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return domain.ErrDuplicateEvent
	}
	return nil
}

// MarkEventFailed releases the claim taken by MarkEventProcessed after the
// event could not be applied, keeping the error for inspection.
func (r *BillingRepository) MarkEventFailed(ctx context.Context, provider, providerEventID, errMsg string) error {
	_, err := r.db.NewUpdate().
		Model((*domain.WebhookEvent)(nil)).
		Set("processed_at = NULL").
		Set("processing_error = ?", errMsg).
		Where("provider = ?", provider).
		Where("provider_event_id = ?", providerEventID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mark webhook event failed: %w", err)
	}
	return nil
}
