package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"mcqlab/internal/domain"
)

// BillingStore owns subscription, payment and webhook-event rows.
type BillingStore interface {
	SubscriptionReader
	UpsertSubscription(ctx context.Context, sub *domain.Subscription) error
	UpdateSubscriptionStatus(ctx context.Context, userID, status string, endsAt *time.Time) error
	AddCredits(ctx context.Context, userID string, credits int) error
	InsertPayment(ctx context.Context, payment *domain.Payment) error
	MarkEventProcessed(ctx context.Context, event *domain.WebhookEvent) error
	MarkEventFailed(ctx context.Context, provider, providerEventID, errMsg string) error
}

// HandledEvent is what a webhook handler reports back to the HTTP layer.
type HandledEvent struct {
	Handled bool
	Message string
}

// BillingService applies provider billing events to the local subscription
// state. Both webhook families funnel through it so every write is keyed by
// the internal user id.
type BillingService struct {
	store       BillingStore
	users       UserStore
	entitlement *EntitlementService
}

// UserStore resolves external identities to internal user rows.
type UserStore interface {
	Ensure(ctx context.Context, authProviderID, email string) (domain.User, error)
	ByEmail(ctx context.Context, email string) (domain.User, error)
}

func NewBillingService(store BillingStore, users UserStore, entitlement *EntitlementService) *BillingService {
	return &BillingService{store: store, users: users, entitlement: entitlement}
}

// lemonPayload is the slice of the Lemon Squeezy webhook body this service
// reads.
type lemonPayload struct {
	Meta struct {
		EventName  string `json:"event_name"`
		CustomData struct {
			UserID string `json:"user_id"`
		} `json:"custom_data"`
	} `json:"meta"`
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Status       string `json:"status"`
			UserEmail    string `json:"user_email"`
			ProductName  string `json:"product_name"`
			VariantID    int64  `json:"variant_id"`
			VariantName  string `json:"variant_name"`
			CardBrand    string `json:"card_brand"`
			CardLastFour string `json:"card_last_four"`
			Total        int64  `json:"total"`
			Currency     string `json:"currency"`
			URLs         struct {
				Receipt string `json:"receipt"`
			} `json:"urls"`
			RenewsAt       *string `json:"renews_at"`
			EndsAt         *string `json:"ends_at"`
			FirstOrderItem struct {
				ProductName string `json:"product_name"`
				VariantName string `json:"variant_name"`
			} `json:"first_order_item"`
		} `json:"attributes"`
	} `json:"data"`
}

// HandleLemonEvent dispatches a verified Lemon Squeezy webhook. Unrecognized
// event names and duplicate deliveries are handled outcomes, not errors.
func (s *BillingService) HandleLemonEvent(ctx context.Context, body []byte) (HandledEvent, error) {
	var payload lemonPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return HandledEvent{}, fmt.Errorf("parse webhook payload: %w", err)
	}
	eventName := payload.Meta.EventName

	switch eventName {
	case "order_created",
		"subscription_created", "subscription_updated",
		"subscription_cancelled", "subscription_paused",
		"subscription_expired", "subscription_resumed":
	default:
		return HandledEvent{Handled: false, Message: "Unhandled event type"}, nil
	}

	eventKey := eventName + ":" + payload.Data.ID
	err := s.store.MarkEventProcessed(ctx, &domain.WebhookEvent{
		ID:              uuid.NewString(),
		Provider:        "lemonsqueezy",
		ProviderEventID: eventKey,
		EventType:       eventName,
		Payload:         body,
	})
	if errors.Is(err, domain.ErrDuplicateEvent) {
		return HandledEvent{Handled: true, Message: "Duplicate event"}, nil
	}
	if err != nil {
		return HandledEvent{}, err
	}

	var handled HandledEvent
	switch eventName {
	case "order_created":
		handled, err = s.lemonOrderCreated(ctx, payload)
	case "subscription_created", "subscription_updated", "subscription_resumed":
		handled, err = s.lemonSubscriptionUpsert(ctx, payload)
	default: // cancelled, paused, expired
		handled, err = s.lemonSubscriptionEnded(ctx, payload, eventName)
	}
	if err != nil {
		// Release the dedup claim so the provider's redelivery gets reprocessed.
		if failErr := s.store.MarkEventFailed(ctx, "lemonsqueezy", eventKey, err.Error()); failErr != nil {
			log.Printf("billing: mark lemon event %s failed: %v", eventKey, failErr)
		}
		return HandledEvent{}, err
	}
	return handled, nil
}

func (s *BillingService) lemonUser(ctx context.Context, payload lemonPayload) (domain.User, error) {
	if id := payload.Meta.CustomData.UserID; id != "" {
		return s.users.Ensure(ctx, id, payload.Data.Attributes.UserEmail)
	}
	// Older checkouts carry no custom data; the email is the only handle.
	return s.users.ByEmail(ctx, payload.Data.Attributes.UserEmail)
}

func (s *BillingService) lemonOrderCreated(ctx context.Context, payload lemonPayload) (HandledEvent, error) {
	user, err := s.lemonUser(ctx, payload)
	if err != nil {
		return HandledEvent{}, fmt.Errorf("resolve user: %w", err)
	}

	attrs := payload.Data.Attributes
	err = s.store.InsertPayment(ctx, &domain.Payment{
		ID:              uuid.NewString(),
		UserID:          user.ID,
		UserEmail:       attrs.UserEmail,
		Provider:        "lemonsqueezy",
		ProviderOrderID: payload.Data.ID,
		Total:           attrs.Total,
		Currency:        attrs.Currency,
		Status:          attrs.Status,
		Receipt:         attrs.URLs.Receipt,
	})
	if errors.Is(err, domain.ErrDuplicateEvent) {
		return HandledEvent{Handled: true, Message: "Duplicate order"}, nil
	}
	if err != nil {
		return HandledEvent{}, err
	}

	planName := attrs.FirstOrderItem.ProductName
	if planName == "" {
		planName = attrs.ProductName
	}
	err = s.store.UpsertSubscription(ctx, &domain.Subscription{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		UserEmail: attrs.UserEmail,
		Provider:  "lemonsqueezy",
		Status:    domain.SubscriptionActive,
		PlanName:  planName,
	})
	if err != nil {
		return HandledEvent{}, err
	}
	return HandledEvent{Handled: true, Message: "order recorded"}, nil
}

func (s *BillingService) lemonSubscriptionUpsert(ctx context.Context, payload lemonPayload) (HandledEvent, error) {
	user, err := s.lemonUser(ctx, payload)
	if err != nil {
		return HandledEvent{}, fmt.Errorf("resolve user: %w", err)
	}

	attrs := payload.Data.Attributes
	sub := domain.Subscription{
		ID:                     uuid.NewString(),
		UserID:                 user.ID,
		UserEmail:              attrs.UserEmail,
		Provider:               "lemonsqueezy",
		ProviderSubscriptionID: payload.Data.ID,
		Status:                 attrs.Status,
		PlanID:                 fmt.Sprintf("%d", attrs.VariantID),
		PlanName:               attrs.VariantName,
		CardBrand:              attrs.CardBrand,
		CardLastFour:           attrs.CardLastFour,
		RenewsAt:               parseLemonTime(attrs.RenewsAt),
		EndsAt:                 parseLemonTime(attrs.EndsAt),
	}
	if err := s.store.UpsertSubscription(ctx, &sub); err != nil {
		return HandledEvent{}, err
	}

	if sub.Valid(time.Now().UTC()) {
		start := time.Now().UTC()
		end := start.Add(30 * 24 * time.Hour)
		if sub.RenewsAt != nil && sub.RenewsAt.After(start) {
			end = *sub.RenewsAt
		}
		if err := s.entitlement.OpenPeriod(ctx, user.ID, start, end); err != nil {
			log.Printf("billing: open usage period for %s: %v", user.ID, err)
		}
	}
	return HandledEvent{Handled: true, Message: "subscription updated"}, nil
}

func (s *BillingService) lemonSubscriptionEnded(ctx context.Context, payload lemonPayload, eventName string) (HandledEvent, error) {
	user, err := s.lemonUser(ctx, payload)
	if err != nil {
		return HandledEvent{}, fmt.Errorf("resolve user: %w", err)
	}

	status := map[string]string{
		"subscription_cancelled": domain.SubscriptionCancelled,
		"subscription_paused":    domain.SubscriptionPaused,
		"subscription_expired":   domain.SubscriptionExpired,
	}[eventName]

	endsAt := parseLemonTime(payload.Data.Attributes.EndsAt)
	if err := s.store.UpdateSubscriptionStatus(ctx, user.ID, status, endsAt); err != nil {
		if errors.Is(err, domain.ErrSubscriptionNotFound) {
			return HandledEvent{Handled: true, Message: "no subscription on file"}, nil
		}
		return HandledEvent{}, err
	}
	return HandledEvent{Handled: true, Message: "subscription " + status}, nil
}

func parseLemonTime(raw *string) *time.Time {
	if raw == nil || *raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		return nil
	}
	return &t
}

// Stripe-side entry points. The transport layer verifies the signature and
// unpacks the SDK types; these methods apply the normalized state.

// ProcessStripeEvent records the delivery for dedup. ErrDuplicateEvent means
// the event was seen before and must not be reapplied.
func (s *BillingService) ProcessStripeEvent(ctx context.Context, eventID, eventType string, payload []byte) error {
	return s.store.MarkEventProcessed(ctx, &domain.WebhookEvent{
		ID:              uuid.NewString(),
		Provider:        "stripe",
		ProviderEventID: eventID,
		EventType:       eventType,
		Payload:         payload,
	})
}

// FailStripeEvent releases the dedup claim after a dispatch error so the
// provider's redelivery gets reprocessed.
func (s *BillingService) FailStripeEvent(ctx context.Context, eventID, errMsg string) error {
	return s.store.MarkEventFailed(ctx, "stripe", eventID, errMsg)
}

func (s *BillingService) UpsertFromProvider(ctx context.Context, sub domain.Subscription) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if err := s.store.UpsertSubscription(ctx, &sub); err != nil {
		return err
	}
	if sub.Valid(time.Now().UTC()) {
		start := time.Now().UTC()
		end := start.Add(30 * 24 * time.Hour)
		if sub.RenewsAt != nil && sub.RenewsAt.After(start) {
			end = *sub.RenewsAt
		}
		if err := s.entitlement.OpenPeriod(ctx, sub.UserID, start, end); err != nil {
			log.Printf("billing: open usage period for %s: %v", sub.UserID, err)
		}
	}
	return nil
}

func (s *BillingService) EndSubscription(ctx context.Context, userID, status string, endsAt *time.Time) error {
	err := s.store.UpdateSubscriptionStatus(ctx, userID, status, endsAt)
	if errors.Is(err, domain.ErrSubscriptionNotFound) {
		return nil
	}
	return err
}

func (s *BillingService) RecordPayment(ctx context.Context, payment domain.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	err := s.store.InsertPayment(ctx, &payment)
	if errors.Is(err, domain.ErrDuplicateEvent) {
		return nil
	}
	return err
}

// CreditCheckout tops up credits after a one-time checkout completes.
func (s *BillingService) CreditCheckout(ctx context.Context, userID string, credits int) error {
	err := s.store.AddCredits(ctx, userID, credits)
	if errors.Is(err, domain.ErrSubscriptionNotFound) {
		// One-time buyers may have no subscription row yet; create one that
		// only carries credits.
		return s.store.UpsertSubscription(ctx, &domain.Subscription{
			ID:       uuid.NewString(),
			UserID:   userID,
			Provider: "stripe",
			Status:   domain.SubscriptionActive,
			Credits:  credits,
		})
	}
	return err
}
