package app_test

import (
	"context"
	"fmt"
	"testing"

	"mcqlab/internal/app"
	"mcqlab/internal/domain"
)

func newBillingFixture() (*app.BillingService, *fakeBillingStore) {
	store := newFakeBillingStore()
	users := &fakeUserStore{user: domain.User{ID: "u1", Email: "alice@example.com"}}
	entitlement := app.NewEntitlementService(store, &fakeUsageStore{}, newFakeResourceStore(), 1, 100)
	return app.NewBillingService(store, users, entitlement), store
}

func lemonBody(eventName, dataID string) []byte {
	return []byte(fmt.Sprintf(`{
		"meta": {"event_name": %q, "custom_data": {"user_id": "auth-1"}},
		"data": {"id": %q, "attributes": {
			"status": "active",
			"user_email": "alice@example.com",
			"variant_id": 42,
			"variant_name": "Pro Monthly",
			"card_brand": "visa",
			"card_last_four": "4242",
			"total": 900,
			"currency": "USD",
			"renews_at": "2026-10-01T00:00:00Z"
		}}
	}`, eventName, dataID))
}

func TestLemonUnhandledEventType(t *testing.T) {
	service, store := newBillingFixture()

	handled, err := service.HandleLemonEvent(context.Background(),
		[]byte(`{"meta":{"event_name":"unknown_event"}}`))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if handled.Handled {
		t.Fatal("unknown event must not be handled")
	}
	if handled.Message != "Unhandled event type" {
		t.Fatalf("unexpected message %q", handled.Message)
	}
	if len(store.upserts) != 0 || len(store.payments) != 0 {
		t.Fatal("unknown event must not write anything")
	}
}

func TestLemonSubscriptionUpdated(t *testing.T) {
	service, store := newBillingFixture()

	handled, err := service.HandleLemonEvent(context.Background(), lemonBody("subscription_updated", "sub-9"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !handled.Handled {
		t.Fatalf("expected handled, got %+v", handled)
	}
	if len(store.upserts) != 1 {
		t.Fatalf("expected one upsert, got %d", len(store.upserts))
	}
	sub := store.upserts[0]
	if sub.UserID != "u1" {
		t.Fatalf("subscription must be keyed by internal user id, got %q", sub.UserID)
	}
	if sub.Status != "active" || sub.PlanName != "Pro Monthly" || sub.CardLastFour != "4242" {
		t.Fatalf("unexpected subscription %+v", sub)
	}
	if sub.RenewsAt == nil {
		t.Fatal("renews_at not parsed")
	}
}

func TestLemonOrderCreatedIsIdempotent(t *testing.T) {
	service, store := newBillingFixture()

	if _, err := service.HandleLemonEvent(context.Background(), lemonBody("order_created", "ord-1")); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	// provider redelivers the same payload
	handled, err := service.HandleLemonEvent(context.Background(), lemonBody("order_created", "ord-1"))
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if !handled.Handled {
		t.Fatalf("duplicate should still be acknowledged, got %+v", handled)
	}
	if len(store.payments) != 1 {
		t.Fatalf("redelivery must not double-insert payments, got %d rows", len(store.payments))
	}
}

func TestLemonOrderRetriedAfterTransientFailure(t *testing.T) {
	service, store := newBillingFixture()
	store.paymentErr = fmt.Errorf("connection reset")

	_, err := service.HandleLemonEvent(context.Background(), lemonBody("order_created", "ord-7"))
	if err == nil {
		t.Fatal("first delivery should surface the store error")
	}
	if len(store.payments) != 0 {
		t.Fatalf("failed delivery must not store payments, got %d rows", len(store.payments))
	}

	// provider retries after the 500
	handled, err := service.HandleLemonEvent(context.Background(), lemonBody("order_created", "ord-7"))
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if !handled.Handled || handled.Message == "Duplicate event" {
		t.Fatalf("redelivery after a failure must be reprocessed, got %+v", handled)
	}
	if len(store.payments) != 1 {
		t.Fatalf("expected the retried payment stored once, got %d rows", len(store.payments))
	}
}

func TestLemonSubscriptionCancelled(t *testing.T) {
	service, store := newBillingFixture()

	if _, err := service.HandleLemonEvent(context.Background(), lemonBody("subscription_cancelled", "sub-9")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(store.statusUpdates) != 1 || store.statusUpdates[0] != "u1:cancelled" {
		t.Fatalf("unexpected status updates %v", store.statusUpdates)
	}
}

func TestStripeEventDeduplication(t *testing.T) {
	service, _ := newBillingFixture()

	if err := service.ProcessStripeEvent(context.Background(), "evt_1", "invoice.payment_succeeded", nil); err != nil {
		t.Fatalf("first event: %v", err)
	}
	err := service.ProcessStripeEvent(context.Background(), "evt_1", "invoice.payment_succeeded", nil)
	if err != domain.ErrDuplicateEvent {
		t.Fatalf("expected ErrDuplicateEvent, got %v", err)
	}
}

func TestCreditCheckoutCreatesRowWhenMissing(t *testing.T) {
	service, store := newBillingFixture()

	if err := service.CreditCheckout(context.Background(), "u1", 50); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if store.credits != 50 {
		t.Fatalf("expected 50 credits, got %d", store.credits)
	}
}
