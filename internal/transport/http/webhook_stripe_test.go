package http

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mcqlab/internal/domain"
)

const stripeSecret = "whsec_test"

func stripeSignature(body []byte, secret string, at time.Time) string {
	ts := fmt.Sprintf("%d", at.Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func postStripe(t *testing.T, handler *StripeWebhookHandler, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", bytes.NewReader(body))
	req.Header.Set("Stripe-Signature", signature)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	store := newFakeBillingStore()
	handler := NewStripeWebhookHandler(newTestBillingService(store), stripeSecret)

	body := []byte(`{"id":"evt_1","type":"customer.subscription.updated"}`)
	rec := postStripe(t, handler, body, "t=1,v1=deadbeef")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if len(store.events) != 0 {
		t.Fatal("rejected request must not record the event")
	}
}

func TestStripeWebhookAppliesSubscriptionUpdate(t *testing.T) {
	store := newFakeBillingStore()
	handler := NewStripeWebhookHandler(newTestBillingService(store), stripeSecret)

	body := []byte(`{
		"id": "evt_1",
		"type": "customer.subscription.updated",
		"data": {"object": {
			"id": "sub_123",
			"status": "active",
			"metadata": {"user_id": "u1"},
			"current_period_end": 1790000000,
			"items": {"data": [{"price": {"id": "price_pro", "nickname": "Pro Monthly"}}]}
		}}
	}`)
	rec := postStripe(t, handler, body, stripeSignature(body, stripeSecret, time.Now()))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	sub, ok := store.subs["u1"]
	if !ok {
		t.Fatal("expected subscription keyed by internal user id")
	}
	if sub.Status != domain.SubscriptionActive || sub.ProviderSubscriptionID != "sub_123" {
		t.Fatalf("unexpected subscription %+v", sub)
	}
	if sub.PlanID != "price_pro" {
		t.Fatalf("expected plan carried over, got %q", sub.PlanID)
	}
}

func TestStripeWebhookDuplicateDelivery(t *testing.T) {
	store := newFakeBillingStore()
	handler := NewStripeWebhookHandler(newTestBillingService(store), stripeSecret)

	body := []byte(`{
		"id": "evt_2",
		"type": "invoice.payment_succeeded",
		"data": {"object": {
			"id": "in_1",
			"amount_paid": 900,
			"currency": "usd",
			"customer_email": "buyer@example.com",
			"subscription_details": {"metadata": {"user_id": "u1"}}
		}}
	}`)
	for i := 0; i < 2; i++ {
		rec := postStripe(t, handler, body, stripeSignature(body, stripeSecret, time.Now()))
		if rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: expected 200, got %d", i, rec.Code)
		}
	}
	if len(store.payments) != 1 {
		t.Fatalf("expected a single payment after redelivery, got %d", len(store.payments))
	}
}

func TestStripeWebhookRetriedAfterTransientFailure(t *testing.T) {
	store := newFakeBillingStore()
	store.paymentErr = fmt.Errorf("connection reset")
	handler := NewStripeWebhookHandler(newTestBillingService(store), stripeSecret)

	body := []byte(`{
		"id": "evt_3",
		"type": "invoice.payment_succeeded",
		"data": {"object": {
			"id": "in_2",
			"amount_paid": 900,
			"currency": "usd",
			"customer_email": "buyer@example.com",
			"subscription_details": {"metadata": {"user_id": "u1"}}
		}}
	}`)
	rec := postStripe(t, handler, body, stripeSignature(body, stripeSecret, time.Now()))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("failed delivery must return 500, got %d", rec.Code)
	}
	if len(store.payments) != 0 {
		t.Fatalf("failed delivery must not store payments, got %d", len(store.payments))
	}

	rec = postStripe(t, handler, body, stripeSignature(body, stripeSecret, time.Now()))
	if rec.Code != http.StatusOK {
		t.Fatalf("redelivery: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.payments) != 1 {
		t.Fatalf("expected the retried payment stored once, got %d", len(store.payments))
	}
}
