package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"mcqlab/internal/app"
	"mcqlab/internal/domain"
)

// StripeWebhookHandler verifies Stripe event signatures and maps the SDK
// payloads onto normalized billing calls.
type StripeWebhookHandler struct {
	billing *app.BillingService
	secret  string
}

func NewStripeWebhookHandler(billing *app.BillingService, secret string) *StripeWebhookHandler {
	return &StripeWebhookHandler{billing: billing, secret: secret}
}

func (h *StripeWebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		body,
		r.Header.Get("Stripe-Signature"),
		h.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "signature verification failed")
		return
	}

	if err := h.billing.ProcessStripeEvent(r.Context(), event.ID, string(event.Type), body); err != nil {
		if errors.Is(err, domain.ErrDuplicateEvent) {
			writeJSON(w, http.StatusOK, successBody{Success: true, Message: "Duplicate event"})
			return
		}
		log.Printf("stripe webhook: record event %s: %v", event.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to process event")
		return
	}

	if err := h.dispatch(r, event); err != nil {
		log.Printf("stripe webhook: %s: %v", event.Type, err)
		if failErr := h.billing.FailStripeEvent(r.Context(), event.ID, err.Error()); failErr != nil {
			log.Printf("stripe webhook: mark event %s failed: %v", event.ID, failErr)
		}
		writeError(w, http.StatusInternalServerError, "failed to process event")
		return
	}
	writeJSON(w, http.StatusOK, successBody{Success: true})
}

func (h *StripeWebhookHandler) dispatch(r *http.Request, event stripe.Event) error {
	ctx := r.Context()
	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return err
		}
		userID := sub.Metadata["user_id"]
		if userID == "" {
			return errors.New("subscription missing user_id metadata")
		}
		return h.billing.UpsertFromProvider(ctx, subscriptionFromStripe(userID, sub))
	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return err
		}
		userID := sub.Metadata["user_id"]
		if userID == "" {
			return errors.New("subscription missing user_id metadata")
		}
		var endsAt *time.Time
		if sub.EndedAt > 0 {
			t := time.Unix(sub.EndedAt, 0).UTC()
			endsAt = &t
		}
		return h.billing.EndSubscription(ctx, userID, domain.SubscriptionCancelled, endsAt)
	case "invoice.payment_succeeded":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return err
		}
		userID := invoiceUserID(invoice)
		return h.billing.RecordPayment(ctx, domain.Payment{
			UserID:          userID,
			UserEmail:       invoice.CustomerEmail,
			Provider:        "stripe",
			ProviderOrderID: invoice.ID,
			Total:           invoice.AmountPaid,
			Currency:        string(invoice.Currency),
			Status:          "paid",
			Receipt:         invoice.HostedInvoiceURL,
		})
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return err
		}
		if sess.Mode != stripe.CheckoutSessionModePayment {
			// Subscription checkouts are applied by the subscription events.
			return nil
		}
		userID := sess.ClientReferenceID
		if userID == "" {
			userID = sess.Metadata["user_id"]
		}
		if userID == "" {
			return errors.New("checkout session missing user reference")
		}
		credits := int(sess.AmountTotal / 100)
		return h.billing.CreditCheckout(ctx, userID, credits)
	default:
		// Acknowledged without action.
		return nil
	}
}

func subscriptionFromStripe(userID string, sub stripe.Subscription) domain.Subscription {
	out := domain.Subscription{
		UserID:                 userID,
		Provider:               "stripe",
		ProviderSubscriptionID: sub.ID,
		Status:                 stripeStatus(sub.Status),
	}
	if sub.Customer != nil {
		out.UserEmail = sub.Customer.Email
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		price := sub.Items.Data[0].Price
		out.PlanID = price.ID
		out.PlanName = price.Nickname
	}
	if sub.CurrentPeriodEnd > 0 {
		t := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		out.RenewsAt = &t
	}
	if sub.CancelAt > 0 {
		t := time.Unix(sub.CancelAt, 0).UTC()
		out.EndsAt = &t
	}
	return out
}

func stripeStatus(status stripe.SubscriptionStatus) string {
	switch status {
	case stripe.SubscriptionStatusActive:
		return domain.SubscriptionActive
	case stripe.SubscriptionStatusTrialing:
		return domain.SubscriptionOnTrial
	case stripe.SubscriptionStatusPaused:
		return domain.SubscriptionPaused
	case stripe.SubscriptionStatusCanceled:
		return domain.SubscriptionCancelled
	default:
		return domain.SubscriptionExpired
	}
}

func invoiceUserID(invoice stripe.Invoice) string {
	if invoice.SubscriptionDetails != nil {
		if id := invoice.SubscriptionDetails.Metadata["user_id"]; id != "" {
			return id
		}
	}
	return invoice.Metadata["user_id"]
}
