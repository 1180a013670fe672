package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// CheckoutHandler creates Stripe Checkout sessions. The client is injected so
// tests can point it at a stub backend.
type CheckoutHandler struct {
	stripe     *client.API
	successURL string
	cancelURL  string
}

func NewCheckoutHandler(stripeClient *client.API, successURL, cancelURL string) *CheckoutHandler {
	return &CheckoutHandler{stripe: stripeClient, successURL: successURL, cancelURL: cancelURL}
}

type checkoutRequest struct {
	UserID  string `json:"userId"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	PriceID string `json:"priceId"`
}

type checkoutResponse struct {
	CheckoutURL string `json:"checkoutUrl"`
}

func (h *CheckoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.PriceID == "" {
		writeError(w, http.StatusBadRequest, "userId and priceId are required")
		return
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		ClientReferenceID: stripe.String(req.UserID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"user_id": req.UserID},
		},
		SuccessURL: stripe.String(h.successURL),
		CancelURL:  stripe.String(h.cancelURL),
	}
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	if req.Name != "" {
		params.SubscriptionData.Metadata["user_name"] = req.Name
	}

	sess, err := h.stripe.CheckoutSessions.New(params)
	if err != nil {
		log.Printf("stripe checkout session: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create checkout session")
		return
	}
	writeJSON(w, http.StatusOK, checkoutResponse{CheckoutURL: sess.URL})
}
