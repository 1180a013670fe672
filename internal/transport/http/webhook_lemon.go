package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log"
	"net/http"

	"mcqlab/internal/app"
)

const maxWebhookBytes = 1 << 20

// LemonWebhookHandler verifies and dispatches Lemon Squeezy callbacks. The
// signature is HMAC-SHA256 over the raw request body, hex-encoded in the
// X-Signature header.
type LemonWebhookHandler struct {
	billing *app.BillingService
	secret  string
}

func NewLemonWebhookHandler(billing *app.BillingService, secret string) *LemonWebhookHandler {
	return &LemonWebhookHandler{billing: billing, secret: secret}
}

func (h *LemonWebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	if !verifyLemonSignature(body, r.Header.Get("X-Signature"), h.secret) {
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	handled, err := h.billing.HandleLemonEvent(r.Context(), body)
	if err != nil {
		log.Printf("lemon webhook: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to process event")
		return
	}
	if !handled.Handled {
		// Unknown event names are acknowledged so the provider stops retrying.
		writeJSON(w, http.StatusOK, messageBody{Message: "Unhandled event type"})
		return
	}
	writeJSON(w, http.StatusOK, successBody{Success: true, Message: handled.Message})
}

func verifyLemonSignature(body []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
