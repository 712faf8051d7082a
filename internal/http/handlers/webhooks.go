package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/guitaripod/pixie/internal/purchase"
)

const maxWebhookBodySize = 64 * 1024

// WebhookHandler serves the two raw payment-provider webhook deliveries.
// Once the body has been read, both answer 200 whatever the outcome,
// including a failed signature check: a non-2xx response only invites the
// provider's retry storm, and complete's pending-status guard already makes a
// retried delivery safe, so failures are logged rather than surfaced to the
// caller. A body that cannot be read is answered with 400.
type WebhookHandler struct {
	purchases *purchase.Service
	logger    *slog.Logger
}

// NewWebhookHandler creates a webhook handler.
func NewWebhookHandler(purchases *purchase.Service, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{purchases: purchases, logger: logger}
}

// HandleStripe handles POST /v1/stripe/webhook.
func (h *WebhookHandler) HandleStripe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("failed to read stripe webhook body", "error", err)
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if err := h.purchases.HandleStripeWebhook(r.Context(), payload, sigHeader); err != nil {
		h.logger.Error("failed to handle stripe webhook", "error", err)
	}
	w.WriteHeader(http.StatusOK)
}

// HandleCrypto handles POST /v1/credits/webhook/crypto.
func (h *WebhookHandler) HandleCrypto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("failed to read crypto webhook body", "error", err)
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("x-nowpayments-sig")
	if err := h.purchases.HandleCryptoWebhook(r.Context(), payload, signature); err != nil {
		h.logger.Error("failed to handle crypto webhook", "error", err)
	}
	w.WriteHeader(http.StatusOK)
}
