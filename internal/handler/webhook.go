package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"storefront-checkout/internal/dlocal"
	"storefront-checkout/internal/model"
)

// SignatureHeader carries the gateway's HMAC over the raw notification body.
const SignatureHeader = "X-Signature"

// handleGatewayWebhook processes a payment notification from the gateway.
// POST /webhooks/dlocal
//
// The notification body is untrusted even after signature validation: the
// payment status is always re-read from the gateway before any order is
// touched.
func (h *Handler) handleGatewayWebhook(w http.ResponseWriter, r *http.Request) {
	rawBody, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize))
	if err != nil {
		h.writeError(w, model.NewValidationError("body", "unreadable request body"))
		return
	}

	signature := r.Header.Get(SignatureHeader)
	if signature == "" {
		h.writeError(w, model.NewUnauthorizedError("missing webhook signature"))
		return
	}
	if !h.gateway.ValidateWebhookSignature(rawBody, signature) {
		h.logger.Warn("webhook signature rejected", slog.String("remote", r.RemoteAddr))
		h.writeError(w, model.NewForbiddenError("invalid webhook signature"))
		return
	}

	var event dlocal.WebhookEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		h.writeError(w, model.NewValidationError("body", "malformed notification"))
		return
	}
	paymentID := event.ID()
	if paymentID == "" {
		h.writeError(w, model.NewValidationError("payment_id", "notification carries no payment ID"))
		return
	}

	payment, err := h.gateway.RetrievePayment(r.Context(), paymentID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if !payment.Status.Successful() {
		// Nothing to reconcile; the poller or a later webhook handles
		// terminal failures.
		h.logger.Info("webhook ignored, payment not confirmed",
			slog.String("payment_id", paymentID),
			slog.String("status", string(payment.Status)))
		h.writeJSON(w, http.StatusOK, map[string]any{
			"received": true,
			"status":   payment.Status,
		})
		return
	}

	if err := h.engine.ConfirmPayment(r.Context(), paymentID, payment.PaymentMethodType); err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.Info("webhook confirmed payment", slog.String("payment_id", paymentID))
	h.writeJSON(w, http.StatusOK, map[string]any{
		"received":   true,
		"status":     payment.Status,
		"payment_id": paymentID,
	})
}

// handleWebhookPing answers the gateway's endpoint verification.
// GET /webhooks/dlocal
func (h *Handler) handleWebhookPing(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":   "active",
		"endpoint": "dlocal webhook",
	})
}
