package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"storefront-checkout/internal/model"
	"storefront-checkout/internal/tracking"
)

// handleBeginCheckout starts a checkout attempt.
// POST /checkout/attempts
func (h *Handler) handleBeginCheckout(w http.ResponseWriter, r *http.Request) {
	var req model.CheckoutRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	headerTracking, err := tracking.ParseHeader(r.Header.Get(tracking.HeaderName))
	if err != nil {
		h.writeError(w, model.NewValidationError(tracking.HeaderName, err.Error()))
		return
	}
	req.Tracking = tracking.Merge(req.Tracking, headerTracking)

	snapshot, err := h.engine.Begin(r.Context(), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, snapshot)
}

// handleGetAttempt returns the current state of an attempt.
// GET /checkout/attempts/{id}
func (h *Handler) handleGetAttempt(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.engine.Get(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snapshot)
}

// handleWindowClosed records that the buyer closed the payment window.
// POST /checkout/attempts/{id}/window-closed
func (h *Handler) handleWindowClosed(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.engine.WindowClosed(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snapshot)
}

// handleWindowBlocked records that the payment window never opened.
// POST /checkout/attempts/{id}/window-blocked
func (h *Handler) handleWindowBlocked(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.engine.WindowBlocked(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snapshot)
}

// handleCancelAttempt abandons an attempt.
// POST /checkout/attempts/{id}/cancel
func (h *Handler) handleCancelAttempt(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.engine.Cancel(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snapshot)
}

// decodeJSON parses a request body into dst with a size cap.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return model.NewValidationError("body", "request body too large")
		}
		if errors.Is(err, io.EOF) {
			return model.NewValidationError("body", "request body required")
		}
		h.logger.Debug("malformed request body", slog.Any("error", err))
		return model.NewValidationError("body", "malformed JSON")
	}
	return nil
}
