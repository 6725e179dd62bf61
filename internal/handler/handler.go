// Package handler provides HTTP handlers for the checkout service API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"storefront-checkout/internal/checkout"
	"storefront-checkout/internal/dlocal"
	"storefront-checkout/internal/model"
)

// Engine is the checkout engine surface the handlers drive.
type Engine interface {
	Begin(ctx context.Context, req *model.CheckoutRequest) (checkout.Snapshot, error)
	Get(attemptID string) (checkout.Snapshot, error)
	WindowClosed(attemptID string) (checkout.Snapshot, error)
	WindowBlocked(attemptID string) (checkout.Snapshot, error)
	Cancel(attemptID string) (checkout.Snapshot, error)
	ConfirmPayment(ctx context.Context, paymentID, paymentMethod string) error
}

// WebhookGateway verifies and resolves gateway notifications.
type WebhookGateway interface {
	ValidateWebhookSignature(rawBody []byte, signature string) bool
	RetrievePayment(ctx context.Context, paymentID string) (*dlocal.Payment, error)
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	engine  Engine
	gateway WebhookGateway
	logger  *slog.Logger
}

// New creates a Handler.
func New(engine Engine, gateway WebhookGateway, logger *slog.Logger) *Handler {
	return &Handler{
		engine:  engine,
		gateway: gateway,
		logger:  logger,
	}
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
// Uses Go 1.22+ method routing patterns.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Checkout attempt lifecycle
	mux.HandleFunc("POST /checkout/attempts", h.handleBeginCheckout)
	mux.HandleFunc("GET /checkout/attempts/{id}", h.handleGetAttempt)
	mux.HandleFunc("POST /checkout/attempts/{id}/window-closed", h.handleWindowClosed)
	mux.HandleFunc("POST /checkout/attempts/{id}/window-blocked", h.handleWindowBlocked)
	mux.HandleFunc("POST /checkout/attempts/{id}/cancel", h.handleCancelAttempt)

	// Payment gateway notifications; GET is the gateway's endpoint check
	mux.HandleFunc("POST /webhooks/dlocal", h.handleGatewayWebhook)
	mux.HandleFunc("GET /webhooks/dlocal", h.handleWebhookPing)

	// MCP transport - JSON-RPC endpoint using official MCP SDK
	mux.Handle("/mcp", h.NewMCPHandler())

	// Health check
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// === Response Helpers ===

// MaxRequestBodySize limits JSON request bodies to 1MB to prevent DoS.
const MaxRequestBodySize = 1 << 20 // 1MB

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError sends an error response, extracting status/code from APIError if present.
// Uses errors.As() to unwrap error chains (e.g., fmt.Errorf wrapping).
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError

	if errors.As(err, &apiErr) {
		// Found APIError in error chain - use it
	} else {
		// Wrap unexpected errors
		apiErr = &model.APIError{
			Code:       "INTERNAL_ERROR",
			Message:    "an internal error occurred",
			StatusCode: http.StatusInternalServerError,
		}
		h.logger.Error("internal error", slog.String("error", err.Error()))
	}

	h.writeJSON(w, apiErr.StatusCode, errorResponse{
		Error: errorBody{
			Code:    apiErr.Code,
			Message: apiErr.Message,
		},
	})
}

// errorResponse is the JSON structure for error responses.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
