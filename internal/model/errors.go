package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases.
// Use errors.Is() to check against these.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrUpstreamError    = errors.New("upstream error")
	ErrInvalidCartState = errors.New("invalid cart state")
	ErrVariantNotFound  = errors.New("variant not found")
	ErrWindowBlocked    = errors.New("payment window blocked")
	ErrGatewayRejected  = errors.New("payment rejected by gateway")
	ErrGatewayCancelled = errors.New("payment cancelled")
	ErrCommitFailed     = errors.New("order commit failed")
)

// APIError represents a structured error for API responses.
// Implements error interface and supports unwrapping.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"` // HTTP status, not serialized
	Err        error  `json:"-"` // Wrapped error, not serialized
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a 404 error for missing resources.
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s %q not found", resource, id),
		StatusCode: 404,
		Err:        ErrNotFound,
	}
}

// NewValidationError creates a 400 error for invalid input.
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:       "VALIDATION_ERROR",
		Message:    fmt.Sprintf("invalid %s: %s", field, reason),
		StatusCode: 400,
		Err:        ErrInvalidRequest,
	}
}

// NewUnauthorizedError creates a 401 error for auth failures.
func NewUnauthorizedError(reason string) *APIError {
	return &APIError{
		Code:       "UNAUTHORIZED",
		Message:    reason,
		StatusCode: 401,
		Err:        ErrUnauthorized,
	}
}

// NewForbiddenError creates a 403 error for requests whose credentials
// were presented but did not verify.
func NewForbiddenError(reason string) *APIError {
	return &APIError{
		Code:       "FORBIDDEN",
		Message:    reason,
		StatusCode: 403,
		Err:        ErrUnauthorized,
	}
}

// NewUpstreamError creates a 502 error for backend failures.
func NewUpstreamError(service string, err error) *APIError {
	return &APIError{
		Code:       "UPSTREAM_ERROR",
		Message:    fmt.Sprintf("%s request failed", service),
		StatusCode: 502,
		Err:        fmt.Errorf("%w: %v", ErrUpstreamError, err),
	}
}

// NewInvalidCartError creates a 422 error for carts that cannot be priced
// or mapped. Pre-flight: nothing has been created upstream yet.
func NewInvalidCartError(reason string) *APIError {
	return &APIError{
		Code:       "INVALID_CART_STATE",
		Message:    reason,
		StatusCode: 422,
		Err:        ErrInvalidCartState,
	}
}

// NewVariantNotFoundError creates a 422 error for a line whose chosen size
// has no matching variant. Aborts the whole attempt, never substitutes.
func NewVariantNotFoundError(product, size string) *APIError {
	return &APIError{
		Code:       "VARIANT_NOT_FOUND",
		Message:    fmt.Sprintf("no variant for size %q of %q", size, product),
		StatusCode: 422,
		Err:        ErrVariantNotFound,
	}
}

// NewWindowBlockedError creates a 409 error for a blocked payment window.
// User-correctable: allow popups and retry.
func NewWindowBlockedError() *APIError {
	return &APIError{
		Code:       "PAYMENT_WINDOW_BLOCKED",
		Message:    "payment window could not be opened; allow popups and retry",
		StatusCode: 409,
		Err:        ErrWindowBlocked,
	}
}

// NewInternalError creates a 500 error for unexpected failures.
func NewInternalError(err error) *APIError {
	return &APIError{
		Code:       "INTERNAL_ERROR",
		Message:    "an internal error occurred",
		StatusCode: 500,
		Err:        err,
	}
}
