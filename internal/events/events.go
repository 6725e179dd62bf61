// Package events delivers post-purchase conversion events to the
// analytics collector. Delivery is fire-and-forget: a lost event never
// blocks or fails a checkout.
package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"storefront-checkout/internal/model"
)

// PurchaseEvent is emitted exactly once per confirmed checkout attempt.
type PurchaseEvent struct {
	OrderID   int64                  `json:"order_id"`
	OrderName string                 `json:"order_name"`
	PaymentID string                 `json:"payment_id"`
	Value     int64                  `json:"value"` // minor units
	Currency  string                 `json:"currency"`
	Email     string                 `json:"email,omitempty"`
	Tracking  *model.TrackingContext `json:"tracking,omitempty"`
}

// Sink receives purchase events.
type Sink interface {
	Purchase(ctx context.Context, event *PurchaseEvent) error
}

// HTTPSink posts purchase events as JSON to a collector endpoint.
type HTTPSink struct {
	httpClient *http.Client
	url        string
}

// NewHTTPSink creates a sink posting to the given collector URL.
func NewHTTPSink(url string) *HTTPSink {
	return &HTTPSink{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		url:        url,
	}
}

// Purchase delivers one event. The caller decides whether to ignore the
// error; the committer does.
func (s *HTTPSink) Purchase(ctx context.Context, event *PurchaseEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding purchase event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building event request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting purchase event: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("event collector returned status %d", resp.StatusCode)
	}
	return nil
}

// NopSink drops all events. Used when no collector is configured.
type NopSink struct{}

func (NopSink) Purchase(context.Context, *PurchaseEvent) error { return nil }
