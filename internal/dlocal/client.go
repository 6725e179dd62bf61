// Package dlocal implements the payment gateway client: session creation,
// status retrieval, and webhook signature validation.
package dlocal

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storefront-checkout/internal/model"
)

// API base URLs per environment.
const (
	productionBaseURL = "https://api.dlocalgo.com"
	sandboxBaseURL    = "https://api-sbx.dlocalgo.com"
)

// Config holds gateway credentials and environment selection.
type Config struct {
	APIKey    string
	SecretKey string
	Sandbox   bool
	BaseURL   string // overrides environment selection; used by tests
}

// Client talks to the payment gateway REST API.
//
// CreatePayment is called once per checkout attempt with no retries: a
// failure aborts the attempt with the transport error surfaced, and a second
// press of the pay button simply creates a new session.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	secretKey  string
}

// New creates a gateway client with the given configuration.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("gateway credentials are required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		if cfg.Sandbox {
			baseURL = sandboxBaseURL
		} else {
			baseURL = productionBaseURL
		}
	}

	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     cfg.APIKey,
		secretKey:  cfg.SecretKey,
	}, nil
}

// authHeader builds the Bearer credential the gateway expects.
// Format: Bearer API_KEY:SECRET_KEY
func (c *Client) authHeader() string {
	return "Bearer " + c.apiKey + ":" + c.secretKey
}

// CreatePayment creates a payment session and returns its identifier and
// the hosted payment page URL.
func (c *Client) CreatePayment(ctx context.Context, req *PaymentRequest) (*model.PaymentSession, error) {
	var payment Payment
	if err := c.do(ctx, http.MethodPost, "/v1/payments", req, &payment); err != nil {
		return nil, err
	}
	if payment.ID == "" || payment.RedirectURL == "" {
		return nil, model.NewUpstreamError("payment gateway", fmt.Errorf("create returned no id or redirect url"))
	}
	return &model.PaymentSession{
		ID:          payment.ID,
		RedirectURL: payment.RedirectURL,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// RetrievePayment fetches the current state of a payment.
func (c *Client) RetrievePayment(ctx context.Context, paymentID string) (*Payment, error) {
	if paymentID == "" {
		return nil, model.NewValidationError("payment_id", "payment ID required")
	}
	var payment Payment
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+paymentID, nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetStatus fetches only the payment status. This is the poller's call.
func (c *Client) GetStatus(ctx context.Context, paymentID string) (model.PaymentStatus, error) {
	payment, err := c.RetrievePayment(ctx, paymentID)
	if err != nil {
		return "", err
	}
	return payment.Status, nil
}

// ValidateWebhookSignature checks the HMAC on a webhook notification.
// The gateway signs as: hex(HMAC-SHA256(api_key + raw_body, secret_key)),
// delivered in the X-Signature header.
func (c *Client) ValidateWebhookSignature(rawBody []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(c.apiKey))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// do executes one JSON request against the gateway.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.authHeader())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.NewUpstreamError("payment gateway", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return model.NewUpstreamError("payment gateway", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.NewUpstreamError("payment gateway",
			fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, truncate(data, 256)))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return model.NewUpstreamError("payment gateway", fmt.Errorf("decoding response: %w", err))
		}
	}
	return nil
}

// truncate limits error payload snippets in wrapped errors.
func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
