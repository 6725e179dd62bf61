// Package shopify implements the commerce platform Admin REST client: the
// durable order record is created here before payment and flipped to paid
// after confirmation.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"storefront-checkout/internal/model"
	"storefront-checkout/internal/transport"
)

// DefaultAPIVersion is used when the configuration does not pin one.
const DefaultAPIVersion = "2024-10"

// orderScanLimit bounds the note-scan fallback when looking an order up by
// payment reference.
const orderScanLimit = 50

// Config holds Admin API credentials.
type Config struct {
	Domain      string // myshop.myshopify.com
	AccessToken string
	APIVersion  string
	BaseURL     string // overrides https://{Domain}; used by tests
}

// Client talks to the Admin REST API. Requests go out through the
// browser-fingerprint transport: the platform's CDN rate-limits Go's native
// TLS fingerprint aggressively.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	apiVersion string
}

// New creates an Admin API client.
func New(cfg Config) (*Client, error) {
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("admin access token is required")
	}

	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		if cfg.Domain == "" {
			return nil, fmt.Errorf("shop domain is required")
		}
		baseURL = "https://" + cfg.Domain
		httpClient.Transport = transport.NewBrowserTransport(10 * time.Second)
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      cfg.AccessToken,
		apiVersion: apiVersion,
	}, nil
}

// CreateOrder creates an order and returns the platform's record of it.
func (c *Client) CreateOrder(ctx context.Context, order *Order) (*model.PendingOrder, error) {
	var resp orderEnvelope
	if err := c.do(ctx, http.MethodPost, "/orders.json", orderRequest{Order: order}, &resp); err != nil {
		return nil, err
	}
	if resp.Order == nil {
		return nil, model.NewUpstreamError("commerce platform", fmt.Errorf("create returned no order"))
	}
	return resp.Order.pending(), nil
}

// GetOrder fetches an order by its platform ID.
func (c *Client) GetOrder(ctx context.Context, orderID int64) (*model.PendingOrder, error) {
	res, err := c.fetchOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return res.pending(), nil
}

func (c *Client) fetchOrder(ctx context.Context, orderID int64) (*orderResource, error) {
	var resp orderEnvelope
	if err := c.do(ctx, http.MethodGet, "/orders/"+strconv.FormatInt(orderID, 10)+".json", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Order == nil {
		return nil, model.NewNotFoundError("order", strconv.FormatInt(orderID, 10))
	}
	return resp.Order, nil
}

// MarkOrderPaid flips a pending order to paid: financial status updated,
// the awaiting tags replaced with paid, and a confirmation block appended
// to the note. Safe to call on an already-paid order; the rewrite is
// idempotent apart from the appended note block.
func (c *Client) MarkOrderPaid(ctx context.Context, orderID int64, paymentID string, paymentMethod string) (*model.PendingOrder, error) {
	current, err := c.fetchOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if paymentMethod == "" {
		paymentMethod = "Card"
	}

	update := &Order{
		FinancialStatus: model.FinancialPaid,
		Tags:            paidTags(current.Tags),
		Note: current.Note + "\n\nPayment confirmed\n" +
			"Updated at: " + time.Now().UTC().Format(time.RFC3339) + "\n" +
			"Payment ID: " + paymentID + "\n" +
			"Payment Method: " + paymentMethod + "\n",
	}

	var resp orderEnvelope
	path := "/orders/" + strconv.FormatInt(orderID, 10) + ".json"
	if err := c.do(ctx, http.MethodPut, path, orderRequest{Order: update}, &resp); err != nil {
		return nil, err
	}
	if resp.Order == nil {
		return nil, model.NewUpstreamError("commerce platform", fmt.Errorf("update returned no order"))
	}
	return resp.Order.pending(), nil
}

// FindOrderByPaymentRef scans recent orders for the one whose note carries
// the payment reference. Fallback path for webhooks that arrive for
// attempts this process has no journal entry for.
func (c *Client) FindOrderByPaymentRef(ctx context.Context, paymentID string) (*model.PendingOrder, error) {
	var resp ordersEnvelope
	path := fmt.Sprintf("/orders.json?status=any&limit=%d", orderScanLimit)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	marker := PaymentRefMarker(paymentID)
	for i := range resp.Orders {
		if strings.Contains(resp.Orders[i].Note, marker) {
			return resp.Orders[i].pending(), nil
		}
	}
	return nil, model.NewNotFoundError("order for payment", paymentID)
}

// paidTags rewrites an order's tag list after payment confirmation.
func paidTags(tags string) string {
	parts := strings.Split(tags, ",")
	kept := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || p == "pending_payment" || p == "awaiting_payment" {
			continue
		}
		kept = append(kept, p)
	}
	kept = append(kept, "paid")
	return strings.Join(kept, ",")
}

// do executes one JSON request against the Admin API.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	url := c.baseURL + "/admin/api/" + c.apiVersion + path
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.NewUpstreamError("commerce platform", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return model.NewUpstreamError("commerce platform", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return model.NewNotFoundError("resource", path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(data)
		if len(snippet) > 256 {
			snippet = snippet[:256] + "..."
		}
		return model.NewUpstreamError("commerce platform",
			fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, snippet))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return model.NewUpstreamError("commerce platform", fmt.Errorf("decoding response: %w", err))
		}
	}
	return nil
}
