// MCP transport for the checkout service using the official MCP Go SDK.
// Exposes the attempt lifecycle as tools so shopping agents can drive a
// checkout without the storefront UI.
package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"storefront-checkout/internal/checkout"
	"storefront-checkout/internal/model"
)

// === Tool Input Types ===

// BeginCheckoutInput is the input schema for the begin_checkout tool.
type BeginCheckoutInput struct {
	Lines              []model.CartLine   `json:"lines" jsonschema:"cart lines to purchase,required"`
	Shipping           model.ShippingInfo `json:"shipping" jsonschema:"shipping and contact details,required"`
	PromotionalTotal   int64              `json:"promotional_total" jsonschema:"discounted cart total in minor units,required"`
	PromotionalSavings int64              `json:"promotional_savings,omitempty" jsonschema:"total discount in minor units"`
	HasBundle          bool               `json:"has_bundle,omitempty" jsonschema:"whether the promotional bundle applies"`
	ShippingCost       int64              `json:"shipping_cost,omitempty" jsonschema:"shipping cost in minor units"`
	ShippingMethod     string             `json:"shipping_method,omitempty" jsonschema:"standard, express, or free"`
}

// AttemptInput identifies an existing checkout attempt.
type AttemptInput struct {
	AttemptID string `json:"attempt_id" jsonschema:"checkout attempt ID,required"`
}

// NewMCPServer creates an MCP server with checkout tools registered.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "storefront-checkout",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "Checkout payment reconciliation. begin_checkout returns a " +
				"redirect_url the buyer must open to pay; poll get_checkout_status " +
				"until the attempt reaches a terminal state.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name: "begin_checkout",
		Description: "Start a checkout attempt: creates the payment session and the " +
			"pending order, and returns the payment page URL.",
	}, h.mcpBeginCheckout)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_checkout_status",
		Description: "Get the current state of a checkout attempt.",
	}, h.mcpGetCheckoutStatus)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "cancel_checkout",
		Description: "Abandon a checkout attempt that has not completed.",
	}, h.mcpCancelCheckout)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===

func (h *Handler) mcpBeginCheckout(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input BeginCheckoutInput,
) (*mcp.CallToolResult, *checkout.Snapshot, error) {
	checkoutReq := &model.CheckoutRequest{
		Lines:              input.Lines,
		Shipping:           input.Shipping,
		PromotionalTotal:   input.PromotionalTotal,
		PromotionalSavings: input.PromotionalSavings,
		HasBundle:          input.HasBundle,
		ShippingCost:       input.ShippingCost,
		ShippingMethod:     model.ShippingMethod(input.ShippingMethod),
	}

	snapshot, err := h.engine.Begin(ctx, checkoutReq)
	if err != nil {
		return nil, nil, err
	}
	return nil, &snapshot, nil
}

func (h *Handler) mcpGetCheckoutStatus(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input AttemptInput,
) (*mcp.CallToolResult, *checkout.Snapshot, error) {
	if input.AttemptID == "" {
		return nil, nil, fmt.Errorf("attempt_id is required")
	}

	snapshot, err := h.engine.Get(input.AttemptID)
	if err != nil {
		return nil, nil, err
	}
	return nil, &snapshot, nil
}

func (h *Handler) mcpCancelCheckout(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input AttemptInput,
) (*mcp.CallToolResult, *checkout.Snapshot, error) {
	if input.AttemptID == "" {
		return nil, nil, fmt.Errorf("attempt_id is required")
	}

	snapshot, err := h.engine.Cancel(input.AttemptID)
	if err != nil {
		return nil, nil, err
	}
	return nil, &snapshot, nil
}
