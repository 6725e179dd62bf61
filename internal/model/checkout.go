// Package model defines data structures shared by the checkout engine and
// the platform clients.
package model

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// === Enums ===

// AttemptStatus represents the state of a checkout attempt.
// One attempt is one press of the pay button; the state machine advances
// strictly forward and never re-enters polling once it has left it.
type AttemptStatus string

const (
	StatusIdle                AttemptStatus = "idle"
	StatusCreatingOrder       AttemptStatus = "creating_order"
	StatusOpeningPayment      AttemptStatus = "opening_payment"
	StatusPolling             AttemptStatus = "polling"
	StatusUpdatingOrder       AttemptStatus = "updating_order"
	StatusSuccess             AttemptStatus = "success"
	StatusFailed              AttemptStatus = "failed"
	StatusPendingConfirmation AttemptStatus = "pending_confirmation"
	StatusCancelled           AttemptStatus = "cancelled"
)

// Terminal reports whether the attempt will not change state again.
func (s AttemptStatus) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusPendingConfirmation, StatusCancelled:
		return true
	}
	return false
}

// PaymentStatus is the gateway-side status of a payment.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "PENDING"
	PaymentPaid       PaymentStatus = "PAID"
	PaymentAuthorized PaymentStatus = "AUTHORIZED"
	PaymentRejected   PaymentStatus = "REJECTED"
	PaymentCancelled  PaymentStatus = "CANCELLED"
)

// Successful reports whether the gateway considers the payment collected.
// AUTHORIZED counts: the gateway settles it without further buyer action.
func (s PaymentStatus) Successful() bool {
	return s == PaymentPaid || s == PaymentAuthorized
}

// Terminal reports whether the gateway will not change this status again.
func (s PaymentStatus) Terminal() bool {
	return s.Successful() || s == PaymentRejected || s == PaymentCancelled
}

// FinancialStatus is the commerce platform's order payment state.
// The checkout engine only ever deals with these two values.
type FinancialStatus string

const (
	FinancialPending FinancialStatus = "pending"
	FinancialPaid    FinancialStatus = "paid"
)

// === Cart ===

// Variant is one purchasable option of a product (a size, in practice).
type Variant struct {
	ID        string `json:"id"` // platform GID, e.g. gid://shopify/ProductVariant/123
	Title     string `json:"title"`
	Available bool   `json:"available"`
}

// Customization is optional jersey personalization attached to a line.
type Customization struct {
	Name   string `json:"name,omitempty"`
	Number *int   `json:"number,omitempty"`
}

// MaxCustomizationName bounds the printed name length.
const MaxCustomizationName = 15

// Validate checks the personalization constraints.
func (c *Customization) Validate() error {
	if c == nil {
		return nil
	}
	if utf8.RuneCountInString(c.Name) > MaxCustomizationName {
		return fmt.Errorf("name exceeds %d characters", MaxCustomizationName)
	}
	if c.Number != nil && (*c.Number < 0 || *c.Number > 99) {
		return fmt.Errorf("number must be between 0 and 99")
	}
	return nil
}

// CartLine is one selected product in the cart. Immutable once submitted
// to checkout: the engine copies the slice at attempt start.
type CartLine struct {
	ProductID     string         `json:"product_id"`
	Name          string         `json:"name"`
	Size          string         `json:"size"`
	Color         string         `json:"color,omitempty"`
	Quantity      int            `json:"quantity"`
	UnitPrice     int64          `json:"unit_price"` // minor units, pre-discount
	Variants      []Variant      `json:"variants"`
	Customization *Customization `json:"customization,omitempty"`
	Image         string         `json:"image,omitempty"`
}

// Subtotal returns the original (pre-discount) line total in minor units.
func (l CartLine) Subtotal() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// === Shipping ===

// ShippingMethod selects the carrier tier.
type ShippingMethod string

const (
	ShippingStandard ShippingMethod = "standard"
	ShippingExpress  ShippingMethod = "express"
	ShippingFree     ShippingMethod = "free"
)

// CarrierName returns the buyer-facing carrier title for a method.
func (m ShippingMethod) CarrierName() string {
	if m == ShippingExpress {
		return "Transporte Privado UltraExpress"
	}
	return "Correo Argentino"
}

// Code returns the platform shipping-line code.
func (m ShippingMethod) Code() string {
	if m == ShippingExpress {
		return "EXPRESS"
	}
	return "STANDARD"
}

// ShippingInfo is the contact and delivery data collected by the checkout form.
type ShippingInfo struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Document  string `json:"document"` // DNI/CUIT, required by the gateway
	Phone     string `json:"phone,omitempty"`
	Address1  string `json:"address1"`
	Address2  string `json:"address2,omitempty"`
	City      string `json:"city"`
	Province  string `json:"province"`
	Zip       string `json:"zip"`
	Country   string `json:"country"`
}

// FullName joins first and last name for gateway payer records.
func (s ShippingInfo) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// === Payment session & order ===

// PaymentSession is the gateway-issued session for one checkout attempt.
// Created at most once per attempt; immutable once created.
type PaymentSession struct {
	ID          string    `json:"payment_id"`
	RedirectURL string    `json:"redirect_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// PendingOrder is the durable order record in the commerce platform,
// linked 1:1 to a PaymentSession via the payment reference stored on it.
type PendingOrder struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"` // human-readable, e.g. "#1234"
	OrderNumber     int64           `json:"order_number"`
	Email           string          `json:"email,omitempty"`
	TotalPrice      string          `json:"total_price,omitempty"`
	FinancialStatus FinancialStatus `json:"financial_status"`
	CreatedAt       time.Time       `json:"created_at,omitempty"`
}

// === Tracking ===

// TrackingContext is attribution and session metadata attached as opaque
// annotations to the pending order. It has no effect on reconciliation.
type TrackingContext struct {
	SessionID string `json:"session_id,omitempty"`
	ClientID  string `json:"client_id,omitempty"`

	UTMSource   string `json:"utm_source,omitempty"`
	UTMMedium   string `json:"utm_medium,omitempty"`
	UTMCampaign string `json:"utm_campaign,omitempty"`
	UTMContent  string `json:"utm_content,omitempty"`
	UTMTerm     string `json:"utm_term,omitempty"`

	FBClid     string `json:"fbclid,omitempty"`
	FBC        string `json:"fbc,omitempty"`
	FBP        string `json:"fbp,omitempty"`
	CampaignID string `json:"campaign_id,omitempty"`
	AdsetID    string `json:"adset_id,omitempty"`
	AdID       string `json:"ad_id,omitempty"`
	Placement  string `json:"placement,omitempty"`
	GClid      string `json:"gclid,omitempty"`

	Referrer    string `json:"referrer,omitempty"`
	LandingPage string `json:"landing_page,omitempty"`
	DeviceType  string `json:"device_type,omitempty"`
	Language    string `json:"language,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
}

// === Requests ===

// CheckoutRequest is the payload that begins a checkout attempt.
// PromotionalTotal is the discounted cart total already decided by the
// promotion-eligibility rules in the storefront; shipping is added on top.
type CheckoutRequest struct {
	Lines              []CartLine       `json:"lines"`
	Shipping           ShippingInfo     `json:"shipping"`
	PromotionalTotal   int64            `json:"promotional_total"` // minor units
	PromotionalSavings int64            `json:"promotional_savings,omitempty"`
	HasBundle          bool             `json:"has_bundle,omitempty"`
	ShippingCost       int64            `json:"shipping_cost,omitempty"`
	ShippingMethod     ShippingMethod   `json:"shipping_method,omitempty"`
	Tracking           *TrackingContext `json:"tracking,omitempty"`
}

// Total returns promotional subtotal plus shipping, in minor units.
func (r *CheckoutRequest) Total() int64 {
	return r.PromotionalTotal + r.ShippingCost
}

// Method returns the shipping method, defaulting to standard.
func (r *CheckoutRequest) Method() ShippingMethod {
	if r.ShippingMethod == "" {
		return ShippingStandard
	}
	return r.ShippingMethod
}
