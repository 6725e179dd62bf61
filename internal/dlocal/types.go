package dlocal

import "storefront-checkout/internal/model"

// PaymentRequest is the payload for POST /v1/payments.
// Amount is in whole major currency units, which is how the gateway
// quotes ARS.
type PaymentRequest struct {
	Amount          int64             `json:"amount"`
	Currency        string            `json:"currency"`
	Country         string            `json:"country"`
	OrderID         string            `json:"order_id"`
	Description     string            `json:"description,omitempty"`
	Payer           *Payer            `json:"payer,omitempty"`
	NotificationURL string            `json:"notification_url,omitempty"`
	SuccessURL      string            `json:"success_url,omitempty"`
	BackURL         string            `json:"back_url,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// Payer identifies the paying customer to the gateway.
type Payer struct {
	Name     string        `json:"name"`
	Email    string        `json:"email"`
	Document string        `json:"document,omitempty"`
	Address  *PayerAddress `json:"address,omitempty"`
}

// PayerAddress is the payer's billing/shipping address in gateway format.
type PayerAddress struct {
	State       string `json:"state,omitempty"`
	City        string `json:"city,omitempty"`
	ZipCode     string `json:"zip_code,omitempty"`
	FullAddress string `json:"full_address,omitempty"`
}

// Payment is the gateway's representation of a payment, returned by both
// the create and retrieve endpoints.
type Payment struct {
	ID                string              `json:"id"`
	Status            model.PaymentStatus `json:"status"`
	Amount            float64             `json:"amount"`
	Currency          string              `json:"currency"`
	OrderID           string              `json:"order_id,omitempty"`
	RedirectURL       string              `json:"redirect_url,omitempty"`
	PaymentMethodType string              `json:"payment_method_type,omitempty"`
	Payer             *Payer              `json:"payer,omitempty"`
	CreatedDate       string              `json:"created_date,omitempty"`
}

// WebhookEvent is the notification body the gateway posts to the
// configured notification URL. Older notifications carry the payment ID
// at the top level instead of under data.
type WebhookEvent struct {
	Event     string `json:"event,omitempty"`
	PaymentID string `json:"payment_id,omitempty"`
	Data      *struct {
		ID string `json:"id"`
	} `json:"data,omitempty"`
}

// ID returns the payment identifier regardless of notification shape.
func (e *WebhookEvent) ID() string {
	if e.Data != nil && e.Data.ID != "" {
		return e.Data.ID
	}
	return e.PaymentID
}
