package shopify

import "storefront-checkout/internal/model"

// LineItem is one order line in Admin REST format.
type LineItem struct {
	VariantID  int64      `json:"variant_id"`
	Quantity   int        `json:"quantity"`
	Title      string     `json:"title"`
	Price      string     `json:"price,omitempty"` // major units, 2 decimals
	Properties []Property `json:"properties,omitempty"`
}

// Property is a line item custom attribute.
type Property struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Address in Admin REST format.
type Address struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address1  string `json:"address1"`
	Address2  string `json:"address2,omitempty"`
	City      string `json:"city"`
	Province  string `json:"province"`
	Zip       string `json:"zip"`
	Country   string `json:"country"`
	Phone     string `json:"phone,omitempty"`
}

// ShippingLine carries the chosen carrier and its cost.
type ShippingLine struct {
	Title string `json:"title"`
	Price string `json:"price"`
	Code  string `json:"code"`
}

// Transaction records the payment against the order. Authorization holds
// the gateway payment reference; it is how the two systems stay linked.
type Transaction struct {
	Kind          string `json:"kind"`
	Status        string `json:"status"`
	Amount        string `json:"amount"`
	Gateway       string `json:"gateway"`
	Authorization string `json:"authorization"`
}

// Customer creates or matches a platform customer record.
type Customer struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone,omitempty"`
}

// NoteAttribute is an order-level custom attribute.
type NoteAttribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Order is the Admin REST order payload for creation and update. On update
// only the non-zero fields are sent.
type Order struct {
	Email                  string                `json:"email,omitempty"`
	LineItems              []LineItem            `json:"line_items,omitempty"`
	ShippingAddress        *Address              `json:"shipping_address,omitempty"`
	BillingAddress         *Address              `json:"billing_address,omitempty"`
	FinancialStatus        model.FinancialStatus `json:"financial_status,omitempty"`
	Tags                   string                `json:"tags,omitempty"`
	Note                   string                `json:"note,omitempty"`
	ShippingLines          []ShippingLine        `json:"shipping_lines,omitempty"`
	Transactions           []Transaction         `json:"transactions,omitempty"`
	SendReceipt            bool                  `json:"send_receipt,omitempty"`
	SendFulfillmentReceipt bool                  `json:"send_fulfillment_receipt,omitempty"`
	Customer               *Customer             `json:"customer,omitempty"`
	NoteAttributes         []NoteAttribute       `json:"note_attributes,omitempty"`
}

// orderRequest and orderEnvelope wrap payloads the way the Admin API does.
type orderRequest struct {
	Order *Order `json:"order"`
}

type orderEnvelope struct {
	Order *orderResource `json:"order"`
}

type ordersEnvelope struct {
	Orders []orderResource `json:"orders"`
}

// orderResource is the platform's representation of a created order.
type orderResource struct {
	ID              int64                 `json:"id"`
	Name            string                `json:"name"`
	OrderNumber     int64                 `json:"order_number"`
	Email           string                `json:"email"`
	TotalPrice      string                `json:"total_price"`
	FinancialStatus model.FinancialStatus `json:"financial_status"`
	Tags            string                `json:"tags"`
	Note            string                `json:"note"`
	CreatedAt       string                `json:"created_at"`
	OrderStatusURL  string                `json:"order_status_url"`
}

func (o *orderResource) pending() *model.PendingOrder {
	return &model.PendingOrder{
		ID:              o.ID,
		Name:            o.Name,
		OrderNumber:     o.OrderNumber,
		Email:           o.Email,
		TotalPrice:      o.TotalPrice,
		FinancialStatus: o.FinancialStatus,
	}
}
