package shopify

import (
	"strings"

	"storefront-checkout/internal/mapping"
	"storefront-checkout/internal/model"
)

// Gateway identifier recorded on order transactions and annotations.
const gatewayName = "dlocal_go"

// PaymentRefMarker is the note line that links an order back to its
// payment session. Both the journal fallback scan and fulfillment staff
// rely on this exact text.
func PaymentRefMarker(paymentID string) string {
	return "Payment ID: " + paymentID
}

// OrderParams collects everything needed to build the pending order payload.
type OrderParams struct {
	Request   *model.CheckoutRequest
	Lines     []mapping.MappedLine
	PaymentID string
	Paid      bool // true only for replays of already-confirmed payments
}

// BuildOrder assembles the Admin REST order payload for a checkout attempt.
// The order is written before the buyer pays, so everything the store needs
// to recover a lost session is on the record: the payment reference in the
// note, a pending transaction, and the awaiting tags.
func BuildOrder(p OrderParams) *Order {
	req := p.Request

	lineItems := make([]LineItem, 0, len(p.Lines))
	for _, l := range p.Lines {
		item := LineItem{
			VariantID: l.VariantID,
			Quantity:  l.Quantity,
			Title:     l.Title,
			Price:     l.Price,
		}
		for _, a := range l.Attributes {
			item.Properties = append(item.Properties, Property{Name: a.Key, Value: a.Value})
		}
		lineItems = append(lineItems, item)
	}

	addr := &Address{
		FirstName: req.Shipping.FirstName,
		LastName:  req.Shipping.LastName,
		Address1:  req.Shipping.Address1,
		Address2:  req.Shipping.Address2,
		City:      req.Shipping.City,
		Province:  req.Shipping.Province,
		Zip:       req.Shipping.Zip,
		Country:   req.Shipping.Country,
		Phone:     req.Shipping.Phone,
	}

	financial := model.FinancialPending
	txStatus := "pending"
	if p.Paid {
		financial = model.FinancialPaid
		txStatus = "success"
	}

	customer := &Customer{
		Email:     req.Shipping.Email,
		FirstName: req.Shipping.FirstName,
		LastName:  req.Shipping.LastName,
	}
	if phone := strings.TrimSpace(req.Shipping.Phone); phone != "" {
		customer.Phone = phone
	}

	return &Order{
		Email:           req.Shipping.Email,
		LineItems:       lineItems,
		ShippingAddress: addr,
		BillingAddress:  addr,
		FinancialStatus: financial,
		Tags:            orderTags(req.HasBundle),
		Note:            pendingNote(req, p.PaymentID),
		ShippingLines: []ShippingLine{{
			Title: req.Method().CarrierName(),
			Price: model.FormatCents(req.ShippingCost),
			Code:  req.Method().Code(),
		}},
		Transactions: []Transaction{{
			Kind:          "sale",
			Status:        txStatus,
			Amount:        model.FormatCents(req.Total()),
			Gateway:       gatewayName,
			Authorization: p.PaymentID,
		}},
		SendReceipt:            p.Paid,
		SendFulfillmentReceipt: p.Paid,
		Customer:               customer,
		NoteAttributes:         noteAttributes(p.PaymentID, req.Tracking),
	}
}

// orderTags builds the comma-joined tag list for a new pending order.
func orderTags(hasBundle bool) string {
	tags := []string{"dlocal", "pending_payment", "awaiting_payment"}
	if hasBundle {
		tags = append(tags, "pack_promocional")
	}
	return strings.Join(tags, ",")
}

// pendingNote builds the staff-facing note for a pending order. The
// payment reference line must survive edits verbatim.
func pendingNote(req *model.CheckoutRequest, paymentID string) string {
	var b strings.Builder
	b.WriteString("PENDING payment - awaiting customer payment via dLocal Go.\n")
	b.WriteString("Do not ship until payment is confirmed.\n\n")
	b.WriteString(PaymentRefMarker(paymentID) + "\n")
	b.WriteString("Status: PENDING\n")
	b.WriteString("Amount: ARS $" + model.FormatCents(req.Total()) + "\n")
	if req.HasBundle && req.PromotionalSavings > 0 {
		b.WriteString("Promo: pack promocional - ahorro ARS $" + model.FormatCents(req.PromotionalSavings) + "\n")
	}
	b.WriteString("Envío: ARS $" + model.FormatCents(req.ShippingCost) + " (" + req.Method().CarrierName() + ")\n")
	return b.String()
}

// noteAttributes converts the attribution context into order annotations.
// All values are opaque to reconciliation.
func noteAttributes(paymentID string, t *model.TrackingContext) []NoteAttribute {
	attrs := []NoteAttribute{
		{Name: "payment_method", Value: gatewayName},
		{Name: "dlocal_payment_id", Value: paymentID},
	}
	if t == nil {
		return attrs
	}

	add := func(name, value string) {
		if value != "" {
			attrs = append(attrs, NoteAttribute{Name: name, Value: value})
		}
	}

	add("session_id", t.SessionID)
	add("client_id", t.ClientID)
	add("utm_source", t.UTMSource)
	add("utm_medium", t.UTMMedium)
	add("utm_campaign", t.UTMCampaign)
	add("utm_content", t.UTMContent)
	add("utm_term", t.UTMTerm)
	add("fbclid", t.FBClid)
	add("fbc", t.FBC)
	add("fbp", t.FBP)
	add("fb_campaign_id", t.CampaignID)
	add("fb_adset_id", t.AdsetID)
	add("fb_ad_id", t.AdID)
	add("fb_placement", t.Placement)
	add("gclid", t.GClid)
	add("referrer", t.Referrer)
	add("landing_page", t.LandingPage)
	add("device_type", t.DeviceType)
	add("language", t.Language)
	add("timezone", t.Timezone)
	return attrs
}
