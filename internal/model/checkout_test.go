package model

import "testing"

func TestCustomizationValidate(t *testing.T) {
	num := func(n int) *int { return &n }

	tests := []struct {
		name    string
		c       *Customization
		wantErr bool
	}{
		{"nil", nil, false},
		{"name only", &Customization{Name: "MESSI"}, false},
		{"max length name", &Customization{Name: "ABCDEFGHIJKLMNO"}, false},
		{"too long name", &Customization{Name: "ABCDEFGHIJKLMNOP"}, true},
		{"number in range", &Customization{Number: num(10)}, false},
		{"number zero", &Customization{Number: num(0)}, false},
		{"number 99", &Customization{Number: num(99)}, false},
		{"number 100", &Customization{Number: num(100)}, true},
		{"negative number", &Customization{Number: num(-1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAttemptStatusTerminal(t *testing.T) {
	terminal := []AttemptStatus{StatusSuccess, StatusFailed, StatusPendingConfirmation, StatusCancelled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}

	live := []AttemptStatus{StatusIdle, StatusCreatingOrder, StatusOpeningPayment, StatusPolling, StatusUpdatingOrder}
	for _, s := range live {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestPaymentStatusSuccessful(t *testing.T) {
	if !PaymentPaid.Successful() || !PaymentAuthorized.Successful() {
		t.Error("PAID and AUTHORIZED must count as successful")
	}
	for _, s := range []PaymentStatus{PaymentPending, PaymentRejected, PaymentCancelled} {
		if s.Successful() {
			t.Errorf("%s should not be successful", s)
		}
	}
	if PaymentPending.Terminal() {
		t.Error("PENDING is not terminal")
	}
	if !PaymentRejected.Terminal() || !PaymentCancelled.Terminal() {
		t.Error("REJECTED and CANCELLED are terminal")
	}
}

func TestShippingMethod(t *testing.T) {
	if got := ShippingExpress.CarrierName(); got != "Transporte Privado UltraExpress" {
		t.Errorf("express carrier = %q", got)
	}
	if got := ShippingStandard.CarrierName(); got != "Correo Argentino" {
		t.Errorf("standard carrier = %q", got)
	}
	if ShippingExpress.Code() != "EXPRESS" || ShippingFree.Code() != "STANDARD" {
		t.Error("shipping codes wrong")
	}
}

func TestCheckoutRequestDefaults(t *testing.T) {
	r := &CheckoutRequest{PromotionalTotal: 10000, ShippingCost: 500}
	if r.Total() != 10500 {
		t.Errorf("Total() = %d, want 10500", r.Total())
	}
	if r.Method() != ShippingStandard {
		t.Errorf("Method() = %s, want standard default", r.Method())
	}
	r.ShippingMethod = ShippingExpress
	if r.Method() != ShippingExpress {
		t.Errorf("Method() = %s, want express", r.Method())
	}
}
