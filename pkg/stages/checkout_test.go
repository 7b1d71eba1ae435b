package stages

import (
	"context"
	"errors"
	"testing"
	"time"
)

func checkoutFixture() (*LocalCheckout, Candidate, PaymentFields) {
	checkout := NewLocalCheckout(DefaultCheckoutConfig())
	checkout.now = func() time.Time {
		return time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	candidate := Candidate{ID: "c1", Vendor: "AcmeDirect", Title: "Acme Bottle", PriceUSD: 25}
	payment := PaymentFields{CardNumber: "4242 4242 4242 4242", ExpiryMMYY: "12/30", CVV: "123"}
	return checkout, candidate, payment
}

func paymentReason(t *testing.T, err error) string {
	t.Helper()
	var payErr *PaymentError
	if !errors.As(err, &payErr) {
		t.Fatalf("err = %v, want *PaymentError", err)
	}
	return payErr.Reason
}

func TestLocalCheckout_Pay(t *testing.T) {
	checkout, candidate, payment := checkoutFixture()

	receipt, err := checkout.Pay(context.Background(), candidate, payment, "key-1")
	if err != nil {
		t.Fatalf("Pay failed: %v", err)
	}
	if receipt.AmountUSD != 25 {
		t.Errorf("AmountUSD = %v, want 25", receipt.AmountUSD)
	}
	if receipt.CardBrand != "visa" {
		t.Errorf("CardBrand = %q, want visa", receipt.CardBrand)
	}
	if receipt.MaskedCard != "************4242" {
		t.Errorf("MaskedCard = %q", receipt.MaskedCard)
	}
	if receipt.IdempotencyKey != "key-1" {
		t.Errorf("IdempotencyKey = %q, want key-1", receipt.IdempotencyKey)
	}
	if receipt.OrderID == "" {
		t.Error("OrderID empty")
	}
}

func TestLocalCheckout_IdempotentPerKey(t *testing.T) {
	checkout, candidate, payment := checkoutFixture()

	first, err := checkout.Pay(context.Background(), candidate, payment, "key-1")
	if err != nil {
		t.Fatalf("first Pay failed: %v", err)
	}
	second, err := checkout.Pay(context.Background(), candidate, payment, "key-1")
	if err != nil {
		t.Fatalf("second Pay failed: %v", err)
	}
	if first != second {
		t.Error("repeated key did not replay the stored receipt")
	}

	third, err := checkout.Pay(context.Background(), candidate, payment, "key-2")
	if err != nil {
		t.Fatalf("third Pay failed: %v", err)
	}
	if third == first {
		t.Error("distinct key replayed another charge's receipt")
	}
}

func TestLocalCheckout_DerivedKeyWhenEmpty(t *testing.T) {
	checkout, candidate, payment := checkoutFixture()

	first, err := checkout.Pay(context.Background(), candidate, payment, "")
	if err != nil {
		t.Fatalf("Pay failed: %v", err)
	}
	if first.IdempotencyKey == "" {
		t.Fatal("derived key not set on receipt")
	}
	second, err := checkout.Pay(context.Background(), candidate, payment, "")
	if err != nil {
		t.Fatalf("second Pay failed: %v", err)
	}
	if first != second {
		t.Error("identical charge with derived keys was not deduplicated")
	}
}

func TestLocalCheckout_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		candidate  Candidate
		payment    PaymentFields
		wantReason string
	}{
		{
			name:       "blocked vendor",
			candidate:  Candidate{ID: "c1", Vendor: "ScamSupply", PriceUSD: 25},
			payment:    PaymentFields{CardNumber: "4242424242424242", ExpiryMMYY: "12/30", CVV: "123"},
			wantReason: "vendor not allowed",
		},
		{
			name:       "over amount cap",
			candidate:  Candidate{ID: "c1", Vendor: "AcmeDirect", PriceUSD: 9000},
			payment:    PaymentFields{CardNumber: "4242424242424242", ExpiryMMYY: "12/30", CVV: "123"},
			wantReason: "amount exceeds checkout limit",
		},
		{
			name:       "zero amount offer",
			candidate:  Candidate{ID: "c1", Vendor: "AcmeDirect", PriceUSD: 0},
			payment:    PaymentFields{CardNumber: "4242424242424242", ExpiryMMYY: "12/30", CVV: "123"},
			wantReason: "invalid offer amount",
		},
		{
			name:       "card too short",
			candidate:  Candidate{ID: "c1", Vendor: "AcmeDirect", PriceUSD: 25},
			payment:    PaymentFields{CardNumber: "4242", ExpiryMMYY: "12/30", CVV: "123"},
			wantReason: "card number too short",
		},
		{
			name:       "luhn failure",
			candidate:  Candidate{ID: "c1", Vendor: "AcmeDirect", PriceUSD: 25},
			payment:    PaymentFields{CardNumber: "4242424242424241", ExpiryMMYY: "12/30", CVV: "123"},
			wantReason: "invalid card number",
		},
		{
			name:       "bad expiry format",
			candidate:  Candidate{ID: "c1", Vendor: "AcmeDirect", PriceUSD: 25},
			payment:    PaymentFields{CardNumber: "4242424242424242", ExpiryMMYY: "13/30", CVV: "123"},
			wantReason: "invalid expiry",
		},
		{
			name:       "expired card",
			candidate:  Candidate{ID: "c1", Vendor: "AcmeDirect", PriceUSD: 25},
			payment:    PaymentFields{CardNumber: "4242424242424242", ExpiryMMYY: "12/20", CVV: "123"},
			wantReason: "card expired",
		},
		{
			name:       "bad cvv",
			candidate:  Candidate{ID: "c1", Vendor: "AcmeDirect", PriceUSD: 25},
			payment:    PaymentFields{CardNumber: "4242424242424242", ExpiryMMYY: "12/30", CVV: "12"},
			wantReason: "invalid cvv",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkout, _, _ := checkoutFixture()
			_, err := checkout.Pay(context.Background(), tt.candidate, tt.payment, "")
			if got := paymentReason(t, err); got != tt.wantReason {
				t.Errorf("reason = %q, want %q", got, tt.wantReason)
			}
		})
	}
}

func TestLocalCheckout_VelocityLock(t *testing.T) {
	checkout, candidate, _ := checkoutFixture()
	badPayment := PaymentFields{CardNumber: "4242424242424242", ExpiryMMYY: "12/30", CVV: "12"}

	// Each rejection past the structural checks counts against the card.
	for i := 0; i <= DefaultCheckoutConfig().VelocityThreshold; i++ {
		if _, err := checkout.Pay(context.Background(), candidate, badPayment, ""); err == nil {
			t.Fatal("bad cvv accepted")
		}
	}

	goodPayment := PaymentFields{CardNumber: "4242424242424242", ExpiryMMYY: "12/30", CVV: "123"}
	_, err := checkout.Pay(context.Background(), candidate, goodPayment, "")
	if got := paymentReason(t, err); got != "card flagged for excessive failed attempts" {
		t.Errorf("reason = %q, want velocity lock", got)
	}
}

func TestLocalCheckout_SuccessResetsFailureCount(t *testing.T) {
	checkout, candidate, payment := checkoutFixture()
	badPayment := payment
	badPayment.CVV = "12"

	for i := 0; i < 3; i++ {
		if _, err := checkout.Pay(context.Background(), candidate, badPayment, ""); err == nil {
			t.Fatal("bad cvv accepted")
		}
	}
	if _, err := checkout.Pay(context.Background(), candidate, payment, ""); err != nil {
		t.Fatalf("Pay after failures failed: %v", err)
	}

	checkout.mu.Lock()
	count := checkout.failures[CardDigits(payment.CardNumber)]
	checkout.mu.Unlock()
	if count != 0 {
		t.Errorf("failure count = %d after success, want 0", count)
	}
}
