package stages

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"
)

// PaymentError is a domain rejection from the checkout stage, distinct from
// infrastructure failures: the saga treats it as non-recoverable client input.
type PaymentError struct {
	Reason string
}

func (e *PaymentError) Error() string { return "payment rejected: " + e.Reason }

// CheckoutConfig bounds what the local checkout stage will accept.
type CheckoutConfig struct {
	MaxAmountUSD      float64
	BlockedVendors    []string
	VelocityThreshold int
}

// DefaultCheckoutConfig mirrors the limits the payment backend enforces.
func DefaultCheckoutConfig() CheckoutConfig {
	return CheckoutConfig{
		MaxAmountUSD:      5000,
		BlockedVendors:    []string{"FraudCo", "ScamSupply", "UnknownMart"},
		VelocityThreshold: 5,
	}
}

// LocalCheckout validates payment fields and issues receipts with
// at-most-once semantics per idempotency key.
type LocalCheckout struct {
	cfg     CheckoutConfig
	blocked map[string]struct{}

	mu       sync.Mutex
	receipts map[string]*Receipt
	failures map[string]int

	// now is swapped in tests to pin expiry checks.
	now func() time.Time
}

// NewLocalCheckout creates the local checkout stage.
func NewLocalCheckout(cfg CheckoutConfig) *LocalCheckout {
	blocked := make(map[string]struct{}, len(cfg.BlockedVendors))
	for _, v := range cfg.BlockedVendors {
		blocked[v] = struct{}{}
	}
	return &LocalCheckout{
		cfg:      cfg,
		blocked:  blocked,
		receipts: make(map[string]*Receipt),
		failures: make(map[string]int),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Pay implements Checkout.
func (c *LocalCheckout) Pay(_ context.Context, candidate Candidate, payment PaymentFields, idempotencyKey string) (*Receipt, error) {
	if err := c.validateOffer(candidate); err != nil {
		return nil, err
	}

	digits := CardDigits(payment.CardNumber)
	if len(digits) < 13 {
		return nil, &PaymentError{Reason: "card number too short"}
	}
	brand := DetectCardBrand(digits)
	if !ValidCardLength(digits, brand) {
		return nil, c.fail(digits, "invalid card length")
	}

	c.mu.Lock()
	tooManyFailures := c.failures[digits] > c.cfg.VelocityThreshold
	c.mu.Unlock()
	if tooManyFailures {
		return nil, &PaymentError{Reason: "card flagged for excessive failed attempts"}
	}

	if !ValidExpiry(payment.ExpiryMMYY) {
		return nil, c.fail(digits, "invalid expiry")
	}
	if !ExpiryInFuture(payment.ExpiryMMYY, c.now()) {
		return nil, c.fail(digits, "card expired")
	}
	if !LuhnCheck(digits) {
		return nil, c.fail(digits, "invalid card number")
	}
	if !ValidCVV(payment.CVV) {
		return nil, c.fail(digits, "invalid cvv")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[digits] = 0

	masked := MaskCard(digits)
	calcKey := chargeFingerprint(candidate, masked, brand)
	if idempotencyKey == "" {
		idempotencyKey = calcKey
	}
	if existing, ok := c.receipts[idempotencyKey]; ok {
		return existing, nil
	}

	receipt := &Receipt{
		OrderID:        calcKey[:12],
		IdempotencyKey: idempotencyKey,
		AmountUSD:      candidate.PriceUSD,
		Vendor:         candidate.Vendor,
		CardBrand:      brand,
		MaskedCard:     masked,
	}
	c.receipts[idempotencyKey] = receipt
	return receipt, nil
}

func (c *LocalCheckout) validateOffer(candidate Candidate) error {
	if candidate.PriceUSD <= 0 {
		return &PaymentError{Reason: "invalid offer amount"}
	}
	if c.cfg.MaxAmountUSD > 0 && candidate.PriceUSD > c.cfg.MaxAmountUSD {
		return &PaymentError{Reason: "amount exceeds checkout limit"}
	}
	if _, ok := c.blocked[candidate.Vendor]; ok {
		return &PaymentError{Reason: "vendor not allowed"}
	}
	return nil
}

func (c *LocalCheckout) fail(digits, reason string) error {
	c.mu.Lock()
	c.failures[digits]++
	c.mu.Unlock()
	return &PaymentError{Reason: reason}
}

// chargeFingerprint hashes the canonical charge payload. It seeds both the
// order id and the derived idempotency key.
func chargeFingerprint(candidate Candidate, maskedCard, brand string) string {
	payload, _ := json.Marshal(map[string]any{
		"vendor":    candidate.Vendor,
		"title":     candidate.Title,
		"amount":    candidate.PriceUSD,
		"card":      maskedCard,
		"card_type": brand,
	})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
