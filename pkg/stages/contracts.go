package stages

import "context"

// Vision turns an image into a product hypothesis.
type Vision interface {
	Capture(ctx context.Context, image ImageInput) (*Hypothesis, error)
}

// IntentConfirmer turns a hypothesis plus optional user text into a purchase
// intent.
type IntentConfirmer interface {
	Confirm(ctx context.Context, hypothesis *Hypothesis, userText string) (*Intent, error)
}

// Sourcing returns an ordered sequence of candidates for an intent, best
// first.
type Sourcing interface {
	Source(ctx context.Context, intent *Intent) ([]Candidate, error)
}

// Trust assesses one candidate.
type Trust interface {
	Assess(ctx context.Context, candidate Candidate) (*RiskAssessment, error)
}

// Checkout charges the payment for one candidate. Implementations must be
// idempotent per key: a repeated call with the same key returns the stored
// receipt without a second charge.
type Checkout interface {
	Pay(ctx context.Context, candidate Candidate, payment PaymentFields, idempotencyKey string) (*Receipt, error)
}

// Set bundles one implementation per stage. The engine pulls a run through
// these in order.
type Set struct {
	Vision   Vision
	Intent   IntentConfirmer
	Sourcing Sourcing
	Trust    Trust
	Checkout Checkout
}
