// Package stages defines the collaborator contracts the purchase saga
// orchestrates: vision capture, intent confirmation, offer sourcing, trust
// assessment and checkout. Implementations may be local heuristics or remote
// services; the engine is agnostic to which is bound.
package stages

import "fmt"

// Hypothesis is the structured result of the capture stage.
type Hypothesis struct {
	Label      string  `json:"label"`
	Brand      string  `json:"brand,omitempty"`
	Color      string  `json:"color,omitempty"`
	Category   string  `json:"category,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Intent is the confirmed purchase intent derived from a hypothesis and
// optional user text.
type Intent struct {
	Item      string  `json:"item"`
	Color     string  `json:"color,omitempty"`
	Brand     string  `json:"brand,omitempty"`
	Quantity  int     `json:"quantity"`
	BudgetUSD float64 `json:"budget_usd,omitempty"`
}

// Candidate is one sourced offer eligible for selection and purchase.
type Candidate struct {
	ID              string            `json:"id"`
	Vendor          string            `json:"vendor"`
	Title           string            `json:"title"`
	PriceUSD        float64           `json:"price_usd"`
	ShippingETADays int               `json:"shipping_eta_days"`
	URL             string            `json:"url,omitempty"`
	Score           float64           `json:"score"`
	Attributes      map[string]string `json:"attributes,omitempty"`
}

// RiskTier is the coarse trust classification driving compensation and
// checkout gating. The ordering low < medium < high is load-bearing: a
// substitute must assess strictly safer than the current verdict.
type RiskTier int

const (
	RiskLow RiskTier = iota
	RiskMedium
	RiskHigh
)

// String returns the wire form of the tier.
func (t RiskTier) String() string {
	switch t {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t RiskTier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *RiskTier) UnmarshalText(b []byte) error {
	switch string(b) {
	case "low":
		*t = RiskLow
	case "medium":
		*t = RiskMedium
	case "high":
		*t = RiskHigh
	default:
		return fmt.Errorf("unknown risk tier %q", string(b))
	}
	return nil
}

// RiskAssessment is the trust stage verdict for one candidate.
type RiskAssessment struct {
	CandidateID   string   `json:"candidate_id"`
	Vendor        string   `json:"vendor"`
	Tier          RiskTier `json:"tier"`
	TLS           bool     `json:"tls"`
	DomainAgeDays int      `json:"domain_age_days"`
	PolicyPages   bool     `json:"policy_pages"`
	Evidence      []string `json:"evidence,omitempty"`
	Notes         string   `json:"notes,omitempty"`
}

// PaymentFields carries raw payment input. Validation happens in the checkout
// stage; tags cover the structural checks shared with the API layer.
type PaymentFields struct {
	CardNumber string  `json:"card_number" validate:"required,min=13"`
	ExpiryMMYY string  `json:"expiry_mm_yy" validate:"required"`
	CVV        string  `json:"cvv" validate:"required,len=3,numeric"`
	AmountUSD  float64 `json:"amount_usd" validate:"gte=0"`
}

// Receipt is the terminal payment confirmation.
type Receipt struct {
	OrderID        string  `json:"order_id"`
	IdempotencyKey string  `json:"idempotency_key"`
	AmountUSD      float64 `json:"amount_usd"`
	Vendor         string  `json:"vendor,omitempty"`
	CardBrand      string  `json:"card_brand,omitempty"`
	MaskedCard     string  `json:"masked_card,omitempty"`
}

// ImageInput is the capture stage input. Name is optional metadata some
// backends use; Bytes is the raw image.
type ImageInput struct {
	Name  string `json:"name,omitempty"`
	Bytes []byte `json:"bytes,omitempty"`
}

// TokenUsage is reported by stages whose backing implementation consumes
// model tokens. Local heuristics report zero usage.
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
}

// Total returns the combined token count.
func (u TokenUsage) Total() int { return u.Prompt + u.Completion }
