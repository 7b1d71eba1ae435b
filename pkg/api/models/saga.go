package models

import "time"

// RunSubmitRequest describes a purchase run submission payload. The image is
// base64 encoded; payment fields are required unless preview is requested.
type RunSubmitRequest struct {
	ImageName            string          `json:"image_name" validate:"required,min=1,max=255"`
	ImageBase64          string          `json:"image_base64,omitempty"`
	UserText             string          `json:"user_text,omitempty" validate:"omitempty,max=2000"`
	PreferredCandidateID string          `json:"preferred_candidate_id,omitempty" validate:"omitempty,max=128"`
	Payment              *PaymentRequest `json:"payment,omitempty"`
	IdempotencyKey       string          `json:"idempotency_key,omitempty" validate:"omitempty,min=8,max=128"`
}

// PaymentRequest carries card details for checkout.
type PaymentRequest struct {
	CardNumber string  `json:"card_number" validate:"required,min=13,max=23"`
	ExpiryMMYY string  `json:"expiry" validate:"required,len=5"`
	CVV        string  `json:"cvv" validate:"required,len=3"`
	AmountUSD  float64 `json:"amount_usd,omitempty" validate:"omitempty,gt=0"`
}

// EventView is one timeline entry in a run response.
type EventView struct {
	Stage      string    `json:"stage"`
	Timestamp  time.Time `json:"timestamp"`
	Outcome    string    `json:"outcome"`
	DurationMS float64   `json:"duration_ms"`
	Detail     string    `json:"detail,omitempty"`
}

// MessageView is one inter-stage message in a run response.
type MessageView struct {
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// CandidateView is one sourced offer in a run response.
type CandidateView struct {
	ID              string  `json:"id"`
	Vendor          string  `json:"vendor"`
	Title           string  `json:"title"`
	PriceUSD        float64 `json:"price_usd"`
	ShippingETADays int     `json:"shipping_eta_days"`
	Selected        bool    `json:"selected"`
}

// RiskView is the trust verdict in a run response.
type RiskView struct {
	CandidateID string   `json:"candidate_id"`
	Vendor      string   `json:"vendor"`
	Tier        string   `json:"tier"`
	Evidence    []string `json:"evidence,omitempty"`
}

// ReceiptView is the settled payment in a run response.
type ReceiptView struct {
	OrderID        string  `json:"order_id"`
	IdempotencyKey string  `json:"idempotency_key"`
	AmountUSD      float64 `json:"amount_usd"`
	Vendor         string  `json:"vendor"`
	CardBrand      string  `json:"card_brand"`
	MaskedCard     string  `json:"masked_card"`
}

// RunResponse returns full runtime information for one run.
type RunResponse struct {
	RunID             string          `json:"run_id"`
	Phase             string          `json:"phase"`
	HypothesisLabel   string          `json:"hypothesis_label,omitempty"`
	IntentItem        string          `json:"intent_item,omitempty"`
	Candidates        []CandidateView `json:"candidates,omitempty"`
	Risk              *RiskView       `json:"risk,omitempty"`
	Receipt           *ReceiptView    `json:"receipt,omitempty"`
	Events            []EventView     `json:"events"`
	Messages          []MessageView   `json:"messages,omitempty"`
	CompensationCount int             `json:"compensation_count"`
	FailedStage       string          `json:"failed_stage,omitempty"`
	AbortReason       string          `json:"abort_reason,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
}

// RunSummary is one row in a list response.
type RunSummary struct {
	RunID             string     `json:"run_id"`
	Phase             string     `json:"phase"`
	IntentItem        string     `json:"intent_item,omitempty"`
	CompensationCount int        `json:"compensation_count"`
	CreatedAt         time.Time  `json:"created_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}

// RunListResponse is a paginated list of run summaries.
type RunListResponse struct {
	Items  []RunSummary `json:"items"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// StageStatsView aggregates one stage's attempt outcomes and latency.
type StageStatsView struct {
	OK    int     `json:"ok"`
	Err   int     `json:"err"`
	AvgMS float64 `json:"avg_ms"`
	P95MS float64 `json:"p95_ms"`
}

// BudgetView is the token accounting for one stage.
type BudgetView struct {
	Prompt     int `json:"prompt_tokens"`
	Completion int `json:"completion_tokens"`
	Calls      int `json:"calls"`
	Used       int `json:"used"`
	Cap        int `json:"cap"`
}

// StatsResponse aggregates stage outcomes, latency, and token spend.
type StatsResponse struct {
	Stages  map[string]StageStatsView `json:"stages"`
	Budgets map[string]BudgetView     `json:"budgets,omitempty"`
	Dropped int                       `json:"dropped_trace_entries"`
}
