// Package budget tracks per-stage token usage and enforces spend caps before
// model-backed stage calls. Counters are shared across runs and guarded for
// concurrent updates.
package budget

import (
	"sync"
)

// Stage names mirror the saga stages that can consume tokens.
const (
	StageCapture  = "capture"
	StageConfirm  = "confirm"
	StageSourcing = "sourcing"
	StageTrust    = "trust"
	StageCheckout = "checkout"
)

// Role distinguishes prompt from completion spend.
type Role string

const (
	RolePrompt     Role = "prompt"
	RoleCompletion Role = "completion"
)

// Action is the configured reaction when a planned call would exceed the cap.
type Action string

const (
	ActionOK       Action = "ok"
	ActionWarn     Action = "warn"
	ActionTruncate Action = "truncate"
	ActionFallback Action = "fallback"
	ActionBlock    Action = "block"
)

// StageBudget carries the estimated and maximum token spend for one stage.
type StageBudget struct {
	EstTokens int `json:"est_tokens"`
	CapTokens int `json:"cap_tokens"`
}

// Config configures the registry.
type Config struct {
	Policy Action
	Stages map[string]StageBudget
}

// DefaultConfig returns the stock per-stage budgets.
func DefaultConfig() Config {
	return Config{
		Policy: ActionTruncate,
		Stages: map[string]StageBudget{
			StageCapture:  {EstTokens: 400, CapTokens: 800},
			StageConfirm:  {EstTokens: 700, CapTokens: 1000},
			StageSourcing: {EstTokens: 1100, CapTokens: 1500},
			StageTrust:    {EstTokens: 900, CapTokens: 1200},
			StageCheckout: {EstTokens: 400, CapTokens: 800},
		},
	}
}

// StageUsage is a snapshot of one stage's counters.
type StageUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Calls      int `json:"calls"`
	Used       int `json:"used"`
	Cap        int `json:"cap"`
}

// UsageRecorder receives every charge as it lands, e.g. a Prometheus
// token counter.
type UsageRecorder interface {
	RecordTokens(stage, role string, tokens int)
}

// Registry is the process-wide token budget registry.
type Registry struct {
	policy  Action
	budgets map[string]StageBudget

	mu       sync.Mutex
	used     map[string]int
	per      map[string]*StageUsage
	recorder UsageRecorder
}

// NewRegistry creates a registry from config. A zero-value config enforces
// nothing but still counts usage.
func NewRegistry(cfg Config) *Registry {
	if cfg.Policy == "" {
		cfg.Policy = ActionWarn
	}
	budgets := make(map[string]StageBudget, len(cfg.Stages))
	for stage, b := range cfg.Stages {
		budgets[stage] = b
	}
	return &Registry{
		policy:  cfg.Policy,
		budgets: budgets,
		used:    make(map[string]int),
		per:     make(map[string]*StageUsage),
	}
}

// Policy returns the configured over-budget action.
func (r *Registry) Policy() Action { return r.policy }

// SetRecorder installs a usage recorder notified on every charge. A nil
// recorder turns notification off.
func (r *Registry) SetRecorder(rec UsageRecorder) {
	r.mu.Lock()
	r.recorder = rec
	r.mu.Unlock()
}

// PlannedPromptTokens returns the configured estimate for a stage, used as
// the planned spend when the caller has no better figure.
func (r *Registry) PlannedPromptTokens(stage string) int {
	return r.budgets[stage].EstTokens
}

// Remaining returns the tokens left under the stage cap. Stages without a
// configured cap report a negative remaining, meaning unbounded.
func (r *Registry) Remaining(stage string) int {
	b, ok := r.budgets[stage]
	if !ok || b.CapTokens <= 0 {
		return -1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rem := b.CapTokens - r.used[stage]
	if rem < 0 {
		rem = 0
	}
	return rem
}

// EnforceBeforeCall returns the action to take for a planned spend.
func (r *Registry) EnforceBeforeCall(stage string, plannedTokens int) Action {
	b, ok := r.budgets[stage]
	if !ok || b.CapTokens <= 0 {
		return ActionOK
	}
	r.mu.Lock()
	used := r.used[stage]
	r.mu.Unlock()
	if used+plannedTokens <= b.CapTokens {
		return ActionOK
	}
	return r.policy
}

// Charge records token usage for a stage. Used-against-cap accounting never
// exceeds the cap; the raw counters keep the full figure for reporting.
func (r *Registry) Charge(stage string, role Role, tokens int) {
	if tokens <= 0 {
		return
	}
	r.mu.Lock()

	if b, ok := r.budgets[stage]; ok && b.CapTokens > 0 {
		headroom := b.CapTokens - r.used[stage]
		if headroom < 0 {
			headroom = 0
		}
		if tokens < headroom {
			r.used[stage] += tokens
		} else {
			r.used[stage] += headroom
		}
	} else {
		r.used[stage] += tokens
	}

	usage := r.per[stage]
	if usage == nil {
		usage = &StageUsage{}
		r.per[stage] = usage
	}
	switch role {
	case RolePrompt:
		usage.Prompt += tokens
	case RoleCompletion:
		usage.Completion += tokens
		usage.Calls++
	}
	rec := r.recorder
	r.mu.Unlock()

	// Notified outside the lock; a slow recorder must not stall charges.
	if rec != nil {
		rec.RecordTokens(stage, string(role), tokens)
	}
}

// Snapshot returns a copy of all stage counters.
func (r *Registry) Snapshot() map[string]StageUsage {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]StageUsage, len(r.per))
	for stage, usage := range r.per {
		snap := *usage
		snap.Used = r.used[stage]
		snap.Cap = r.budgets[stage].CapTokens
		out[stage] = snap
	}
	return out
}
