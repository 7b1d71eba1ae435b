package saga

import (
	"context"
	"sort"
	"time"

	"github.com/snapbuy/snapbuy/pkg/stages"
)

// CompensationPolicy bounds the substitute search that runs when the trust
// verdict on the selected candidate is not acceptable.
type CompensationPolicy struct {
	// MaxCompensations is the hard cap on substitutions per run.
	MaxCompensations int
	// TopK limits how many alternatives are re-assessed per iteration.
	TopK int
	// PriceWindowPct admits alternatives priced up to this percentage above
	// the currently selected candidate.
	PriceWindowPct float64
	// ExtraLatencyBudget is wall-clock time the scan may spend on
	// re-assessments before it truncates and keeps the current selection.
	ExtraLatencyBudget time.Duration
}

// DefaultCompensationPolicy mirrors the engine defaults.
func DefaultCompensationPolicy() CompensationPolicy {
	return CompensationPolicy{
		MaxCompensations:   3,
		TopK:               3,
		PriceWindowPct:     10,
		ExtraLatencyBudget: 500 * time.Millisecond,
	}
}

// Decision is the policy's verdict for one compensation iteration.
type Decision struct {
	// Keep is true when no acceptable substitute was found and the current
	// selection stands.
	Keep bool
	// Truncated is true when the scan stopped early on the latency budget.
	Truncated bool
	// Substitute and SubstituteRisk carry the replacement when Keep is false.
	Substitute     stages.Candidate
	SubstituteRisk *stages.RiskAssessment
	// Assessed counts re-assessments performed this iteration.
	Assessed int
}

// AssessFunc re-runs the trust stage for one alternative. The engine supplies
// it so every re-check lands in the run's timeline like any other attempt.
type AssessFunc func(ctx context.Context, candidate stages.Candidate) (*stages.RiskAssessment, error)

// Decide scans the cheapest in-window alternatives for one strictly safer
// than the current selection. Only low and medium tier substitutes are ever
// accepted; a high-risk alternative can never replace anything.
func (p CompensationPolicy) Decide(ctx context.Context, state *RunState, assess AssessFunc) (Decision, error) {
	selected, ok := state.SelectedCandidate()
	if !ok {
		return Decision{Keep: true}, ErrInvalidReference
	}
	if state.CompensationCount >= p.MaxCompensations {
		// The engine stops the loop before this point; reaching it means a
		// caller bug.
		return Decision{Keep: true}, ErrCompensationBound
	}
	if state.Risk == nil {
		return Decision{Keep: true}, nil
	}
	currentTier := state.Risk.Tier

	alternatives := p.shortlist(state.Candidates, selected)
	deadline := time.Now().Add(p.ExtraLatencyBudget)

	var decision Decision
	for _, alt := range alternatives {
		if decision.Assessed >= p.TopK {
			break
		}
		if time.Now().After(deadline) {
			decision.Keep = true
			decision.Truncated = true
			return decision, nil
		}
		assessment, err := assess(ctx, alt)
		decision.Assessed++
		if err != nil {
			continue
		}
		if assessment.Tier < currentTier && assessment.Tier <= stages.RiskMedium {
			decision.Substitute = alt
			decision.SubstituteRisk = assessment
			return decision, nil
		}
	}
	decision.Keep = true
	return decision, nil
}

// shortlist filters to in-window alternatives and orders them cheapest
// first, earlier delivery breaking ties.
func (p CompensationPolicy) shortlist(candidates []stages.Candidate, selected stages.Candidate) []stages.Candidate {
	ceiling := selected.PriceUSD * (1 + p.PriceWindowPct/100)
	out := make([]stages.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.ID == selected.ID {
			continue
		}
		if c.PriceUSD > ceiling {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PriceUSD != out[j].PriceUSD {
			return out[i].PriceUSD < out[j].PriceUSD
		}
		return out[i].ShippingETADays < out[j].ShippingETADays
	})
	return out
}
