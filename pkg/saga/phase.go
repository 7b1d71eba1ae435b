package saga

import "fmt"

// Phase is one position in the purchase saga lifecycle.
type Phase int

const (
	PhaseCapture Phase = iota
	PhaseConfirm
	PhaseSourcing
	PhaseTrust
	PhaseCompensate
	PhaseCheckout
	PhaseComplete
	PhasePreviewed
	PhaseTimedOut
	PhaseAborted
)

var validPhaseTransitions = map[Phase]map[Phase]struct{}{
	PhaseCapture: {
		PhaseConfirm:  {},
		PhaseTimedOut: {},
		PhaseAborted:  {},
	},
	PhaseConfirm: {
		PhaseSourcing: {},
		PhaseTimedOut: {},
		PhaseAborted:  {},
	},
	PhaseSourcing: {
		PhaseTrust:    {},
		PhaseTimedOut: {},
		PhaseAborted:  {},
	},
	PhaseTrust: {
		PhaseCompensate: {},
		PhaseCheckout:   {},
		PhasePreviewed:  {},
		PhaseTimedOut:   {},
		PhaseAborted:    {},
	},
	PhaseCompensate: {
		PhaseCheckout:  {},
		PhasePreviewed: {},
		PhaseTimedOut:  {},
		PhaseAborted:   {},
	},
	PhaseCheckout: {
		PhaseComplete: {},
		PhaseTimedOut: {},
		PhaseAborted:  {},
	},
}

// String returns the wire form of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseCapture:
		return "capture"
	case PhaseConfirm:
		return "confirm"
	case PhaseSourcing:
		return "sourcing"
	case PhaseTrust:
		return "trust"
	case PhaseCompensate:
		return "compensate"
	case PhaseCheckout:
		return "checkout"
	case PhaseComplete:
		return "complete"
	case PhasePreviewed:
		return "previewed"
	case PhaseTimedOut:
		return "timed_out"
	case PhaseAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Phase) UnmarshalText(b []byte) error {
	for candidate := PhaseCapture; candidate <= PhaseAborted; candidate++ {
		if candidate.String() == string(b) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown saga phase %q", string(b))
}

// IsTerminal reports whether the phase is terminal.
func (p Phase) IsTerminal() bool {
	switch p {
	case PhaseComplete, PhasePreviewed, PhaseTimedOut, PhaseAborted:
		return true
	default:
		return false
	}
}

// CanTransitionTo checks whether a phase transition is valid. Remaining in
// the same phase is always allowed (the compensation loop re-enters itself).
func (p Phase) CanTransitionTo(next Phase) bool {
	if p == next {
		return true
	}
	validNext, ok := validPhaseTransitions[p]
	if !ok {
		return false
	}
	_, ok = validNext[next]
	return ok
}

// ValidatePhaseTransition validates transition semantics.
func ValidatePhaseTransition(current, next Phase) error {
	if !current.CanTransitionTo(next) {
		return fmt.Errorf("invalid saga phase transition: %s -> %s", current, next)
	}
	return nil
}
