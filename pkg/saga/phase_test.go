package saga

import "testing"

func TestPhase_String(t *testing.T) {
	cases := map[Phase]string{
		PhaseCapture:    "capture",
		PhaseConfirm:    "confirm",
		PhaseSourcing:   "sourcing",
		PhaseTrust:      "trust",
		PhaseCompensate: "compensate",
		PhaseCheckout:   "checkout",
		PhaseComplete:   "complete",
		PhasePreviewed:  "previewed",
		PhaseTimedOut:   "timed_out",
		PhaseAborted:    "aborted",
		Phase(99):       "unknown",
	}
	for phase, want := range cases {
		if got := phase.String(); got != want {
			t.Errorf("Phase(%d).String() = %q, want %q", phase, got, want)
		}
	}
}

func TestPhase_IsTerminal(t *testing.T) {
	terminal := []Phase{PhaseComplete, PhasePreviewed, PhaseTimedOut, PhaseAborted}
	for _, p := range terminal {
		if !p.IsTerminal() {
			t.Errorf("%s.IsTerminal() = false, want true", p)
		}
	}
	active := []Phase{PhaseCapture, PhaseConfirm, PhaseSourcing, PhaseTrust, PhaseCompensate, PhaseCheckout}
	for _, p := range active {
		if p.IsTerminal() {
			t.Errorf("%s.IsTerminal() = true, want false", p)
		}
	}
}

func TestPhase_Transitions(t *testing.T) {
	tests := []struct {
		from, to Phase
		ok       bool
	}{
		{PhaseCapture, PhaseConfirm, true},
		{PhaseCapture, PhaseTimedOut, true},
		{PhaseCapture, PhaseAborted, true},
		{PhaseCapture, PhaseSourcing, false},
		{PhaseCapture, PhaseComplete, false},
		{PhaseConfirm, PhaseSourcing, true},
		{PhaseConfirm, PhaseCapture, false},
		{PhaseSourcing, PhaseTrust, true},
		{PhaseTrust, PhaseCompensate, true},
		{PhaseTrust, PhaseCheckout, true},
		{PhaseTrust, PhasePreviewed, true},
		{PhaseCompensate, PhaseCompensate, true}, // the loop re-enters itself
		{PhaseCompensate, PhaseCheckout, true},
		{PhaseCompensate, PhasePreviewed, true},
		{PhaseCompensate, PhaseTrust, false},
		{PhaseCheckout, PhaseComplete, true},
		{PhaseCheckout, PhaseCompensate, false},
		{PhaseComplete, PhaseCapture, false},
		{PhaseAborted, PhaseCheckout, false},
		{PhaseTimedOut, PhaseComplete, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.ok {
			t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}

func TestValidatePhaseTransition(t *testing.T) {
	if err := ValidatePhaseTransition(PhaseCapture, PhaseConfirm); err != nil {
		t.Errorf("valid transition rejected: %v", err)
	}
	if err := ValidatePhaseTransition(PhaseComplete, PhaseCapture); err == nil {
		t.Error("terminal phase transition accepted")
	}
}

func TestPhase_TextRoundTrip(t *testing.T) {
	for p := PhaseCapture; p <= PhaseAborted; p++ {
		b, err := p.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%s) failed: %v", p, err)
		}
		var got Phase
		if err := got.UnmarshalText(b); err != nil {
			t.Fatalf("UnmarshalText(%q) failed: %v", b, err)
		}
		if got != p {
			t.Errorf("round trip %s -> %s", p, got)
		}
	}

	var p Phase
	if err := p.UnmarshalText([]byte("charging")); err == nil {
		t.Error("unknown phase accepted")
	}
}
