package saga

import (
	"errors"
	"fmt"

	"github.com/snapbuy/snapbuy/pkg/stages"
)

// Invariant violations. These indicate programming bugs, not saga outcomes,
// and surface loudly instead of coercing into a terminal phase.
var (
	// ErrInvalidReference is returned when a selection names a candidate id
	// that is absent from the candidate set.
	ErrInvalidReference = errors.New("saga: selected candidate not present in candidate set")

	// ErrAlreadyFinalized is returned on an attempt to set a second receipt.
	ErrAlreadyFinalized = errors.New("saga: receipt already recorded for this run")

	// ErrCompensationBound is returned if a substitution is attempted past
	// the configured maximum. The policy's hard stop makes this unreachable;
	// seeing it means the policy is broken.
	ErrCompensationBound = errors.New("saga: compensation bound exceeded")

	// ErrRunNotFound is returned when a run id cannot be located.
	ErrRunNotFound = errors.New("saga: run not found")
)

// Abort reason codes carried by terminal ABORTED results.
const (
	AbortRiskUnresolved = "risk_unresolved"
	AbortNoCandidates   = "no_candidates"
	AbortStageFailed    = "stage_failed"
	AbortPaymentMissing = "payment_missing"
)

// StageError wraps a domain failure raised by a stage collaborator.
type StageError struct {
	Stage  Stage
	Detail error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Detail)
}

func (e *StageError) Unwrap() error { return e.Detail }

// abortReasonFor maps a stage failure to its terminal abort reason code.
func abortReasonFor(err error) string {
	var payErr *stages.PaymentError
	if errors.As(err, &payErr) {
		return payErr.Reason
	}
	if errors.Is(err, stages.ErrNoOffers) {
		return AbortNoCandidates
	}
	return AbortStageFailed
}
