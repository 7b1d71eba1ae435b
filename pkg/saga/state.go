package saga

import (
	"time"

	"github.com/snapbuy/snapbuy/pkg/stages"
)

// Stage identifies one discrete step in the saga.
type Stage string

const (
	StageCapture  Stage = "capture"
	StageConfirm  Stage = "confirm"
	StageSourcing Stage = "sourcing"
	StageTrust    Stage = "trust"
	StageCheckout Stage = "checkout"
)

// Event is one append-only entry in a run's stage timeline. Every stage
// attempt, including timeouts and compensation re-checks, appends exactly one.
type Event struct {
	Stage     Stage         `json:"stage"`
	Timestamp time.Time     `json:"timestamp"`
	Outcome   string        `json:"outcome"`
	Duration  time.Duration `json:"duration"`
	Detail    string        `json:"detail,omitempty"`
}

// Event outcome values.
const (
	EventOK       = "ok"
	EventTimeout  = "timeout"
	EventFailure  = "failure"
	EventFallback = "fallback"
	EventReplayed = "replayed"
)

// Message is one append-only entry in a run's inter-stage audit trail.
type Message struct {
	Sender    Stage     `json:"sender"`
	Recipient Stage     `json:"recipient"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// RunState is the record one saga run threads through its stages. It is
// exclusively owned by the run's goroutine while in flight; stores and API
// handlers only ever see clones.
type RunState struct {
	RunID             string                 `json:"run_id"`
	Phase             Phase                  `json:"phase"`
	Hypothesis        *stages.Hypothesis     `json:"hypothesis,omitempty"`
	Intent            *stages.Intent         `json:"intent,omitempty"`
	Candidates        []stages.Candidate     `json:"candidates,omitempty"`
	SelectedID        string                 `json:"selected_id,omitempty"`
	Risk              *stages.RiskAssessment `json:"risk,omitempty"`
	Receipt           *stages.Receipt        `json:"receipt,omitempty"`
	Events            []Event                `json:"events"`
	Messages          []Message              `json:"messages,omitempty"`
	CompensationCount int                    `json:"compensation_count"`
	FailedStage       Stage                  `json:"failed_stage,omitempty"`
	AbortReason       string                 `json:"abort_reason,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
	CompletedAt       *time.Time             `json:"completed_at,omitempty"`
}

// NewRunState creates a fresh run record in the initial phase.
func NewRunState(runID string) *RunState {
	now := time.Now().UTC()
	return &RunState{
		RunID:     runID,
		Phase:     PhaseCapture,
		Events:    make([]Event, 0, 8),
		Messages:  make([]Message, 0, 4),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo applies a validated phase transition.
func (r *RunState) TransitionTo(next Phase) error {
	if err := ValidatePhaseTransition(r.Phase, next); err != nil {
		return err
	}
	now := time.Now().UTC()
	if next.IsTerminal() {
		done := now
		r.CompletedAt = &done
	}
	r.Phase = next
	r.UpdatedAt = now
	return nil
}

// RecordEvent appends one event to the timeline.
func (r *RunState) RecordEvent(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	r.Events = append(r.Events, ev)
	r.UpdatedAt = ev.Timestamp
}

// RecordMessage appends one inter-stage message.
func (r *RunState) RecordMessage(sender, recipient Stage, content string) Message {
	msg := Message{
		Sender:    sender,
		Recipient: recipient,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	r.Messages = append(r.Messages, msg)
	r.UpdatedAt = msg.Timestamp
	return msg
}

// SetHypothesis records the capture result.
func (r *RunState) SetHypothesis(h *stages.Hypothesis) {
	r.Hypothesis = h
	r.UpdatedAt = time.Now().UTC()
}

// SetIntent records the confirmed intent.
func (r *RunState) SetIntent(intent *stages.Intent) {
	r.Intent = intent
	r.UpdatedAt = time.Now().UTC()
}

// SetCandidates replaces the candidate set wholesale. A selection pointing
// outside the new set is cleared rather than left dangling.
func (r *RunState) SetCandidates(candidates []stages.Candidate) {
	r.Candidates = candidates
	if r.SelectedID != "" {
		if _, ok := r.candidateByID(r.SelectedID); !ok {
			r.SelectedID = ""
		}
	}
	r.UpdatedAt = time.Now().UTC()
}

// SelectCandidate re-points the selection. The id must reference a present
// candidate; the selection is a weak reference, never an owning copy.
func (r *RunState) SelectCandidate(id string) error {
	if _, ok := r.candidateByID(id); !ok {
		return ErrInvalidReference
	}
	r.SelectedID = id
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// SelectedCandidate resolves the current selection.
func (r *RunState) SelectedCandidate() (stages.Candidate, bool) {
	return r.candidateByID(r.SelectedID)
}

// SetRisk overwrites the trust verdict. Each compensation loop iteration
// replaces the previous one.
func (r *RunState) SetRisk(assessment *stages.RiskAssessment) {
	r.Risk = assessment
	r.UpdatedAt = time.Now().UTC()
}

// SetReceipt records the terminal payment confirmation, at most once.
func (r *RunState) SetReceipt(receipt *stages.Receipt) error {
	if r.Receipt != nil {
		return ErrAlreadyFinalized
	}
	r.Receipt = receipt
	r.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *RunState) candidateByID(id string) (stages.Candidate, bool) {
	if id == "" {
		return stages.Candidate{}, false
	}
	for _, c := range r.Candidates {
		if c.ID == id {
			return c, true
		}
	}
	return stages.Candidate{}, false
}

// Clone returns a deep copy safe to hand outside the run's goroutine.
func (r *RunState) Clone() *RunState {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Candidates = append([]stages.Candidate(nil), r.Candidates...)
	clone.Events = append([]Event(nil), r.Events...)
	clone.Messages = append([]Message(nil), r.Messages...)
	if r.Hypothesis != nil {
		h := *r.Hypothesis
		clone.Hypothesis = &h
	}
	if r.Intent != nil {
		in := *r.Intent
		clone.Intent = &in
	}
	if r.Risk != nil {
		risk := *r.Risk
		risk.Evidence = append([]string(nil), r.Risk.Evidence...)
		clone.Risk = &risk
	}
	if r.Receipt != nil {
		rc := *r.Receipt
		clone.Receipt = &rc
	}
	if r.CompletedAt != nil {
		done := *r.CompletedAt
		clone.CompletedAt = &done
	}
	return &clone
}
