package saga

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/snapbuy/snapbuy/pkg/budget"
	"github.com/snapbuy/snapbuy/pkg/logger"
	"github.com/snapbuy/snapbuy/pkg/stages"
)

// StageTimeouts carries the per-stage deadline budget.
type StageTimeouts struct {
	Capture  time.Duration
	Confirm  time.Duration
	Sourcing time.Duration
	Trust    time.Duration
	Checkout time.Duration
}

// DefaultStageTimeouts returns the stock budget.
func DefaultStageTimeouts() StageTimeouts {
	return StageTimeouts{
		Capture:  12 * time.Second,
		Confirm:  10 * time.Second,
		Sourcing: 18 * time.Second,
		Trust:    12 * time.Second,
		Checkout: 16 * time.Second,
	}
}

// RunRequest is one purchase submission. PreferredCandidateID pins the
// selection when that candidate shows up in the sourcing results.
type RunRequest struct {
	Image                stages.ImageInput
	UserText             string
	PreferredCandidateID string
	Payment              stages.PaymentFields
	IdempotencyKey       string
}

// RunListFilter narrows and paginates ListRuns.
type RunListFilter struct {
	Phase  string
	Offset int
	Limit  int
}

// RunStore persists run snapshots.
type RunStore interface {
	Save(ctx context.Context, state *RunState) error
	Get(ctx context.Context, runID string) (*RunState, error)
	List(ctx context.Context, filter RunListFilter) ([]*RunState, int, error)
	Delete(ctx context.Context, runID string) error
}

// EngineOption customizes Engine initialization.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(log logger.Logger) EngineOption {
	return func(e *Engine) {
		if log != nil {
			e.logger = log
		}
	}
}

// WithStore wires persistent run storage.
func WithStore(store RunStore) EngineOption {
	return func(e *Engine) { e.store = store }
}

// WithReceiptStore wires the checkout idempotency store.
func WithReceiptStore(store ReceiptStore) EngineOption {
	return func(e *Engine) {
		if store != nil {
			e.receipts = store
		}
	}
}

// WithMetrics wires a metrics recorder.
func WithMetrics(recorder MetricsRecorder) EngineOption {
	return func(e *Engine) {
		if recorder != nil {
			e.metrics = recorder
		}
	}
}

// WithSink wires a trace sink.
func WithSink(sink TraceSink) EngineOption {
	return func(e *Engine) {
		if sink != nil {
			e.sink = sink
		}
	}
}

// WithPolicy sets the compensation policy.
func WithPolicy(policy CompensationPolicy) EngineOption {
	return func(e *Engine) { e.policy = policy }
}

// WithFallbacks wires per-stage deterministic fallbacks. When a primary
// stage fails with a recoverable error, its fallback gets one synchronous
// try on the remaining timeout budget. A stage with a nil fallback fails
// outright.
func WithFallbacks(set stages.Set) EngineOption {
	return func(e *Engine) { e.fallbacks = set }
}

// WithStageTimeouts sets the per-stage deadline budget.
func WithStageTimeouts(timeouts StageTimeouts) EngineOption {
	return func(e *Engine) { e.timeouts = timeouts }
}

// WithBudgets wires the token budget registry for stats exposure.
func WithBudgets(registry *budget.Registry) EngineOption {
	return func(e *Engine) { e.budgets = registry }
}

// WithMaxConcurrentRuns sets the run admission limit.
func WithMaxConcurrentRuns(max int) EngineOption {
	return func(e *Engine) {
		if max > 0 {
			e.sema = make(chan struct{}, max)
		}
	}
}

// Engine drives purchase runs through the staged pipeline: capture, confirm,
// sourcing, trust with a bounded compensation loop, then checkout. Terminal
// outcomes are carried in the RunState; Run only errors when a run could not
// start at all.
type Engine struct {
	set       stages.Set
	fallbacks stages.Set
	policy    CompensationPolicy
	timeouts  StageTimeouts
	receipts  ReceiptStore
	store     RunStore
	metrics   MetricsRecorder
	sink      TraceSink
	logger    logger.Logger
	budgets   *budget.Registry

	mu   sync.RWMutex
	runs map[string]*RunState
	sema chan struct{}
}

// NewEngine creates an engine over the given stage set.
func NewEngine(set stages.Set, options ...EngineOption) *Engine {
	e := &Engine{
		set:      set,
		policy:   DefaultCompensationPolicy(),
		timeouts: DefaultStageTimeouts(),
		receipts: NewMemoryReceiptStore(),
		metrics:  nopMetricsRecorder{},
		sink:     nopTraceSink{},
		logger:   logger.Global(),
		runs:     make(map[string]*RunState),
		sema:     make(chan struct{}, 100),
	}
	for _, option := range options {
		if option != nil {
			option(e)
		}
	}
	return e
}

// Budgets exposes the token budget registry, nil when none was wired.
func (e *Engine) Budgets() *budget.Registry { return e.budgets }

// SetPolicy replaces the compensation policy. Runs already inside their
// compensation loop finish with the policy they started with.
func (e *Engine) SetPolicy(policy CompensationPolicy) {
	e.mu.Lock()
	e.policy = policy
	e.mu.Unlock()
}

func (e *Engine) currentPolicy() CompensationPolicy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.policy
}

// Run executes one purchase saga to a terminal phase.
func (e *Engine) Run(ctx context.Context, req RunRequest) (*RunState, error) {
	return e.start(ctx, uuid.NewString(), req, false)
}

// RunWithID executes a saga using a caller-provided run id, letting callers
// hand out the id before the run reaches a terminal phase.
func (e *Engine) RunWithID(ctx context.Context, runID string, req RunRequest) (*RunState, error) {
	return e.start(ctx, runID, req, false)
}

// Preview executes the pipeline through trust and compensation, then stops
// in the PREVIEWED phase without charging anything. Payment fields are not
// required.
func (e *Engine) Preview(ctx context.Context, req RunRequest) (*RunState, error) {
	return e.start(ctx, uuid.NewString(), req, true)
}

// GetRun returns a snapshot of one run.
func (e *Engine) GetRun(ctx context.Context, runID string) (*RunState, error) {
	e.mu.RLock()
	state, ok := e.runs[runID]
	e.mu.RUnlock()
	if ok {
		return state.Clone(), nil
	}
	if e.store == nil {
		return nil, ErrRunNotFound
	}
	return e.store.Get(ctx, runID)
}

// ListRuns lists run snapshots with optional phase filter and pagination.
func (e *Engine) ListRuns(ctx context.Context, filter RunListFilter) ([]*RunState, int, error) {
	if e.store != nil {
		return e.store.List(ctx, filter)
	}

	e.mu.RLock()
	all := make([]*RunState, 0, len(e.runs))
	for _, state := range e.runs {
		if filter.Phase != "" && state.Phase.String() != filter.Phase {
			continue
		}
		all = append(all, state.Clone())
	}
	e.mu.RUnlock()

	total := len(all)
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Offset > total {
		filter.Offset = total
	}
	end := total
	if filter.Limit > 0 && filter.Offset+filter.Limit < end {
		end = filter.Offset + filter.Limit
	}
	return all[filter.Offset:end], total, nil
}

func (e *Engine) start(ctx context.Context, runID string, req RunRequest, preview bool) (*RunState, error) {
	select {
	case e.sema <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-e.sema }()

	state := NewRunState(runID)
	e.saveRun(state)

	ctx, span := sagaTracer().Start(ctx, spanRun, trace.WithAttributes(
		attribute.String("run.id", state.RunID),
		attribute.Bool("run.preview", preview),
	))
	defer span.End()

	e.metrics.IncActiveRuns()
	started := time.Now()
	e.logger.Info("run started", "run_id", state.RunID, "preview", preview)

	e.execute(ctx, state, req, preview)

	e.metrics.DecActiveRuns()
	e.metrics.RecordRun(state.Phase.String())
	e.metrics.RecordRunDuration(state.Phase.String(), time.Since(started))
	e.saveRun(state)
	e.sink.RunFinished(state.Clone())
	e.logger.Info("run finished",
		"run_id", state.RunID,
		"phase", state.Phase.String(),
		"compensations", state.CompensationCount,
		"duration", time.Since(started))

	return state.Clone(), nil
}

func (e *Engine) execute(ctx context.Context, state *RunState, req RunRequest, preview bool) {
	var captureFallback func(context.Context) (*stages.Hypothesis, error)
	if e.fallbacks.Vision != nil {
		captureFallback = func(ctx context.Context) (*stages.Hypothesis, error) {
			return e.fallbacks.Vision.Capture(ctx, req.Image)
		}
	}
	hypothesis, oc := invoke(ctx, StageCapture, e.timeouts.Capture,
		func(ctx context.Context) (*stages.Hypothesis, error) {
			return e.set.Vision.Capture(ctx, req.Image)
		}, captureFallback)
	e.observe(ctx, state, oc, outcomeDetail(oc, func() string { return hypothesis.Label }))
	if oc.Kind != OutcomeSuccess {
		e.finalizeStageFailure(state, oc)
		return
	}
	state.SetHypothesis(hypothesis)
	e.message(state, StageCapture, StageConfirm,
		fmt.Sprintf("hypothesis %q confidence %.2f", hypothesis.Label, hypothesis.Confidence))
	e.transition(state, PhaseConfirm)

	var confirmFallback func(context.Context) (*stages.Intent, error)
	if e.fallbacks.Intent != nil {
		confirmFallback = func(ctx context.Context) (*stages.Intent, error) {
			return e.fallbacks.Intent.Confirm(ctx, hypothesis, req.UserText)
		}
	}
	intent, oc := invoke(ctx, StageConfirm, e.timeouts.Confirm,
		func(ctx context.Context) (*stages.Intent, error) {
			return e.set.Intent.Confirm(ctx, hypothesis, req.UserText)
		}, confirmFallback)
	e.observe(ctx, state, oc, outcomeDetail(oc, func() string { return intent.Item }))
	if oc.Kind != OutcomeSuccess {
		e.finalizeStageFailure(state, oc)
		return
	}
	state.SetIntent(intent)
	e.message(state, StageConfirm, StageSourcing,
		fmt.Sprintf("intent %q qty %d budget %.2f", intent.Item, intent.Quantity, intent.BudgetUSD))
	e.transition(state, PhaseSourcing)

	var sourcingFallback func(context.Context) ([]stages.Candidate, error)
	if e.fallbacks.Sourcing != nil {
		sourcingFallback = func(ctx context.Context) ([]stages.Candidate, error) {
			return e.fallbacks.Sourcing.Source(ctx, intent)
		}
	}
	candidates, oc := invoke(ctx, StageSourcing, e.timeouts.Sourcing,
		func(ctx context.Context) ([]stages.Candidate, error) {
			return e.set.Sourcing.Source(ctx, intent)
		}, sourcingFallback)
	e.observe(ctx, state, oc, outcomeDetail(oc, func() string { return fmt.Sprintf("%d candidates", len(candidates)) }))
	if oc.Kind != OutcomeSuccess {
		e.finalizeStageFailure(state, oc)
		return
	}
	if len(candidates) == 0 {
		e.abort(state, StageSourcing, AbortNoCandidates)
		return
	}
	state.SetCandidates(candidates)
	// A preferred id wins when it was actually sourced; otherwise the
	// top-ranked candidate stands.
	pick := candidates[0].ID
	if req.PreferredCandidateID != "" {
		for _, c := range candidates {
			if c.ID == req.PreferredCandidateID {
				pick = c.ID
				break
			}
		}
	}
	if err := state.SelectCandidate(pick); err != nil {
		e.abort(state, StageSourcing, AbortStageFailed)
		return
	}
	selected, _ := state.SelectedCandidate()
	e.message(state, StageSourcing, StageTrust,
		fmt.Sprintf("selected %q from %s at %.2f", selected.Title, selected.Vendor, selected.PriceUSD))
	e.transition(state, PhaseTrust)

	risk, oc := e.assess(ctx, state, selected)
	if oc.Kind != OutcomeSuccess {
		e.finalizeStageFailure(state, oc)
		return
	}
	state.SetRisk(risk)

	if !e.compensate(ctx, state) {
		return
	}

	if preview {
		e.transition(state, PhasePreviewed)
		return
	}

	selected, _ = state.SelectedCandidate()
	e.message(state, StageTrust, StageCheckout,
		fmt.Sprintf("cleared %q at tier %s", selected.Title, state.Risk.Tier))
	e.transition(state, PhaseCheckout)
	e.checkout(ctx, state, req, selected)
}

// assess runs one trust attempt and records it like any other stage attempt.
func (e *Engine) assess(ctx context.Context, state *RunState, candidate stages.Candidate) (*stages.RiskAssessment, Outcome) {
	var trustFallback func(context.Context) (*stages.RiskAssessment, error)
	if e.fallbacks.Trust != nil {
		trustFallback = func(ctx context.Context) (*stages.RiskAssessment, error) {
			return e.fallbacks.Trust.Assess(ctx, candidate)
		}
	}
	risk, oc := invoke(ctx, StageTrust, e.timeouts.Trust,
		func(ctx context.Context) (*stages.RiskAssessment, error) {
			return e.set.Trust.Assess(ctx, candidate)
		}, trustFallback)
	e.observe(ctx, state, oc, outcomeDetail(oc, func() string {
		return fmt.Sprintf("%s tier %s", candidate.Vendor, risk.Tier)
	}))
	return risk, oc
}

// compensate runs the bounded substitution loop. It returns true when the
// run may proceed to checkout, false when it was finalized here.
func (e *Engine) compensate(ctx context.Context, state *RunState) bool {
	policy := e.currentPolicy()
	for state.Risk.Tier > stages.RiskLow {
		if state.CompensationCount >= policy.MaxCompensations {
			break
		}
		if state.Phase != PhaseCompensate {
			e.transition(state, PhaseCompensate)
		}

		ctx, span := sagaTracer().Start(ctx, spanCompensate, trace.WithAttributes(
			attribute.Int("compensation.round", state.CompensationCount+1),
		))
		decision, err := policy.Decide(ctx, state, func(ctx context.Context, alt stages.Candidate) (*stages.RiskAssessment, error) {
			risk, oc := e.assess(ctx, state, alt)
			if oc.Kind != OutcomeSuccess {
				return nil, oc.Err
			}
			return risk, nil
		})
		span.End()
		if err != nil {
			e.abort(state, StageTrust, AbortStageFailed)
			return false
		}
		if decision.Keep {
			if decision.Truncated {
				e.logger.Warn("compensation scan truncated", "run_id", state.RunID)
			}
			break
		}

		previous, _ := state.SelectedCandidate()
		if err := state.SelectCandidate(decision.Substitute.ID); err != nil {
			e.abort(state, StageTrust, AbortStageFailed)
			return false
		}
		state.SetRisk(decision.SubstituteRisk)
		state.CompensationCount++
		e.metrics.RecordCompensation()
		e.metrics.RecordSubstitution()
		e.message(state, StageTrust, StageSourcing,
			fmt.Sprintf("substituted %q (%s, tier %s) for %q (%s)",
				decision.Substitute.Title, decision.Substitute.Vendor, decision.SubstituteRisk.Tier,
				previous.Title, previous.Vendor))
	}

	if state.Risk.Tier == stages.RiskHigh {
		e.abort(state, StageTrust, AbortRiskUnresolved)
		return false
	}
	return true
}

// checkout performs the terminal effect. It deliberately detaches from the
// caller's cancellation: once a charge may be in flight the run must settle
// on its own timeout, never on an upstream disconnect.
func (e *Engine) checkout(ctx context.Context, state *RunState, req RunRequest, selected stages.Candidate) {
	if stages.CardDigits(req.Payment.CardNumber) == "" {
		e.abort(state, StageCheckout, AbortPaymentMissing)
		return
	}

	key := req.IdempotencyKey
	if key == "" {
		key = DeriveKey(state.RunID, selected.ID, req.Payment)
	}

	payCtx := context.WithoutCancel(ctx)
	payCtx, span := sagaTracer().Start(payCtx, spanCheckout, trace.WithAttributes(
		attribute.String("run.id", state.RunID),
	))
	defer span.End()

	if stored, ok, err := e.receipts.Get(payCtx, key); err == nil && ok {
		state.RecordEvent(Event{Stage: StageCheckout, Outcome: EventReplayed, Detail: stored.OrderID})
		e.sink.Event(state.RunID, state.Events[len(state.Events)-1])
		e.metrics.RecordStageAttempt(string(StageCheckout), EventReplayed)
		e.metrics.RecordReceipt(true)
		_ = state.SetReceipt(stored)
		e.transition(state, PhaseComplete)
		return
	}

	if req.Payment.AmountUSD == 0 {
		req.Payment.AmountUSD = selected.PriceUSD
	}

	// The fallback pays under the same idempotency key, so a primary that
	// failed after charging cannot double-charge through it.
	var checkoutFallback func(context.Context) (*stages.Receipt, error)
	if e.fallbacks.Checkout != nil {
		checkoutFallback = func(ctx context.Context) (*stages.Receipt, error) {
			return e.fallbacks.Checkout.Pay(ctx, selected, req.Payment, key)
		}
	}
	receipt, oc := invoke(payCtx, StageCheckout, e.timeouts.Checkout,
		func(ctx context.Context) (*stages.Receipt, error) {
			return e.set.Checkout.Pay(ctx, selected, req.Payment, key)
		}, checkoutFallback)
	e.observe(ctx, state, oc, outcomeDetail(oc, func() string { return receipt.OrderID }))
	if oc.Kind != OutcomeSuccess {
		e.finalizeStageFailure(state, oc)
		return
	}

	if err := e.receipts.Put(payCtx, key, receipt); err != nil {
		e.logger.Error("receipt store write failed", "run_id", state.RunID, "error", err)
	}
	if err := state.SetReceipt(receipt); err != nil {
		e.abort(state, StageCheckout, AbortStageFailed)
		return
	}
	e.metrics.RecordReceipt(false)
	e.transition(state, PhaseComplete)
}

func (e *Engine) observe(ctx context.Context, state *RunState, oc Outcome, detail string) {
	_, span := sagaTracer().Start(ctx, spanStage, trace.WithAttributes(
		attribute.String("stage", string(oc.Stage)),
		attribute.String("outcome", oc.Kind.String()),
	))
	span.End()

	ev := Event{
		Stage:    oc.Stage,
		Outcome:  oc.Kind.String(),
		Duration: oc.Duration,
		Detail:   detail,
	}
	if oc.FallbackUsed && oc.Kind == OutcomeSuccess {
		ev.Outcome = EventFallback
	}
	state.RecordEvent(ev)
	e.sink.Event(state.RunID, ev)
	e.metrics.RecordStageAttempt(string(oc.Stage), ev.Outcome)
	e.metrics.RecordStageDuration(string(oc.Stage), oc.Duration)
	e.saveRun(state)

	if oc.Err != nil {
		e.logger.Warn("stage attempt failed",
			"run_id", state.RunID,
			"stage", string(oc.Stage),
			"outcome", ev.Outcome,
			"error", oc.Err)
	}
}

func (e *Engine) message(state *RunState, sender, recipient Stage, content string) {
	msg := state.RecordMessage(sender, recipient, content)
	e.sink.Message(state.RunID, msg)
}

func (e *Engine) transition(state *RunState, next Phase) {
	if err := state.TransitionTo(next); err != nil {
		e.logger.Error("phase transition rejected",
			"run_id", state.RunID,
			"from", state.Phase.String(),
			"to", next.String(),
			"error", err)
		return
	}
	e.saveRun(state)
}

func (e *Engine) finalizeStageFailure(state *RunState, oc Outcome) {
	state.FailedStage = oc.Stage
	if oc.Kind == OutcomeTimeout {
		e.transition(state, PhaseTimedOut)
		return
	}
	e.abort(state, oc.Stage, abortReasonFor(oc.Err))
}

func (e *Engine) abort(state *RunState, stage Stage, reason string) {
	state.FailedStage = stage
	state.AbortReason = reason
	e.transition(state, PhaseAborted)
}

func (e *Engine) saveRun(state *RunState) {
	clone := state.Clone()
	e.mu.Lock()
	e.runs[state.RunID] = clone
	e.mu.Unlock()
	if e.store == nil {
		return
	}
	if err := e.store.Save(context.Background(), clone); err != nil {
		e.logger.Error("run store write failed", "run_id", state.RunID, "error", err)
		return
	}
	// Once a terminal run is persisted the map copy would only grow the
	// process without bound; GetRun falls back to the store.
	if clone.Phase.IsTerminal() {
		e.mu.Lock()
		delete(e.runs, state.RunID)
		e.mu.Unlock()
	}
}

// outcomeDetail defers formatting of success details; on failure the error
// text wins and the success callback must not run against nil results.
func outcomeDetail(oc Outcome, onSuccess func() string) string {
	if oc.Kind == OutcomeSuccess {
		return onSuccess()
	}
	if oc.Err != nil {
		return oc.Err.Error()
	}
	return ""
}
