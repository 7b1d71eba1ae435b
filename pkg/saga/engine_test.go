package saga

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/snapbuy/snapbuy/pkg/stages"
)

const (
	testCard   = "4242 4242 4242 4242"
	testExpiry = "12/30"
	testCVV    = "123"
)

func testPayment() stages.PaymentFields {
	return stages.PaymentFields{
		CardNumber: testCard,
		ExpiryMMYY: testExpiry,
		CVV:        testCVV,
	}
}

type fakeVision struct {
	hypo  *stages.Hypothesis
	err   error
	delay time.Duration
	calls int
}

func (f *fakeVision) Capture(ctx context.Context, _ stages.ImageInput) (*stages.Hypothesis, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.hypo, nil
}

type fakeIntent struct {
	intent *stages.Intent
	err    error
}

func (f *fakeIntent) Confirm(_ context.Context, _ *stages.Hypothesis, _ string) (*stages.Intent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.intent, nil
}

type fakeSourcing struct {
	candidates []stages.Candidate
	err        error
}

func (f *fakeSourcing) Source(_ context.Context, _ *stages.Intent) ([]stages.Candidate, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates, nil
}

// fakeTrust assesses by vendor lookup and counts calls.
type fakeTrust struct {
	tiers map[string]stages.RiskTier
	err   error
	calls int
	delay time.Duration
}

func (f *fakeTrust) Assess(ctx context.Context, candidate stages.Candidate) (*stages.RiskAssessment, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	tier, ok := f.tiers[candidate.Vendor]
	if !ok {
		tier = stages.RiskLow
	}
	return &stages.RiskAssessment{
		CandidateID: candidate.ID,
		Vendor:      candidate.Vendor,
		Tier:        tier,
	}, nil
}

type fakeCheckout struct {
	err   error
	calls int
	delay time.Duration
}

func (f *fakeCheckout) Pay(ctx context.Context, candidate stages.Candidate, _ stages.PaymentFields, key string) (*stages.Receipt, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &stages.Receipt{
		OrderID:        fmt.Sprintf("order-%d", f.calls),
		IdempotencyKey: key,
		AmountUSD:      candidate.PriceUSD,
		Vendor:         candidate.Vendor,
	}, nil
}

func testCandidates() []stages.Candidate {
	return []stages.Candidate{
		{ID: "c1", Vendor: "Primary", Title: "Primary Offer", PriceUSD: 40, ShippingETADays: 3, Score: 2},
		{ID: "c2", Vendor: "Backup", Title: "Backup Offer", PriceUSD: 42, ShippingETADays: 2, Score: 1.5},
		{ID: "c3", Vendor: "Distant", Title: "Distant Offer", PriceUSD: 44, ShippingETADays: 8, Score: 1},
	}
}

func testSet(trust *fakeTrust, checkout *fakeCheckout) stages.Set {
	return stages.Set{
		Vision:   &fakeVision{hypo: &stages.Hypothesis{Label: "bottle", Confidence: 0.8}},
		Intent:   &fakeIntent{intent: &stages.Intent{Item: "bottle", Quantity: 1}},
		Sourcing: &fakeSourcing{candidates: testCandidates()},
		Trust:    trust,
		Checkout: checkout,
	}
}

func TestEngine_HappyPath(t *testing.T) {
	trust := &fakeTrust{tiers: map[string]stages.RiskTier{"Primary": stages.RiskLow}}
	checkout := &fakeCheckout{}
	engine := NewEngine(testSet(trust, checkout))

	state, err := engine.Run(context.Background(), RunRequest{
		Image:   stages.ImageInput{Name: "bottle.png"},
		Payment: testPayment(),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if state.Phase != PhaseComplete {
		t.Fatalf("Phase = %s, want complete (abort reason %q)", state.Phase, state.AbortReason)
	}
	if state.Receipt == nil {
		t.Fatal("expected a receipt")
	}
	if state.CompensationCount != 0 {
		t.Errorf("CompensationCount = %d, want 0", state.CompensationCount)
	}
	if state.SelectedID != "c1" {
		t.Errorf("SelectedID = %q, want c1", state.SelectedID)
	}
	if state.CompletedAt == nil {
		t.Error("CompletedAt not set on terminal phase")
	}
	// One event per stage attempt: capture, confirm, sourcing, trust, checkout.
	if len(state.Events) != 5 {
		t.Errorf("len(Events) = %d, want 5", len(state.Events))
	}
	if len(state.Messages) == 0 {
		t.Error("expected inter-stage messages")
	}
}

func TestEngine_HeuristicStagesEndToEnd(t *testing.T) {
	set := stages.Set{
		Vision:   stages.NewHeuristicVision(),
		Intent:   stages.NewHeuristicIntent(),
		Sourcing: stages.NewCatalogSourcing(nil, 5),
		Trust:    stages.NewHeuristicTrust(nil),
		Checkout: stages.NewLocalCheckout(stages.DefaultCheckoutConfig()),
	}
	engine := NewEngine(set)

	state, err := engine.Run(context.Background(), RunRequest{
		Image:    stages.ImageInput{Name: "acme-bottle.png"},
		UserText: "the acme one, under $35",
		Payment:  testPayment(),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if state.Phase != PhaseComplete {
		t.Fatalf("Phase = %s, want complete (abort reason %q)", state.Phase, state.AbortReason)
	}
	if state.Receipt.Vendor != "AcmeDirect" {
		t.Errorf("Receipt.Vendor = %q, want AcmeDirect", state.Receipt.Vendor)
	}
}

func TestEngine_Preview(t *testing.T) {
	trust := &fakeTrust{tiers: map[string]stages.RiskTier{"Primary": stages.RiskLow}}
	checkout := &fakeCheckout{}
	engine := NewEngine(testSet(trust, checkout))

	state, err := engine.Preview(context.Background(), RunRequest{
		Image: stages.ImageInput{Name: "bottle.png"},
	})
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if state.Phase != PhasePreviewed {
		t.Fatalf("Phase = %s, want previewed", state.Phase)
	}
	if state.Receipt != nil {
		t.Error("preview must not produce a receipt")
	}
	if checkout.calls != 0 {
		t.Errorf("checkout called %d times during preview", checkout.calls)
	}
}

func TestEngine_PreferredCandidateWins(t *testing.T) {
	engine := NewEngine(testSet(&fakeTrust{}, &fakeCheckout{}))

	state, err := engine.Run(context.Background(), RunRequest{
		Image:                stages.ImageInput{Name: "bottle.png"},
		PreferredCandidateID: "c3",
		Payment:              testPayment(),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if state.SelectedID != "c3" {
		t.Errorf("SelectedID = %q, want c3", state.SelectedID)
	}
	if state.Receipt == nil || state.Receipt.Vendor != "Distant" {
		t.Errorf("Receipt = %+v, want Distant vendor", state.Receipt)
	}
}

func TestEngine_UnknownPreferredCandidateFallsBack(t *testing.T) {
	engine := NewEngine(testSet(&fakeTrust{}, &fakeCheckout{}))

	state, err := engine.Run(context.Background(), RunRequest{
		Image:                stages.ImageInput{Name: "bottle.png"},
		PreferredCandidateID: "no-such-offer",
		Payment:              testPayment(),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if state.SelectedID != "c1" {
		t.Errorf("SelectedID = %q, want c1", state.SelectedID)
	}
}

func TestEngine_CompensationSubstitutes(t *testing.T) {
	trust := &fakeTrust{tiers: map[string]stages.RiskTier{
		"Primary": stages.RiskHigh,
		"Backup":  stages.RiskLow,
	}}
	engine := NewEngine(testSet(trust, &fakeCheckout{}))

	state, err := engine.Run(context.Background(), RunRequest{
		Image:   stages.ImageInput{Name: "bottle.png"},
		Payment: testPayment(),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if state.Phase != PhaseComplete {
		t.Fatalf("Phase = %s, want complete (abort reason %q)", state.Phase, state.AbortReason)
	}
	if state.SelectedID != "c2" {
		t.Errorf("SelectedID = %q, want substitute c2", state.SelectedID)
	}
	if state.CompensationCount != 1 {
		t.Errorf("CompensationCount = %d, want 1", state.CompensationCount)
	}
	if state.Risk.Tier != stages.RiskLow {
		t.Errorf("final tier = %s, want low", state.Risk.Tier)
	}

	// Every substitution leaves a trust-to-sourcing message naming both offers.
	var subst *Message
	for i := range state.Messages {
		if strings.HasPrefix(state.Messages[i].Content, "substituted") {
			subst = &state.Messages[i]
			break
		}
	}
	if subst == nil {
		t.Fatal("no substitution message recorded")
	}
	if subst.Sender != StageTrust || subst.Recipient != StageSourcing {
		t.Errorf("substitution message routed %s to %s, want trust to sourcing", subst.Sender, subst.Recipient)
	}
	if !strings.Contains(subst.Content, "Backup Offer") || !strings.Contains(subst.Content, "Primary Offer") {
		t.Errorf("substitution message %q does not name both offers", subst.Content)
	}
}

func TestEngine_RiskUnresolvedAborts(t *testing.T) {
	// Every vendor assesses high; the loop exhausts its budget and the run
	// must abort rather than charge.
	trust := &fakeTrust{tiers: map[string]stages.RiskTier{
		"Primary": stages.RiskHigh,
		"Backup":  stages.RiskHigh,
		"Distant": stages.RiskHigh,
	}}
	checkout := &fakeCheckout{}
	engine := NewEngine(testSet(trust, checkout))

	state, err := engine.Run(context.Background(), RunRequest{
		Image:   stages.ImageInput{Name: "bottle.png"},
		Payment: testPayment(),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if state.Phase != PhaseAborted {
		t.Fatalf("Phase = %s, want aborted", state.Phase)
	}
	if state.AbortReason != AbortRiskUnresolved {
		t.Errorf("AbortReason = %q, want %q", state.AbortReason, AbortRiskUnresolved)
	}
	if checkout.calls != 0 {
		t.Errorf("checkout called %d times on an unresolved run", checkout.calls)
	}
	if state.CompensationCount > DefaultCompensationPolicy().MaxCompensations {
		t.Errorf("CompensationCount = %d exceeds the policy cap", state.CompensationCount)
	}
}

func TestEngine_MediumRiskProceeds(t *testing.T) {
	// Medium risk with no safer alternative clears checkout; only high blocks.
	trust := &fakeTrust{tiers: map[string]stages.RiskTier{
		"Primary": stages.RiskMedium,
		"Backup":  stages.RiskMedium,
		"Distant": stages.RiskMedium,
	}}
	engine := NewEngine(testSet(trust, &fakeCheckout{}))

	state, err := engine.Run(context.Background(), RunRequest{
		Image:   stages.ImageInput{Name: "bottle.png"},
		Payment: testPayment(),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if state.Phase != PhaseComplete {
		t.Fatalf("Phase = %s, want complete (abort reason %q)", state.Phase, state.AbortReason)
	}
	if state.SelectedID != "c1" {
		t.Errorf("SelectedID = %q, want original c1", state.SelectedID)
	}
}

func TestEngine_StageTimeout(t *testing.T) {
	trust := &fakeTrust{}
	set := testSet(trust, &fakeCheckout{})
	set.Vision = &fakeVision{
		hypo:  &stages.Hypothesis{Label: "bottle"},
		delay: 200 * time.Millisecond,
	}
	engine := NewEngine(set, WithStageTimeouts(StageTimeouts{
		Capture:  20 * time.Millisecond,
		Confirm:  time.Second,
		Sourcing: time.Second,
		Trust:    time.Second,
		Checkout: time.Second,
	}))

	state, err := engine.Run(context.Background(), RunRequest{
		Image:   stages.ImageInput{Name: "bottle.png"},
		Payment: testPayment(),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if state.Phase != PhaseTimedOut {
		t.Fatalf("Phase = %s, want timed_out", state.Phase)
	}
	if state.FailedStage != StageCapture {
		t.Errorf("FailedStage = %s, want capture", state.FailedStage)
	}
	if len(state.Events) != 1 || state.Events[0].Outcome != EventTimeout {
		t.Errorf("expected a single timeout event, got %+v", state.Events)
	}
}

func TestEngine_CheckoutTimeout(t *testing.T) {
	checkout := &fakeCheckout{delay: 200 * time.Millisecond}
	engine := NewEngine(testSet(&fakeTrust{}, checkout), WithStageTimeouts(StageTimeouts{
		Capture:  time.Second,
		Confirm:  time.Second,
		Sourcing: time.Second,
		Trust:    time.Second,
		Checkout: 20 * time.Millisecond,
	}))

	state, err := engine.Run(context.Background(), RunRequest{
		Image:   stages.ImageInput{Name: "bottle.png"},
		Payment: testPayment(),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if state.Phase != PhaseTimedOut {
		t.Fatalf("Phase = %s, want timed_out", state.Phase)
	}
	if state.FailedStage != StageCheckout {
		t.Errorf("FailedStage = %s, want checkout", state.FailedStage)
	}
	if state.Receipt != nil {
		t.Error("timed-out checkout must not leave a receipt")
	}
	last := state.Events[len(state.Events)-1]
	if last.Stage != StageCheckout || last.Outcome != EventTimeout {
		t.Errorf("last event = %s/%s, want checkout/timeout", last.Stage, last.Outcome)
	}
}

func TestEngine_FallbackRecoversDegradedStage(t *testing.T) {
	primary := &fakeVision{err: &transientError{msg: "vision backend unreachable"}}
	standby := &fakeVision{hypo: &stages.Hypothesis{Label: "bottle", Confidence: 0.6}}
	set := testSet(&fakeTrust{}, &fakeCheckout{})
	set.Vision = primary

	engine := NewEngine(set, WithFallbacks(stages.Set{Vision: standby}))

	state, err := engine.Run(context.Background(), RunRequest{
		Image:   stages.ImageInput{Name: "bottle.png"},
		Payment: testPayment(),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if state.Phase != PhaseComplete {
		t.Fatalf("Phase = %s, want complete (abort reason %q)", state.Phase, state.AbortReason)
	}
	if primary.calls != 1 {
		t.Errorf("primary vision called %d times, want 1", primary.calls)
	}
	if standby.calls != 1 {
		t.Errorf("fallback vision called %d times, want 1", standby.calls)
	}
	if state.Events[0].Outcome != EventFallback {
		t.Errorf("capture event outcome = %q, want %q", state.Events[0].Outcome, EventFallback)
	}
	if state.Hypothesis == nil || state.Hypothesis.Label != "bottle" {
		t.Errorf("Hypothesis = %+v, want the fallback's result", state.Hypothesis)
	}
}

func TestEngine_FallbackSkippedOnDomainError(t *testing.T) {
	// A non-recoverable failure is final even with a fallback wired.
	primary := &fakeVision{err: errors.New("image rejected")}
	standby := &fakeVision{hypo: &stages.Hypothesis{Label: "bottle"}}
	set := testSet(&fakeTrust{}, &fakeCheckout{})
	set.Vision = primary

	engine := NewEngine(set, WithFallbacks(stages.Set{Vision: standby}))

	state, err := engine.Run(context.Background(), RunRequest{
		Image:   stages.ImageInput{Name: "bottle.png"},
		Payment: testPayment(),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if state.Phase != PhaseAborted {
		t.Fatalf("Phase = %s, want aborted", state.Phase)
	}
	if standby.calls != 0 {
		t.Errorf("fallback called %d times on a domain error, want 0", standby.calls)
	}
}

func TestEngine_EventTimestampsMonotonic(t *testing.T) {
	// The compensation path emits the longest timelines.
	trust := &fakeTrust{tiers: map[string]stages.RiskTier{
		"Primary": stages.RiskHigh,
		"Backup":  stages.RiskLow,
	}}
	engine := NewEngine(testSet(trust, &fakeCheckout{}))

	state, err := engine.Run(context.Background(), RunRequest{
		Image:   stages.ImageInput{Name: "bottle.png"},
		Payment: testPayment(),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for i := 1; i < len(state.Events); i++ {
		if state.Events[i].Timestamp.Before(state.Events[i-1].Timestamp) {
			t.Fatalf("event %d (%s) predates event %d (%s)",
				i, state.Events[i].Stage, i-1, state.Events[i-1].Stage)
		}
	}
}

func TestEngine_StageFailureAborts(t *testing.T) {
	set := testSet(&fakeTrust{}, &fakeCheckout{})
	set.Intent = &fakeIntent{err: errors.New("confirmation backend down")}
	engine := NewEngine(set)

	state, err := engine.Run(context.Background(), RunRequest{
		Image:   stages.ImageInput{Name: "bottle.png"},
		Payment: testPayment(),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if state.Phase != PhaseAborted {
		t.Fatalf("Phase = %s, want aborted", state.Phase)
	}
	if state.FailedStage != StageConfirm {
		t.Errorf("FailedStage = %s, want confirm", state.FailedStage)
	}
	if state.AbortReason != AbortStageFailed {
		t.Errorf("AbortReason = %q, want %q", state.AbortReason, AbortStageFailed)
	}
}

func TestEngine_NoCandidatesAborts(t *testing.T) {
	set := testSet(&fakeTrust{}, &fakeCheckout{})
	set.Sourcing = &fakeSourcing{err: stages.ErrNoOffers}
	engine := NewEngine(set)

	state, err := engine.Run(context.Background(), RunRequest{
		Image:   stages.ImageInput{Name: "bottle.png"},
		Payment: testPayment(),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if state.Phase != PhaseAborted {
		t.Fatalf("Phase = %s, want aborted", state.Phase)
	}
	if state.AbortReason != AbortNoCandidates {
		t.Errorf("AbortReason = %q, want %q", state.AbortReason, AbortNoCandidates)
	}
}

func TestEngine_PaymentMissingAborts(t *testing.T) {
	checkout := &fakeCheckout{}
	engine := NewEngine(testSet(&fakeTrust{}, checkout))

	state, err := engine.Run(context.Background(), RunRequest{
		Image: stages.ImageInput{Name: "bottle.png"},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if state.Phase != PhaseAborted {
		t.Fatalf("Phase = %s, want aborted", state.Phase)
	}
	if state.AbortReason != AbortPaymentMissing {
		t.Errorf("AbortReason = %q, want %q", state.AbortReason, AbortPaymentMissing)
	}
	if checkout.calls != 0 {
		t.Errorf("checkout called %d times without payment fields", checkout.calls)
	}
}

func TestEngine_PaymentRejectionCarriesReason(t *testing.T) {
	set := testSet(&fakeTrust{}, &fakeCheckout{})
	set.Checkout = stages.NewLocalCheckout(stages.CheckoutConfig{
		MaxAmountUSD:      10, // all test candidates exceed this
		VelocityThreshold: 5,
	})
	engine := NewEngine(set)

	state, err := engine.Run(context.Background(), RunRequest{
		Image:   stages.ImageInput{Name: "bottle.png"},
		Payment: testPayment(),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if state.Phase != PhaseAborted {
		t.Fatalf("Phase = %s, want aborted", state.Phase)
	}
	if state.AbortReason != "amount exceeds checkout limit" {
		t.Errorf("AbortReason = %q, want the payment rejection reason", state.AbortReason)
	}
}

func TestEngine_IdempotentReplay(t *testing.T) {
	trust := &fakeTrust{}
	checkout := &fakeCheckout{}
	engine := NewEngine(testSet(trust, checkout))

	req := RunRequest{
		Image:          stages.ImageInput{Name: "bottle.png"},
		Payment:        testPayment(),
		IdempotencyKey: "retry-key-1",
	}

	first, err := engine.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	second, err := engine.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}

	if checkout.calls != 1 {
		t.Fatalf("checkout called %d times, want 1", checkout.calls)
	}
	if second.Phase != PhaseComplete {
		t.Fatalf("replayed run phase = %s, want complete", second.Phase)
	}
	if first.Receipt.OrderID != second.Receipt.OrderID {
		t.Errorf("replayed OrderID = %q, want %q", second.Receipt.OrderID, first.Receipt.OrderID)
	}

	last := second.Events[len(second.Events)-1]
	if last.Outcome != EventReplayed {
		t.Errorf("last event outcome = %q, want %q", last.Outcome, EventReplayed)
	}
}

func TestEngine_GetRun(t *testing.T) {
	engine := NewEngine(testSet(&fakeTrust{}, &fakeCheckout{}))

	state, err := engine.Run(context.Background(), RunRequest{
		Image:   stages.ImageInput{Name: "bottle.png"},
		Payment: testPayment(),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	got, err := engine.GetRun(context.Background(), state.RunID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.RunID != state.RunID || got.Phase != state.Phase {
		t.Errorf("GetRun returned %s/%s, want %s/%s", got.RunID, got.Phase, state.RunID, state.Phase)
	}

	if _, err := engine.GetRun(context.Background(), "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun(missing) err = %v, want ErrRunNotFound", err)
	}
}

func TestEngine_ListRuns(t *testing.T) {
	engine := NewEngine(testSet(&fakeTrust{}, &fakeCheckout{}))

	for i := 0; i < 3; i++ {
		if _, err := engine.Run(context.Background(), RunRequest{
			Image:   stages.ImageInput{Name: "bottle.png"},
			Payment: testPayment(),
		}); err != nil {
			t.Fatalf("Run %d failed: %v", i, err)
		}
	}

	runs, total, err := engine.ListRuns(context.Background(), RunListFilter{})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if total != 3 || len(runs) != 3 {
		t.Errorf("ListRuns = %d/%d, want 3/3", len(runs), total)
	}

	runs, total, err = engine.ListRuns(context.Background(), RunListFilter{Phase: "complete", Limit: 2})
	if err != nil {
		t.Fatalf("filtered ListRuns failed: %v", err)
	}
	if total != 3 || len(runs) != 2 {
		t.Errorf("filtered ListRuns = %d/%d, want 2/3", len(runs), total)
	}

	runs, _, err = engine.ListRuns(context.Background(), RunListFilter{Phase: "aborted"})
	if err != nil {
		t.Fatalf("aborted ListRuns failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("aborted ListRuns returned %d runs, want 0", len(runs))
	}
}

func TestEngine_RunWithID(t *testing.T) {
	engine := NewEngine(testSet(&fakeTrust{}, &fakeCheckout{}))

	state, err := engine.RunWithID(context.Background(), "run-42", RunRequest{
		Image:   stages.ImageInput{Name: "bottle.png"},
		Payment: testPayment(),
	})
	if err != nil {
		t.Fatalf("RunWithID failed: %v", err)
	}
	if state.RunID != "run-42" {
		t.Errorf("RunID = %q, want run-42", state.RunID)
	}
}

func TestEngine_AdmissionRespectsContext(t *testing.T) {
	engine := NewEngine(testSet(&fakeTrust{}, &fakeCheckout{}), WithMaxConcurrentRuns(1))

	// Occupy the only slot.
	engine.sema <- struct{}{}
	defer func() { <-engine.sema }()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := engine.Run(ctx, RunRequest{Image: stages.ImageInput{Name: "bottle.png"}}); err == nil {
		t.Fatal("expected admission error when the engine is saturated")
	}
}

func TestEngine_SetPolicy(t *testing.T) {
	engine := NewEngine(testSet(&fakeTrust{}, &fakeCheckout{}))

	next := CompensationPolicy{MaxCompensations: 7, TopK: 2, PriceWindowPct: 10}
	engine.SetPolicy(next)

	if got := engine.currentPolicy(); got != next {
		t.Errorf("currentPolicy = %+v, want %+v", got, next)
	}
}

func TestEngine_PersistsToStore(t *testing.T) {
	store := NewMemoryRunStore()
	engine := NewEngine(testSet(&fakeTrust{}, &fakeCheckout{}), WithStore(store))

	state, err := engine.Run(context.Background(), RunRequest{
		Image:   stages.ImageInput{Name: "bottle.png"},
		Payment: testPayment(),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	persisted, err := store.Get(context.Background(), state.RunID)
	if err != nil {
		t.Fatalf("store.Get failed: %v", err)
	}
	if persisted.Phase != PhaseComplete {
		t.Errorf("persisted phase = %s, want complete", persisted.Phase)
	}
}

func TestEngine_EvictsPersistedTerminalRuns(t *testing.T) {
	store := NewMemoryRunStore()
	engine := NewEngine(testSet(&fakeTrust{}, &fakeCheckout{}), WithStore(store))

	state, err := engine.Run(context.Background(), RunRequest{
		Image:   stages.ImageInput{Name: "bottle.png"},
		Payment: testPayment(),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	engine.mu.RLock()
	_, inMemory := engine.runs[state.RunID]
	engine.mu.RUnlock()
	if inMemory {
		t.Error("terminal run still held in memory after being persisted")
	}

	got, err := engine.GetRun(context.Background(), state.RunID)
	if err != nil {
		t.Fatalf("GetRun after eviction failed: %v", err)
	}
	if got.Phase != PhaseComplete {
		t.Errorf("GetRun phase = %s, want complete", got.Phase)
	}
}
