package stages

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/snapbuy/snapbuy/pkg/budget"
)

// RemoteError is a non-2xx reply from a stage service.
type RemoteError struct {
	URL    string
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("stage service %s returned %d: %s", e.URL, e.Status, e.Body)
}

// Recoverable reports whether the failure class is worth a fallback attempt.
// Client rejections (4xx) are final; server-side trouble is not.
func (e *RemoteError) Recoverable() bool { return e.Status >= 500 }

// RemoteConfig points each stage at its service endpoint.
type RemoteConfig struct {
	VisionURL   string
	IntentURL   string
	SourcingURL string
	TrustURL    string
	CheckoutURL string

	// RequestsPerSecond rate-limits outbound calls across all stages.
	// Zero disables limiting.
	RequestsPerSecond float64
	Burst             int
}

// Remote implements every stage contract against HTTP services speaking the
// JSON contracts below. It is stateless apart from the shared rate limiter
// and safe for concurrent runs.
type Remote struct {
	cfg     RemoteConfig
	client  *http.Client
	limiter *rate.Limiter
	budgets *budget.Registry
}

// NewRemote creates the remote stage client. budgets may be nil when token
// budgets are not enforced.
func NewRemote(cfg RemoteConfig, client *http.Client, budgets *budget.Registry) *Remote {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return &Remote{cfg: cfg, client: client, limiter: limiter, budgets: budgets}
}

type remoteUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
}

type captureRequest struct {
	ImageName  string `json:"image_name,omitempty"`
	ImageBytes []byte `json:"image_bytes,omitempty"`
}

type captureResponse struct {
	Hypothesis Hypothesis   `json:"hypothesis"`
	Usage      *remoteUsage `json:"usage,omitempty"`
}

type confirmRequest struct {
	Hypothesis *Hypothesis `json:"hypothesis"`
	UserText   string      `json:"user_text,omitempty"`
}

type confirmResponse struct {
	Intent Intent       `json:"intent"`
	Usage  *remoteUsage `json:"usage,omitempty"`
}

type sourceRequest struct {
	Intent *Intent `json:"intent"`
}

type sourceResponse struct {
	Candidates []Candidate  `json:"candidates"`
	Usage      *remoteUsage `json:"usage,omitempty"`
}

type assessRequest struct {
	Candidate Candidate `json:"candidate"`
}

type assessResponse struct {
	Assessment RiskAssessment `json:"assessment"`
	Usage      *remoteUsage   `json:"usage,omitempty"`
}

type payRequest struct {
	Candidate      Candidate     `json:"candidate"`
	Payment        PaymentFields `json:"payment"`
	IdempotencyKey string        `json:"idempotency_key,omitempty"`
}

type payResponse struct {
	Receipt Receipt      `json:"receipt"`
	Usage   *remoteUsage `json:"usage,omitempty"`
}

// Capture implements Vision.
func (r *Remote) Capture(ctx context.Context, image ImageInput) (*Hypothesis, error) {
	var resp captureResponse
	err := r.post(ctx, budget.StageCapture, r.cfg.VisionURL, captureRequest{ImageName: image.Name, ImageBytes: image.Bytes}, &resp)
	if err != nil {
		return nil, err
	}
	r.charge(budget.StageCapture, resp.Usage)
	return &resp.Hypothesis, nil
}

// Confirm implements IntentConfirmer.
func (r *Remote) Confirm(ctx context.Context, hypothesis *Hypothesis, userText string) (*Intent, error) {
	var resp confirmResponse
	err := r.post(ctx, budget.StageConfirm, r.cfg.IntentURL, confirmRequest{Hypothesis: hypothesis, UserText: userText}, &resp)
	if err != nil {
		return nil, err
	}
	r.charge(budget.StageConfirm, resp.Usage)
	return &resp.Intent, nil
}

// Source implements Sourcing.
func (r *Remote) Source(ctx context.Context, intent *Intent) ([]Candidate, error) {
	var resp sourceResponse
	err := r.post(ctx, budget.StageSourcing, r.cfg.SourcingURL, sourceRequest{Intent: intent}, &resp)
	if err != nil {
		return nil, err
	}
	r.charge(budget.StageSourcing, resp.Usage)
	if len(resp.Candidates) == 0 {
		return nil, ErrNoOffers
	}
	return resp.Candidates, nil
}

// Assess implements Trust.
func (r *Remote) Assess(ctx context.Context, candidate Candidate) (*RiskAssessment, error) {
	var resp assessResponse
	err := r.post(ctx, budget.StageTrust, r.cfg.TrustURL, assessRequest{Candidate: candidate}, &resp)
	if err != nil {
		return nil, err
	}
	r.charge(budget.StageTrust, resp.Usage)
	return &resp.Assessment, nil
}

// Pay implements Checkout.
func (r *Remote) Pay(ctx context.Context, candidate Candidate, payment PaymentFields, idempotencyKey string) (*Receipt, error) {
	var resp payResponse
	err := r.post(ctx, budget.StageCheckout, r.cfg.CheckoutURL, payRequest{Candidate: candidate, Payment: payment, IdempotencyKey: idempotencyKey}, &resp)
	if err != nil {
		if re, ok := err.(*RemoteError); ok && re.Status == http.StatusBadRequest {
			return nil, &PaymentError{Reason: re.Body}
		}
		return nil, err
	}
	r.charge(budget.StageCheckout, resp.Usage)
	return &resp.Receipt, nil
}

func (r *Remote) post(ctx context.Context, stage, url string, in, out any) error {
	if url == "" {
		return fmt.Errorf("stage service url not configured for %s", stage)
	}
	if r.budgets != nil {
		switch r.budgets.EnforceBeforeCall(stage, r.budgets.PlannedPromptTokens(stage)) {
		case budget.ActionBlock:
			return &RemoteError{URL: url, Status: http.StatusTooManyRequests, Body: "token budget exhausted"}
		case budget.ActionFallback:
			// Signal a recoverable failure so the adapter falls back to the
			// local heuristic inside the same timeout budget.
			return &RemoteError{URL: url, Status: http.StatusServiceUnavailable, Body: "token budget exhausted"}
		}
	}
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request for %s: %w", url, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &RemoteError{URL: url, Status: resp.StatusCode, Body: string(bytes.TrimSpace(raw))}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (r *Remote) charge(stage string, usage *remoteUsage) {
	if r.budgets == nil || usage == nil {
		return
	}
	r.budgets.Charge(stage, budget.RolePrompt, usage.Prompt)
	r.budgets.Charge(stage, budget.RoleCompletion, usage.Completion)
}
