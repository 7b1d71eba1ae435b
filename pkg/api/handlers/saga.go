package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/snapbuy/snapbuy/pkg/api/models"
	"github.com/snapbuy/snapbuy/pkg/api/response"
	"github.com/snapbuy/snapbuy/pkg/logger"
	"github.com/snapbuy/snapbuy/pkg/saga"
	"github.com/snapbuy/snapbuy/pkg/sink"
	"github.com/snapbuy/snapbuy/pkg/stages"
)

// RunHandler handles purchase run API endpoints.
type RunHandler struct {
	engine    *saga.Engine
	sink      *sink.Sink
	logger    logger.Logger
	validator *validator.Validate
}

// NewRunHandler creates a run handler.
func NewRunHandler(engine *saga.Engine, trace *sink.Sink, log logger.Logger) *RunHandler {
	return &RunHandler{
		engine:    engine,
		sink:      trace,
		logger:    log,
		validator: validator.New(),
	}
}

// SubmitRun handles POST /api/v1/runs. The run executes in the background;
// clients poll GET /api/v1/runs/{id} or follow /ws/events.
// @Summary Submit a purchase run
// @Description Start a purchase saga from a screenshot and optional user text
// @Tags runs
// @Accept json
// @Produce json
// @Param run body models.RunSubmitRequest true "Run submission"
// @Success 201 {object} map[string]string "Run accepted"
// @Failure 400 {object} response.ErrorResponse "Invalid request body or validation error"
// @Failure 503 {object} response.ErrorResponse "Engine unavailable"
// @Router /api/v1/runs [post]
func (h *RunHandler) SubmitRun(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		response.Error(w, http.StatusServiceUnavailable, response.ErrCodeServiceUnavailable, "saga engine unavailable", getRequestID(r.Context()))
		return
	}

	req, ok := h.decodeRunRequest(w, r, true)
	if !ok {
		return
	}

	runID := uuid.NewString()
	go func() {
		if _, err := h.engine.RunWithID(context.Background(), runID, req); err != nil && h.logger != nil {
			h.logger.Warn("run finished with error", "run_id", runID, "error", err)
		}
	}()

	response.JSON(w, http.StatusCreated, map[string]string{
		"run_id": runID,
		"phase":  saga.PhaseCapture.String(),
	})
}

// PreviewRun handles POST /api/v1/runs/preview. Preview runs execute
// synchronously and never charge anything, so payment fields are optional.
// @Summary Preview a purchase run
// @Description Execute every stage up to checkout without charging
// @Tags runs
// @Accept json
// @Produce json
// @Param run body models.RunSubmitRequest true "Run submission"
// @Success 200 {object} models.RunResponse "Previewed run"
// @Failure 400 {object} response.ErrorResponse "Invalid request body or validation error"
// @Failure 503 {object} response.ErrorResponse "Engine unavailable"
// @Router /api/v1/runs/preview [post]
func (h *RunHandler) PreviewRun(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		response.Error(w, http.StatusServiceUnavailable, response.ErrCodeServiceUnavailable, "saga engine unavailable", getRequestID(r.Context()))
		return
	}

	req, ok := h.decodeRunRequest(w, r, false)
	if !ok {
		return
	}

	state, err := h.engine.Preview(r.Context(), req)
	if err != nil {
		response.Error(w, http.StatusServiceUnavailable, response.ErrCodeServiceUnavailable, err.Error(), getRequestID(r.Context()))
		return
	}
	response.JSON(w, http.StatusOK, runResponse(state))
}

// GetRun handles GET /api/v1/runs/{id}.
// @Summary Get a purchase run
// @Description Get the current state of a run, including its event trail
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} models.RunResponse "Run state"
// @Failure 400 {object} response.ErrorResponse "Missing run ID"
// @Failure 404 {object} response.ErrorResponse "Run not found"
// @Router /api/v1/runs/{id} [get]
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		response.Error(w, http.StatusServiceUnavailable, response.ErrCodeServiceUnavailable, "saga engine unavailable", getRequestID(r.Context()))
		return
	}

	runID := chi.URLParam(r, "id")
	if runID == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "run id is required", getRequestID(r.Context()))
		return
	}

	state, err := h.engine.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, saga.ErrRunNotFound) {
			response.Error(w, http.StatusNotFound, response.ErrCodeNotFound, "run not found", getRequestID(r.Context()))
			return
		}
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, err.Error(), getRequestID(r.Context()))
		return
	}
	response.JSON(w, http.StatusOK, runResponse(state))
}

// ListRuns handles GET /api/v1/runs.
// @Summary List purchase runs
// @Description List runs with optional phase filtering and pagination
// @Tags runs
// @Produce json
// @Param phase query string false "Filter by phase"
// @Param limit query int false "Maximum number of results" default(20)
// @Param offset query int false "Offset for pagination" default(0)
// @Success 200 {object} models.RunListResponse "List of runs"
// @Failure 500 {object} response.ErrorResponse "Internal server error"
// @Router /api/v1/runs [get]
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		response.Error(w, http.StatusServiceUnavailable, response.ErrCodeServiceUnavailable, "saga engine unavailable", getRequestID(r.Context()))
		return
	}

	limit := 20
	offset := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			limit = parsed
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	phase := strings.TrimSpace(r.URL.Query().Get("phase"))

	states, total, err := h.engine.ListRuns(r.Context(), saga.RunListFilter{
		Phase:  phase,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, err.Error(), getRequestID(r.Context()))
		return
	}

	items := make([]models.RunSummary, 0, len(states))
	for _, state := range states {
		summary := models.RunSummary{
			RunID:             state.RunID,
			Phase:             state.Phase.String(),
			CompensationCount: state.CompensationCount,
			CreatedAt:         state.CreatedAt,
			CompletedAt:       state.CompletedAt,
		}
		if state.Intent != nil {
			summary.IntentItem = state.Intent.Item
		}
		items = append(items, summary)
	}

	response.JSON(w, http.StatusOK, models.RunListResponse{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// Stats handles GET /api/v1/stats.
// @Summary Stage statistics
// @Description Per-stage latency and outcome counters plus token budget usage
// @Tags runs
// @Produce json
// @Success 200 {object} models.StatsResponse "Aggregated statistics"
// @Router /api/v1/stats [get]
func (h *RunHandler) Stats(w http.ResponseWriter, r *http.Request) {
	resp := models.StatsResponse{Stages: map[string]models.StageStatsView{}}

	if h.sink != nil {
		for stage, stats := range h.sink.Stats() {
			resp.Stages[stage] = models.StageStatsView{
				OK:    stats.OK,
				Err:   stats.Err,
				AvgMS: stats.AvgMS,
				P95MS: stats.P95MS,
			}
		}
		resp.Dropped = h.sink.Dropped()
	}
	if h.engine != nil && h.engine.Budgets() != nil {
		resp.Budgets = map[string]models.BudgetView{}
		for stage, usage := range h.engine.Budgets().Snapshot() {
			resp.Budgets[stage] = models.BudgetView{
				Prompt:     usage.Prompt,
				Completion: usage.Completion,
				Calls:      usage.Calls,
				Used:       usage.Used,
				Cap:        usage.Cap,
			}
		}
	}

	response.JSON(w, http.StatusOK, resp)
}

func (h *RunHandler) decodeRunRequest(w http.ResponseWriter, r *http.Request, requirePayment bool) (saga.RunRequest, bool) {
	var req models.RunSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "invalid request body", getRequestID(r.Context()))
		return saga.RunRequest{}, false
	}
	if err := h.validator.Struct(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, err.Error(), getRequestID(r.Context()))
		return saga.RunRequest{}, false
	}
	if requirePayment && req.Payment == nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, "payment is required", getRequestID(r.Context()))
		return saga.RunRequest{}, false
	}

	var imageBytes []byte
	if req.ImageBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, "image_base64 is not valid base64", getRequestID(r.Context()))
			return saga.RunRequest{}, false
		}
		imageBytes = decoded
	}

	out := saga.RunRequest{
		Image:                stages.ImageInput{Name: req.ImageName, Bytes: imageBytes},
		UserText:             req.UserText,
		PreferredCandidateID: req.PreferredCandidateID,
		IdempotencyKey:       req.IdempotencyKey,
	}
	if req.Payment != nil {
		out.Payment = stages.PaymentFields{
			CardNumber: req.Payment.CardNumber,
			ExpiryMMYY: req.Payment.ExpiryMMYY,
			CVV:        req.Payment.CVV,
			AmountUSD:  req.Payment.AmountUSD,
		}
	}
	return out, true
}

func runResponse(state *saga.RunState) models.RunResponse {
	resp := models.RunResponse{
		RunID:             state.RunID,
		Phase:             state.Phase.String(),
		CompensationCount: state.CompensationCount,
		FailedStage:       string(state.FailedStage),
		AbortReason:       state.AbortReason,
		CreatedAt:         state.CreatedAt,
		UpdatedAt:         state.UpdatedAt,
		CompletedAt:       state.CompletedAt,
		Events:            make([]models.EventView, 0, len(state.Events)),
	}
	if state.Hypothesis != nil {
		resp.HypothesisLabel = state.Hypothesis.Label
	}
	if state.Intent != nil {
		resp.IntentItem = state.Intent.Item
	}
	for _, c := range state.Candidates {
		resp.Candidates = append(resp.Candidates, models.CandidateView{
			ID:              c.ID,
			Vendor:          c.Vendor,
			Title:           c.Title,
			PriceUSD:        c.PriceUSD,
			ShippingETADays: c.ShippingETADays,
			Selected:        c.ID == state.SelectedID,
		})
	}
	if state.Risk != nil {
		resp.Risk = &models.RiskView{
			CandidateID: state.Risk.CandidateID,
			Vendor:      state.Risk.Vendor,
			Tier:        state.Risk.Tier.String(),
			Evidence:    state.Risk.Evidence,
		}
	}
	if state.Receipt != nil {
		resp.Receipt = &models.ReceiptView{
			OrderID:        state.Receipt.OrderID,
			IdempotencyKey: state.Receipt.IdempotencyKey,
			AmountUSD:      state.Receipt.AmountUSD,
			Vendor:         state.Receipt.Vendor,
			CardBrand:      state.Receipt.CardBrand,
			MaskedCard:     state.Receipt.MaskedCard,
		}
	}
	for _, ev := range state.Events {
		resp.Events = append(resp.Events, models.EventView{
			Stage:      string(ev.Stage),
			Timestamp:  ev.Timestamp,
			Outcome:    ev.Outcome,
			DurationMS: float64(ev.Duration.Microseconds()) / 1000,
			Detail:     ev.Detail,
		})
	}
	for _, msg := range state.Messages {
		resp.Messages = append(resp.Messages, models.MessageView{
			Sender:    string(msg.Sender),
			Recipient: string(msg.Recipient),
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
		})
	}
	return resp
}
