// Package handlers provides HTTP request handlers.
package handlers

import (
	"context"
	"net/http"

	"github.com/snapbuy/snapbuy/pkg/api/middleware"
	"github.com/snapbuy/snapbuy/pkg/api/response"
	"github.com/snapbuy/snapbuy/pkg/saga"
	"github.com/snapbuy/snapbuy/pkg/version"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	engine *saga.Engine
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(engine *saga.Engine) *HealthHandler {
	return &HealthHandler{engine: engine}
}

// Health handles the /health endpoint (liveness probe).
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Ready handles the /ready endpoint (readiness probe).
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		response.JSON(w, http.StatusServiceUnavailable, map[string]bool{
			"ready": false,
		})
		return
	}
	response.JSON(w, http.StatusOK, map[string]bool{
		"ready": true,
	})
}

// Status handles the /status endpoint (detailed status).
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": version.Info(),
	})
}

func getRequestID(ctx context.Context) string {
	return middleware.GetRequestID(ctx)
}
