package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/upb/llm-router/app"
	"github.com/upb/llm-router/utils"
)

// Version is reported by GET /api/v1/status. Overridden at link time.
var Version = "0.1.0"

const readinessTimeout = 5 * time.Second

// ReadinessResponse is the body of GET /readyz
type ReadinessResponse struct {
	Status string        `json:"status"`
	Checks app.Readiness `json:"checks"`
}

// StatusResponse is the body of GET /api/v1/status
type StatusResponse struct {
	Version       string   `json:"version"`
	Environment   string   `json:"environment"`
	UptimeSeconds int64    `json:"uptime_seconds"`
	Providers     []string `json:"providers"`
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	checker     ReadinessChecker
	svc         InferenceService
	environment string
	startedAt   time.Time
	logger      *zap.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(checker ReadinessChecker, svc InferenceService, environment string, startedAt time.Time, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		checker:     checker,
		svc:         svc,
		environment: environment,
		startedAt:   startedAt,
		logger:      logger,
	}
}

// HandleHealth handles GET /healthz
// Liveness only: 200 whenever the process can serve HTTP.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReadiness handles GET /readyz
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	checks := h.checker.CheckReadiness(ctx)

	status := "ready"
	httpStatus := http.StatusOK
	if !checks.Ready() {
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
		h.logger.Warn("readiness check failed",
			zap.Int("providers", checks.Providers),
			zap.String("redis", checks.Redis),
			zap.String("nats", checks.NATS))
	}

	response := ReadinessResponse{Status: status, Checks: checks}
	if err := utils.WriteJSON(w, httpStatus, utils.SuccessResponse{Data: response}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

// HandleStatus handles GET /api/v1/status
func (h *HealthHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	infos := h.svc.Providers()
	names := make([]string, 0, len(infos))
	for _, p := range infos {
		names = append(names, p.Name)
	}

	response := StatusResponse{
		Version:       Version,
		Environment:   h.environment,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		Providers:     names,
	}
	if err := utils.WriteOK(w, response); err != nil {
		h.logger.Error("failed to write status response", zap.Error(err))
	}
}
