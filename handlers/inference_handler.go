package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/upb/llm-router/internal/observability"
	"github.com/upb/llm-router/services/inference"
	"github.com/upb/llm-router/utils"
)

// ExplanationResponse is the body of GET /api/v1/use-cases/{useCase}/explanation
type ExplanationResponse struct {
	UseCase     string `json:"use_case"`
	Explanation string `json:"explanation"`
}

// InferenceHandler handles query and catalog requests
type InferenceHandler struct {
	svc    InferenceService
	logger *zap.Logger
}

// NewInferenceHandler creates a new InferenceHandler
func NewInferenceHandler(svc InferenceService, logger *zap.Logger) *InferenceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InferenceHandler{svc: svc, logger: logger}
}

// HandleQuery handles POST /api/v1/query
// Mode "compare" fans out to every provider; anything else runs the
// use case waterfall, which rejects unknown modes. Mode is case-insensitive.
func (h *InferenceHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	logger := observability.FromContext(r.Context(), h.logger)

	var req inference.QueryRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		h.writeDecodeError(w, err, logger)
		return
	}

	req.Mode = inference.NormalizeMode(req.Mode)
	if req.Mode == inference.ModeCompare {
		result, err := h.svc.Compare(r.Context(), req)
		if err != nil {
			HandleServiceError(w, err, logger)
			return
		}
		h.writeOK(w, result, logger)
		return
	}

	result, err := h.svc.Best(r.Context(), req)
	if err != nil {
		HandleServiceError(w, err, logger)
		return
	}
	h.writeOK(w, result, logger)
}

// HandleQueryProvider handles POST /api/v1/query/{provider}
func (h *InferenceHandler) HandleQueryProvider(w http.ResponseWriter, r *http.Request) {
	logger := observability.FromContext(r.Context(), h.logger)
	provider := chi.URLParam(r, "provider")

	var req inference.QueryRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		h.writeDecodeError(w, err, logger)
		return
	}

	result, err := h.svc.Single(r.Context(), provider, req)
	if err != nil {
		HandleServiceError(w, err, logger)
		return
	}
	h.writeOK(w, result, logger)
}

// HandleProviders handles GET /api/v1/providers
func (h *InferenceHandler) HandleProviders(w http.ResponseWriter, r *http.Request) {
	h.writeOK(w, h.svc.Providers(), h.logger)
}

// HandleUseCases handles GET /api/v1/use-cases
func (h *InferenceHandler) HandleUseCases(w http.ResponseWriter, r *http.Request) {
	h.writeOK(w, h.svc.UseCases(), h.logger)
}

// HandleExplanation handles GET /api/v1/use-cases/{useCase}/explanation
func (h *InferenceHandler) HandleExplanation(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "useCase")

	text, err := h.svc.Explain(name)
	if err != nil {
		HandleServiceError(w, err, observability.FromContext(r.Context(), h.logger))
		return
	}
	h.writeOK(w, ExplanationResponse{UseCase: name, Explanation: text}, h.logger)
}

// HandleStats handles GET /api/v1/stats
func (h *InferenceHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		HandleServiceError(w, err, observability.FromContext(r.Context(), h.logger))
		return
	}
	h.writeOK(w, stats, h.logger)
}

func (h *InferenceHandler) writeDecodeError(w http.ResponseWriter, err error, logger *zap.Logger) {
	logger.Debug("rejected request body", zap.Error(err))
	if writeErr := utils.WriteBadRequest(w, err.Error(), nil); writeErr != nil {
		logger.Error("failed to write bad request response", zap.Error(writeErr))
	}
}

func (h *InferenceHandler) writeOK(w http.ResponseWriter, data interface{}, logger *zap.Logger) {
	if err := utils.WriteOK(w, data); err != nil {
		logger.Error("failed to write response", zap.Error(err))
	}
}
