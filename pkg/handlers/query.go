package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ekaya-inc/order-insight/pkg/directory"
)

// QueryRequest carries a natural-language question for one database.
type QueryRequest struct {
	directory.Target
	Question string `json:"question"`
}

// QueryHandler serves the natural-language query endpoint.
type QueryHandler struct {
	svc    QueryService
	dir    Directory
	logger *zap.Logger
}

// NewQueryHandler creates a QueryHandler.
func NewQueryHandler(svc QueryService, dir Directory, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{svc: svc, dir: dir, logger: logger.Named("query-handler")}
}

// RegisterRoutes registers the query route under /api.
func (h *QueryHandler) RegisterRoutes(r chi.Router) {
	r.Post("/query", h.Query)
}

// Query handles POST /api/query. Every pipeline outcome, including
// failures, is returned with status 200 and a user-facing message.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := decodeJSON(r, &req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "missing_question", "question is required")
		return
	}
	params, err := h.dir.Resolve(req.Target)
	if err != nil {
		writeLookupError(w, err, h.logger)
		return
	}

	outcome := h.svc.Ask(r.Context(), params, req.Question)
	if err := WriteJSON(w, http.StatusOK, outcome); err != nil {
		h.logger.Error("Failed to encode query outcome", zap.Error(err))
	}
}
