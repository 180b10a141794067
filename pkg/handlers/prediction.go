package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ekaya-inc/order-insight/pkg/directory"
	"github.com/ekaya-inc/order-insight/pkg/logging"
	"github.com/ekaya-inc/order-insight/pkg/models"
)

// DataRequest selects the database to read recent orders from.
type DataRequest struct {
	directory.Target
}

// DataResponse carries the loaded record set.
type DataResponse struct {
	Count    int                  `json:"count"`
	LoadedAt time.Time            `json:"loaded_at"`
	Records  []models.OrderRecord `json:"records"`
}

// PredictRequest asks for a journal comment prediction. With WriteBack set
// the prediction is stored in the single row keyed by RowKey, which is then
// required.
type PredictRequest struct {
	directory.Target
	OrderNumber string `json:"order_number"`
	WriteBack   bool   `json:"write_back,omitempty"`
	RowKey      string `json:"row_key,omitempty"`
}

// PredictionHandler serves the order data and prediction endpoints.
type PredictionHandler struct {
	svc    PredictionService
	dir    Directory
	logger *zap.Logger
}

// NewPredictionHandler creates a PredictionHandler.
func NewPredictionHandler(svc PredictionService, dir Directory, logger *zap.Logger) *PredictionHandler {
	return &PredictionHandler{svc: svc, dir: dir, logger: logger.Named("prediction-handler")}
}

// RegisterRoutes registers the prediction routes under /api.
func (h *PredictionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/data", h.Data)
	r.Post("/predict", h.Predict)
}

// Data handles POST /api/data.
func (h *PredictionHandler) Data(w http.ResponseWriter, r *http.Request) {
	var req DataRequest
	if err := decodeJSON(r, &req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	params, err := h.dir.Resolve(req.Target)
	if err != nil {
		writeLookupError(w, err, h.logger)
		return
	}
	if err := params.Validate(true); err != nil {
		writeLookupError(w, err, h.logger)
		return
	}

	records, err := h.svc.LoadRecords(r.Context(), params)
	if err != nil {
		h.logger.Error("Failed to load order data",
			zap.String("target", params.String()),
			zap.String("error", logging.SanitizeError(err)))
		_ = ErrorResponse(w, http.StatusBadGateway, "load_failed", "Could not load data")
		return
	}

	resp := DataResponse{Count: records.Len(), LoadedAt: records.LoadedAt, Records: records.Records}
	if resp.Records == nil {
		resp.Records = []models.OrderRecord{}
	}
	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to encode order data", zap.Error(err))
	}
}

// Predict handles POST /api/predict. Failed predictions are still 200
// responses; the sentinel comment tells the caller what went wrong.
func (h *PredictionHandler) Predict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if err := decodeJSON(r, &req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req.OrderNumber = strings.TrimSpace(req.OrderNumber)
	if req.OrderNumber == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "missing_order_number", "order_number is required")
		return
	}
	req.RowKey = strings.TrimSpace(req.RowKey)
	if req.WriteBack && req.RowKey == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "missing_row_key", "row_key is required when write_back is set")
		return
	}
	params, err := h.dir.Resolve(req.Target)
	if err != nil {
		writeLookupError(w, err, h.logger)
		return
	}

	resp := h.svc.PredictOrder(r.Context(), params, req.OrderNumber)
	if req.WriteBack && !resp.IsError() {
		resp.WriteBack = h.svc.WriteBack(r.Context(), params, req.RowKey, resp.PredictionResult)
	}

	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to encode prediction", zap.Error(err))
	}
}
