package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/order-insight/pkg/apperrors"
	"github.com/ekaya-inc/order-insight/pkg/logging"
)

// maxRequestBody bounds JSON request bodies.
const maxRequestBody = 1 << 20

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// writeLookupError maps directory and connection errors to HTTP responses.
func writeLookupError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var status int
	var code string
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, apperrors.ErrMissingConnectionParams):
		status, code = http.StatusBadRequest, "missing_parameters"
	case errors.Is(err, apperrors.ErrConnectivity):
		status, code = http.StatusBadGateway, "connection_failed"
	default:
		status, code = http.StatusInternalServerError, "internal_error"
	}
	message := logging.SanitizeError(err)
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", zap.String("error", message))
		message = "internal error"
	}
	if err := ErrorResponse(w, status, code, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}
