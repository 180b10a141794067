package models

import (
	"strings"
	"time"
)

// MaxComparisons bounds the comparison list sent to the model.
const MaxComparisons = 500

// ErrorPrefix marks sentinel predictions.
const ErrorPrefix = "Error:"

// ComparisonRecord is a historical order shown to the model as an example.
type ComparisonRecord struct {
	OrderNumber string       `json:"order_number"`
	Comment     string       `json:"comment"`
	Trends      TrendProfile `json:"trends"`
}

// PredictionContext is everything the prediction prompt is rendered from.
type PredictionContext struct {
	TargetOrderNumber string
	TargetAttributes  Attributes
	Target            TrendProfile
	Comparisons       []ComparisonRecord
	Cap               int
}

// PredictionResult is the two-field answer returned for every prediction,
// including failures (see IsError).
type PredictionResult struct {
	PredictedComment string `json:"predicted_comment"`
	Reason           string `json:"reason"`
}

// IsError reports whether the result is a sentinel rather than a prediction.
func (r PredictionResult) IsError() bool {
	return strings.HasPrefix(r.PredictedComment, ErrorPrefix)
}

// NewPredictionError builds a sentinel result.
func NewPredictionError(summary, reason string) PredictionResult {
	return PredictionResult{
		PredictedComment: ErrorPrefix + " " + summary,
		Reason:           reason,
	}
}

// WriteBackStatus reports the outcome of persisting a prediction.
type WriteBackStatus struct {
	Table        string    `json:"table"`
	RowKey       string    `json:"row_key"`
	RowsAffected int64     `json:"rows_affected"`
	WrittenAt    time.Time `json:"written_at"`
	Error        string    `json:"error,omitempty"`
}

// PredictionResponse is what entry points return for a prediction request.
type PredictionResponse struct {
	OrderNumber string `json:"order_number"`
	PredictionResult
	Model     string           `json:"model,omitempty"`
	WriteBack *WriteBackStatus `json:"write_back,omitempty"`
}
