package services

import (
	"encoding/json"
	"strings"

	"github.com/ekaya-inc/order-insight/pkg/jsonutil"
	"github.com/ekaya-inc/order-insight/pkg/llm"
	"github.com/ekaya-inc/order-insight/pkg/models"
	sqlutil "github.com/ekaya-inc/order-insight/pkg/sql"
)

// Fixed user-visible outcomes of the normalizers.
const (
	PredictionFailedSummary = "Could not generate prediction"
	PredictionParseReason   = "Failed to parse AI response into JSON format"

	SQLGenerationFailed      = "Could not generate a valid SQL query"
	SQLExtractedExplanation  = "SQL query extracted from non-JSON response."
	sqlParseFailureDetail    = "Failed to parse AI response. Please try a different query."
	sqlEmptyQueryDetail      = "the response did not contain a query."
	sqlSensitiveColumnDetail = "the query referenced a restricted column. Please try a different question."
)

// NormalizePrediction turns a raw model response into a PredictionResult.
// Code fences are removed and the rest must be a JSON object carrying both
// predicted_comment and reason; other fields are dropped. Anything else
// yields the "Could not generate prediction" sentinel. It never fails.
func NormalizePrediction(raw string) models.PredictionResult {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(llm.StripCodeFences(raw)), &fields); err != nil || fields == nil {
		return models.NewPredictionError(PredictionFailedSummary, PredictionParseReason)
	}

	comment, hasComment := jsonutil.FlexibleString(fields["predicted_comment"])
	reason, hasReason := jsonutil.FlexibleString(fields["reason"])

	var missing []string
	if !hasComment {
		missing = append(missing, "predicted_comment")
	}
	if !hasReason {
		missing = append(missing, "reason")
	}
	if len(missing) > 0 {
		return models.NewPredictionError(PredictionFailedSummary,
			"AI response was missing required field(s): "+strings.Join(missing, ", "))
	}

	return models.PredictionResult{PredictedComment: comment, Reason: reason}
}

// NormalizeSQLGeneration turns a raw model response into a
// SQLGenerationResult. Attempts run in order: strict JSON, then a SELECT
// statement found anywhere in the text, then the failure sentinel with an
// empty query.
func NormalizeSQLGeneration(raw string) models.SQLGenerationResult {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(llm.StripCodeFences(raw)), &fields); err == nil && fields != nil {
		query := strings.TrimSpace(jsonutil.FlexibleStringValue(fields["sql_query"]))
		if query == "" {
			return sqlGenerationFailure(sqlEmptyQueryDetail)
		}
		return models.SQLGenerationResult{
			SQLQuery:    query,
			Explanation: jsonutil.FlexibleStringValue(fields["explanation"]),
		}
	}

	// The raw text still has its fences, which end the extracted statement.
	if stmt, ok := sqlutil.ExtractSelectStatement(raw); ok {
		return models.SQLGenerationResult{SQLQuery: stmt, Explanation: SQLExtractedExplanation}
	}

	return sqlGenerationFailure(sqlParseFailureDetail)
}

func sqlGenerationFailure(detail string) models.SQLGenerationResult {
	return models.SQLGenerationResult{Explanation: SQLGenerationFailed + ": " + detail}
}
