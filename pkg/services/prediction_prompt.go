package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ekaya-inc/order-insight/pkg/models"
)

// CompilePredictionPrompt renders the prediction prompt. The output depends
// only on pc, so equal contexts give byte-identical prompts.
func CompilePredictionPrompt(pc *models.PredictionContext) (string, error) {
	if pc == nil {
		return "", fmt.Errorf("prediction context is required")
	}

	targetTrends, err := json.MarshalIndent(pc.Target, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize target trends: %w", err)
	}
	comparisons := pc.Comparisons
	if comparisons == nil {
		comparisons = []models.ComparisonRecord{}
	}
	others, err := json.MarshalIndent(comparisons, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize comparison orders: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("Based on the following order data:\n\n")
	fmt.Fprintf(&sb, "Selected Order Number: %s\n\n", pc.TargetOrderNumber)

	if len(pc.TargetAttributes) > 0 {
		attrs, err := json.MarshalIndent(pc.TargetAttributes, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to serialize target attributes: %w", err)
		}
		sb.WriteString("Selected Order Attributes:\n")
		sb.Write(attrs)
		sb.WriteString("\n\n")
	}

	sb.WriteString("Selected Order Trend Data:\n")
	sb.Write(targetTrends)
	sb.WriteString("\n\n")

	sb.WriteString("Other Recent Orders with Comments:\n")
	sb.Write(others)
	sb.WriteString("\n\n")

	sb.WriteString(`Analyze the patterns in the other orders and predict a journal comment for the selected order.
Consider how the trend values of the selected order compare to those orders where comments are already available.
Look for similar trend patterns and use the corresponding comments as a guide.
Trend features missing from an order are unknown, not zero.

Return ONLY a valid JSON object with exactly these two fields:
1. "predicted_comment": A concise, specific journal comment for the selected order that matches the style and terminology of the other order comments
2. "reason": A brief explanation of why this prediction was made, identifying which other order(s) had similar trend patterns

The response must be valid JSON without any markdown formatting, explanatory text, or additional fields.
`)
	return sb.String(), nil
}
