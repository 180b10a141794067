package tools

import (
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ekaya-inc/order-insight/pkg/apperrors"
	"github.com/ekaya-inc/order-insight/pkg/logging"
)

// ErrorResponse is a structured error returned as the text of a tool result,
// so MCP clients show it to the model rather than dropping it.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorResult creates a tool result containing a structured error.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	jsonBytes, _ := json.Marshal(ErrorResponse{Error: true, Code: code, Message: message})
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// lookupErrorResult maps a target resolution error to a tool error.
func lookupErrorResult(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return NewErrorResult("not_found", logging.SanitizeError(err))
	case errors.Is(err, apperrors.ErrMissingConnectionParams):
		return NewErrorResult("missing_parameters", logging.SanitizeError(err))
	default:
		return NewErrorResult("invalid_target", logging.SanitizeError(err))
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(b)), nil
}
