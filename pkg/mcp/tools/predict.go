package tools

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// RegisterPredictionTool adds predict_journal_comment.
func RegisterPredictionTool(s *server.MCPServer, deps *Deps) {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Predicts the journal comment for an order by comparing its strength trend " +
			"history with recent orders that already have comments. Returns predicted_comment and reason; " +
			"a predicted_comment starting with 'Error:' means no prediction could be made."),
		mcp.WithString("order_number", mcp.Required(), mcp.Description("Order number to predict a comment for")),
		mcp.WithBoolean("write_back", mcp.Description("Store the prediction in the write-back table (default false); requires row_key")),
		mcp.WithString("row_key", mcp.Description("Key of the single write-back row to update")),
	}
	opts = append(opts, targetOptions()...)
	tool := mcp.NewTool("predict_journal_comment", opts...)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		orderNumber, err := req.RequireString("order_number")
		if err != nil || strings.TrimSpace(orderNumber) == "" {
			return NewErrorResult("invalid_parameters", "order_number is required"), nil
		}
		orderNumber = strings.TrimSpace(orderNumber)

		writeBack := getOptionalBoolWithDefault(req, "write_back", false)
		rowKey := strings.TrimSpace(getOptionalString(req, "row_key"))
		if writeBack && rowKey == "" {
			return NewErrorResult("invalid_parameters", "row_key is required when write_back is set"), nil
		}

		params, err := resolveTarget(req, deps)
		if err != nil {
			return lookupErrorResult(err), nil
		}

		resp := deps.Predictor.PredictOrder(ctx, params, orderNumber)
		if writeBack && !resp.IsError() {
			resp.WriteBack = deps.Predictor.WriteBack(ctx, params, rowKey, resp.PredictionResult)
		}

		if deps.Logger != nil {
			deps.Logger.Info("MCP prediction",
				zap.String("order_number", orderNumber),
				zap.Bool("error", resp.IsError()))
		}
		return jsonResult(resp)
	})
}
