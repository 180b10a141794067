package tools

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterQueryTool adds ask_database.
func RegisterQueryTool(s *server.MCPServer, deps *Deps) {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Answers a question about a SQL Server database by generating and running one " +
			"read-only query. Returns success, message, summary, sql_query and up to 1000 result rows."),
		mcp.WithString("question", mcp.Required(), mcp.Description("Question in plain language")),
		mcp.WithReadOnlyHintAnnotation(true),
	}
	opts = append(opts, targetOptions()...)
	tool := mcp.NewTool("ask_database", opts...)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil || strings.TrimSpace(question) == "" {
			return NewErrorResult("invalid_parameters", "question is required"), nil
		}

		params, err := resolveTarget(req, deps)
		if err != nil {
			return lookupErrorResult(err), nil
		}

		return jsonResult(deps.Asker.Ask(ctx, params, question))
	})
}
