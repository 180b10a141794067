package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/order-insight/pkg/models"
)

type companiesResult struct {
	Companies []models.Company `json:"companies"`
}

// RegisterDirectoryTools adds list_companies.
func RegisterDirectoryTools(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"list_companies",
		mcp.WithDescription("Lists the companies whose order databases can be queried. Use a company name as the 'company' argument of the other tools."),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		companies := deps.Directory.Companies()
		if companies == nil {
			companies = []models.Company{}
		}
		return jsonResult(companiesResult{Companies: companies})
	})
}
