package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type healthResult struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Model     string `json:"model"`
	Companies int    `json:"companies"`
	// DefaultTarget is set when calls without a company or server id have
	// somewhere to go.
	DefaultTarget bool `json:"default_target"`
}

// RegisterHealthTool adds the health tool. It reports what the server is
// configured with and never touches a database or the model.
func RegisterHealthTool(s *server.MCPServer, version string, deps *Deps) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Reports server status, version, model and how many directory companies are configured"),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(healthResult{
			Status:        "ok",
			Version:       version,
			Model:         deps.Model,
			Companies:     len(deps.Directory.Companies()),
			DefaultTarget: deps.Defaults.Server != "",
		})
	})
}
