package tools

import (
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ekaya-inc/order-insight/pkg/adapters/datasource"
	"github.com/ekaya-inc/order-insight/pkg/directory"
)

// targetOptions are the tool arguments that select a database.
func targetOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("company", mcp.Description("Company name from the company directory")),
		mcp.WithString("server_id", mcp.Description("Server id from the server directory")),
		mcp.WithString("database_id", mcp.Description("Database id under server_id")),
		mcp.WithString("database", mcp.Description("Database name; overrides the company's or the default database")),
	}
}

// resolveTarget reads the target arguments. Without company or server_id the
// configured default server is used.
func resolveTarget(req mcp.CallToolRequest, deps *Deps) (datasource.ConnectionParams, error) {
	target := directory.Target{
		Company:    strings.TrimSpace(getOptionalString(req, "company")),
		ServerID:   strings.TrimSpace(getOptionalString(req, "server_id")),
		DatabaseID: strings.TrimSpace(getOptionalString(req, "database_id")),
		Database:   strings.TrimSpace(getOptionalString(req, "database")),
	}
	if target.Company == "" && target.ServerID == "" {
		params := deps.Defaults
		if target.Database != "" {
			params = params.WithDatabase(target.Database)
		}
		return params, params.Validate(true)
	}

	params, err := deps.Directory.Resolve(target)
	if err != nil {
		return params, err
	}
	return params, params.Validate(true)
}

// getOptionalString returns a string argument, or "" when absent or not a string.
func getOptionalString(req mcp.CallToolRequest, key string) string {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return ""
	}
	val, _ := args[key].(string)
	return val
}

func getOptionalBoolWithDefault(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	if args, ok := req.Params.Arguments.(map[string]any); ok {
		if val, ok := args[key].(bool); ok {
			return val
		}
	}
	return defaultVal
}
