// Package mcp exposes the prediction and query pipelines as MCP tools over
// streamable HTTP.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/order-insight/pkg/mcp/tools"
)

// ServerName is announced to MCP clients during initialization.
const ServerName = "order-insight"

// Server wraps the mcp-go MCPServer with the order-insight tools registered.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger
}

// NewServer creates an MCP server and registers every tool.
func NewServer(version string, deps *tools.Deps, logger *zap.Logger) *Server {
	mcpServer := server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(true),
	)

	tools.RegisterHealthTool(mcpServer, version, deps)
	tools.RegisterDirectoryTools(mcpServer, deps)
	tools.RegisterPredictionTool(mcpServer, deps)
	tools.RegisterQueryTool(mcpServer, deps)

	logger.Debug("MCP tools registered", zap.String("version", version))
	return &Server{mcp: mcpServer, logger: logger}
}

// MCP returns the underlying MCPServer.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// NewStreamableHTTPServer creates a stateless HTTP transport for this server.
// The router mounts it, so no endpoint path is configured here.
func (s *Server) NewStreamableHTTPServer() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(
		s.mcp,
		server.WithStateLess(true),
	)
}
