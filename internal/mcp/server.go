// Package mcp exposes the translation service over the Model Context
// Protocol, so agent clients can call the local model as a tool without
// going through the HTTP API.
package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"
)

// Translator runs a generation for an already-built prompt. Satisfied by
// *inference.Engine.
type Translator interface {
	Translate(ctx context.Context, promptText string) (string, error)
}

// MCPServer wraps the mcp-go server with the translation tools registered.
type MCPServer struct {
	translator Translator
	logger     *slog.Logger
	server     *server.MCPServer
}

// NewMCPServer creates an MCPServer with the translate and list-languages
// tools registered. The returned server is ready to serve over stdio.
func NewMCPServer(translator Translator, version string, logger *slog.Logger) *MCPServer {
	s := &MCPServer{
		translator: translator,
		logger:     logger,
	}

	mcpServer := server.NewMCPServer(
		"LangTrans",
		version,
		server.WithToolCapabilities(true),
	)
	s.registerTools(mcpServer)

	s.server = mcpServer
	return s
}

// Server returns the underlying mcp-go MCPServer instance. Useful for
// advanced configuration or testing.
func (s *MCPServer) Server() *server.MCPServer {
	return s.server
}

// ServeStdio starts the MCP server in stdio mode, the integration path for
// clients that launch the server as a subprocess.
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server in stdio mode")
	return server.ServeStdio(s.server)
}
