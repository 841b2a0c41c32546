// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package implements an MCP-compliant server that exposes the
// execute_python_script tool. It uses the mark3labs/mcp-go library to handle
// the protocol details and delegates execution to the sandbox engine.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isdmx/scriptbox/config"
	"github.com/isdmx/scriptbox/httpapi"
)

// ToolName is the name clients call.
const ToolName = "execute_python_script"

// MCPServer represents the MCP server
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	executor  httpapi.Executor
	mcpServer *server.MCPServer
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, executor httpapi.Executor) (*MCPServer, error) {
	s := &MCPServer{
		config:   cfg,
		logger:   logger,
		executor: executor,
	}

	// Log configuration parameters on startup
	logger.Info("configuration loaded",
		zap.String("server.transport", s.config.Server.Transport),
		zap.Int("server.http_port", s.config.Server.HTTPPort),
		zap.Int("server.max_concurrent", s.config.Server.MaxConcurrent),
		zap.Int("sandbox.timeout_sec", s.config.Sandbox.TimeoutSec),
		zap.Int("sandbox.grace_sec", s.config.Sandbox.GraceSec),
		zap.Bool("sandbox.use_nsjail", s.config.Sandbox.UseNsjail),
		zap.String("sandbox.nsjail_path", s.config.Sandbox.NsjailPath),
		zap.String("sandbox.interpreter", s.config.Sandbox.Interpreter),
		zap.String("validation.policy", s.config.Validation.Policy),
		zap.String("security", executor.Mode()),
	)

	s.mcpServer = server.NewMCPServer("scriptbox", httpapi.Version)

	s.registerExecuteTool()

	return s, nil
}

// registerExecuteTool registers the execute_python_script tool
func (s *MCPServer) registerExecuteTool() {
	tool := mcp.Tool{
		Name:        ToolName,
		Description: "Execute an untrusted Python script that defines main(); returns main()'s JSON return value and captured stdout",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"script": map[string]any{
					"type":        "string",
					"description": "Python source defining a zero-argument main() function",
				},
			},
			Required: []string{"script"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleExecute)
}

// handleExecute handles the execute_python_script tool
func (s *MCPServer) handleExecute(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	script, err := request.RequireString("script")
	if err != nil {
		return nil, fmt.Errorf("script parameter is required: %w", err)
	}

	s.logger.Info("script execution requested over MCP", zap.Int("script_len", len(script)))

	result := s.executor.Execute(ctx, script)

	body, err := json.Marshal(httpapi.NewExecuteResponse(result))
	if err != nil {
		s.logger.Error("failed to encode execution result", zap.Error(err))
		return nil, fmt.Errorf("failed to encode execution result: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: string(body),
			},
		},
		IsError: !result.OK(),
	}, nil
}

// ServeStdio serves MCP on stdin/stdout until the input closes
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// HTTPHandler returns the streamable HTTP transport for mounting on a router
func (s *MCPServer) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcpServer)
}

// GetMCPServer returns the underlying mcp-go server
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
