// Package mcp exposes the conversation agent's tool registry over the
// Model Context Protocol, so external MCP clients (IDE assistants,
// other agents) can call sql_query, document_search, web_search, and
// market_quote directly without going through a chat turn.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcpsdk "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/sells-group/research-cli/internal/orchestrator"
)

// registryTool is the narrow surface this package needs from a tool —
// satisfied directly by orchestrator.Tool.
type registryTool interface {
	Name() string
	Description() string
	InputSchema() map[string]any
	Call(ctx context.Context, input json.RawMessage) (json.RawMessage, error)
}

// NewServer builds an MCP server exposing every tool in registry under
// its own name, version, and description.
func NewServer(name, version string, registry *orchestrator.Registry) (*server.MCPServer, error) {
	s := server.NewMCPServer(name, version, server.WithToolCapabilities(false))

	for _, def := range registry.Definitions() {
		tool, ok := registry.Get(def.Name)
		if !ok {
			continue // registry invariant: every Definitions() entry has a backing Get()
		}
		schema, err := json.Marshal(def.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("mcp: marshal schema for %q: %w", def.Name, err)
		}
		s.AddTool(mcpsdk.NewToolWithRawSchema(def.Name, def.Description, schema), handlerFor(tool))
	}

	return s, nil
}

// handlerFor adapts one orchestrator.Tool into an MCP ToolHandlerFunc by
// round-tripping the call's arguments through JSON.
func handlerFor(tool registryTool) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		input, err := json.Marshal(request.GetArguments())
		if err != nil {
			return errorResult(fmt.Sprintf("encode arguments: %v", err)), nil
		}

		result, err := tool.Call(ctx, input)
		if err != nil {
			zap.L().Warn("mcp: tool call failed", zap.String("tool", tool.Name()), zap.Error(err))
			return errorResult(err.Error()), nil
		}

		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{mcpsdk.NewTextContent(string(result))},
		}, nil
	}
}

func errorResult(message string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		IsError: true,
		Content: []mcpsdk.Content{mcpsdk.NewTextContent(message)},
	}
}

// ServeStdio blocks serving s over stdio, the transport MCP clients
// launching this binary as a subprocess expect.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
