// Package mcp connects scribe to external MCP tool servers over STDIO and
// exposes their tools as name/schema definitions the tool registry can
// register.
package mcp

import (
	"context"
	"strings"
)

// ToolDefinition represents an MCP tool definition.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// Client is the interface for interacting with MCP servers.
type Client interface {
	// Start initializes and starts the MCP client connection.
	Start(ctx context.Context) error

	// ListTools returns all tools available from the MCP server.
	ListTools(ctx context.Context) ([]ToolDefinition, error)

	// InvokeTool invokes a tool on the MCP server with the given input.
	InvokeTool(ctx context.Context, name string, input map[string]interface{}) (map[string]interface{}, error)

	// Close closes the connection to the MCP server.
	Close() error
}

// SafeName converts an MCP tool name to a provider-safe name. Provider APIs
// reject tool names containing dots.
// Example: "gmail.messages.list" -> "gmail_messages_list"
func SafeName(original string) string {
	return strings.ReplaceAll(original, ".", "_")
}
