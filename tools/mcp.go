package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aschepis/backscratcher/scribe/llm"
	"github.com/aschepis/backscratcher/scribe/mcp"
)

// RegisterMCPTools lists the tools an MCP server offers and registers each
// one under its provider-safe name. Tool names keep the server name as a
// prefix so tools from different servers cannot collide.
func (r *Registry) RegisterMCPTools(ctx context.Context, serverName string, client mcp.Client) error {
	defs, err := client.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("list tools from MCP server %q: %w", serverName, err)
	}

	for _, def := range defs {
		originalName := def.Name
		safeName := mcp.SafeName(serverName + "_" + originalName)

		spec := llm.ToolSpec{
			Name:        safeName,
			Description: def.Description,
			Schema:      mcpSchemaToToolSchema(def.InputSchema),
		}

		r.RegisterWithSpec(spec, func(ctx context.Context, args json.RawMessage) (any, error) {
			var input map[string]interface{}
			if err := json.Unmarshal(args, &input); err != nil {
				return nil, fmt.Errorf("failed to unmarshal tool arguments: %w", err)
			}
			return client.InvokeTool(ctx, originalName, input)
		})
	}

	r.logger.Info().Str("server", serverName).Int("tool_count", len(defs)).Msg("Registered MCP tools")
	return nil
}

// mcpSchemaToToolSchema maps an MCP inputSchema document onto the
// request-level schema type.
func mcpSchemaToToolSchema(schema map[string]interface{}) llm.ToolSchema {
	out := llm.ToolSchema{Type: "object"}
	if schema == nil {
		return out
	}
	if t, ok := schema["type"].(string); ok && t != "" {
		out.Type = t
	}
	if props, ok := schema["properties"].(map[string]interface{}); ok {
		out.Properties = props
	}
	switch req := schema["required"].(type) {
	case []string:
		out.Required = req
	case []interface{}:
		for _, v := range req {
			if s, ok := v.(string); ok {
				out.Required = append(out.Required, s)
			}
		}
	}
	return out
}
