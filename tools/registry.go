// Package tools implements the local tool surface the model can call:
// vault search and read, user notifications, and tools bridged in from MCP
// servers. The Registry dispatches calls by name and exposes the matching
// schemas as tool specs for LLM requests.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aschepis/backscratcher/scribe/llm"
	"github.com/aschepis/backscratcher/scribe/tools/schemas"
	"github.com/rs/zerolog"
)

// ToolHandler handles a single tool call.
type ToolHandler func(ctx context.Context, args json.RawMessage) (any, error)

// Registry maps tool names to handlers.
type Registry struct {
	handlers map[string]ToolHandler
	specs    map[string]llm.ToolSpec
	logger   zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	logger = logger.With().Str("component", "tool_registry").Logger()
	return &Registry{
		handlers: make(map[string]ToolHandler),
		specs:    make(map[string]llm.ToolSpec),
		logger:   logger,
	}
}

// Register registers a handler for a tool name. The tool spec comes from
// the schemas package when one is defined there.
func (r *Registry) Register(name string, h ToolHandler) {
	r.logger.Debug().Str("name", name).Msg("Registering tool handler")
	r.handlers[name] = h
	if schema, ok := schemas.All()[name]; ok {
		r.specs[name] = toToolSpec(name, schema)
	}
}

// RegisterWithSpec registers a handler along with an explicit tool spec.
// Used for tools whose schema comes from outside the schemas package, such
// as MCP tools.
func (r *Registry) RegisterWithSpec(spec llm.ToolSpec, h ToolHandler) {
	r.logger.Debug().Str("name", spec.Name).Msg("Registering tool handler with spec")
	r.handlers[spec.Name] = h
	r.specs[spec.Name] = spec
}

// Specs returns the tool specs for all registered tools, for inclusion in
// LLM requests.
func (r *Registry) Specs() []llm.ToolSpec {
	out := make([]llm.ToolSpec, 0, len(r.specs))
	for _, spec := range r.specs {
		out = append(out, spec)
	}
	return out
}

// Execute dispatches a tool call by name. Satisfies the orchestrator's
// executor interface.
func (r *Registry) Execute(ctx context.Context, toolName string, input []byte) (any, error) {
	h, ok := r.handlers[toolName]
	if !ok {
		r.logger.Error().Str("tool", toolName).Msg("Unknown tool requested")
		return nil, fmt.Errorf("unknown tool: %s", toolName)
	}

	r.logger.Info().Str("tool", toolName).Msg("Executing tool")
	if r.logger.GetLevel() <= zerolog.DebugLevel {
		var prettyArgs interface{}
		if err := json.Unmarshal(input, &prettyArgs); err == nil {
			if prettyBytes, err := json.MarshalIndent(prettyArgs, "", "  "); err == nil {
				r.logger.Debug().Str("tool", toolName).Str("args", string(prettyBytes)).Msg("Tool called with arguments")
			}
		}
	}

	result, err := h(ctx, json.RawMessage(input))
	if err != nil {
		r.logger.Warn().Str("tool", toolName).Err(err).Msg("Tool returned error")
		return nil, err
	}

	if resultBytes, e := json.Marshal(result); e == nil {
		strResult := string(resultBytes)
		if len(strResult) > 500 {
			strResult = strResult[:500] + "... (truncated)"
		}
		r.logger.Debug().Str("tool", toolName).Str("result", strResult).Msg("Tool returned result")
	}
	return result, nil
}

// toToolSpec converts a schema definition into the request-level spec type.
func toToolSpec(name string, schema schemas.ToolSchema) llm.ToolSpec {
	spec := llm.ToolSpec{
		Name:        name,
		Description: schema.Description,
		Schema: llm.ToolSchema{
			Type: "object",
		},
	}
	if t, ok := schema.Schema["type"].(string); ok {
		spec.Schema.Type = t
	}
	if props, ok := schema.Schema["properties"].(map[string]any); ok {
		spec.Schema.Properties = props
	}
	if req, ok := schema.Schema["required"].([]string); ok {
		spec.Schema.Required = req
	}
	return spec
}
