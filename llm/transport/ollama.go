package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aschepis/backscratcher/scribe/llm"
	"github.com/ollama/ollama/api"
)

// buildOllamaRequest builds a /api/chat request. Ollama responds with NDJSON
// rather than SSE, one chunk object per line.
func (t *Transport) buildOllamaRequest(ctx context.Context, req *llm.Request, model string, stream bool) (*http.Request, error) {
	msgs := toOllamaMessages(req.Messages)
	if req.System != "" {
		msgs = append([]api.Message{{Role: "system", Content: req.System}}, msgs...)
	}

	chatReq := api.ChatRequest{
		Model:    model,
		Messages: msgs,
		Stream:   &stream,
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = toOllamaTools(req.Tools)
	}
	options := make(map[string]interface{})
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	if req.Temperature != nil {
		options["temperature"] = *req.Temperature
	}
	if len(options) > 0 {
		chatReq.Options = options
	}

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.key.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return httpReq, nil
}

// toOllamaMessages converts provider-neutral messages to Ollama chat
// messages. Tool results become role:"tool" messages so the model can match
// them to its earlier calls.
func toOllamaMessages(msgs []llm.Message) []api.Message {
	result := make([]api.Message, 0, len(msgs))
	for _, msg := range msgs {
		var content string
		var toolCalls []api.ToolCall
		var toolResults []api.Message

		for _, block := range msg.Content {
			switch block.Type {
			case llm.ContentBlockTypeText:
				if content != "" {
					content += "\n"
				}
				content += block.Text
			case llm.ContentBlockTypeToolUse:
				if block.ToolUse == nil {
					continue
				}
				args := make(api.ToolCallFunctionArguments)
				for k, v := range block.ToolUse.Input {
					args[k] = v
				}
				toolCalls = append(toolCalls, api.ToolCall{
					Function: api.ToolCallFunction{
						Name:      block.ToolUse.Name,
						Arguments: args,
					},
				})
			case llm.ContentBlockTypeToolResult:
				if block.ToolResult == nil {
					continue
				}
				toolResults = append(toolResults, api.Message{
					Role:    "tool",
					Content: block.ToolResult.Content,
				})
			}
		}

		if content != "" || len(toolCalls) > 0 {
			result = append(result, api.Message{
				Role:      string(msg.Role),
				Content:   content,
				ToolCalls: toolCalls,
			})
		}
		result = append(result, toolResults...)
	}
	return result
}

// toOllamaTools converts tool specs to Ollama tool definitions. Schema
// property types narrow to the primary type string; richer schema constructs
// pass through as string-typed properties.
func toOllamaTools(specs []llm.ToolSpec) api.Tools {
	result := make(api.Tools, 0, len(specs))
	for i := range specs {
		spec := &specs[i]
		properties := make(map[string]api.ToolProperty)
		for k, v := range spec.Schema.Properties {
			prop := api.ToolProperty{Type: []string{"string"}}
			if propMap, ok := v.(map[string]interface{}); ok {
				if propType, ok := propMap["type"].(string); ok {
					prop.Type = []string{propType}
				}
				if desc, ok := propMap["description"].(string); ok {
					prop.Description = desc
				}
			}
			properties[k] = prop
		}
		result = append(result, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters: api.ToolFunctionParameters{
					Type:       spec.Schema.Type,
					Properties: properties,
					Required:   spec.Schema.Required,
				},
			},
		})
	}
	return result
}
