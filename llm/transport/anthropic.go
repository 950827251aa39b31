package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/aschepis/backscratcher/scribe/llm"
	"github.com/samber/lo"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"
	defaultAnthropicTokens  = 4096
)

// buildAnthropicRequest builds a Messages API request. The SDK's param types
// do the body encoding; streaming is a top-level body field the params don't
// carry, so it is grafted on after marshaling.
func (t *Transport) buildAnthropicRequest(ctx context.Context, req *llm.Request, model string, stream bool) (*http.Request, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages:  toAnthropicMessages(req.Messages),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		params.Tools = toAnthropicTools(req.Tools)
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	encoded, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(encoded, &body); err != nil {
		return nil, fmt.Errorf("failed to re-encode request: %w", err)
	}
	if stream {
		body["stream"] = true
	}
	encoded, err = json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	baseURL := t.key.BaseURL
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/messages", bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", t.key.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	return httpReq, nil
}

// toAnthropicMessages converts provider-neutral messages to Anthropic
// MessageParams. System messages never appear here; they travel in the
// request's system field.
func toAnthropicMessages(msgs []llm.Message) []anthropic.MessageParam {
	return lo.Map(msgs, func(msg llm.Message, _ int) anthropic.MessageParam {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Content))
		for _, block := range msg.Content {
			switch block.Type {
			case llm.ContentBlockTypeText:
				blocks = append(blocks, anthropic.NewTextBlock(block.Text))
			case llm.ContentBlockTypeToolUse:
				if block.ToolUse != nil {
					blocks = append(blocks, anthropic.NewToolUseBlock(
						block.ToolUse.ID,
						block.ToolUse.Input,
						block.ToolUse.Name,
					))
				}
			case llm.ContentBlockTypeToolResult:
				if block.ToolResult != nil {
					blocks = append(blocks, anthropic.NewToolResultBlock(
						block.ToolResult.ID,
						block.ToolResult.Content,
						block.ToolResult.IsError,
					))
				}
			}
		}
		if msg.Role == llm.RoleAssistant {
			return anthropic.NewAssistantMessage(blocks...)
		}
		return anthropic.NewUserMessage(blocks...)
	})
}

// toAnthropicTools converts tool specs to Anthropic tool params.
func toAnthropicTools(specs []llm.ToolSpec) []anthropic.ToolUnionParam {
	return lo.Map(specs, func(spec llm.ToolSpec, _ int) anthropic.ToolUnionParam {
		return anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        spec.Name,
				Description: anthropic.String(spec.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Type:        "object",
					Properties:  spec.Schema.Properties,
					Required:    spec.Schema.Required,
					ExtraFields: spec.Schema.ExtraFields,
				},
			},
		}
	})
}
