package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aschepis/backscratcher/scribe/llm"
	openai "github.com/sashabaranov/go-openai"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// buildOpenAIRequest builds a chat-completions request for any
// OpenAI-compatible endpoint (OpenAI, OpenRouter, LM Studio).
func (t *Transport) buildOpenAIRequest(ctx context.Context, req *llm.Request, model string, stream bool) (*http.Request, error) {
	msgs, err := toOpenAIMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	if req.System != "" {
		msgs = append([]openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		}}, msgs...)
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: msgs,
		Stream:   stream,
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = toOpenAITools(req.Tools)
		chatReq.ToolChoice = "auto"
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = int(req.MaxTokens)
	}
	if req.Temperature != nil {
		chatReq.Temperature = float32(*req.Temperature)
	}

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	baseURL := t.key.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if t.key.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+t.key.APIKey)
	}
	return httpReq, nil
}

// toOpenAIMessages converts provider-neutral messages to OpenAI chat
// messages. Tool results expand into separate role:"tool" messages, which is
// how the chat-completions API expects them after an assistant tool_calls
// turn.
func toOpenAIMessages(msgs []llm.Message) ([]openai.ChatCompletionMessage, error) {
	result := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, msg := range msgs {
		var content string
		var toolCalls []openai.ToolCall
		var toolResults []openai.ChatCompletionMessage

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
				argsJSON, err := json.Marshal(block.ToolUse.Input)
				if err != nil {
					return nil, fmt.Errorf("failed to marshal tool input: %w", err)
				}
				toolCalls = append(toolCalls, openai.ToolCall{
					ID:   block.ToolUse.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      block.ToolUse.Name,
						Arguments: string(argsJSON),
					},
				})
			case llm.ContentBlockTypeToolResult:
				if block.ToolResult == nil {
					continue
				}
				toolResults = append(toolResults, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    block.ToolResult.Content,
					ToolCallID: block.ToolResult.ID,
				})
			}
		}

		if content != "" || len(toolCalls) > 0 {
			result = append(result, openai.ChatCompletionMessage{
				Role:      toOpenAIRole(msg.Role),
				Content:   content,
				ToolCalls: toolCalls,
			})
		}
		result = append(result, toolResults...)
	}
	return result, nil
}

func toOpenAIRole(role llm.MessageRole) string {
	switch role {
	case llm.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	case llm.RoleSystem:
		return openai.ChatMessageRoleSystem
	default:
		return openai.ChatMessageRoleUser
	}
}

// toOpenAITools converts tool specs to OpenAI function definitions.
func toOpenAITools(specs []llm.ToolSpec) []openai.Tool {
	result := make([]openai.Tool, 0, len(specs))
	for i := range specs {
		spec := &specs[i]
		parameters := map[string]interface{}{
			"type":       spec.Schema.Type,
			"properties": spec.Schema.Properties,
		}
		if len(spec.Schema.Required) > 0 {
			parameters["required"] = spec.Schema.Required
		}
		for k, v := range spec.Schema.ExtraFields {
			parameters[k] = v
		}
		result = append(result, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  parameters,
			},
		})
	}
	return result
}
