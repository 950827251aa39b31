package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aschepis/backscratcher/scribe/llm"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Gemini request body. The generateContent API has no Go SDK in use here, so
// the shapes are declared locally; only the fields this transport sends are
// modeled.
type geminiRequest struct {
	Contents          []geminiContent   `json:"contents"`
	SystemInstruction *geminiContent    `json:"systemInstruction,omitempty"`
	Tools             []geminiToolDecls `json:"tools,omitempty"`
	GenerationConfig  *geminiGenConfig  `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text             string                  `json:"text,omitempty"`
	FunctionCall     *geminiFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *geminiFunctionResponse `json:"functionResponse,omitempty"`
}

type geminiFunctionCall struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args,omitempty"`
}

type geminiFunctionResponse struct {
	Name     string                 `json:"name"`
	Response map[string]interface{} `json:"response"`
}

type geminiToolDecls struct {
	FunctionDeclarations []geminiFunctionDecl `json:"functionDeclarations"`
}

type geminiFunctionDecl struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

type geminiGenConfig struct {
	MaxOutputTokens int64    `json:"maxOutputTokens,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
}

// buildGeminiRequest builds a generateContent request. Streaming selects the
// streamGenerateContent method with SSE framing.
func (t *Transport) buildGeminiRequest(ctx context.Context, req *llm.Request, model string, stream bool) (*http.Request, error) {
	body := geminiRequest{
		Contents: toGeminiContents(req.Messages),
	}
	if req.System != "" {
		body.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: req.System}},
		}
	}
	if len(req.Tools) > 0 {
		body.Tools = []geminiToolDecls{{
			FunctionDeclarations: toGeminiFunctionDecls(req.Tools),
		}}
	}
	if req.MaxTokens > 0 || req.Temperature != nil {
		body.GenerationConfig = &geminiGenConfig{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
		}
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	baseURL := t.key.BaseURL
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	method := "generateContent"
	if stream {
		method = "streamGenerateContent?alt=sse"
	}
	url := fmt.Sprintf("%s/models/%s:%s", baseURL, model, method)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", t.key.APIKey)
	return httpReq, nil
}

// toGeminiContents converts provider-neutral messages to Gemini contents.
// Gemini's assistant role is "model"; tool results travel as functionResponse
// parts on a user turn.
func toGeminiContents(msgs []llm.Message) []geminiContent {
	result := make([]geminiContent, 0, len(msgs))
	for _, msg := range msgs {
		role := "user"
		if msg.Role == llm.RoleAssistant {
			role = "model"
		}
		parts := make([]geminiPart, 0, len(msg.Content))
		for _, block := range msg.Content {
			switch block.Type {
			case llm.ContentBlockTypeText:
				if block.Text != "" {
					parts = append(parts, geminiPart{Text: block.Text})
				}
			case llm.ContentBlockTypeToolUse:
				if block.ToolUse != nil {
					parts = append(parts, geminiPart{
						FunctionCall: &geminiFunctionCall{
							Name: block.ToolUse.Name,
							Args: block.ToolUse.Input,
						},
					})
				}
			case llm.ContentBlockTypeToolResult:
				if block.ToolResult != nil {
					parts = append(parts, geminiPart{
						FunctionResponse: &geminiFunctionResponse{
							Name: block.ToolResult.ID,
							Response: map[string]interface{}{
								"content": block.ToolResult.Content,
							},
						},
					})
				}
			}
		}
		if len(parts) == 0 {
			continue
		}
		result = append(result, geminiContent{Role: role, Parts: parts})
	}
	return result
}

// toGeminiFunctionDecls converts tool specs to Gemini function declarations.
func toGeminiFunctionDecls(specs []llm.ToolSpec) []geminiFunctionDecl {
	result := make([]geminiFunctionDecl, 0, len(specs))
	for i := range specs {
		spec := &specs[i]
		parameters := map[string]interface{}{
			"type":       spec.Schema.Type,
			"properties": spec.Schema.Properties,
		}
		if len(spec.Schema.Required) > 0 {
			parameters["required"] = spec.Schema.Required
		}
		result = append(result, geminiFunctionDecl{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  parameters,
		})
	}
	return result
}
