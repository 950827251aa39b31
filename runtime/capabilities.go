package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aschepis/backscratcher/scribe/llm"
)

// HTTPModelLister fetches model lists from provider APIs.
type HTTPModelLister struct {
	config *llm.ProviderConfig
	http   *http.Client
}

// NewHTTPModelLister creates a lister against the given provider config.
func NewHTTPModelLister(config *llm.ProviderConfig) *HTTPModelLister {
	return &HTTPModelLister{
		config: config,
		http:   &http.Client{Timeout: 30 * time.Second},
	}
}

// ListModels fetches the available models for a provider.
func (l *HTTPModelLister) ListModels(ctx context.Context, provider string) ([]llm.ModelCapabilities, error) {
	switch provider {
	case llm.ProviderOpenAI:
		base := l.config.OpenAIBaseURL
		if base == "" {
			base = "https://api.openai.com/v1"
		}
		return l.listOpenAICompatible(ctx, base, l.config.OpenAIAPIKey)
	case llm.ProviderOpenRouter:
		return l.listOpenAICompatible(ctx, "https://openrouter.ai/api/v1", l.config.OpenRouterAPIKey)
	case llm.ProviderLMStudio:
		base := l.config.LMStudioBaseURL
		if base == "" {
			base = "http://localhost:1234/v1"
		}
		return l.listOpenAICompatible(ctx, base, "")
	case llm.ProviderAnthropic:
		return l.listAnthropic(ctx)
	case llm.ProviderOllama:
		host := l.config.OllamaHost
		if host == "" {
			host = "http://localhost:11434"
		}
		return l.listOllama(ctx, host)
	default:
		return nil, fmt.Errorf("model listing not supported for provider %s", provider)
	}
}

// listOpenAICompatible handles the /models shape shared by OpenAI,
// OpenRouter, and LM Studio.
func (l *HTTPModelLister) listOpenAICompatible(ctx context.Context, baseURL, apiKey string) ([]llm.ModelCapabilities, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(baseURL, "/")+"/models", nil)
	if err != nil {
		return nil, err
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	var body struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := l.get(req, &body); err != nil {
		return nil, err
	}

	now := time.Now()
	models := make([]llm.ModelCapabilities, 0, len(body.Data))
	for _, m := range body.Data {
		models = append(models, llm.ModelCapabilities{
			ID:          m.ID,
			Streaming:   true,
			ToolCalling: true,
			RefreshedAt: now,
		})
	}
	return models, nil
}

func (l *HTTPModelLister) listAnthropic(ctx context.Context) ([]llm.ModelCapabilities, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.anthropic.com/v1/models", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", l.config.AnthropicAPIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	var body struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := l.get(req, &body); err != nil {
		return nil, err
	}

	now := time.Now()
	models := make([]llm.ModelCapabilities, 0, len(body.Data))
	for _, m := range body.Data {
		models = append(models, llm.ModelCapabilities{
			ID:          m.ID,
			Streaming:   true,
			ToolCalling: true,
			RefreshedAt: now,
		})
	}
	return models, nil
}

func (l *HTTPModelLister) listOllama(ctx context.Context, host string) ([]llm.ModelCapabilities, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(host, "/")+"/api/tags", nil)
	if err != nil {
		return nil, err
	}

	var body struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := l.get(req, &body); err != nil {
		return nil, err
	}

	now := time.Now()
	models := make([]llm.ModelCapabilities, 0, len(body.Models))
	for _, m := range body.Models {
		models = append(models, llm.ModelCapabilities{
			ID:          m.Name,
			Streaming:   true,
			ToolCalling: true,
			RefreshedAt: now,
		})
	}
	return models, nil
}

func (l *HTTPModelLister) get(req *http.Request, out any) error {
	res, err := l.http.Do(req)
	if err != nil {
		return fmt.Errorf("model list request failed: %w", err)
	}
	defer res.Body.Close() //nolint:errcheck // Response body close error can be ignored

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("model list request returned status %d", res.StatusCode)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode model list response: %w", err)
	}
	return nil
}
