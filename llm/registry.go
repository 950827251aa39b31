package llm

import (
	"fmt"
	"os"
	"sync"
	"time"
)

const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderLMStudio   = "lmstudio"
	ProviderAnthropic  = "anthropic"
	ProviderGemini     = "gemini"
	ProviderOllama     = "ollama"
)

// ClientKey uniquely identifies an LLM client configuration.
type ClientKey struct {
	Provider string
	Model    string
	APIKey   string // For credential-based providers
	BaseURL  string // For OpenAI-compatible endpoints and Ollama
}

// ProviderConfig holds the configuration needed for provider resolution.
// This avoids import cycles by not importing the config package.
type ProviderConfig struct {
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIModel      string
	OpenRouterAPIKey string
	OpenRouterModel  string
	LMStudioBaseURL  string
	LMStudioModel    string
	AnthropicAPIKey  string
	AnthropicModel   string
	GeminiAPIKey     string
	GeminiModel      string
	OllamaHost       string
	OllamaModel      string
}

// ModelCapabilities describes what a provider reported about one model.
// Entries live in the registry's read-mostly capability cache.
type ModelCapabilities struct {
	ID          string
	Streaming   bool
	ToolCalling bool
	RefreshedAt time.Time
}

// Preference represents a single provider/model preference.
type Preference struct {
	Provider    string
	Model       string
	Temperature *float64
}

// ProviderRegistry manages LLM provider selection and the model capability
// cache. The cache is read-mostly: reads happen on every request, writes only
// during model-list refresh.
type ProviderRegistry struct {
	enabledProviders map[string]bool
	config           *ProviderConfig

	mu           sync.RWMutex
	capabilities map[string][]ModelCapabilities // provider -> models
}

// NewProviderRegistry creates a new ProviderRegistry with the given config and
// enabled providers.
func NewProviderRegistry(providerConfig *ProviderConfig, enabledProviders []string) *ProviderRegistry {
	enabledMap := make(map[string]bool)
	for _, p := range enabledProviders {
		enabledMap[p] = true
	}

	return &ProviderRegistry{
		enabledProviders: enabledMap,
		config:           providerConfig,
		capabilities:     make(map[string][]ModelCapabilities),
	}
}

// IsProviderEnabled checks if a provider is in the enabled providers list.
func (r *ProviderRegistry) IsProviderEnabled(provider string) bool {
	return r.enabledProviders[provider]
}

// IsProviderConfigured checks if a provider has the required configuration
// (API keys, hosts, etc.).
func (r *ProviderRegistry) IsProviderConfigured(provider string) bool {
	switch provider {
	case ProviderOpenAI:
		apiKey := r.config.OpenAIAPIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		return apiKey != ""
	case ProviderOpenRouter:
		apiKey := r.config.OpenRouterAPIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENROUTER_API_KEY")
		}
		return apiKey != ""
	case ProviderLMStudio:
		// LM Studio is a local server, no key required
		return true
	case ProviderAnthropic:
		apiKey := r.config.AnthropicAPIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		return apiKey != ""
	case ProviderGemini:
		apiKey := r.config.GeminiAPIKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		return apiKey != ""
	case ProviderOllama:
		// Ollama doesn't require an API key, just a host (which has a default)
		return true
	default:
		return false
	}
}

// Resolve returns a ClientKey for the first enabled and configured provider
// from the ordered preference list. With no preferences it falls back to the
// first enabled provider and its configured default model.
func (r *ProviderRegistry) Resolve(prefs []Preference) (*ClientKey, error) {
	if len(prefs) > 0 {
		var attempted []string
		for _, pref := range prefs {
			attempted = append(attempted, pref.Provider)
			if !r.enabledProviders[pref.Provider] {
				continue
			}
			if !r.IsProviderConfigured(pref.Provider) {
				continue
			}
			key, err := r.resolveProviderConfig(pref.Provider, pref.Model)
			if err != nil {
				continue
			}
			return key, nil
		}
		return nil, fmt.Errorf("no available provider from preferences %v (enabled: %v)", attempted, r.enabledProvidersList())
	}

	if len(r.enabledProviders) == 0 {
		return nil, fmt.Errorf("no providers enabled")
	}

	var firstProvider string
	for p := range r.enabledProviders {
		firstProvider = p
		break
	}
	if !r.IsProviderConfigured(firstProvider) {
		return nil, fmt.Errorf("first enabled provider %s is not configured", firstProvider)
	}
	key, err := r.resolveProviderConfig(firstProvider, "")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config for provider %s: %w", firstProvider, err)
	}
	return key, nil
}

// resolveProviderConfig resolves provider-specific configuration and returns
// a ClientKey.
func (r *ProviderRegistry) resolveProviderConfig(provider, modelOverride string) (*ClientKey, error) {
	key := &ClientKey{
		Provider: provider,
		Model:    modelOverride,
	}

	switch provider {
	case ProviderOpenAI:
		apiKey := r.config.OpenAIAPIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("openai API key not configured")
		}
		key.APIKey = apiKey
		key.BaseURL = r.config.OpenAIBaseURL
		if key.Model == "" {
			key.Model = r.config.OpenAIModel
		}
		if key.Model == "" {
			key.Model = "gpt-4o-mini"
		}

	case ProviderOpenRouter:
		apiKey := r.config.OpenRouterAPIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENROUTER_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("openrouter API key not configured")
		}
		key.APIKey = apiKey
		key.BaseURL = "https://openrouter.ai/api/v1"
		if key.Model == "" {
			key.Model = r.config.OpenRouterModel
		}
		if key.Model == "" {
			return nil, fmt.Errorf("openrouter model not specified")
		}

	case ProviderLMStudio:
		key.BaseURL = r.config.LMStudioBaseURL
		if key.BaseURL == "" {
			key.BaseURL = "http://localhost:1234/v1"
		}
		if key.Model == "" {
			key.Model = r.config.LMStudioModel
		}
		if key.Model == "" {
			return nil, fmt.Errorf("lmstudio model not specified")
		}

	case ProviderAnthropic:
		apiKey := r.config.AnthropicAPIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("anthropic API key not configured")
		}
		key.APIKey = apiKey
		if key.Model == "" {
			key.Model = r.config.AnthropicModel
		}
		if key.Model == "" {
			key.Model = "claude-haiku-4-5"
		}

	case ProviderGemini:
		apiKey := r.config.GeminiAPIKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("gemini API key not configured")
		}
		key.APIKey = apiKey
		if key.Model == "" {
			key.Model = r.config.GeminiModel
		}
		if key.Model == "" {
			key.Model = "gemini-2.0-flash"
		}

	case ProviderOllama:
		host := r.config.OllamaHost
		if host == "" {
			host = os.Getenv("OLLAMA_HOST")
		}
		if host == "" {
			host = "http://localhost:11434"
		}
		key.BaseURL = host
		if key.Model == "" {
			key.Model = r.config.OllamaModel
		}
		if key.Model == "" {
			key.Model = os.Getenv("OLLAMA_MODEL")
		}
		if key.Model == "" {
			return nil, fmt.Errorf("ollama model not specified and no default configured")
		}

	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}

	return key, nil
}

// Capabilities returns the cached model capabilities for a provider. The
// returned slice is a copy; callers may not observe a refresh that is in
// flight, which is acceptable for this cache.
func (r *ProviderRegistry) Capabilities(provider string) []ModelCapabilities {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cached := r.capabilities[provider]
	out := make([]ModelCapabilities, len(cached))
	copy(out, cached)
	return out
}

// SetCapabilities replaces the cached model list for a provider. Called by
// the runtime scheduler during model-list refresh.
func (r *ProviderRegistry) SetCapabilities(provider string, models []ModelCapabilities) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capabilities[provider] = models
}

// enabledProvidersList returns a list of enabled providers (for error messages).
func (r *ProviderRegistry) enabledProvidersList() []string {
	var providers []string
	for p := range r.enabledProviders {
		providers = append(providers, p)
	}
	return providers
}
