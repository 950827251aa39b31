package config

// OpenAIConfig represents configuration for the OpenAI provider.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key,omitempty"`  // OpenAI API key
	BaseURL string `yaml:"base_url,omitempty"` // Custom base URL (default: official API)
	Model   string `yaml:"model,omitempty"`    // Default model name
}

// OpenRouterConfig represents configuration for the OpenRouter provider.
type OpenRouterConfig struct {
	APIKey string `yaml:"api_key,omitempty"` // OpenRouter API key
	Model  string `yaml:"model,omitempty"`   // Default model name
}

// LMStudioConfig represents configuration for a local LM Studio server,
// which speaks the OpenAI-compatible API.
type LMStudioConfig struct {
	BaseURL string `yaml:"base_url,omitempty"` // Server URL (default: "http://localhost:1234/v1")
	Model   string `yaml:"model,omitempty"`    // Model name loaded in LM Studio
}
