package config

// GeminiConfig represents configuration for the Gemini provider.
type GeminiConfig struct {
	APIKey string `yaml:"api_key,omitempty"` // Gemini API key
	Model  string `yaml:"model,omitempty"`   // Default model name
}
