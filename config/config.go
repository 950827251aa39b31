// Package config loads the scribe daemon configuration: provider credentials,
// model preferences, tool gating, and vault/storage paths. Defaults are
// merged under the user's config file with mergo, file values winning.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/aschepis/backscratcher/scribe/llm"
	"gopkg.in/yaml.v3"
)

// LLMPreference is a single provider/model preference. Multiple preferences
// are tried in order; the first enabled and configured provider wins.
type LLMPreference struct {
	Provider    string   `yaml:"provider"`              // Required: provider name
	Model       string   `yaml:"model,omitempty"`       // Optional: provider default if omitted
	Temperature *float64 `yaml:"temperature,omitempty"` // Optional temperature override
}

// VaultConfig points at the note vault scribe writes into and searches.
type VaultConfig struct {
	Path string `yaml:"path,omitempty"` // Vault root directory
}

// MCPServerConfig represents configuration for an MCP tool server.
type MCPServerConfig struct {
	Name    string   `yaml:"name,omitempty"`
	Command string   `yaml:"command,omitempty"` // STDIO transport command
	Args    []string `yaml:"args,omitempty"`    // Additional args for the command
	Env     []string `yaml:"env,omitempty"`     // Environment variables
}

// Config is the scribe daemon configuration.
type Config struct {
	// LLM provider configurations
	LLMProviders []string         `yaml:"llm_providers,omitempty"`
	Anthropic    AnthropicConfig  `yaml:"anthropic,omitempty"`
	Gemini       GeminiConfig     `yaml:"gemini,omitempty"`
	Ollama       OllamaConfig     `yaml:"ollama,omitempty"`
	OpenAI       OpenAIConfig     `yaml:"openai,omitempty"`
	OpenRouter   OpenRouterConfig `yaml:"openrouter,omitempty"`
	LMStudio     LMStudioConfig   `yaml:"lmstudio,omitempty"`

	// Ordered provider/model preferences for request resolution.
	LLM []LLMPreference `yaml:"llm,omitempty"`

	// Request shaping
	System        string `yaml:"system_prompt,omitempty"`
	MaxTokens     int64  `yaml:"max_tokens,omitempty"`
	MaxToolRounds int    `yaml:"max_tool_rounds,omitempty"` // Tool-call rounds per request

	// Tools whose array results require human approval before the model sees
	// them.
	GatedTools []string `yaml:"gated_tools,omitempty"`

	Vault    VaultConfig `yaml:"vault,omitempty"`
	Database string      `yaml:"database,omitempty"` // SQLite path for conversation history

	// Cron spec for the provider capability refresh job.
	CapabilityRefresh string `yaml:"capability_refresh,omitempty"`

	MCPServers map[string]*MCPServerConfig `yaml:"mcp_servers,omitempty"`
}

// GetConfigPath returns the default config file path.
// Can be overridden via SCRIBE_CONFIG_PATH environment variable.
func GetConfigPath() string {
	if envPath := os.Getenv("SCRIBE_CONFIG_PATH"); envPath != "" {
		return expandPath(envPath)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.scribe/config.yaml"
	}
	return filepath.Join(homeDir, ".scribe", "config.yaml")
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	return expandPath(path)
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// Load loads configuration from path, merging it over defaults. A missing
// file yields the defaults rather than an error; a malformed file is an
// error.
func Load(path string) (*Config, error) {
	defaults := Config{
		LLMProviders: []string{llm.ProviderAnthropic},
		Ollama: OllamaConfig{
			Host:    "http://localhost:11434",
			Timeout: 60,
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
		},
		LMStudio: LMStudioConfig{
			BaseURL: "http://localhost:1234/v1",
		},
		MaxTokens:         4096,
		MaxToolRounds:     2,
		GatedTools:        []string{"vault_search"},
		Database:          "~/.scribe/scribe.db",
		CapabilityRefresh: "0 0 * * * *", // hourly
		Vault: VaultConfig{
			Path: "~/notes",
		},
	}

	expandedPath := expandPath(path)
	if _, err := os.Stat(expandedPath); err != nil {
		return &defaults, nil
	}

	configYAML, err := os.ReadFile(expandedPath) //#nosec 304 -- intentional file read for config
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", expandedPath, err)
	}

	var fileConfig Config
	if err := yaml.Unmarshal(configYAML, &fileConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := mergo.Merge(&defaults, fileConfig, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}

	return &defaults, nil
}

// Save writes the configuration to the specified path.
func Save(cfg *Config, path string) error {
	expandedPath := expandPath(path)

	dir := filepath.Dir(expandedPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(expandedPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ProviderConfig maps the loaded configuration into the registry's
// provider-resolution view.
func (c *Config) ProviderConfig() *llm.ProviderConfig {
	return &llm.ProviderConfig{
		OpenAIAPIKey:     c.OpenAI.APIKey,
		OpenAIBaseURL:    c.OpenAI.BaseURL,
		OpenAIModel:      c.OpenAI.Model,
		OpenRouterAPIKey: c.OpenRouter.APIKey,
		OpenRouterModel:  c.OpenRouter.Model,
		LMStudioBaseURL:  c.LMStudio.BaseURL,
		LMStudioModel:    c.LMStudio.Model,
		AnthropicAPIKey:  c.Anthropic.APIKey,
		AnthropicModel:   c.Anthropic.Model,
		GeminiAPIKey:     c.Gemini.APIKey,
		GeminiModel:      c.Gemini.Model,
		OllamaHost:       c.Ollama.Host,
		OllamaModel:      c.Ollama.Model,
	}
}

// Preferences maps config preferences into the registry's resolution type.
func (c *Config) Preferences() []llm.Preference {
	prefs := make([]llm.Preference, 0, len(c.LLM))
	for _, p := range c.LLM {
		prefs = append(prefs, llm.Preference{
			Provider:    p.Provider,
			Model:       p.Model,
			Temperature: p.Temperature,
		})
	}
	return prefs
}
