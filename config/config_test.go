package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aschepis/backscratcher/scribe/llm"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.MaxToolRounds != 2 {
		t.Errorf("MaxToolRounds = %d, want 2", cfg.MaxToolRounds)
	}
	if cfg.MaxTokens != 4096 {
		t.Errorf("MaxTokens = %d, want 4096", cfg.MaxTokens)
	}
	if cfg.Ollama.Host != "http://localhost:11434" {
		t.Errorf("Ollama.Host = %q, want default", cfg.Ollama.Host)
	}
	if len(cfg.LLMProviders) != 1 || cfg.LLMProviders[0] != llm.ProviderAnthropic {
		t.Errorf("LLMProviders = %v, want [anthropic]", cfg.LLMProviders)
	}
	if len(cfg.GatedTools) != 1 || cfg.GatedTools[0] != "vault_search" {
		t.Errorf("GatedTools = %v, want [vault_search]", cfg.GatedTools)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
llm_providers:
  - openai
  - ollama
openai:
  api_key: sk-test
  model: gpt-4o
ollama:
  model: llama3.2
max_tool_rounds: 5
llm:
  - provider: openai
    model: gpt-4o
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.OpenAI.APIKey != "sk-test" {
		t.Errorf("OpenAI.APIKey = %q, want sk-test", cfg.OpenAI.APIKey)
	}
	if cfg.MaxToolRounds != 5 {
		t.Errorf("MaxToolRounds = %d, want 5", cfg.MaxToolRounds)
	}
	// Defaults survive for fields the file omits.
	if cfg.Ollama.Host != "http://localhost:11434" {
		t.Errorf("Ollama.Host = %q, want default retained", cfg.Ollama.Host)
	}
	if cfg.Ollama.Model != "llama3.2" {
		t.Errorf("Ollama.Model = %q, want llama3.2", cfg.Ollama.Model)
	}
	if len(cfg.LLMProviders) != 2 {
		t.Errorf("LLMProviders = %v, want two entries", cfg.LLMProviders)
	}
	prefs := cfg.Preferences()
	if len(prefs) != 1 || prefs[0].Provider != "openai" || prefs[0].Model != "gpt-4o" {
		t.Errorf("Preferences() = %+v, want single openai/gpt-4o entry", prefs)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("llm_providers: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error for malformed config")
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := &Config{
		LLMProviders:  []string{llm.ProviderOllama},
		Ollama:        OllamaConfig{Host: "http://localhost:11434", Model: "qwen2.5"},
		MaxToolRounds: 3,
	}
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if loaded.Ollama.Model != "qwen2.5" {
		t.Errorf("Ollama.Model = %q, want qwen2.5", loaded.Ollama.Model)
	}
	if loaded.MaxToolRounds != 3 {
		t.Errorf("MaxToolRounds = %d, want 3", loaded.MaxToolRounds)
	}
}

func TestGetConfigPath_EnvOverride(t *testing.T) {
	t.Setenv("SCRIBE_CONFIG_PATH", "/tmp/custom-scribe.yaml")
	if got := GetConfigPath(); got != "/tmp/custom-scribe.yaml" {
		t.Errorf("GetConfigPath() = %q, want env override", got)
	}
}

func TestProviderConfig_Mapping(t *testing.T) {
	cfg := &Config{
		OpenAI:    OpenAIConfig{APIKey: "sk-1", BaseURL: "http://proxy", Model: "gpt-4o"},
		Anthropic: AnthropicConfig{APIKey: "sk-ant", Model: "claude-haiku-4-5"},
		Ollama:    OllamaConfig{Host: "http://box:11434", Model: "llama3.2"},
	}
	pc := cfg.ProviderConfig()
	if pc.OpenAIAPIKey != "sk-1" || pc.OpenAIBaseURL != "http://proxy" {
		t.Errorf("openai mapping incorrect: %+v", pc)
	}
	if pc.AnthropicModel != "claude-haiku-4-5" {
		t.Errorf("anthropic mapping incorrect: %+v", pc)
	}
	if pc.OllamaHost != "http://box:11434" {
		t.Errorf("ollama mapping incorrect: %+v", pc)
	}
}
