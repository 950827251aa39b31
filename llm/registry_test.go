package llm

import (
	"testing"
	"time"
)

func TestProviderRegistry_IsProviderEnabled(t *testing.T) {
	registry := NewProviderRegistry(&ProviderConfig{}, []string{"anthropic", "ollama"})

	if !registry.IsProviderEnabled("anthropic") {
		t.Error("anthropic should be enabled")
	}
	if !registry.IsProviderEnabled("ollama") {
		t.Error("ollama should be enabled")
	}
	if registry.IsProviderEnabled("openai") {
		t.Error("openai should not be enabled")
	}
}

func TestProviderRegistry_IsProviderConfigured(t *testing.T) {
	registry := NewProviderRegistry(&ProviderConfig{}, []string{"anthropic"})
	if registry.IsProviderConfigured("anthropic") {
		t.Error("anthropic should not be configured without API key")
	}

	registry2 := NewProviderRegistry(&ProviderConfig{AnthropicAPIKey: "test-key"}, []string{"anthropic"})
	if !registry2.IsProviderConfigured("anthropic") {
		t.Error("anthropic should be configured with API key")
	}

	// Local providers need no credentials.
	registry3 := NewProviderRegistry(&ProviderConfig{}, []string{"ollama", "lmstudio"})
	if !registry3.IsProviderConfigured("ollama") {
		t.Error("ollama should always be configured")
	}
	if !registry3.IsProviderConfigured("lmstudio") {
		t.Error("lmstudio should always be configured")
	}

	registry4 := NewProviderRegistry(&ProviderConfig{}, []string{"gemini"})
	if registry4.IsProviderConfigured("gemini") {
		t.Error("gemini should not be configured without API key")
	}
}

func TestProviderRegistry_Resolve_WithPreferences(t *testing.T) {
	registry := NewProviderRegistry(&ProviderConfig{
		AnthropicAPIKey: "test-key",
		OllamaHost:      "http://localhost:11434",
		OllamaModel:     "mistral:20b",
	}, []string{ProviderAnthropic, ProviderOllama})

	prefs := []Preference{
		{Provider: ProviderAnthropic, Model: "claude-sonnet-4-20250514"},
		{Provider: ProviderOllama, Model: "mistral:20b"},
	}

	key, err := registry.Resolve(prefs)
	if err != nil {
		t.Fatalf("Failed to resolve config: %v", err)
	}
	if key.Provider != ProviderAnthropic {
		t.Errorf("Expected provider 'anthropic', got '%s'", key.Provider)
	}
	if key.Model != "claude-sonnet-4-20250514" {
		t.Errorf("Expected model 'claude-sonnet-4-20250514', got '%s'", key.Model)
	}
	if key.APIKey != "test-key" {
		t.Errorf("Expected resolved API key, got '%s'", key.APIKey)
	}
}

func TestProviderRegistry_Resolve_SkipsUnavailablePreference(t *testing.T) {
	// Anthropic preferred but not configured; resolution should fall through
	// to ollama.
	registry := NewProviderRegistry(&ProviderConfig{
		OllamaHost:  "http://localhost:11434",
		OllamaModel: "llama3.2",
	}, []string{ProviderAnthropic, ProviderOllama})

	prefs := []Preference{
		{Provider: ProviderAnthropic},
		{Provider: ProviderOllama},
	}

	key, err := registry.Resolve(prefs)
	if err != nil {
		t.Fatalf("Failed to resolve config: %v", err)
	}
	if key.Provider != ProviderOllama {
		t.Errorf("Expected provider 'ollama', got '%s'", key.Provider)
	}
	if key.Model != "llama3.2" {
		t.Errorf("Expected configured default model, got '%s'", key.Model)
	}
}

func TestProviderRegistry_Resolve_NoProviderAvailable(t *testing.T) {
	registry := NewProviderRegistry(&ProviderConfig{}, []string{ProviderAnthropic})

	if _, err := registry.Resolve([]Preference{{Provider: ProviderAnthropic}}); err == nil {
		t.Error("expected error when no preference is configured")
	}

	empty := NewProviderRegistry(&ProviderConfig{}, nil)
	if _, err := empty.Resolve(nil); err == nil {
		t.Error("expected error with no enabled providers")
	}
}

func TestProviderRegistry_Resolve_DefaultModels(t *testing.T) {
	registry := NewProviderRegistry(&ProviderConfig{AnthropicAPIKey: "k"}, []string{ProviderAnthropic})

	key, err := registry.Resolve(nil)
	if err != nil {
		t.Fatalf("Failed to resolve config: %v", err)
	}
	if key.Model == "" {
		t.Error("expected a default model for anthropic")
	}

	// Ollama has no built-in default model; resolution must fail without one.
	registry2 := NewProviderRegistry(&ProviderConfig{}, []string{ProviderOllama})
	if _, err := registry2.Resolve(nil); err == nil {
		t.Error("expected error for ollama without a model")
	}
}

func TestProviderRegistry_CapabilityCache(t *testing.T) {
	registry := NewProviderRegistry(&ProviderConfig{}, []string{ProviderOllama})

	if caps := registry.Capabilities(ProviderOllama); len(caps) != 0 {
		t.Errorf("expected empty cache, got %+v", caps)
	}

	models := []ModelCapabilities{
		{ID: "llama3.2", Streaming: true, ToolCalling: true, RefreshedAt: time.Now()},
	}
	registry.SetCapabilities(ProviderOllama, models)

	caps := registry.Capabilities(ProviderOllama)
	if len(caps) != 1 || caps[0].ID != "llama3.2" {
		t.Errorf("capabilities = %+v", caps)
	}

	// Returned slice is a copy; mutating it must not touch the cache.
	caps[0].ID = "mutated"
	if registry.Capabilities(ProviderOllama)[0].ID != "llama3.2" {
		t.Error("cache was mutated through the returned slice")
	}
}
