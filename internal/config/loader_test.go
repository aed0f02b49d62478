package config

import (
	"strings"
	"testing"
)

const minimalYAML = `
providers:
  llm:
    name: openai
    api_key: sk-test
pipeline:
  output_dir: ./tree
`

func TestLoadFromReaderAppliesDefaults(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(minimalYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Pipeline.BufferSizeThreshold != 500 {
		t.Errorf("BufferSizeThreshold = %d, want 500", cfg.Pipeline.BufferSizeThreshold)
	}
	if cfg.Pipeline.FuzzyMatchThreshold != 0.6 {
		t.Errorf("FuzzyMatchThreshold = %v, want 0.6", cfg.Pipeline.FuzzyMatchThreshold)
	}
	if cfg.Pipeline.ContextSelector != "tfidf" {
		t.Errorf("ContextSelector = %q, want tfidf", cfg.Pipeline.ContextSelector)
	}
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	bad := minimalYAML + "bogus_top_level_field: true\n"
	if _, err := LoadFromReader(strings.NewReader(bad)); err == nil {
		t.Fatal("expected decode error for unknown field")
	}
}

func TestValidateRequiresLLMProvider(t *testing.T) {
	cfg := &Config{Pipeline: PipelineConfig{OutputDir: "./tree"}}
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "providers.llm.name is required") {
		t.Fatalf("Validate = %v, want providers.llm.name error", err)
	}
}

func TestValidateRequiresOutputDir(t *testing.T) {
	cfg := &Config{Providers: ProvidersConfig{LLM: ProviderEntry{Name: "openai"}}}
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "pipeline.output_dir is required") {
		t.Fatalf("Validate = %v, want pipeline.output_dir error", err)
	}
}

func TestValidateRejectsEmbeddingSelectorWithoutProvider(t *testing.T) {
	cfg := &Config{
		Providers: ProvidersConfig{LLM: ProviderEntry{Name: "openai"}},
		Pipeline:  PipelineConfig{OutputDir: "./tree", ContextSelector: "embedding"},
	}
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "context_selector is \"embedding\"") {
		t.Fatalf("Validate = %v, want embedding provider error", err)
	}
}

func TestValidateRejectsFuzzyThresholdOutOfRange(t *testing.T) {
	cfg := &Config{
		Providers: ProvidersConfig{LLM: ProviderEntry{Name: "openai"}},
		Pipeline:  PipelineConfig{OutputDir: "./tree", FuzzyMatchThreshold: 1.5},
	}
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "fuzzy_match_threshold") {
		t.Fatalf("Validate = %v, want fuzzy_match_threshold error", err)
	}
}

func TestValidateRejectsLLMFallbackMissingName(t *testing.T) {
	cfg := &Config{
		Providers: ProvidersConfig{
			LLM:          ProviderEntry{Name: "openai"},
			LLMFallbacks: []ProviderEntry{{Model: "llama3.1"}},
		},
		Pipeline: PipelineConfig{OutputDir: "./tree"},
	}
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "llm_fallbacks entries must set name") {
		t.Fatalf("Validate = %v, want llm_fallbacks name error", err)
	}
}
