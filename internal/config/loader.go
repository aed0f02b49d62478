package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":        {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"embeddings": {"openai", "ollama"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It loads a sibling ".env" file (if present) before parsing, so
// ${VAR}-style placeholders in provider credentials resolve against it,
// then wraps [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	if err := LoadEnvFile(".env"); err != nil {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.Providers.LLM = expandProviderEntry(cfg.Providers.LLM)
	cfg.Providers.Embeddings = expandProviderEntry(cfg.Providers.Embeddings)
	for i, fb := range cfg.Providers.LLMFallbacks {
		cfg.Providers.LLMFallbacks[i] = expandProviderEntry(fb)
	}
	cfg.Pipeline = cfg.Pipeline.Defaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)
	for _, fb := range cfg.Providers.LLMFallbacks {
		validateProviderName("llm", fb.Name)
		if fb.Name == "" {
			errs = append(errs, errors.New("providers.llm_fallbacks entries must set name"))
		}
	}

	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm.name is required: the staged agent cannot call_structured without an LLM provider"))
	}

	if cfg.Pipeline.ContextSelector == "embedding" && cfg.Providers.Embeddings.Name == "" {
		errs = append(errs, errors.New("pipeline.context_selector is \"embedding\" but providers.embeddings.name is not configured"))
	}

	if cfg.Providers.Embeddings.Name != "" && cfg.Memory.EmbeddingDimensions <= 0 {
		slog.Warn("providers.embeddings is configured but memory.embedding_dimensions is not set; defaulting to 1536")
	}

	if cfg.Pipeline.OutputDir == "" {
		errs = append(errs, errors.New("pipeline.output_dir is required"))
	}

	if cfg.Pipeline.FuzzyMatchThreshold < 0 || cfg.Pipeline.FuzzyMatchThreshold > 1 {
		errs = append(errs, fmt.Errorf("pipeline.fuzzy_match_threshold %.2f must be in [0,1]", cfg.Pipeline.FuzzyMatchThreshold))
	}

	if cfg.Pipeline.BufferSizeThreshold > 0 && cfg.Pipeline.BufferHardCeiling > 0 &&
		cfg.Pipeline.BufferHardCeiling < cfg.Pipeline.BufferSizeThreshold {
		errs = append(errs, errors.New("pipeline.buffer_hard_ceiling must not be smaller than pipeline.buffer_size_threshold"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
