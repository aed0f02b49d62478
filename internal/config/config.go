// Package config provides the configuration schema, loader, and provider
// registry for the loomgraph text-to-graph pipeline.
package config

import "time"

// Config is the root configuration structure for loomgraph.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Memory    MemoryConfig    `yaml:"memory"`
}

// ServerConfig holds process-wide logging settings.
type ServerConfig struct {
	// LogLevel controls verbosity. Valid values: "debug", "info", "warn", "error".
	LogLevel LogLevel `yaml:"log_level"`
}

// LogLevel is a validated logging level string.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is one of the recognised log levels.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError, "":
		return true
	default:
		return false
	}
}

// ProvidersConfig declares which provider implementation to use for the LLM
// and embeddings backends. Each field selects a named provider registered in
// the [Registry].
type ProvidersConfig struct {
	LLM        ProviderEntry `yaml:"llm"`
	Embeddings ProviderEntry `yaml:"embeddings"`

	// LLMFallbacks lists additional LLM providers tried, in order, when
	// LLM's circuit breaker opens or a call fails outright. Empty means
	// no fallback chain: a failed call simply fails.
	LLMFallbacks []ProviderEntry `yaml:"llm_fallbacks"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "ollama").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above.
	Options map[string]any `yaml:"options"`
}

// PipelineConfig holds every tunable governing how the pipeline buffers,
// selects context, calls the agent, and projects results to disk.
type PipelineConfig struct {
	// BufferSizeThreshold is StreamBuffer's emission size. Default 500.
	BufferSizeThreshold int `yaml:"buffer_size_threshold"`

	// TranscriptHistoryMultiplier sizes the rolling transcript window as a
	// multiple of BufferSizeThreshold. Default 3.
	TranscriptHistoryMultiplier int `yaml:"transcript_history_multiplier"`

	// BufferHardCeiling is the safety-escape size at which StreamBuffer force-
	// emits regardless of policy. Default 6000.
	BufferHardCeiling int `yaml:"buffer_hard_ceiling"`

	// ContextLimit is the max nodes passed to the agent per cycle.
	ContextLimit int `yaml:"context_limit"`

	// NumRecentNodesInclude is the recency slice within the context limit.
	NumRecentNodesInclude int `yaml:"num_recent_nodes_include"`

	// BackgroundRewriteEveryNAppends triggers a background rewrite after every
	// Nth append to a node. Default 2. Negative disables background rewrite.
	BackgroundRewriteEveryNAppends int `yaml:"background_rewrite_every_n_appends"`

	// FuzzyMatchThreshold is the minimum Jaro-Winkler similarity accepted by
	// resolve_name_to_id. Default 0.6.
	FuzzyMatchThreshold float64 `yaml:"fuzzy_match_threshold"`

	// ModelNames maps stage name ("segment", "relate", "decide", "rewrite") to
	// the model identifier passed through to the LLM client.
	ModelNames map[string]string `yaml:"model_names"`

	// StageTimeout bounds each LLM call. Zero means no timeout.
	StageTimeout time.Duration `yaml:"stage_timeout"`

	// OutputDir is the directory in which per-node Markdown files live.
	OutputDir string `yaml:"output_dir"`

	// StateFilePath is the optional JSON state snapshot path. Empty disables it.
	StateFilePath string `yaml:"state_file_path"`

	// DebugLogDir is the per-stage debug log directory. Empty triggers the
	// LOOMGRAPH_DEBUG_LOG_DIR env var, then a bundled-application fallback.
	DebugLogDir string `yaml:"debug_log_dir"`

	// ContextSelector chooses the ContextSelector ranking backend: "tfidf"
	// (default) or "embedding".
	ContextSelector string `yaml:"context_selector"`
}

// MemoryConfig holds settings for the optional persisted embedding cache.
type MemoryConfig struct {
	// PostgresDSN is the PostgreSQL connection string for the pgvector-backed
	// embedding cache. Empty disables persistence; embeddings are recomputed
	// in-process only.
	PostgresDSN string `yaml:"postgres_dsn"`

	// EmbeddingDimensions is the vector dimension used for the embeddings
	// column. Must match the configured embeddings provider.
	EmbeddingDimensions int `yaml:"embedding_dimensions"`
}

// Defaults returns a [PipelineConfig] with every zero-valued tunable
// replaced by its documented default.
func (p PipelineConfig) Defaults() PipelineConfig {
	if p.BufferSizeThreshold <= 0 {
		p.BufferSizeThreshold = 500
	}
	if p.TranscriptHistoryMultiplier <= 0 {
		p.TranscriptHistoryMultiplier = 3
	}
	if p.BufferHardCeiling <= 0 {
		p.BufferHardCeiling = 6000
	}
	if p.ContextLimit <= 0 {
		p.ContextLimit = 16
	}
	if p.NumRecentNodesInclude <= 0 {
		p.NumRecentNodesInclude = (p.ContextLimit*3 + 4) / 8
	}
	if p.BackgroundRewriteEveryNAppends == 0 {
		p.BackgroundRewriteEveryNAppends = 2
	}
	if p.FuzzyMatchThreshold <= 0 {
		p.FuzzyMatchThreshold = 0.6
	}
	if p.ContextSelector == "" {
		p.ContextSelector = "tfidf"
	}
	if p.OutputDir == "" {
		p.OutputDir = "./tree"
	}
	return p
}
