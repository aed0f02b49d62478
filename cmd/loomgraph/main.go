// Command loomgraph runs the real-time speech-to-knowledge-graph pipeline:
// it reads transcript chunks from a voice source, drives them through the
// staged LLM agent, and projects the resulting decision tree to Markdown
// files on disk.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arlobrandt/loomgraph/internal/agent"
	"github.com/arlobrandt/loomgraph/internal/config"
	"github.com/arlobrandt/loomgraph/internal/contextselect"
	"github.com/arlobrandt/loomgraph/internal/debuglog"
	"github.com/arlobrandt/loomgraph/internal/embeddings"
	ollamaemb "github.com/arlobrandt/loomgraph/internal/embeddings/ollama"
	embopenai "github.com/arlobrandt/loomgraph/internal/embeddings/openai"
	"github.com/arlobrandt/loomgraph/internal/embeddings/pgcache"
	"github.com/arlobrandt/loomgraph/internal/graph"
	"github.com/arlobrandt/loomgraph/internal/llmclient"
	"github.com/arlobrandt/loomgraph/internal/llmclient/anyllm"
	"github.com/arlobrandt/loomgraph/internal/llmclient/openai"
	"github.com/arlobrandt/loomgraph/internal/markdown"
	"github.com/arlobrandt/loomgraph/internal/mutate"
	"github.com/arlobrandt/loomgraph/internal/observe"
	"github.com/arlobrandt/loomgraph/internal/pipeline"
	"github.com/arlobrandt/loomgraph/internal/resilience"
	"github.com/arlobrandt/loomgraph/internal/streambuf"
	"github.com/arlobrandt/loomgraph/internal/voicesource"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "loomgraph: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "loomgraph: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("loomgraph starting", "config", *configPath, "log_level", cfg.Server.LogLevel)

	shutdownObserve, err := observe.InitProvider(context.Background(), observe.ProviderConfig{ServiceName: "loomgraph"})
	if err != nil {
		slog.Error("failed to initialise observability provider", "err", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownObserve(ctx)
	}()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	llmClient, err := buildLLMClient(cfg, reg)
	if err != nil {
		slog.Error("failed to build llm provider", "err", err)
		return 1
	}

	selector, err := buildContextSelector(cfg, reg)
	if err != nil {
		slog.Error("failed to build context selector", "err", err)
		return 1
	}

	printStartupSummary(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	proc := buildProcessor(cfg, llmClient, selector)

	source := voicesource.NewStdinSource(os.Stdin, 16)

	slog.Info("loomgraph ready — reading transcript chunks from stdin, press Ctrl+C to shut down")

	if err := runLoop(ctx, proc, source); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, draining remaining work…")
	if err := proc.Finalize(shutdownCtx); err != nil {
		slog.Error("finalize error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// runLoop feeds chunks from source into proc until ctx is cancelled or the
// source's channel closes.
func runLoop(ctx context.Context, proc *pipeline.Processor, source voicesource.Source) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-source.Chunks():
			if !ok {
				return nil
			}
			if err := proc.Process(ctx, chunk); err != nil {
				return fmt.Errorf("process chunk: %w", err)
			}
		}
	}
}

// ── Provider wiring ──────────────────────────────────────────────────────

// registerBuiltinProviders wires every LLM and embeddings backend named in
// the example pack into reg.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterLLM("openai", func(e config.ProviderEntry) (llmclient.Client, error) {
		return openai.New(e.APIKey, openai.WithBaseURL(e.BaseURL))
	})
	for _, name := range []string{"anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"} {
		name := name
		reg.RegisterLLM(name, func(e config.ProviderEntry) (llmclient.Client, error) {
			return anyllm.New(name, 0)
		})
	}

	reg.RegisterEmbeddings("openai", func(e config.ProviderEntry) (embeddings.Provider, error) {
		return embopenai.New(e.APIKey, e.Model)
	})
	reg.RegisterEmbeddings("ollama", func(e config.ProviderEntry) (embeddings.Provider, error) {
		return ollamaemb.New(e.BaseURL, e.Model)
	})
}

// buildLLMClient instantiates the configured LLM provider — plus any
// providers.llm_fallbacks chain behind it — and wraps the result with
// retry-with-backoff and a circuit breaker.
func buildLLMClient(cfg *config.Config, reg *config.Registry) (llmclient.Client, error) {
	primary, err := reg.CreateLLM(cfg.Providers.LLM)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", cfg.Providers.LLM.Name, err)
	}

	var inner llmclient.Client = primary
	if len(cfg.Providers.LLMFallbacks) > 0 {
		chain := llmclient.NewFallbackClient(primary, cfg.Providers.LLM.Name, resilience.FallbackConfig{
			CircuitBreaker: resilience.CircuitBreakerConfig{MaxFailures: 5, ResetTimeout: 30 * time.Second},
		})
		for _, fb := range cfg.Providers.LLMFallbacks {
			fbClient, err := reg.CreateLLM(fb)
			if err != nil {
				return nil, fmt.Errorf("create llm fallback provider %q: %w", fb.Name, err)
			}
			chain.AddFallback(fb.Name, fbClient)
		}
		inner = chain
	}

	return llmclient.NewResilient(inner, "llm/"+cfg.Providers.LLM.Name, llmclient.ResilientConfig{
		Retry:          resilience.RetryConfig{MaxAttempts: 3},
		CircuitBreaker: resilience.CircuitBreakerConfig{MaxFailures: 5, ResetTimeout: 30 * time.Second},
	}), nil
}

// buildContextSelector constructs the TF-IDF or embedding-backed
// ContextSelector named by cfg.Pipeline.ContextSelector.
func buildContextSelector(cfg *config.Config, reg *config.Registry) (*contextselect.Selector, error) {
	selCfg := contextselect.Config{
		RecencyNumerator:   cfg.Pipeline.NumRecentNodesInclude,
		RecencyDenominator: cfg.Pipeline.ContextLimit,
	}

	if cfg.Pipeline.ContextSelector != "embedding" {
		return contextselect.New(&contextselect.TFIDFRanker{}, selCfg), nil
	}

	provider, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
	if err != nil {
		return nil, fmt.Errorf("create embeddings provider %q: %w", cfg.Providers.Embeddings.Name, err)
	}

	var cache contextselect.PersistedCache
	if cfg.Memory.PostgresDSN != "" {
		pool, err := pgxpool.New(context.Background(), cfg.Memory.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect embedding cache database: %w", err)
		}
		c := pgcache.New(pool)
		dims := cfg.Memory.EmbeddingDimensions
		if dims <= 0 {
			dims = 1536
		}
		if err := c.Migrate(context.Background(), dims); err != nil {
			return nil, fmt.Errorf("migrate embedding cache schema: %w", err)
		}
		cache = c
	}

	return contextselect.New(contextselect.NewEmbeddingRanker(provider, cache), selCfg), nil
}

// buildProcessor wires every ChunkProcessor collaborator together.
func buildProcessor(cfg *config.Config, llmClient llmclient.Client, selector *contextselect.Selector) *pipeline.Processor {
	tree := graph.New()

	buf := streambuf.NewBuffer(streambuf.Config{
		Threshold:         cfg.Pipeline.BufferSizeThreshold,
		HardCeiling:       cfg.Pipeline.BufferHardCeiling,
		HistoryMultiplier: cfg.Pipeline.TranscriptHistoryMultiplier,
	})

	logger := debuglog.New(cfg.Pipeline.DebugLogDir)
	model := cfg.Pipeline.ModelNames["decide"]
	if model == "" {
		model = cfg.Providers.LLM.Model
	}
	runner := agent.NewRunner(llmClient, model, logger)

	var rewriteTrigger chan int
	if cfg.Pipeline.BackgroundRewriteEveryNAppends > 0 {
		rewriteTrigger = make(chan int, 64)
	}
	applier := mutate.New(tree, cfg.Pipeline.FuzzyMatchThreshold, cfg.Pipeline.BackgroundRewriteEveryNAppends, rewriteTrigger)

	if rewriteTrigger != nil {
		rewriteModel := cfg.Pipeline.ModelNames["rewrite"]
		if rewriteModel == "" {
			rewriteModel = model
		}
		worker := mutate.NewWorker(tree, llmClient, rewriteModel, applier)
		go worker.Run(context.Background(), rewriteTrigger)
	}

	projector := markdown.New(cfg.Pipeline.OutputDir)

	metrics := observe.DefaultMetrics()

	return pipeline.New(tree, buf, selector, runner, applier, projector, pipeline.Config{
		ContextLimit:  cfg.Pipeline.ContextLimit,
		StageTimeout:  cfg.Pipeline.StageTimeout,
		StateFilePath: cfg.Pipeline.StateFilePath,
	}, metrics)
}

// ── Startup summary ──────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        loomgraph — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printField("LLM provider", cfg.Providers.LLM.Name)
	printField("Embeddings", cfg.Providers.Embeddings.Name)
	printField("Context selector", cfg.Pipeline.ContextSelector)
	printField("Output dir", cfg.Pipeline.OutputDir)
	fmt.Printf("║  Context limit   : %-19d ║\n", cfg.Pipeline.ContextLimit)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printField(label, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-15s : %-19s ║\n", label, value)
}

// ── Logger ────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
