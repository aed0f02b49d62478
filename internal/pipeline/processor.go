// Package pipeline implements ChunkProcessor: the top-level coordinator
// that drives StreamBuffer → ContextSelector → StagedAgent →
// MutationApplier → MarkdownProjector for each incoming voice chunk, and
// exposes the pipeline's only public entry point.
//
// Tracing/metrics instrumentation follows internal/observe's Metrics and
// StartSpan conventions, with instrument names scoped to the pipeline
// stages this repository actually emits: cycle duration, projection
// duration, dirty-node count, nodes created/appended, and LLM errors.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/arlobrandt/loomgraph/internal/agent"
	"github.com/arlobrandt/loomgraph/internal/contextselect"
	"github.com/arlobrandt/loomgraph/internal/graph"
	"github.com/arlobrandt/loomgraph/internal/markdown"
	"github.com/arlobrandt/loomgraph/internal/mutate"
	"github.com/arlobrandt/loomgraph/internal/observe"
	"github.com/arlobrandt/loomgraph/internal/streambuf"
)

// Config tunes Processor behavior beyond what its collaborators already
// own individually.
type Config struct {
	// ContextLimit is the max nodes passed to ContextSelector.Select per
	// cycle.
	ContextLimit int

	// StageTimeout bounds the StagedAgent.Run call. Zero means no
	// timeout.
	StageTimeout time.Duration

	// StateFilePath is the optional JSON state snapshot path. Empty
	// disables snapshotting.
	StateFilePath string
}

// Processor implements ChunkProcessor. Process is the only method the
// voice source (or its adapting main loop) needs to call per chunk;
// Finalize drains remaining state at shutdown.
type Processor struct {
	tree      *graph.Tree
	buf       *streambuf.Buffer
	selector  *contextselect.Selector
	runner    *agent.Runner
	applier   *mutate.Applier
	projector *markdown.Projector
	cfg       Config
	metrics   *observe.Metrics

	mu    sync.Mutex
	stats stats
}

type stats struct {
	cycles          int
	nodesCreated    int
	nodesAppended   int
	decisionsFailed int
}

// New constructs a Processor. metrics may be nil to disable
// instrumentation (tests typically pass nil).
func New(tree *graph.Tree, buf *streambuf.Buffer, selector *contextselect.Selector, runner *agent.Runner, applier *mutate.Applier, projector *markdown.Projector, cfg Config, metrics *observe.Metrics) *Processor {
	if cfg.ContextLimit <= 0 {
		cfg.ContextLimit = 16
	}
	return &Processor{
		tree:      tree,
		buf:       buf,
		selector:  selector,
		runner:    runner,
		applier:   applier,
		projector: projector,
		cfg:       cfg,
		metrics:   metrics,
	}
}

// Process is the pipeline's single public entry point, called by the
// voice source once per transcription burst. It never returns an error
// for ordinary bad input (empty chunks, LLM blips, projection I/O
// failures) — those are logged and manifest as no graph change, or a
// deferred projection, that cycle. It returns nil in every case: a failed
// CreateNode inside MutationApplier.Apply is logged there and is not
// returned either.
func (p *Processor) Process(ctx context.Context, chunk string) error {
	segment, ready := p.buf.AddText(chunk)
	if !ready {
		return nil
	}
	return p.runCycle(ctx, segment)
}

// Finalize drains any remaining buffered text, ensures every dirty node
// is projected, resets the agent's cross-cycle continuity state, and
// writes a processing-report Markdown file alongside the projected node
// files.
func (p *Processor) Finalize(ctx context.Context) error {
	if segment, ready := p.buf.Flush(); ready {
		if err := p.runCycle(ctx, segment); err != nil {
			return err
		}
	}

	if err := p.projectDirty(ctx); err != nil {
		slog.Warn("pipeline: final projection failed", "error", err)
	}

	p.runner.Finalize()

	p.mu.Lock()
	snap := p.stats
	p.mu.Unlock()

	if err := writeReport(p.projector.OutputDir, snap, p.cfg); err != nil {
		slog.Warn("pipeline: failed to write processing report", "error", err)
	}
	return nil
}

// runCycle drives one full segment through ContextSelector → StagedAgent
// → MutationApplier → MarkdownProjector.
func (p *Processor) runCycle(ctx context.Context, segment string) error {
	ctx, span := observe.StartSpan(ctx, "pipeline.cycle")
	defer span.End()
	start := time.Now()

	err := p.processSegment(ctx, segment)

	if p.metrics != nil {
		p.metrics.CycleDuration.Record(ctx, time.Since(start).Seconds())
	}
	return err
}

func (p *Processor) processSegment(ctx context.Context, segment string) error {
	selected, err := p.selector.Select(ctx, p.tree, p.cfg.ContextLimit, segment)
	if err != nil {
		slog.Warn("pipeline: context selection failed, proceeding with empty context", "error", err)
		selected = nil
	}
	block := renderExistingNodesBlock(p.tree, selected)

	stageCtx := ctx
	var cancel context.CancelFunc
	if p.cfg.StageTimeout > 0 {
		stageCtx, cancel = context.WithTimeout(ctx, p.cfg.StageTimeout)
		defer cancel()
	}

	result, err := p.runner.Run(stageCtx, segment, p.buf.TranscriptHistory(), block)
	if err != nil {
		// The cycle is abandoned and the segment is retained for the
		// next cycle by feeding it back as an incomplete remainder.
		slog.Warn("pipeline: agent run failed, retaining segment for next cycle", "error", err)
		p.buf.SetIncompleteRemainder(segment)
		if p.metrics != nil {
			p.metrics.LLMErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", "cycle")))
		}
		return nil
	}

	if result.IncompleteRemainder != "" {
		p.buf.SetIncompleteRemainder(result.IncompleteRemainder)
	}

	p.applier.Apply(result.Decisions)
	p.recordDecisions(ctx, result.Decisions)

	if err := p.projectDirty(ctx); err != nil {
		slog.Warn("pipeline: projection failed, dirty ids retained for next cycle", "error", err)
	}
	return nil
}

func (p *Processor) projectDirty(ctx context.Context) error {
	dirty := p.applier.DirtyIDs()
	if len(dirty) == 0 {
		return nil
	}
	if p.metrics != nil {
		p.metrics.DirtyNodes.Add(ctx, int64(len(dirty)))
	}

	start := time.Now()
	err := p.projector.Project(p.tree, dirty)
	if p.metrics != nil {
		p.metrics.ProjectionDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		// The dirty set is left intact so projection retries next
		// cycle; the pipeline continues regardless.
		return fmt.Errorf("pipeline: project dirty nodes: %w", err)
	}
	p.applier.ClearDirty()
	if p.metrics != nil {
		p.metrics.DirtyNodes.Add(ctx, -int64(len(dirty)))
	}

	if p.cfg.StateFilePath != "" {
		if err := p.tree.SaveState(p.cfg.StateFilePath); err != nil {
			slog.Warn("pipeline: save state snapshot failed", "error", err)
		}
	}
	return nil
}

func (p *Processor) recordDecisions(ctx context.Context, decisions []agent.IntegrationDecision) {
	p.mu.Lock()
	p.stats.cycles++
	for _, d := range decisions {
		if d.IsNewNode {
			p.stats.nodesCreated++
		} else {
			p.stats.nodesAppended++
		}
	}
	p.mu.Unlock()

	if p.metrics == nil {
		return
	}
	for _, d := range decisions {
		if d.IsNewNode {
			p.metrics.NodesCreated.Add(ctx, 1)
		} else {
			p.metrics.NodesAppended.Add(ctx, 1)
		}
	}
}
