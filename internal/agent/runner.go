package agent

import (
	"context"
	"sync"

	"github.com/arlobrandt/loomgraph/internal/debuglog"
	"github.com/arlobrandt/loomgraph/internal/llmclient"
)

// Runner orchestrates the three sequential stages for one agent run,
// threading typed state between them and preserving cross-cycle
// continuity the way tree_action_decider.py's Decider tracks
// _prev_chunk/_prev_output.
type Runner struct {
	client llmclient.Client
	model  string
	logger *debuglog.Logger

	mu            sync.Mutex
	lastChunk     string
	lastDecisions []IntegrationDecision
}

// NewRunner constructs a Runner. logger may be nil, in which case debug
// logging is skipped entirely.
func NewRunner(client llmclient.Client, model string, logger *debuglog.Logger) *Runner {
	return &Runner{client: client, model: model, logger: logger}
}

// Run executes all three stages for one segment and returns the resulting
// decisions plus any trailing incomplete chunk text.
func (r *Runner) Run(ctx context.Context, segment, transcriptHistory, existingNodesBlock string) (RunResult, error) {
	seg, prompt, raw, err := runSegmentation(ctx, r.client, r.model, transcriptHistory, segment)
	r.logStage("segmentation", map[string]any{"segment": segment, "transcript_history": transcriptHistory}, seg, prompt, raw)
	if err != nil {
		return RunResult{}, err
	}

	var remainder string
	chunks := seg.Chunks
	if n := len(chunks); n > 0 && !chunks[n-1].IsComplete {
		remainder = chunks[n-1].Text
		chunks = chunks[:n-1]
	}

	if len(chunks) == 0 {
		return RunResult{IncompleteRemainder: remainder}, nil
	}

	relate, prompt, raw, err := runRelationshipAnalysis(ctx, r.client, r.model, existingNodesBlock, chunks)
	r.logStage("relationship_analysis", map[string]any{"chunks": chunks, "existing_nodes_block": existingNodesBlock}, relate, prompt, raw)
	if err != nil {
		return RunResult{}, err
	}

	completeAnalyses := filterComplete(chunks, relate.Analyses)
	if len(completeAnalyses) == 0 {
		return RunResult{IncompleteRemainder: remainder}, nil
	}

	decide, prompt, raw, err := runIntegrationDecision(ctx, r.client, r.model, existingNodesBlock, completeAnalyses)
	r.logStage("integration_decision", map[string]any{"analyses": completeAnalyses, "existing_nodes_block": existingNodesBlock}, decide, prompt, raw)
	if err != nil {
		return RunResult{}, err
	}

	r.mu.Lock()
	r.lastChunk = remainder
	r.lastDecisions = decide.Decisions
	r.mu.Unlock()

	return RunResult{Decisions: decide.Decisions, IncompleteRemainder: remainder}, nil
}

// LastCycle returns the trailing chunk text and decisions recorded by the
// most recent Run call that completed all three stages; a Run that fails,
// or ends early because no complete chunk or analysis remains, leaves them
// unchanged. Mirrors the original's
// _prev_chunk/_prev_output continuity fields.
func (r *Runner) LastCycle() (lastChunk string, lastDecisions []IntegrationDecision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastChunk, append([]IntegrationDecision(nil), r.lastDecisions...)
}

// Finalize resets cross-cycle continuity state. Called by ChunkProcessor
// at shutdown so a restarted Runner never carries over stale state.
func (r *Runner) Finalize() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastChunk = ""
	r.lastDecisions = nil
}

func (r *Runner) logStage(stage string, before, after any, prompt, rawResponse string) {
	if r.logger == nil {
		return
	}
	r.logger.LogStage(stage, before, after, prompt, rawResponse)
}
