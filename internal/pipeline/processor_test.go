package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/arlobrandt/loomgraph/internal/agent"
	"github.com/arlobrandt/loomgraph/internal/contextselect"
	"github.com/arlobrandt/loomgraph/internal/graph"
	"github.com/arlobrandt/loomgraph/internal/llmclient/mock"
	"github.com/arlobrandt/loomgraph/internal/markdown"
	"github.com/arlobrandt/loomgraph/internal/mutate"
	"github.com/arlobrandt/loomgraph/internal/streambuf"
)

func mustMarshal(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	return b
}

func newTestProcessor(t *testing.T, client *mock.Client, outputDir string) *Processor {
	t.Helper()
	tree := graph.New()
	buf := streambuf.NewBuffer(streambuf.Config{Threshold: 120, HardCeiling: 2000, HistoryMultiplier: 3})
	selector := contextselect.New(&contextselect.TFIDFRanker{}, contextselect.Config{})
	runner := agent.NewRunner(client, "test-model", nil)
	applier := mutate.New(tree, 0.6, 0, nil)
	projector := markdown.New(outputDir)
	return New(tree, buf, selector, runner, applier, projector, Config{ContextLimit: 16}, nil)
}

func TestProcessCreatesNodeAndProjectsFile(t *testing.T) {
	dir := t.TempDir()
	client := &mock.Client{
		Responses: []json.RawMessage{
			mustMarshal(t, agent.SegmentationResult{Chunks: []agent.Chunk{
				{Name: "c1", Text: "We decided to use Postgres for storage.", IsComplete: true},
			}}),
			mustMarshal(t, agent.RelationshipAnalysisResult{Analyses: []agent.RelationshipAnalysis{
				{Name: "c1", Text: "We decided to use Postgres for storage.", RelevantNodeName: agent.NoRelevantNode},
			}}),
			mustMarshal(t, agent.IntegrationResult{Decisions: []agent.IntegrationDecision{
				{
					IsNewNode:               true,
					ConceptName:             "Storage Layer",
					NeighbourConceptName:    agent.RootSentinel,
					UpdatedSummaryOfNode:    "Decided on Postgres.",
					MarkdownContentToAppend: "We decided to use Postgres for storage.",
				},
			}}),
		},
	}

	p := newTestProcessor(t, client, dir)

	longChunk := "We decided to use Postgres for storage. It handles our query patterns well. " +
		"The team reviewed three alternatives before settling on it finally here we go."
	if err := p.Process(context.Background(), longChunk); err != nil {
		t.Fatalf("Process: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("expected at least one projected file, got none")
	}

	p.mu.Lock()
	created := p.stats.nodesCreated
	p.mu.Unlock()
	if created != 1 {
		t.Fatalf("nodesCreated = %d, want 1", created)
	}
}

func TestProcessBufferingReturnsNilWithoutCallingLLM(t *testing.T) {
	dir := t.TempDir()
	client := &mock.Client{}
	p := newTestProcessor(t, client, dir)

	if err := p.Process(context.Background(), "short"); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(client.Calls) != 0 {
		t.Fatalf("expected no LLM calls while buffering, got %d", len(client.Calls))
	}
}

func TestProcessAgentFailureRetainsSegmentWithoutError(t *testing.T) {
	dir := t.TempDir()
	client := &mock.Client{Err: errStub}
	p := newTestProcessor(t, client, dir)

	longChunk := "This is a long enough chunk to trip the threshold immediately here we go now."
	longChunk += longChunk
	longChunk += longChunk

	if err := p.Process(context.Background(), longChunk); err != nil {
		t.Fatalf("Process should swallow agent errors, got: %v", err)
	}
	if seg, ok := p.buf.Flush(); !ok || seg != longChunk {
		t.Fatalf("failed segment not retained: Flush() = %q, %v", seg, ok)
	}
}

func TestFinalizeWritesProcessingReport(t *testing.T) {
	dir := t.TempDir()
	client := &mock.Client{}
	p := newTestProcessor(t, client, dir)

	if err := p.Finalize(context.Background()); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, reportFilename)); err != nil {
		t.Fatalf("expected processing report to exist: %v", err)
	}
}

var errStub = stubErr{}

type stubErr struct{}

func (stubErr) Error() string { return "stub LLM failure" }
