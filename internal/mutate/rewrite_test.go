package mutate

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/arlobrandt/loomgraph/internal/graph"
	"github.com/arlobrandt/loomgraph/internal/llmclient/mock"
)

func TestWorkerRewritesNodeOnTrigger(t *testing.T) {
	tr := graph.New()
	id, err := tr.CreateNode("Storage Layer", graph.RootID, "We should use Postgres. We should use Postgres.", "dup summary", graph.RelChildOf)
	if err != nil {
		t.Fatalf("CreateNode: %v", err)
	}

	client := &mock.Client{
		Responses: []json.RawMessage{
			mustJSON(t, RewriteResult{
				CleanedContent: "We should use Postgres.",
				CleanedSummary: "Decided on Postgres for storage.",
			}),
		},
	}

	applier := New(tr, 0.6, 2, nil)
	worker := NewWorker(tr, client, "test-model", applier)

	trigger := make(chan int, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan struct{})
	go func() {
		worker.Run(ctx, trigger)
		close(runDone)
	}()
	trigger <- id
	close(trigger)
	<-runDone

	worker.Wait(2 * time.Second)

	node, err := tr.Snapshot(id)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if node.Content != "We should use Postgres." {
		t.Fatalf("Content = %q, want cleaned content", node.Content)
	}
	if node.AppendCount() != 0 {
		t.Fatalf("AppendCount = %d, want 0 after UpdateNode reset", node.AppendCount())
	}

	dirty := applier.DirtyIDs()
	if len(dirty) != 1 || dirty[0] != id {
		t.Fatalf("DirtyIDs = %v, want [%d]", dirty, id)
	}
}

func TestWorkerDropsFailedRewriteWithoutPanicking(t *testing.T) {
	tr := graph.New()
	id, _ := tr.CreateNode("X", graph.RootID, "content", "summary", graph.RelChildOf)

	client := &mock.Client{Err: errFakeTransport}
	applier := New(tr, 0.6, 2, nil)
	worker := NewWorker(tr, client, "test-model", applier)

	trigger := make(chan int, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.Run(ctx, trigger)
	trigger <- id
	close(trigger)
	worker.Wait(2 * time.Second)

	node, _ := tr.Snapshot(id)
	if node.Content != "content" {
		t.Fatalf("Content changed despite failed rewrite: %q", node.Content)
	}
	if len(applier.DirtyIDs()) != 0 {
		t.Fatalf("DirtyIDs = %v, want none after failed rewrite", applier.DirtyIDs())
	}
}

func TestWorkerSkipsDuplicateInFlightTrigger(t *testing.T) {
	tr := graph.New()
	id, _ := tr.CreateNode("X", graph.RootID, "content", "summary", graph.RelChildOf)

	client := &mock.Client{
		Responses: []json.RawMessage{
			mustJSON(t, RewriteResult{CleanedContent: "cleaned", CleanedSummary: "s"}),
		},
	}
	applier := New(tr, 0.6, 2, nil)
	worker := NewWorker(tr, client, "test-model", applier)
	worker.inFlight[id] = struct{}{}

	if worker.claim(id) {
		t.Fatalf("claim() succeeded for an id already in flight")
	}
}

var errFakeTransport = &fakeErr{"simulated transport failure"}

type fakeErr struct{ msg string }

func (e *fakeErr) Error() string { return e.msg }

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	return b
}
