package mutate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/arlobrandt/loomgraph/internal/graph"
	"github.com/arlobrandt/loomgraph/internal/llmclient"
)

// RewriteResult is the background rewriter's structured LLM output.
type RewriteResult struct {
	CleanedContent string `json:"cleaned_content" jsonschema:"required,description=Deduplicated, cleaned-up Markdown content for the node"`
	CleanedSummary string `json:"cleaned_summary" jsonschema:"required,description=A dense, at most three sentence summary of the cleaned content"`
}

const rewriteTemplateSrc = `You are cleaning up one node of a growing knowledge graph after repeated
appends. Remove duplication, tighten the prose, and keep every distinct
fact; do not invent new ones.

Node title: {{.Title}}

Current content:
{{.Content}}

Recent transcript excerpts that produced this content:
{{range .TranscriptExcerpts}}- {{.}}
{{end}}
Respond as JSON matching this example shape exactly:
{
  "cleaned_content": "...",
  "cleaned_summary": "..."
}
`

var rewriteTemplate = template.Must(template.New("rewrite").Parse(rewriteTemplateSrc))

var (
	rewriteSchemaOnce sync.Once
	rewriteSchemaJSON json.RawMessage
	rewriteSchemaErr  error
)

func rewriteSchema() (json.RawMessage, error) {
	rewriteSchemaOnce.Do(func() {
		reflector := &jsonschema.Reflector{
			RequiredFromJSONSchemaTags: true,
			ExpandedStruct:             true,
			DoNotReference:             true,
		}
		schema := reflector.Reflect(new(RewriteResult))
		rewriteSchemaJSON, rewriteSchemaErr = json.Marshal(schema)
	})
	return rewriteSchemaJSON, rewriteSchemaErr
}

// defaultMaxInFlightRewrites bounds the background rewrite worker pool.
const defaultMaxInFlightRewrites = 4

// Worker runs background node rewrites: after every Nth append to a node
// (driven by Applier's rewriteEveryN via the channel Applier was
// constructed with), it asks the LLM for a cleaned, deduplicated rewrite
// of that node's content and summary and applies it through
// Tree.UpdateNode. Rewrites are fire-and-forget — any failure (LLM call,
// response parse, or UpdateNode) is logged at Warn and dropped, never
// surfaced to the primary pipeline — and at most one rewrite is
// outstanding per node id at a time.
//
// The background-loop shape follows internal/session/consolidator.go's
// pattern, adapted from a ticker-driven loop with a sync.Once-guarded Stop
// to an event-driven consumer of the channel MutationApplier populates.
// Worker has no Stop method: Run returns when its ctx is cancelled or the
// channel is closed, and Wait drains outstanding rewrites.
type Worker struct {
	tree    *graph.Tree
	client  llmclient.Client
	model   string
	applier *Applier

	maxInFlight int

	mu       sync.Mutex
	inFlight map[int]struct{}
	wg       sync.WaitGroup
}

// NewWorker constructs a Worker. Completed rewrites mark their node id
// dirty on applier so the next projection cycle picks up the cleaned
// content.
func NewWorker(tree *graph.Tree, client llmclient.Client, model string, applier *Applier) *Worker {
	return &Worker{
		tree:        tree,
		client:      client,
		model:       model,
		applier:     applier,
		maxInFlight: defaultMaxInFlightRewrites,
		inFlight:    make(map[int]struct{}),
	}
}

// Run consumes node ids from trigger, spawning one rewrite goroutine per
// id (skipping ids with a rewrite already outstanding), until trigger is
// closed or ctx is cancelled. Intended to run on its own goroutine for
// the process lifetime; callers cancel ctx and then call Wait for
// graceful shutdown.
func (w *Worker) Run(ctx context.Context, trigger <-chan int) {
	sem := make(chan struct{}, w.maxInFlight)
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-trigger:
			if !ok {
				return
			}
			if !w.claim(id) {
				continue
			}
			sem <- struct{}{}
			w.wg.Add(1)
			go func(id int) {
				defer func() {
					<-sem
					w.release(id)
					w.wg.Done()
				}()
				w.rewriteOne(ctx, id)
			}(id)
		}
	}
}

// Wait blocks until every outstanding rewrite finishes or timeout
// elapses, whichever comes first — the shutdown grace period for
// in-flight background rewrites.
func (w *Worker) Wait(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		slog.Warn("mutate: background rewrites did not finish within shutdown grace period")
	}
}

func (w *Worker) claim(id int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.inFlight[id]; ok {
		return false
	}
	w.inFlight[id] = struct{}{}
	return true
}

func (w *Worker) release(id int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.inFlight, id)
}

func (w *Worker) rewriteOne(ctx context.Context, id int) {
	node, err := w.tree.Snapshot(id)
	if err != nil {
		slog.Warn("mutate: background rewrite target vanished", "node_id", id, "error", err)
		return
	}

	prompt, err := renderRewritePrompt(node)
	if err != nil {
		slog.Warn("mutate: render rewrite prompt", "node_id", id, "error", err)
		return
	}
	schema, err := rewriteSchema()
	if err != nil {
		slog.Warn("mutate: build rewrite schema", "node_id", id, "error", err)
		return
	}

	raw, err := w.client.CallStructured(ctx, prompt, schema, w.model)
	if err != nil {
		slog.Warn("mutate: background rewrite call failed, dropping", "node_id", id, "error", err)
		return
	}
	var result RewriteResult
	if err := json.Unmarshal(raw, &result); err != nil {
		slog.Warn("mutate: background rewrite response did not parse, dropping", "node_id", id, "error", err)
		return
	}
	if err := w.tree.UpdateNode(id, result.CleanedContent, result.CleanedSummary); err != nil {
		slog.Warn("mutate: background rewrite UpdateNode failed", "node_id", id, "error", err)
		return
	}
	if w.applier != nil {
		w.applier.markDirty(id)
	}
}

func renderRewritePrompt(node *graph.Node) (string, error) {
	var buf strings.Builder
	if err := rewriteTemplate.Execute(&buf, struct {
		Title              string
		Content            string
		TranscriptExcerpts []string
	}{
		Title:              node.Title,
		Content:            node.Content,
		TranscriptExcerpts: node.TranscriptExcerpts(),
	}); err != nil {
		return "", fmt.Errorf("execute rewrite template: %w", err)
	}
	return buf.String(), nil
}
