// Package mutate implements MutationApplier: applying StagedAgent's
// IntegrationDecision batch to the decision tree, tracking which node ids
// became dirty, and (optionally) kicking off background rewrites.
package mutate

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/arlobrandt/loomgraph/internal/agent"
	"github.com/arlobrandt/loomgraph/internal/graph"
	"github.com/arlobrandt/loomgraph/internal/markdown"
)

// Applier applies decision batches to a Tree and accumulates a dirty set
// for MarkdownProjector to consume.
type Applier struct {
	tree            *graph.Tree
	fuzzyThreshold  float64
	rewriteEveryN   int
	rewriteTrigger  chan<- int // optional; nil disables background rewrite

	mu            sync.Mutex
	dirty         map[int]struct{}
	firstCycleDone bool
}

// New constructs an Applier. rewriteTrigger, if non-nil, receives a node
// id every time that node's append count reaches a multiple of
// rewriteEveryN; this package's Worker (rewrite.go) consumes it.
// rewriteEveryN <= 0 disables background rewrite regardless of
// rewriteTrigger.
func New(tree *graph.Tree, fuzzyThreshold float64, rewriteEveryN int, rewriteTrigger chan<- int) *Applier {
	return &Applier{
		tree:           tree,
		fuzzyThreshold: fuzzyThreshold,
		rewriteEveryN:  rewriteEveryN,
		rewriteTrigger: rewriteTrigger,
		dirty:          map[int]struct{}{},
	}
}

// Apply applies every decision in order. Errors applying one decision are
// logged and do not prevent the rest from being applied.
func (a *Applier) Apply(decisions []agent.IntegrationDecision) {
	a.mu.Lock()
	if !a.firstCycleDone {
		a.dirty[graph.RootID] = struct{}{}
		a.firstCycleDone = true
	}
	a.mu.Unlock()

	for _, d := range decisions {
		if d.IsNewNode {
			a.applyCreate(d)
		} else {
			a.applyAppend(d)
		}
	}
}

func (a *Applier) applyCreate(d agent.IntegrationDecision) {
	parentID := graph.RootID
	if d.NeighbourConceptName != "" && d.NeighbourConceptName != agent.RootSentinel {
		resolved, fuzzyUsed, ok := a.tree.ResolveNameToID(d.NeighbourConceptName, a.fuzzyThreshold)
		if ok {
			if fuzzyUsed {
				slog.Warn("mutate: CREATE parent resolved by fuzzy match",
					"requested_parent", d.NeighbourConceptName, "resolved_id", resolved)
			}
			parentID = resolved
		} else {
			slog.Warn("mutate: CREATE parent not found, attaching to root",
				"requested_parent", d.NeighbourConceptName)
		}
	}

	summary := d.UpdatedSummaryOfNode
	if strings.TrimSpace(summary) == "" {
		summary = markdown.ExtractSummary(d.MarkdownContentToAppend)
	}

	id, err := a.tree.CreateNode(d.ConceptName, parentID, d.MarkdownContentToAppend, summary, d.RelationshipToNeighbour)
	if err != nil {
		slog.Error("mutate: CREATE failed", "concept_name", d.ConceptName, "error", err)
		return
	}
	a.markDirty(id)
}

func (a *Applier) applyAppend(d agent.IntegrationDecision) {
	id, fuzzyUsed, ok := a.tree.ResolveNameToID(d.ConceptName, a.fuzzyThreshold)
	if !ok {
		slog.Error("mutate: APPEND target not found, skipping", "concept_name", d.ConceptName)
		return
	}
	if fuzzyUsed {
		slog.Warn("mutate: APPEND target resolved by fuzzy match",
			"concept_name", d.ConceptName, "resolved_id", id)
	}

	summary := d.UpdatedSummaryOfNode
	if strings.TrimSpace(summary) == "" {
		summary = markdown.ExtractSummary(d.MarkdownContentToAppend)
	}

	if err := a.tree.AppendContent(id, d.MarkdownContentToAppend, summary, d.RelevantTranscriptExtract); err != nil {
		slog.Error("mutate: APPEND failed", "node_id", id, "error", err)
		return
	}
	a.markDirty(id)
	a.maybeTriggerRewrite(id)
}

func (a *Applier) maybeTriggerRewrite(nodeID int) {
	if a.rewriteTrigger == nil || a.rewriteEveryN <= 0 {
		return
	}
	n, err := a.tree.Snapshot(nodeID)
	if err != nil {
		return
	}
	if n.AppendCount()%a.rewriteEveryN != 0 {
		return
	}
	select {
	case a.rewriteTrigger <- nodeID:
	default:
		slog.Warn("mutate: rewrite trigger channel full, dropping rewrite request", "node_id", nodeID)
	}
}

func (a *Applier) markDirty(id int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dirty[id] = struct{}{}
}

// DirtyIDs returns the current dirty set, in ascending id order.
func (a *Applier) DirtyIDs() []int {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]int, 0, len(a.dirty))
	for id := range a.dirty {
		ids = append(ids, id)
	}
	sortInts(ids)
	return ids
}

// ClearDirty empties the dirty set. Called by ChunkProcessor after
// MarkdownProjector.Project has written out every dirty id.
func (a *Applier) ClearDirty() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dirty = map[int]struct{}{}
}

func sortInts(ids []int) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}
