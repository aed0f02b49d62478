package graph

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/arlobrandt/loomgraph/internal/fuzzy"
)

// Common relationship labels. The field itself is a free-form string —
// these are just the values the agent and rewriter are expected to reach
// for most often.
const (
	RelChildOf  = "child of"
	RelParentOf = "parent of"
	RelPrereqOf = "prereq for"
	RelRelated  = "related to"
)

// Neighbor describes one edge out of a node, used by GetNeighbors.
type Neighbor struct {
	ID           int
	Title        string
	Summary      string
	Relationship string
}

// ErrNodeNotFound is returned when an operation references a node id that
// does not exist in the tree.
type ErrNodeNotFound struct{ ID int }

func (e *ErrNodeNotFound) Error() string {
	return fmt.Sprintf("graph: node %d not found", e.ID)
}

// ErrWouldCreateCycle is returned by Reparent when the proposed new parent
// is a descendant of the node being moved.
type ErrWouldCreateCycle struct {
	NodeID, NewParentID int
}

func (e *ErrWouldCreateCycle) Error() string {
	return fmt.Sprintf("graph: reparenting node %d under %d would create a cycle", e.NodeID, e.NewParentID)
}

// Tree is the authoritative, in-memory decision tree. It owns every Node
// value; all reads and writes from outside this package go through its
// methods, which serialize writers against each other and against readers
// via a RWMutex — the locking discipline the rest of the pipeline relies on
// per the concurrency model (DecisionTree is the only shared mutable state).
//
// The zero value is not usable; construct with New.
type Tree struct {
	mu     sync.RWMutex
	nodes  map[int]*Node
	nextID int
}

// New constructs a Tree containing only the root node (id 0), titled with
// the current date and a default summary inviting unrelated content.
func New() *Tree {
	now := time.Now()
	root := &Node{
		ID:            RootID,
		Title:         now.Format("2006-01-02") + " Notes",
		Content:       "",
		Summary:       "Root of the decision tree. New, unrelated topics attach here until a better home is found.",
		ParentID:      nil,
		Children:      make(map[int]struct{}),
		Relationships: make(map[int]string),
		CreatedAt:     now,
		ModifiedAt:    now,
		Filename:      Slugify(RootID, now.Format("2006-01-02")+" Notes"),
	}
	return &Tree{
		nodes:  map[int]*Node{RootID: root},
		nextID: RootID + 1,
	}
}

// Len reports the number of nodes currently in the tree, including root.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes)
}

// CreateNode allocates a new id, attaches it under parentID with the given
// relationship label, and returns the new id. Returns *ErrNodeNotFound if
// parentID does not exist.
func (t *Tree) CreateNode(title string, parentID int, content, summary, relationshipToParent string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	parent, ok := t.nodes[parentID]
	if !ok {
		return 0, &ErrNodeNotFound{ID: parentID}
	}

	now := time.Now()
	id := t.nextID
	t.nextID++

	pid := parentID
	node := &Node{
		ID:       id,
		Title:    title,
		Content:  content,
		Summary:  clampSummary(summary),
		ParentID: &pid,
		Children: make(map[int]struct{}),
		Relationships: map[int]string{
			parentID: relationshipToParent,
		},
		CreatedAt: now,
		ModifiedAt: now,
	}
	node.Filename = Slugify(id, title)

	t.nodes[id] = node
	parent.Children[id] = struct{}{}
	parent.Relationships[id] = inverseRelationship(relationshipToParent)
	parent.ModifiedAt = now

	return id, nil
}

// AppendContent appends newContent to the node's Content, replaces its
// Summary, bumps ModifiedAt, records transcriptExcerpt in the node's
// rolling rewrite-context window, and increments the append counter the
// background rewriter uses to decide when to trigger a cleanup pass.
func (t *Tree) AppendContent(nodeID int, newContent, newSummary, transcriptExcerpt string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	node, ok := t.nodes[nodeID]
	if !ok {
		return &ErrNodeNotFound{ID: nodeID}
	}

	if node.Content != "" && newContent != "" {
		node.Content += "\n\n" + newContent
	} else {
		node.Content += newContent
	}
	if newSummary != "" {
		node.Summary = clampSummary(newSummary)
	}
	node.ModifiedAt = time.Now()
	node.appendCount++

	if transcriptExcerpt != "" {
		node.transcriptExcerpts = append(node.transcriptExcerpts, transcriptExcerpt)
		if len(node.transcriptExcerpts) > maxTranscriptExcerpts {
			node.transcriptExcerpts = node.transcriptExcerpts[len(node.transcriptExcerpts)-maxTranscriptExcerpts:]
		}
	}
	return nil
}

// UpdateNode replaces Content and Summary wholesale, preserving Title,
// structure, and id. Used by the background rewriter's cleaned-up rewrite
// and by nothing else — APPEND/CREATE never call this. Resets the append
// counter since the node has just been fully reconciled.
func (t *Tree) UpdateNode(nodeID int, newContent, newSummary string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	node, ok := t.nodes[nodeID]
	if !ok {
		return &ErrNodeNotFound{ID: nodeID}
	}
	node.Content = newContent
	node.Summary = clampSummary(newSummary)
	node.ModifiedAt = time.Now()
	node.appendCount = 0
	node.transcriptExcerpts = nil
	return nil
}

// Reparent moves nodeID to be a child of newParentID, rewriting the
// relationship label on both sides. It refuses (returning
// *ErrWouldCreateCycle) if newParentID is nodeID itself or a descendant of
// nodeID, per the cycle-prevention rule the background rewriter must honor.
func (t *Tree) Reparent(nodeID, newParentID int, relationship string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	node, ok := t.nodes[nodeID]
	if !ok {
		return &ErrNodeNotFound{ID: nodeID}
	}
	if _, ok := t.nodes[newParentID]; !ok {
		return &ErrNodeNotFound{ID: newParentID}
	}
	if nodeID == RootID {
		return fmt.Errorf("graph: cannot reparent root")
	}

	// Walk from the proposed new parent toward the root; refuse if nodeID
	// is encountered — that would make an ancestor into a descendant.
	cur := newParentID
	for {
		if cur == nodeID {
			return &ErrWouldCreateCycle{NodeID: nodeID, NewParentID: newParentID}
		}
		curNode, ok := t.nodes[cur]
		if !ok || curNode.ParentID == nil {
			break
		}
		cur = *curNode.ParentID
	}

	if node.ParentID != nil {
		if oldParent, ok := t.nodes[*node.ParentID]; ok {
			delete(oldParent.Children, nodeID)
			delete(oldParent.Relationships, nodeID)
		}
		delete(node.Relationships, *node.ParentID)
	}

	newParent := t.nodes[newParentID]
	pid := newParentID
	node.ParentID = &pid
	node.Relationships[newParentID] = relationship
	node.ModifiedAt = time.Now()

	newParent.Children[nodeID] = struct{}{}
	newParent.Relationships[nodeID] = inverseRelationship(relationship)
	newParent.ModifiedAt = time.Now()

	return nil
}

// GetRecentNodes returns up to n ids sorted by ModifiedAt descending.
func (t *Tree) GetRecentNodes(n int) []int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	type idTime struct {
		id int
		ts time.Time
	}
	all := make([]idTime, 0, len(t.nodes))
	for id, node := range t.nodes {
		all = append(all, idTime{id, node.ModifiedAt})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].ts.Equal(all[j].ts) {
			return all[i].id > all[j].id
		}
		return all[i].ts.After(all[j].ts)
	})
	if n > len(all) {
		n = len(all)
	}
	ids := make([]int, n)
	for i := 0; i < n; i++ {
		ids[i] = all[i].id
	}
	return ids
}

// GetParentID returns the parent of nodeID and whether one exists (false
// for the root or a missing node).
func (t *Tree) GetParentID(nodeID int) (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	node, ok := t.nodes[nodeID]
	if !ok || node.ParentID == nil {
		return 0, false
	}
	return *node.ParentID, true
}

// GetNeighbors returns the parent (if any) and all children of nodeID, in
// that order with children in ascending id order.
func (t *Tree) GetNeighbors(nodeID int) ([]Neighbor, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	node, ok := t.nodes[nodeID]
	if !ok {
		return nil, &ErrNodeNotFound{ID: nodeID}
	}

	var out []Neighbor
	if node.ParentID != nil {
		if p, ok := t.nodes[*node.ParentID]; ok {
			out = append(out, Neighbor{
				ID:           p.ID,
				Title:        p.Title,
				Summary:      p.Summary,
				Relationship: node.Relationships[p.ID],
			})
		}
	}
	for _, cid := range node.ChildIDs() {
		c, ok := t.nodes[cid]
		if !ok {
			continue
		}
		out = append(out, Neighbor{
			ID:           c.ID,
			Title:        c.Title,
			Summary:      c.Summary,
			Relationship: node.Relationships[c.ID],
		})
	}
	return out, nil
}

// ResolveNameToID resolves name to a node id: exact title match first
// (case-sensitive, then case-insensitive), then the closest fuzzy match at
// or above threshold (<=0 uses fuzzy.DefaultThreshold), falling back to
// RootID with ok=false when nothing qualifies. fuzzyUsed reports whether
// the match, if any, came from the fuzzy path rather than an exact one —
// callers log a warning in that case, since a fuzzy match means the
// caller's reported name did not exactly match any existing node title.
func (t *Tree) ResolveNameToID(name string, threshold float64) (id int, fuzzyUsed bool, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for nid, node := range t.nodes {
		if node.Title == name {
			return nid, false, true
		}
	}
	for nid, node := range t.nodes {
		if strings.EqualFold(node.Title, name) {
			return nid, false, true
		}
	}

	titles := make([]string, 0, len(t.nodes))
	ids := make([]int, 0, len(t.nodes))
	for nid, node := range t.nodes {
		titles = append(titles, node.Title)
		ids = append(ids, nid)
	}
	idx, ratio := fuzzy.BestMatch(name, titles)
	if idx >= 0 && fuzzy.Matches(ratio, threshold) {
		return ids[idx], true, true
	}
	return RootID, false, false
}

// Snapshot returns a read-only copy of the node, safe to hold and inspect
// without the tree's lock. Returns *ErrNodeNotFound if nodeID is unknown.
func (t *Tree) Snapshot(nodeID int) (*Node, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	node, ok := t.nodes[nodeID]
	if !ok {
		return nil, &ErrNodeNotFound{ID: nodeID}
	}
	return node.snapshot(), nil
}

// Snapshots returns read-only copies of every node in the tree, in
// ascending id order.
func (t *Tree) Snapshots() []*Node {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]int, 0, len(t.nodes))
	for id := range t.nodes {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]*Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.nodes[id].snapshot())
	}
	return out
}

// clampSummary truncates s to SummaryMaxLen runes, preferring a clean
// word boundary.
func clampSummary(s string) string {
	r := []rune(s)
	if len(r) <= SummaryMaxLen {
		return s
	}
	cut := r[:SummaryMaxLen]
	for i := len(cut) - 1; i > 0; i-- {
		if cut[i] == ' ' {
			cut = cut[:i]
			break
		}
	}
	return string(cut) + "…"
}

// inverseRelationship gives the parent->child edge a reasonable default
// label derived from the child->parent one (the label CreateNode and
// Reparent receive). Unrecognised labels are kept as-is on both ends — the
// relationship vocabulary is a free-form string with a few common values,
// not a closed enum.
func inverseRelationship(childToParent string) string {
	switch childToParent {
	case RelPrereqOf:
		return "depends on"
	case RelChildOf, "":
		return RelParentOf
	case RelParentOf:
		return RelChildOf
	default:
		return childToParent
	}
}
