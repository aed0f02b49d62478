package graph

import (
	"errors"
	"testing"
)

func TestNewTreeHasSingleRoot(t *testing.T) {
	tr := New()
	if tr.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", tr.Len())
	}
	root, err := tr.Snapshot(RootID)
	if err != nil {
		t.Fatalf("Snapshot(root): %v", err)
	}
	if root.ParentID != nil {
		t.Fatalf("root.ParentID = %v, want nil", root.ParentID)
	}
}

func TestCreateNodeEstablishesBothSides(t *testing.T) {
	tr := New()
	id, err := tr.CreateNode("Project Planning", RootID, "some content", "a summary", RelChildOf)
	if err != nil {
		t.Fatalf("CreateNode: %v", err)
	}

	child, err := tr.Snapshot(id)
	if err != nil {
		t.Fatalf("Snapshot(child): %v", err)
	}
	if child.ParentID == nil || *child.ParentID != RootID {
		t.Fatalf("child.ParentID = %v, want %d", child.ParentID, RootID)
	}
	if child.Relationships[RootID] != RelChildOf {
		t.Fatalf("child.Relationships[root] = %q, want %q", child.Relationships[RootID], RelChildOf)
	}

	root, err := tr.Snapshot(RootID)
	if err != nil {
		t.Fatalf("Snapshot(root): %v", err)
	}
	if _, ok := root.Children[id]; !ok {
		t.Fatalf("root.Children does not contain %d", id)
	}
	if root.ModifiedAt.Before(root.CreatedAt) {
		t.Fatalf("root.ModifiedAt before CreatedAt")
	}
}

func TestCreateNodeUnknownParent(t *testing.T) {
	tr := New()
	_, err := tr.CreateNode("x", 999, "", "", RelChildOf)
	var nf *ErrNodeNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("CreateNode with unknown parent: got %v, want *ErrNodeNotFound", err)
	}
}

func TestAppendContentGrows(t *testing.T) {
	tr := New()
	id, _ := tr.CreateNode("Topic", RootID, "first", "sum1", RelChildOf)

	if err := tr.AppendContent(id, "second", "sum2", "raw transcript"); err != nil {
		t.Fatalf("AppendContent: %v", err)
	}

	n, _ := tr.Snapshot(id)
	if n.Content != "first\n\nsecond" {
		t.Fatalf("Content = %q", n.Content)
	}
	if n.Summary != "sum2" {
		t.Fatalf("Summary = %q, want sum2", n.Summary)
	}
	if n.AppendCount() != 1 {
		t.Fatalf("AppendCount() = %d, want 1", n.AppendCount())
	}
	if len(n.TranscriptExcerpts()) != 1 {
		t.Fatalf("TranscriptExcerpts() = %v", n.TranscriptExcerpts())
	}
}

func TestUpdateNodePreservesTitleAndID(t *testing.T) {
	tr := New()
	id, _ := tr.CreateNode("Topic", RootID, "first", "sum1", RelChildOf)
	if err := tr.AppendContent(id, "more", "sum2", ""); err != nil {
		t.Fatalf("AppendContent: %v", err)
	}

	if err := tr.UpdateNode(id, "cleaned content", "cleaned summary"); err != nil {
		t.Fatalf("UpdateNode: %v", err)
	}
	n, _ := tr.Snapshot(id)
	if n.Title != "Topic" {
		t.Fatalf("Title = %q, want Topic", n.Title)
	}
	if n.ID != id {
		t.Fatalf("ID changed")
	}
	if n.Content != "cleaned content" || n.Summary != "cleaned summary" {
		t.Fatalf("UpdateNode did not replace content/summary: %+v", n)
	}
	if n.AppendCount() != 0 {
		t.Fatalf("AppendCount() after UpdateNode = %d, want 0", n.AppendCount())
	}
}

func TestGetRecentNodesOrdering(t *testing.T) {
	tr := New()
	a, _ := tr.CreateNode("A", RootID, "", "", RelChildOf)
	b, _ := tr.CreateNode("B", RootID, "", "", RelChildOf)
	_ = tr.AppendContent(a, "x", "x", "")

	recent := tr.GetRecentNodes(2)
	if len(recent) != 2 || recent[0] != a {
		t.Fatalf("GetRecentNodes(2) = %v, want [%d, ...]", recent, a)
	}
	_ = b
}

func TestResolveNameToIDExactThenFuzzyThenRoot(t *testing.T) {
	tr := New()
	id, _ := tr.CreateNode("Project Planning", RootID, "", "", RelChildOf)

	if got, fuzzyUsed, ok := tr.ResolveNameToID("Project Planning", 0); !ok || fuzzyUsed || got != id {
		t.Fatalf("exact match: got=%d fuzzy=%v ok=%v", got, fuzzyUsed, ok)
	}
	if got, fuzzyUsed, ok := tr.ResolveNameToID("Project Plannng", 0); !ok || !fuzzyUsed || got != id {
		t.Fatalf("fuzzy match: got=%d fuzzy=%v ok=%v", got, fuzzyUsed, ok)
	}
	if got, _, ok := tr.ResolveNameToID("Completely Unrelated Gibberish Zzqx", 0.6); ok || got != RootID {
		t.Fatalf("no match: got=%d ok=%v, want RootID/false", got, ok)
	}
}

func TestReparentRejectsCycle(t *testing.T) {
	tr := New()
	parent, _ := tr.CreateNode("Parent", RootID, "", "", RelChildOf)
	child, _ := tr.CreateNode("Child", parent, "", "", RelChildOf)

	err := tr.Reparent(parent, child, RelChildOf)
	var cyc *ErrWouldCreateCycle
	if !errors.As(err, &cyc) {
		t.Fatalf("Reparent(parent under its own child) = %v, want *ErrWouldCreateCycle", err)
	}
}

func TestReparentMovesNode(t *testing.T) {
	tr := New()
	a, _ := tr.CreateNode("A", RootID, "", "", RelChildOf)
	b, _ := tr.CreateNode("B", RootID, "", "", RelChildOf)

	if err := tr.Reparent(b, a, RelChildOf); err != nil {
		t.Fatalf("Reparent: %v", err)
	}

	bNode, _ := tr.Snapshot(b)
	if bNode.ParentID == nil || *bNode.ParentID != a {
		t.Fatalf("b.ParentID = %v, want %d", bNode.ParentID, a)
	}
	root, _ := tr.Snapshot(RootID)
	if _, ok := root.Children[b]; ok {
		t.Fatalf("root still lists b as a child after reparent")
	}
}

func TestGetNeighborsOrdersParentFirst(t *testing.T) {
	tr := New()
	a, _ := tr.CreateNode("A", RootID, "", "", RelChildOf)
	c1, _ := tr.CreateNode("C1", a, "", "", RelChildOf)
	c2, _ := tr.CreateNode("C2", a, "", "", RelChildOf)

	neighbors, err := tr.GetNeighbors(a)
	if err != nil {
		t.Fatalf("GetNeighbors: %v", err)
	}
	if len(neighbors) != 3 {
		t.Fatalf("len(neighbors) = %d, want 3", len(neighbors))
	}
	if neighbors[0].ID != RootID {
		t.Fatalf("neighbors[0] = %+v, want parent first", neighbors[0])
	}
	if neighbors[1].ID != c1 || neighbors[2].ID != c2 {
		t.Fatalf("children not in ascending id order: %+v", neighbors)
	}
}
