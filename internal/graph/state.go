package graph

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// StateSnapshot is the optional on-disk JSON survival format: a map from
// node title to a small summary record, plus a run identifier so
// successive snapshots from the same process can be told apart in logs.
type StateSnapshot struct {
	RunID   string               `json:"run_id"`
	SavedAt time.Time            `json:"saved_at"`
	NextID  int                  `json:"next_id"`
	Nodes   map[string]StateNode `json:"nodes"`
}

// StateNode is the per-node record stored in a StateSnapshot.
type StateNode struct {
	ID        int       `json:"id"`
	Summary   string    `json:"summary"`
	ParentID  *int      `json:"parent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SaveState writes a StateSnapshot of the tree's current nodes to path.
// Intended to be called after each mutation batch so the process can
// resume cleanly after a restart; failures here are not fatal to the
// pipeline (callers should log and continue).
func (t *Tree) SaveState(path string) error {
	nodes := t.Snapshots()

	snap := StateSnapshot{
		RunID:   uuid.NewString(),
		SavedAt: time.Now(),
		Nodes:   make(map[string]StateNode, len(nodes)),
	}

	t.mu.RLock()
	snap.NextID = t.nextID
	t.mu.RUnlock()

	for _, n := range nodes {
		snap.Nodes[n.Title] = StateNode{
			ID:        n.ID,
			Summary:   n.Summary,
			ParentID:  n.ParentID,
			CreatedAt: n.CreatedAt,
		}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("graph: marshal state snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(dirOf(path), "state-*.json.tmp")
	if err != nil {
		return fmt.Errorf("graph: create temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("graph: write state snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("graph: close state snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("graph: rename state snapshot into place: %w", err)
	}
	return nil
}

// LoadStateSnapshot reads and decodes a StateSnapshot from path. It does
// not mutate any Tree — the caller decides how (or whether) to reconcile
// the snapshot with a fresh tree, since the snapshot alone cannot
// reconstruct children/relationships.
func LoadStateSnapshot(path string) (*StateSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("graph: read state snapshot: %w", err)
	}
	var snap StateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("graph: decode state snapshot: %w", err)
	}
	return &snap, nil
}

// dirOf returns the directory portion of path, or "." if path has none.
func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
