package pipeline

import (
	"strings"

	"github.com/arlobrandt/loomgraph/internal/graph"
)

// renderExistingNodesBlock formats selected into the "existing nodes"
// prompt context block consumed by StagedAgent's relationship-analysis and
// integration-decision stages: one line per node naming its title,
// recency, parent, and summary.
func renderExistingNodesBlock(tree *graph.Tree, selected []*graph.Node) string {
	if len(selected) == 0 {
		return "(no existing nodes yet)"
	}

	recent := make(map[int]struct{}, len(selected))
	for _, id := range tree.GetRecentNodes(len(selected)) {
		recent[id] = struct{}{}
	}

	var b strings.Builder
	for _, n := range selected {
		b.WriteString("- ")
		b.WriteString(n.Title)
		if _, ok := recent[n.ID]; ok {
			b.WriteString(" [recent]")
		}
		b.WriteString(" (parent: ")
		if n.ParentID == nil {
			b.WriteString("root")
		} else if parent, err := tree.Snapshot(*n.ParentID); err == nil {
			b.WriteString(parent.Title)
		} else {
			b.WriteString("root")
		}
		b.WriteString("): ")
		b.WriteString(n.Summary)
		b.WriteString("\n")
	}
	return b.String()
}
