// Package markdown implements MarkdownProjector: rendering dirty decision
// tree nodes to individual Markdown files with YAML frontmatter and
// wiki-link syntax, idempotently, one file per node.
//
// The frontmatter preservation behavior follows
// original_source/backend/text_to_graph_pipeline/tree_manager/node_processor.py's
// _update_yaml_frontmatter (extract existing frontmatter, merge in the
// fields this run owns, re-serialize); the fallback chain used when a
// node's Summary is empty (bolded span, then heading, then first sentence)
// follows original_source's tree_manager/utils.py extract_summary.
package markdown

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/arlobrandt/loomgraph/internal/graph"
)

// frontmatterRE matches a leading YAML frontmatter block delimited by
// "---" lines.
var frontmatterRE = regexp.MustCompile(`(?s)\A---\r?\n(.*?\r?\n)---\r?\n`)

// Projector renders dirty nodes to outputDir. OutputDir must be set:
// Project fails when it is empty.
type Projector struct {
	OutputDir string
}

// New constructs a Projector writing under outputDir.
func New(outputDir string) *Projector {
	return &Projector{OutputDir: outputDir}
}

// Project writes one Markdown file per id in dirtyIDs. Ids that no longer
// exist in tree are skipped (the node may have been superseded by a
// background rewrite that changed nothing relevant); all other ids are
// attempted even if one fails, and the first error encountered — if any —
// is returned after every id has been attempted, so a transient failure
// on one file never blocks projection of the rest (the caller is expected
// to retain the failed id in the dirty set and retry next cycle).
func (p *Projector) Project(tree *graph.Tree, dirtyIDs []int) error {
	if err := os.MkdirAll(p.OutputDir, 0o755); err != nil {
		return fmt.Errorf("markdown: create output dir %q: %w", p.OutputDir, err)
	}

	var firstErr error
	for _, id := range dirtyIDs {
		node, err := tree.Snapshot(id)
		if err != nil {
			continue
		}
		if err := p.projectNode(tree, node); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("markdown: project node %d: %w", id, err)
		}
	}
	return firstErr
}

func (p *Projector) projectNode(tree *graph.Tree, node *graph.Node) error {
	path := filepath.Join(p.OutputDir, node.Filename)

	existingFrontmatter := readExistingFrontmatter(path)
	fm := mergeFrontmatter(existingFrontmatter, node)

	fmBlock, err := yaml.Marshal(fm)
	if err != nil {
		return fmt.Errorf("marshal frontmatter: %w", err)
	}

	neighbors, err := tree.GetNeighbors(node.ID)
	if err != nil {
		return fmt.Errorf("get neighbors: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(fmBlock)
	buf.WriteString("---\n\n")
	fmt.Fprintf(&buf, "### %s\n\n", node.Title)
	writeLinksSection(&buf, node, neighbors)
	buf.WriteString(node.Content)
	if !strings.HasSuffix(node.Content, "\n") {
		buf.WriteString("\n")
	}

	return writeFileAtomic(path, buf.Bytes())
}

// writeLinksSection emits the parent link first (if present), then
// children in ascending id order, each as "- <relationship> [[filename]]".
func writeLinksSection(buf *bytes.Buffer, node *graph.Node, neighbors []graph.Neighbor) {
	if len(neighbors) == 0 {
		return
	}
	buf.WriteString("**Links:**\n\n")
	// GetNeighbors already orders parent first, children ascending.
	for _, n := range neighbors {
		rel := n.Relationship
		if rel == "" {
			rel = "related to"
		}
		fmt.Fprintf(buf, "- %s [[%s]]\n", rel, graph.Slugify(n.ID, n.Title))
	}
	buf.WriteString("\n")
}

// mergeFrontmatter starts from existing (preserving any keys this run
// does not own, such as a hand-edited field or a subtree_theme left by a
// prior classification pass) and overlays the fields derived from node.
func mergeFrontmatter(existing map[string]any, node *graph.Node) map[string]any {
	fm := make(map[string]any, len(existing)+4)
	for k, v := range existing {
		fm[k] = v
	}
	fm["node_id"] = node.ID
	fm["title"] = node.Title
	if node.Color != "" {
		fm["color"] = node.Color
	}
	if node.SubtreeID != "" {
		fm["subtree_id"] = node.SubtreeID
	}
	if len(node.Tags) > 0 {
		fm["tags"] = node.Tags
	}
	return fm
}

// readExistingFrontmatter reads path (if it exists) and extracts its
// leading YAML frontmatter block as a map. Any failure (missing file,
// unreadable, malformed YAML) yields an empty map rather than an error —
// a missing or corrupt prior file must never block re-projection.
func readExistingFrontmatter(path string) map[string]any {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	m := frontmatterRE.FindSubmatch(data)
	if m == nil {
		return nil
	}
	var fm map[string]any
	if err := yaml.Unmarshal(m[1], &fm); err != nil {
		return nil
	}
	return fm
}

// writeFileAtomic writes data to path via a temp file in the same
// directory followed by rename, so a concurrent reader never observes a
// partially written file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// ExtractSummary derives a fallback summary from raw Markdown content
// when the agent supplies an empty one: first a bolded span ("**...**"),
// then a heading line, then the first sentence over 10 characters,
// matching original_source/backend/tree_manager/utils.py's
// extract_summary fallback chain.
func ExtractSummary(content string) string {
	if strings.TrimSpace(content) == "" {
		return "Empty content"
	}

	if m := boldSpanRE.FindStringSubmatch(content); m != nil {
		if s := strings.TrimSpace(m[1]); len(s) > 3 {
			return s
		}
	}
	if m := headingRE.FindStringSubmatch(content); m != nil {
		if s := strings.TrimSpace(m[1]); len(s) > 3 {
			return s
		}
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		if len(line) <= 10 {
			continue
		}
		if idx := strings.Index(line, "."); idx > 10 {
			return strings.TrimSpace(line[:idx])
		}
		if len(line) <= 60 {
			return line
		}
		return strings.TrimSpace(line[:60]) + "..."
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		if len(line) > 50 {
			return strings.TrimSpace(line[:50]) + "..."
		}
		return line
	}

	return "Content summary unavailable"
}

var (
	boldSpanRE = regexp.MustCompile(`(?s)\*\*(.+?)\*\*`)
	headingRE  = regexp.MustCompile(`(?m)^#+\s*(.+)`)
)
