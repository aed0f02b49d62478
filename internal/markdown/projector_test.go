package markdown

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/arlobrandt/loomgraph/internal/graph"
)

func TestProjectWritesRootAndChild(t *testing.T) {
	dir := t.TempDir()
	tr := graph.New()
	id, err := tr.CreateNode("Project Planning", graph.RootID, "Initial content.", "A short summary.", graph.RelChildOf)
	if err != nil {
		t.Fatalf("CreateNode: %v", err)
	}

	p := New(dir)
	if err := p.Project(tr, []int{graph.RootID, id}); err != nil {
		t.Fatalf("Project: %v", err)
	}

	root, _ := tr.Snapshot(graph.RootID)
	child, _ := tr.Snapshot(id)

	rootPath := filepath.Join(dir, root.Filename)
	childPath := filepath.Join(dir, child.Filename)

	if _, err := os.Stat(rootPath); err != nil {
		t.Fatalf("root file missing: %v", err)
	}
	data, err := os.ReadFile(childPath)
	if err != nil {
		t.Fatalf("child file missing: %v", err)
	}
	content := string(data)
	if !strings.HasPrefix(content, "---\n") {
		t.Fatalf("child file does not start with frontmatter: %q", content)
	}
	if !strings.Contains(content, "### Project Planning") {
		t.Fatalf("child file missing heading: %q", content)
	}
	if !strings.Contains(content, "[["+root.Filename+"]]") {
		t.Fatalf("child file missing parent link: %q", content)
	}
	if !strings.Contains(content, "Initial content.") {
		t.Fatalf("child file missing content body: %q", content)
	}
}

func TestProjectIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	tr := graph.New()
	id, _ := tr.CreateNode("Storage Layer", graph.RootID, "Use Postgres.", "Storage decisions.", graph.RelChildOf)

	p := New(dir)
	if err := p.Project(tr, []int{graph.RootID, id}); err != nil {
		t.Fatalf("Project #1: %v", err)
	}

	node, _ := tr.Snapshot(id)
	path := filepath.Join(dir, node.Filename)
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read after first project: %v", err)
	}

	if err := p.Project(tr, []int{graph.RootID, id}); err != nil {
		t.Fatalf("Project #2: %v", err)
	}
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read after second project: %v", err)
	}

	if string(first) != string(second) {
		t.Fatalf("projection is not idempotent:\nfirst:\n%s\nsecond:\n%s", first, second)
	}
}

func TestProjectPreservesExistingFrontmatterKeys(t *testing.T) {
	dir := t.TempDir()
	tr := graph.New()
	id, _ := tr.CreateNode("Theme Node", graph.RootID, "Some body.", "A summary.", graph.RelChildOf)
	node, _ := tr.Snapshot(id)
	path := filepath.Join(dir, node.Filename)

	if err := os.WriteFile(path, []byte("---\nnode_id: "+itoa(id)+"\ntitle: Theme Node\nsubtree_theme: onboarding\n---\n\n### Theme Node\n\nold body\n"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	p := New(dir)
	if err := p.Project(tr, []int{id}); err != nil {
		t.Fatalf("Project: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "subtree_theme: onboarding") {
		t.Fatalf("preserved frontmatter key lost:\n%s", data)
	}
	if !strings.Contains(string(data), "Some body.") {
		t.Fatalf("new content not written:\n%s", data)
	}
}

func TestExtractSummaryFallbackChain(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bold span", "Intro text **the real summary** trailing.", "the real summary"},
		{"heading", "## A Heading Here\n\nbody", "A Heading Here"},
		{"first sentence", "This is a long enough opening sentence. More text follows.", "This is a long enough opening sentence"},
		{"empty", "   ", "Empty content"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractSummary(tt.content)
			if got != tt.want {
				t.Fatalf("ExtractSummary(%q) = %q, want %q", tt.content, got, tt.want)
			}
		})
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
