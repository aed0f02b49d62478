package contextselect

import (
	"context"
	"testing"
	"time"

	"github.com/arlobrandt/loomgraph/internal/embeddings/mock"
	"github.com/arlobrandt/loomgraph/internal/graph"
)

func TestEmbeddingRankerCachesByModifiedAt(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		EmbedResult:     []float32{1, 0, 0},
		DimensionsValue: 3,
		ModelIDValue:    "test-embed",
	}
	ranker := NewEmbeddingRanker(provider, nil)

	node := &graph.Node{ID: 1, Title: "Topic", Summary: "summary", ModifiedAt: time.Unix(100, 0)}

	_, err := ranker.Rank(context.Background(), "query", []*graph.Node{node})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	_, err = ranker.Rank(context.Background(), "query", []*graph.Node{node})
	if err != nil {
		t.Fatalf("Rank (second): %v", err)
	}

	// One Embed call for the query each time, plus exactly one Embed call
	// for the node (the second Rank should hit the in-process cache).
	if len(provider.EmbedCalls) != 3 {
		t.Fatalf("EmbedCalls = %d, want 3 (2 query + 1 node)", len(provider.EmbedCalls))
	}
}

func TestEmbeddingRankerReembedsAfterModification(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		EmbedResult:     []float32{1, 0, 0},
		DimensionsValue: 3,
		ModelIDValue:    "test-embed",
	}
	ranker := NewEmbeddingRanker(provider, nil)

	node := &graph.Node{ID: 1, Title: "Topic", Summary: "summary", ModifiedAt: time.Unix(100, 0)}
	if _, err := ranker.Rank(context.Background(), "query", []*graph.Node{node}); err != nil {
		t.Fatalf("Rank: %v", err)
	}

	node.ModifiedAt = time.Unix(200, 0)
	if _, err := ranker.Rank(context.Background(), "query", []*graph.Node{node}); err != nil {
		t.Fatalf("Rank (after modification): %v", err)
	}

	if len(provider.EmbedCalls) != 4 {
		t.Fatalf("EmbedCalls = %d, want 4 (2 query + 2 node re-embeds)", len(provider.EmbedCalls))
	}
}
