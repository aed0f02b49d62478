package contextselect

import (
	"context"
	"fmt"
	"sync"

	"github.com/arlobrandt/loomgraph/internal/embeddings"
	"github.com/arlobrandt/loomgraph/internal/graph"
)

// PersistedCache is the subset of internal/embeddings/pgcache.Cache that
// EmbeddingRanker needs, kept narrow so tests can supply an in-memory
// fake instead of a live Postgres connection.
type PersistedCache interface {
	Lookup(ctx context.Context, nodeID int, modifiedAtUnixNano int64, modelID string) ([]float32, bool, error)
	Store(ctx context.Context, nodeID int, modifiedAtUnixNano int64, modelID string, embedding []float32) error
}

// EmbeddingRanker implements Ranker by delegating to an
// embeddings.Provider: one vector per node (title + summary) cached by
// (id, modified_at), the query embedded fresh on every call.
type EmbeddingRanker struct {
	provider embeddings.Provider
	cache    PersistedCache // optional; nil disables persistence

	mu        sync.Mutex
	memCache  map[int]cachedEmbedding // in-process fallback cache
	Threshold float64
}

type cachedEmbedding struct {
	modifiedAtUnixNano int64
	vector             []float32
}

// NewEmbeddingRanker constructs an EmbeddingRanker. cache may be nil, in
// which case vectors are memoized in-process only (lost on restart).
func NewEmbeddingRanker(provider embeddings.Provider, cache PersistedCache) *EmbeddingRanker {
	return &EmbeddingRanker{provider: provider, cache: cache, memCache: map[int]cachedEmbedding{}}
}

var _ Ranker = (*EmbeddingRanker)(nil)

// Rank implements Ranker.
func (r *EmbeddingRanker) Rank(ctx context.Context, query string, candidates []*graph.Node) ([]ScoredNode, error) {
	threshold := r.Threshold
	if threshold <= 0 {
		threshold = defaultRelevanceThreshold
	}

	queryVec, err := r.provider.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("contextselect: embed query: %w", err)
	}

	out := make([]ScoredNode, 0, len(candidates))
	for _, n := range candidates {
		vec, err := r.embeddingFor(ctx, n)
		if err != nil {
			return nil, err
		}
		score := embeddings.CosineSimilarity(queryVec, vec)
		if score >= threshold {
			out = append(out, ScoredNode{Node: n, Score: score})
		}
	}
	return out, nil
}

func (r *EmbeddingRanker) embeddingFor(ctx context.Context, n *graph.Node) ([]float32, error) {
	modifiedAt := n.ModifiedAt.UnixNano()
	modelID := r.provider.ModelID()

	r.mu.Lock()
	if cached, ok := r.memCache[n.ID]; ok && cached.modifiedAtUnixNano == modifiedAt {
		r.mu.Unlock()
		return cached.vector, nil
	}
	r.mu.Unlock()

	if r.cache != nil {
		if vec, ok, err := r.cache.Lookup(ctx, n.ID, modifiedAt, modelID); err != nil {
			return nil, fmt.Errorf("contextselect: lookup cached embedding for node %d: %w", n.ID, err)
		} else if ok {
			r.storeMemCache(n.ID, modifiedAt, vec)
			return vec, nil
		}
	}

	vec, err := r.provider.Embed(ctx, n.Title+"\n"+n.Summary)
	if err != nil {
		return nil, fmt.Errorf("contextselect: embed node %d: %w", n.ID, err)
	}

	r.storeMemCache(n.ID, modifiedAt, vec)
	if r.cache != nil {
		if err := r.cache.Store(ctx, n.ID, modifiedAt, modelID, vec); err != nil {
			return nil, fmt.Errorf("contextselect: store cached embedding for node %d: %w", n.ID, err)
		}
	}
	return vec, nil
}

func (r *EmbeddingRanker) storeMemCache(nodeID int, modifiedAt int64, vec []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.memCache[nodeID] = cachedEmbedding{modifiedAtUnixNano: modifiedAt, vector: vec}
}
