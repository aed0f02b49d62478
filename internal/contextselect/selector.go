// Package contextselect builds the "existing nodes" context block fed to
// StagedAgent: a bounded, deterministic subset of the decision tree mixing
// recently-modified nodes with nodes relevant to the incoming segment.
//
// The concurrent recency+relevance candidate gathering uses
// golang.org/x/sync/errgroup, the one place in this pipeline two
// independent read-only tree queries can run side by side.
package contextselect

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/arlobrandt/loomgraph/internal/graph"
)

// Ranker scores candidate nodes against a query string. TF-IDF and
// embedding backends both satisfy this interface; Selector is agnostic to
// which one it holds.
type Ranker interface {
	// Rank returns, for each candidate, a relevance score against query.
	// Candidates below the backend's own threshold may be omitted
	// entirely; the returned slice need not preserve input order.
	Rank(ctx context.Context, query string, candidates []*graph.Node) ([]ScoredNode, error)
}

// ScoredNode pairs a node with its relevance score.
type ScoredNode struct {
	Node  *graph.Node
	Score float64
}

// Config tunes Selector's quota split.
type Config struct {
	// RecencyNumerator/RecencyDenominator express the fraction of limit
	// reserved for recently-modified nodes. Defaults to 3/8.
	RecencyNumerator   int
	RecencyDenominator int
}

func (c Config) withDefaults() Config {
	if c.RecencyDenominator <= 0 {
		c.RecencyNumerator = 3
		c.RecencyDenominator = 8
	}
	return c
}

// Selector implements ContextSelector.select.
type Selector struct {
	cfg    Config
	ranker Ranker
}

// New constructs a Selector backed by ranker (a *TFIDFRanker or an
// embedding-backed Ranker).
func New(ranker Ranker, cfg Config) *Selector {
	return &Selector{cfg: cfg.withDefaults(), ranker: ranker}
}

// Select returns an ordered list of node snapshots: all nodes if the tree
// has at most limit nodes, otherwise a deterministic mix of
// recently-modified and query-relevant nodes, deduplicated, in ascending
// id order.
func (s *Selector) Select(ctx context.Context, tree *graph.Tree, limit int, query string) ([]*graph.Node, error) {
	all := tree.Snapshots()
	if len(all) <= limit {
		sortByID(all)
		return all, nil
	}

	recencyQuota := limit * s.cfg.RecencyNumerator / s.cfg.RecencyDenominator
	relevanceQuota := limit - recencyQuota

	var recent []*graph.Node
	var relevant []*graph.Node

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recent = mostRecentlyModified(all, recencyQuota)
		return nil
	})
	g.Go(func() error {
		scored, err := s.ranker.Rank(gctx, query, all)
		if err != nil {
			return fmt.Errorf("contextselect: rank candidates: %w", err)
		}
		relevant = topScored(scored, relevanceQuota)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[int]struct{}, recencyQuota+relevanceQuota)
	out := make([]*graph.Node, 0, recencyQuota+relevanceQuota)
	for _, n := range recent {
		if _, ok := seen[n.ID]; ok {
			continue
		}
		seen[n.ID] = struct{}{}
		out = append(out, n)
	}
	for _, n := range relevant {
		if _, ok := seen[n.ID]; ok {
			continue
		}
		seen[n.ID] = struct{}{}
		out = append(out, n)
	}

	sortByID(out)
	return out, nil
}

func mostRecentlyModified(nodes []*graph.Node, n int) []*graph.Node {
	if n <= 0 {
		return nil
	}
	cp := append([]*graph.Node(nil), nodes...)
	sort.Slice(cp, func(i, j int) bool {
		if cp[i].ModifiedAt.Equal(cp[j].ModifiedAt) {
			return cp[i].ID > cp[j].ID
		}
		return cp[i].ModifiedAt.After(cp[j].ModifiedAt)
	})
	if len(cp) > n {
		cp = cp[:n]
	}
	return cp
}

func topScored(scored []ScoredNode, n int) []*graph.Node {
	if n <= 0 {
		return nil
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > n {
		scored = scored[:n]
	}
	out := make([]*graph.Node, len(scored))
	for i, sn := range scored {
		out[i] = sn.Node
	}
	return out
}

func sortByID(nodes []*graph.Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
}
