// Package pgcache provides an optional Postgres+pgvector-backed cache for
// node embeddings, so ContextSelector's embedding ranking pass can skip
// re-embedding a node's title+summary on every chunk when neither has
// changed since the last cached computation.
//
// Adapted from pkg/memory/postgres/semantic_index.go: same pgxpool.Pool +
// pgvector.Vector upsert-and-cosine-search shape, generalized from
// session-scoped transcript chunks to (node id, modified_at)-keyed node
// embeddings.
package pgcache

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// Cache is a persisted embedding cache for graph nodes. Safe for concurrent
// use; callers are expected to hold one Cache per pipeline run.
type Cache struct {
	pool *pgxpool.Pool
}

// New wraps an existing connection pool. The caller owns the pool's
// lifecycle (Close). Schema is not created here; see Migrate.
func New(pool *pgxpool.Pool) *Cache {
	return &Cache{pool: pool}
}

// Migrate creates the node_embeddings table and its HNSW index if they do
// not already exist. dims is the embedding vector's dimensionality and must
// match the Provider in use.
func (c *Cache) Migrate(ctx context.Context, dims int) error {
	q := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS node_embeddings (
		    node_id     INTEGER PRIMARY KEY,
		    modified_at BIGINT NOT NULL,
		    model_id    TEXT NOT NULL,
		    embedding   vector(%d) NOT NULL
		);
		CREATE INDEX IF NOT EXISTS node_embeddings_hnsw
		    ON node_embeddings USING hnsw (embedding vector_cosine_ops)`, dims)
	if _, err := c.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("pgcache: migrate: %w", err)
	}
	return nil
}

// Lookup returns the cached embedding for nodeID if one exists whose
// modified_at matches modifiedAtUnixNano exactly and whose model matches
// modelID. A stale or absent entry returns (nil, false, nil).
func (c *Cache) Lookup(ctx context.Context, nodeID int, modifiedAtUnixNano int64, modelID string) ([]float32, bool, error) {
	const q = `
		SELECT embedding FROM node_embeddings
		WHERE node_id = $1 AND modified_at = $2 AND model_id = $3`

	var vec pgvector.Vector
	err := c.pool.QueryRow(ctx, q, nodeID, modifiedAtUnixNano, modelID).Scan(&vec)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("pgcache: lookup: %w", err)
	}
	return vec.Slice(), true, nil
}

// Store upserts the embedding for nodeID, replacing any prior entry.
func (c *Cache) Store(ctx context.Context, nodeID int, modifiedAtUnixNano int64, modelID string, embedding []float32) error {
	const q = `
		INSERT INTO node_embeddings (node_id, modified_at, model_id, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (node_id) DO UPDATE SET
		    modified_at = EXCLUDED.modified_at,
		    model_id    = EXCLUDED.model_id,
		    embedding   = EXCLUDED.embedding`

	vec := pgvector.NewVector(embedding)
	if _, err := c.pool.Exec(ctx, q, nodeID, modifiedAtUnixNano, modelID, vec); err != nil {
		return fmt.Errorf("pgcache: store: %w", err)
	}
	return nil
}

// NearestResult is one row of a NearestByEmbedding search.
type NearestResult struct {
	NodeID   int
	Distance float64
}

// NearestByEmbedding returns the topK cached node embeddings closest to
// query by cosine distance, ascending (most similar first).
func (c *Cache) NearestByEmbedding(ctx context.Context, query []float32, topK int) ([]NearestResult, error) {
	const q = `
		SELECT node_id, embedding <=> $1 AS distance
		FROM   node_embeddings
		ORDER  BY distance
		LIMIT  $2`

	rows, err := c.pool.Query(ctx, q, pgvector.NewVector(query), topK)
	if err != nil {
		return nil, fmt.Errorf("pgcache: nearest: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (NearestResult, error) {
		var r NearestResult
		if err := row.Scan(&r.NodeID, &r.Distance); err != nil {
			return NearestResult{}, err
		}
		return r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("pgcache: scan rows: %w", err)
	}
	if results == nil {
		results = []NearestResult{}
	}
	return results, nil
}

// Delete removes nodeID's cached embedding, e.g. after the node is merged
// away during mutation application.
func (c *Cache) Delete(ctx context.Context, nodeID int) error {
	if _, err := c.pool.Exec(ctx, `DELETE FROM node_embeddings WHERE node_id = $1`, nodeID); err != nil {
		return fmt.Errorf("pgcache: delete: %w", err)
	}
	return nil
}
