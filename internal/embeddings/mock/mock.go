// Package mock provides a test double for the embeddings.Provider
// interface, adapted from pkg/provider/embeddings/mock.
package mock

import (
	"context"
	"sync"

	"github.com/arlobrandt/loomgraph/internal/embeddings"
)

// EmbedCall records a single invocation of Embed.
type EmbedCall struct {
	Ctx  context.Context
	Text string
}

// EmbedBatchCall records a single invocation of EmbedBatch.
type EmbedBatchCall struct {
	Ctx   context.Context
	Texts []string
}

// Provider is a mock implementation of embeddings.Provider.
type Provider struct {
	mu sync.Mutex

	EmbedResult []float32
	EmbedErr    error

	EmbedBatchResult [][]float32
	EmbedBatchErr    error

	DimensionsValue int
	ModelIDValue    string

	EmbedCalls          []EmbedCall
	EmbedBatchCalls     []EmbedBatchCall
	DimensionsCallCount int
	ModelIDCallCount    int
}

var _ embeddings.Provider = (*Provider)(nil)

// Embed records the call and returns EmbedResult, EmbedErr.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedCalls = append(p.EmbedCalls, EmbedCall{Ctx: ctx, Text: text})
	return p.EmbedResult, p.EmbedErr
}

// EmbedBatch records the call and returns EmbedBatchResult, EmbedBatchErr. If
// EmbedBatchResult is nil, a slice of nil slices matching len(texts) is
// returned.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]string, len(texts))
	copy(cp, texts)
	p.EmbedBatchCalls = append(p.EmbedBatchCalls, EmbedBatchCall{Ctx: ctx, Texts: cp})
	if p.EmbedBatchErr != nil {
		return nil, p.EmbedBatchErr
	}
	if p.EmbedBatchResult != nil {
		return p.EmbedBatchResult, nil
	}
	return make([][]float32, len(texts)), nil
}

// Dimensions records the call and returns DimensionsValue.
func (p *Provider) Dimensions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.DimensionsCallCount++
	return p.DimensionsValue
}

// ModelID records the call and returns ModelIDValue.
func (p *Provider) ModelID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ModelIDCallCount++
	return p.ModelIDValue
}

// Reset clears all recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedCalls = nil
	p.EmbedBatchCalls = nil
	p.DimensionsCallCount = 0
	p.ModelIDCallCount = 0
}
