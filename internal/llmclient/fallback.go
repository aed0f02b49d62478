package llmclient

import (
	"context"
	"encoding/json"

	"github.com/arlobrandt/loomgraph/internal/resilience"
)

// FallbackClient chains multiple Client backends behind a single Client:
// when the current entry's circuit breaker is open or its call fails, the
// next entry in registration order is tried.
//
// Rebuilt directly on top of [resilience.FallbackGroup] rather than a
// bespoke provider-switch, so the same breaker-per-entry behavior backs
// every fallback chain in this repository instead of being duplicated
// per domain.
type FallbackClient struct {
	group *resilience.FallbackGroup[Client]
}

// NewFallbackClient wraps primary as the first, and by default only, entry
// of a fallback chain.
func NewFallbackClient(primary Client, primaryName string, cfg resilience.FallbackConfig) *FallbackClient {
	return &FallbackClient{group: resilience.NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback appends another backend, tried only once every
// previously-added entry has failed or tripped its breaker.
func (f *FallbackClient) AddFallback(name string, c Client) {
	f.group.AddFallback(name, c)
}

// CallStructured implements Client by delegating to the first healthy
// entry in the fallback chain.
func (f *FallbackClient) CallStructured(ctx context.Context, prompt string, schema json.RawMessage, model string) (json.RawMessage, error) {
	return resilience.ExecuteWithResult(f.group, func(c Client) (json.RawMessage, error) {
		return c.CallStructured(ctx, prompt, schema, model)
	})
}
