package llmclient

import (
	"context"
	"encoding/json"

	"github.com/arlobrandt/loomgraph/internal/resilience"
)

// ResilientConfig tunes [NewResilient]'s retry and circuit-breaker behavior.
type ResilientConfig struct {
	Retry          resilience.RetryConfig
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Resilient wraps a Client with transparent retry-with-backoff and a
// circuit breaker, so that transient LLM transport failures (category 1
// in the error taxonomy) are recovered without the caller seeing them,
// while a sustained outage fails fast instead of burning the per-stage
// timeout on every call.
type Resilient struct {
	inner   Client
	name    string
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

var _ Client = (*Resilient)(nil)

// NewResilient wraps inner. name labels the breaker in log output (e.g.
// "llm/openai").
func NewResilient(inner Client, name string, cfg ResilientConfig) *Resilient {
	cbCfg := cfg.CircuitBreaker
	cbCfg.Name = name
	return &Resilient{
		inner:   inner,
		name:    name,
		retry:   cfg.Retry,
		breaker: resilience.NewCircuitBreaker(cbCfg),
	}
}

// CallStructured implements Client. A failing call after retries is
// returned to the caller unchanged; the agent stage that invoked it
// treats this as a cycle-abandoning transient failure.
func (r *Resilient) CallStructured(ctx context.Context, prompt string, schema json.RawMessage, model string) (json.RawMessage, error) {
	var resp json.RawMessage
	err := r.breaker.Execute(func() error {
		return resilience.Retry(ctx, r.retry, r.name, func(ctx context.Context) error {
			out, callErr := r.inner.CallStructured(ctx, prompt, schema, model)
			if callErr != nil {
				return callErr
			}
			resp = out
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
