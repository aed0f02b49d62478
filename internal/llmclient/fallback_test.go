package llmclient

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/arlobrandt/loomgraph/internal/llmclient/mock"
	"github.com/arlobrandt/loomgraph/internal/resilience"
)

func TestFallbackClientFallsBackOnPrimaryError(t *testing.T) {
	primary := &mock.Client{Err: errors.New("primary down")}
	secondary := &mock.Client{Responses: []json.RawMessage{json.RawMessage(`{"ok":true}`)}}

	fc := NewFallbackClient(primary, "primary", resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{MaxFailures: 3},
	})
	fc.AddFallback("secondary", secondary)

	out, err := fc.CallStructured(context.Background(), "prompt", nil, "model")
	if err != nil {
		t.Fatalf("CallStructured: %v", err)
	}
	if string(out) != `{"ok":true}` {
		t.Fatalf("out = %s, want secondary's response", out)
	}
	if len(secondary.Calls) != 1 {
		t.Fatalf("secondary.Calls = %d, want 1", len(secondary.Calls))
	}
}

func TestFallbackClientAllFail(t *testing.T) {
	primary := &mock.Client{Err: errors.New("primary down")}
	secondary := &mock.Client{Err: errors.New("secondary down")}

	fc := NewFallbackClient(primary, "primary", resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{MaxFailures: 3},
	})
	fc.AddFallback("secondary", secondary)

	if _, err := fc.CallStructured(context.Background(), "prompt", nil, "model"); err == nil {
		t.Fatal("expected error when every entry fails")
	}
}
