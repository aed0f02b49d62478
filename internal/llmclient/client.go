// Package llmclient defines the single call_structured boundary that
// internal/agent uses to reach an LLM backend: one prompt and one JSON
// Schema in, one schema-conformant JSON document out. This is narrower
// than a full chat-completion abstraction because every stage in the
// pipeline — segment, relate, decide — wants exactly one thing from the
// model: a structured object, not free text or a tool-call loop.
//
// Adapted from the Provider abstraction in pkg/provider/llm, narrowed
// from its general-purpose CompletionRequest surface down to the one
// call shape this pipeline actually issues.
package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
)

// Client is the abstraction over any LLM backend capable of producing
// schema-constrained JSON output. Implementations must be safe for
// concurrent use.
type Client interface {
	// CallStructured sends prompt to the model along with schema (a JSON
	// Schema document) and returns the model's response, which must
	// validate against schema. model names the specific model to target;
	// implementations that wrap a single fixed model may ignore it.
	CallStructured(ctx context.Context, prompt string, schema json.RawMessage, model string) (json.RawMessage, error)
}

// ErrEmptyResponse is returned by implementations when the backend
// returns no content at all.
var ErrEmptyResponse = fmt.Errorf("llmclient: empty response")
