// Package anyllm provides an llmclient.Client backed by
// github.com/mozilla-ai/any-llm-go, adapted from pkg/provider/llm/anyllm
// — same provider-name dispatch table, narrowed to one structured call
// per invocation instead of a streaming CompletionRequest surface.
package anyllm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/arlobrandt/loomgraph/internal/llmclient"
)

var _ llmclient.Client = (*Client)(nil)

// Client implements llmclient.Client by wrapping any-llm-go's unified
// multi-provider completion API, requesting a JSON-object response and
// validating it parses before returning it to the caller.
type Client struct {
	backend     anyllmlib.Provider
	temperature float64
}

// New creates a Client backed by the given provider name: one of
// "openai", "anthropic", "gemini", "ollama", "deepseek", "mistral",
// "groq", "llamacpp", "llamafile".
func New(providerName string, temperature float64, opts ...anyllmlib.Option) (*Client, error) {
	if providerName == "" {
		return nil, fmt.Errorf("llmclient/anyllm: providerName must not be empty")
	}
	backend, err := createBackend(providerName, opts...)
	if err != nil {
		return nil, fmt.Errorf("llmclient/anyllm: create %q backend: %w", providerName, err)
	}
	return &Client{backend: backend, temperature: temperature}, nil
}

func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	case "llamacpp":
		return llamacpp.New(opts...)
	case "llamafile":
		return llamafile.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama, deepseek, mistral, groq, llamacpp, llamafile", providerName)
	}
}

// CallStructured implements llmclient.Client. Not every any-llm-go backend
// supports a native JSON Schema response format, so the schema is instead
// folded into the prompt as an explicit instruction and the response is
// parsed as JSON on return; a non-JSON response is an error.
func (c *Client) CallStructured(ctx context.Context, prompt string, schema json.RawMessage, model string) (json.RawMessage, error) {
	augmented := fmt.Sprintf("%s\n\nRespond with a single JSON object that strictly conforms to this JSON Schema and nothing else:\n%s", prompt, string(schema))

	params := anyllmlib.CompletionParams{
		Model: model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleUser, Content: augmented},
		},
		ResponseFormat: &anyllmlib.ResponseFormat{Type: "json_object"},
	}
	if c.temperature != 0 {
		t := c.temperature
		params.Temperature = &t
	}

	resp, err := c.backend.Completion(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("llmclient/anyllm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, llmclient.ErrEmptyResponse
	}

	content := resp.Choices[0].Message.ContentString()
	if content == "" {
		return nil, llmclient.ErrEmptyResponse
	}
	if !json.Valid([]byte(content)) {
		return nil, fmt.Errorf("llmclient/anyllm: response is not valid JSON: %s", content)
	}
	return json.RawMessage(content), nil
}
