// Package openai provides an llmclient.Client backed directly by the
// OpenAI API, adapted from pkg/provider/llm/openai — same oai.Client
// construction and functional-option shape, narrowed from a full
// streaming CompletionRequest down to one structured call per invocation
// using OpenAI's JSON Schema response format.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/arlobrandt/loomgraph/internal/llmclient"
)

var _ llmclient.Client = (*Client)(nil)

// Client implements llmclient.Client using the OpenAI chat completions API
// with a strict JSON Schema response format.
type Client struct {
	client      oai.Client
	temperature float64
}

type config struct {
	baseURL      string
	organization string
	timeout      time.Duration
	temperature  float64
}

// Option is a functional option for Client.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option { return func(c *config) { c.baseURL = url } }

// WithOrganization sets the OpenAI organization ID on all requests.
func WithOrganization(org string) Option { return func(c *config) { c.organization = org } }

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option { return func(c *config) { c.timeout = d } }

// WithTemperature sets the sampling temperature used for every call.
// Decision-stage callers typically want this at or near 0.
func WithTemperature(t float64) Option { return func(c *config) { c.temperature = t } }

// New constructs a Client. apiKey must not be empty.
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llmclient/openai: apiKey must not be empty")
	}
	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(cfg.organization))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	return &Client{client: oai.NewClient(reqOpts...), temperature: cfg.temperature}, nil
}

// CallStructured implements llmclient.Client.
func (c *Client) CallStructured(ctx context.Context, prompt string, schema json.RawMessage, model string) (json.RawMessage, error) {
	var schemaMap map[string]any
	if err := json.Unmarshal(schema, &schemaMap); err != nil {
		return nil, fmt.Errorf("llmclient/openai: invalid schema: %w", err)
	}

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: []oai.ChatCompletionMessageParamUnion{oai.UserMessage(prompt)},
		ResponseFormat: oai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "loomgraph_stage_output",
					Schema: schemaMap,
					Strict: param.NewOpt(true),
				},
			},
		},
	}
	if c.temperature != 0 {
		params.Temperature = param.NewOpt(c.temperature)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("llmclient/openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, llmclient.ErrEmptyResponse
	}
	return json.RawMessage(resp.Choices[0].Message.Content), nil
}
