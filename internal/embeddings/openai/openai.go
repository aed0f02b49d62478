// Package openai provides an embeddings.Provider backed by the OpenAI API,
// adapted from pkg/provider/embeddings/openai.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/arlobrandt/loomgraph/internal/embeddings"
)

// DefaultModel is the default OpenAI embeddings model.
const DefaultModel = oai.EmbeddingModelTextEmbedding3Small

var _ embeddings.Provider = (*Provider)(nil)

// Provider implements embeddings.Provider using the OpenAI API.
type Provider struct {
	client oai.Client
	model  string
}

// Option configures a Provider.
type Option func(*config)

type config struct {
	baseURL string
	timeout time.Duration
}

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option { return func(c *config) { c.baseURL = url } }

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option { return func(c *config) { c.timeout = d } }

// New constructs a Provider. If model is empty, DefaultModel is used.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai embeddings: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}
	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	return &Provider{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Embed implements embeddings.Provider.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.Embeddings.New(ctx, oai.EmbeddingNewParams{
		Model: p.model,
		Input: oai.EmbeddingNewParamsInputUnion{OfString: param.NewOpt(text)},
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embeddings: empty response")
	}
	return float64ToFloat32(resp.Data[0].Embedding), nil
}

// EmbedBatch implements embeddings.Provider.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := p.client.Embeddings.New(ctx, oai.EmbeddingNewParams{
		Model: p.model,
		Input: oai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: embed batch: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: expected %d embeddings, got %d", len(texts), len(resp.Data))
	}
	out := make([][]float32, len(texts))
	for _, e := range resp.Data {
		if int(e.Index) >= len(texts) {
			return nil, fmt.Errorf("openai embeddings: unexpected index %d", e.Index)
		}
		out[e.Index] = float64ToFloat32(e.Embedding)
	}
	return out, nil
}

// Dimensions implements embeddings.Provider.
func (p *Provider) Dimensions() int { return modelDimensions(p.model) }

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string { return p.model }

func modelDimensions(model string) int {
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "text-embedding-3-large"):
		return 3072
	case strings.Contains(lower, "text-embedding-3-small"):
		return 1536
	case strings.Contains(lower, "text-embedding-ada-002"):
		return 1536
	default:
		return 1536
	}
}

func float64ToFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
