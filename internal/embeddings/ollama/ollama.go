// Package ollama provides an embeddings.Provider backed by a local Ollama
// server's native /api/embed endpoint, adapted from
// pkg/provider/embeddings/ollama. No third-party dependency is wired
// here: Ollama's wire format is a small bespoke JSON request/response
// pair, not a domain a client library meaningfully abstracts, so plain
// net/http and encoding/json are used directly.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/arlobrandt/loomgraph/internal/embeddings"
)

// DefaultBaseURL is the default base URL for a locally running Ollama instance.
const DefaultBaseURL = "http://localhost:11434"

var _ embeddings.Provider = (*Provider)(nil)

// Provider implements embeddings.Provider using a local Ollama server.
// Safe for concurrent use.
type Provider struct {
	baseURL    string
	model      string
	httpClient *http.Client

	dimensions int
	detectOnce sync.Once
}

type config struct {
	timeout    time.Duration
	dimensions int
}

// Option is a functional option for Provider.
type Option func(*config)

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option { return func(c *config) { c.timeout = d } }

// WithDimensions pre-sets the embedding dimension, bypassing the look-up
// table and the probe request Dimensions would otherwise issue.
func WithDimensions(dims int) Option { return func(c *config) { c.dimensions = dims } }

// New constructs a Provider. If baseURL is empty, DefaultBaseURL is used.
// model must not be empty.
func New(baseURL, model string, opts ...Option) (*Provider, error) {
	if model == "" {
		return nil, fmt.Errorf("ollama embeddings: model must not be empty")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	httpClient := &http.Client{}
	if cfg.timeout > 0 {
		httpClient.Timeout = cfg.timeout
	}

	p := &Provider{baseURL: baseURL, model: model, httpClient: httpClient, dimensions: cfg.dimensions}
	if p.dimensions == 0 {
		p.dimensions = knownDimensions(model)
	}
	return p, nil
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed implements embeddings.Provider.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.callEmbed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: embed: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("ollama embeddings: embed: empty response")
	}
	return vecs[0], nil
}

// EmbedBatch implements embeddings.Provider.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := p.callEmbed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: embed batch: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("ollama embeddings: embed batch: expected %d embeddings, got %d", len(texts), len(vecs))
	}
	return vecs, nil
}

// Dimensions implements embeddings.Provider. Falls back to a one-time probe
// embed against the live server for unrecognised model names.
func (p *Provider) Dimensions() int {
	if p.dimensions != 0 {
		return p.dimensions
	}
	p.detectOnce.Do(func() {
		vecs, err := p.callEmbed(context.Background(), []string{"probe"})
		if err != nil {
			return
		}
		if len(vecs) > 0 {
			p.dimensions = len(vecs[0])
		}
	})
	return p.dimensions
}

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string { return p.model }

func (p *Provider) callEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("empty embeddings in response")
	}
	return result.Embeddings, nil
}

// knownDimensions returns the well-known output dimension for recognised
// Ollama embedding model names, or 0 to trigger auto-detection.
func knownDimensions(model string) int {
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "nomic-embed-text"):
		return 768
	case strings.Contains(lower, "mxbai-embed-large"):
		return 1024
	case strings.Contains(lower, "all-minilm"):
		return 384
	default:
		return 0
	}
}
