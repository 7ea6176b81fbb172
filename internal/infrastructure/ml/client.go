package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"BookPublisher/internal/ports"
)

// Provider names understood by Client.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Client talks to an embeddings service (Ollama /api/embed or OpenAI /v1/embeddings).
type Client struct {
	provider string
	endpoint string
	apiKey   string
	model    string
	http     *http.Client
}

var _ ports.Embedder = (*Client)(nil)

// NewClient creates a reusable HTTP client. For Ollama the endpoint is the server
// root; for OpenAI it is the full embeddings URL.
func NewClient(provider, endpoint, apiKey, model string) *Client {
	return &Client{
		provider: strings.ToLower(strings.TrimSpace(provider)),
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		model:    model,
		http:     &http.Client{Timeout: 60 * time.Second},
	}
}

// Embed returns one vector per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if c.model == "" || c.endpoint == "" {
		return nil, fmt.Errorf("embedding client misconfigured")
	}

	var (
		vectors [][]float32
		err     error
	)
	switch c.provider {
	case ProviderOpenAI:
		vectors, err = c.embedOpenAI(ctx, texts)
	case ProviderOllama, "":
		vectors, err = c.embedOllama(ctx, texts)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", c.provider)
	}
	if err != nil {
		return nil, err
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embeddings: requested %d, got %d", len(texts), len(vectors))
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("embeddings: empty vector at index %d", i)
		}
	}
	return vectors, nil
}

func (c *Client) embedOllama(ctx context.Context, texts []string) ([][]float32, error) {
	payload := map[string]any{
		"model": c.model,
		"input": texts,
	}

	var resp struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := c.post(ctx, c.endpoint+"/api/embed", payload, &resp); err != nil {
		return nil, err
	}
	return resp.Embeddings, nil
}

func (c *Client) embedOpenAI(ctx context.Context, texts []string) ([][]float32, error) {
	payload := map[string]any{
		"model": c.model,
		"input": texts,
	}

	var resp struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := c.post(ctx, c.endpoint, payload, &resp); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embeddings: index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, url string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			return fmt.Errorf("unexpected status %s, close body: %v", resp.Status, closeErr)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		_ = resp.Body.Close()
		return fmt.Errorf("decode response: %w", err)
	}

	if err := resp.Body.Close(); err != nil {
		return fmt.Errorf("close response body: %w", err)
	}

	return nil
}
