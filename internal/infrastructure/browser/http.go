package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"BookPublisher/internal/ports"
)

const maxPageBytes = 16 << 20

// HTTPRenderer fetches server-rendered HTML without a browser. It cannot take
// screenshots, so it suits static mirrors and tests.
type HTTPRenderer struct {
	client *http.Client
}

var _ ports.PageRenderer = (*HTTPRenderer)(nil)

// NewHTTPRenderer wires an HTTP client; a nil client gets a 20s timeout.
func NewHTTPRenderer(client *http.Client) *HTTPRenderer {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &HTTPRenderer{client: client}
}

// Render downloads the page. Title and selector checks are left to the parser.
func (h *HTTPRenderer) Render(ctx context.Context, req ports.RenderRequest) (ports.RenderedPage, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return ports.RenderedPage{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("User-Agent", "BookPublisher/1.0")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return ports.RenderedPage{}, fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ports.RenderedPage{}, fmt.Errorf("fetch %s: %s", req.URL, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return ports.RenderedPage{}, fmt.Errorf("read page: %w", err)
	}

	return ports.RenderedPage{HTML: string(body)}, nil
}
