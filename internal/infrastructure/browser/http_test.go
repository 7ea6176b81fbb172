package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"BookPublisher/internal/ports"
)

func TestHTTPRendererRender(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "BookPublisher/1.0" {
			t.Errorf("unexpected user agent %q", got)
		}
		_, _ = w.Write([]byte(`<html><head><title>Chapter 1</title></head><body><div class="prp-pages-output"><p>Hi</p></div></body></html>`))
	}))
	defer server.Close()

	r := NewHTTPRenderer(server.Client())
	page, err := r.Render(context.Background(), ports.RenderRequest{URL: server.URL, WaitSelector: "div.prp-pages-output"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(page.HTML, "prp-pages-output") {
		t.Fatalf("unexpected html %q", page.HTML)
	}
	if len(page.Screenshot) != 0 {
		t.Fatalf("http renderer must not produce screenshots")
	}
}

func TestHTTPRendererStatusError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	r := NewHTTPRenderer(server.Client())
	if _, err := r.Render(context.Background(), ports.RenderRequest{URL: server.URL}); err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected 404 error, got %v", err)
	}
}

func TestNewChromeRendererDefaultsTimeout(t *testing.T) {
	t.Parallel()

	r := NewChromeRenderer(ChromeOptions{Headless: true})
	if r.opts.Timeout <= 0 {
		t.Fatalf("timeout not defaulted")
	}
}
