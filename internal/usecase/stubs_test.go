package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"

	"BookPublisher/internal/domain"
	"BookPublisher/internal/ports"
)

type stubSource struct {
	chapter domain.ScrapedChapter
	err     error
	calls   int
}

func (s *stubSource) FetchChapter(_ context.Context, _ string) (domain.ScrapedChapter, error) {
	s.calls++
	return s.chapter, s.err
}

// stubChat answers with a fixed reply or with a prefix echo of the last user message.
type stubChat struct {
	mu       sync.Mutex
	reply    string
	echo     string
	chunks   []string
	err      error
	requests []ports.ChatRequest
}

func (c *stubChat) Chat(_ context.Context, req ports.ChatRequest, onDelta func(string)) (string, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	if c.err != nil {
		return "", c.err
	}
	if c.echo != "" {
		user := req.Messages[len(req.Messages)-1].Content
		return c.echo + user[strings.LastIndex(user, "\n\n")+2:], nil
	}
	if len(c.chunks) > 0 {
		var full strings.Builder
		for _, chunk := range c.chunks {
			if req.Stream && onDelta != nil {
				onDelta(chunk)
			}
			full.WriteString(chunk)
		}
		return full.String(), nil
	}
	return c.reply, nil
}

func (c *stubChat) lastRequest() ports.ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requests[len(c.requests)-1]
}

// letterEmbedder maps text onto letter frequencies, enough to rank by shared vocabulary.
type letterEmbedder struct {
	err error
}

func (e letterEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, 27)
		for _, r := range strings.ToLower(text) {
			if r >= 'a' && r <= 'z' {
				vec[r-'a']++
			}
		}
		vec[26] = 0.01
		out[i] = vec
	}
	return out, nil
}

type fixedIndex struct {
	matches []ports.IndexMatch
}

func (f fixedIndex) Upsert(context.Context, ports.IndexDocument) error { return nil }

func (f fixedIndex) Query(_ context.Context, _ []float32, topK int) ([]ports.IndexMatch, error) {
	if topK < len(f.matches) {
		return f.matches[:topK], nil
	}
	return f.matches, nil
}

func (f fixedIndex) Get(context.Context, string) (ports.IndexMatch, bool, error) {
	return ports.IndexMatch{}, false, nil
}

func (f fixedIndex) Close() error { return nil }

type recordingNotifier struct {
	messages []string
	err      error
}

func (n *recordingNotifier) Notify(_ context.Context, message string) error {
	n.messages = append(n.messages, message)
	return n.err
}

var errBackend = errors.New("backend unavailable")
