package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"BookPublisher/internal/ports"
)

// OllamaClient implements ports.ChatClient against a local Ollama server.
type OllamaClient struct {
	endpoint   string
	httpClient *http.Client
}

var _ ports.ChatClient = (*OllamaClient)(nil)

// NewOllamaClient builds a client for the server at endpoint (e.g. http://localhost:11434).
func NewOllamaClient(endpoint string, timeout time.Duration) *OllamaClient {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &OllamaClient{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ports.ChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Format   string              `json:"format,omitempty"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatChunk struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

// Chat posts to /api/chat. Streamed responses are newline-delimited JSON chunks.
func (c *OllamaClient) Chat(ctx context.Context, req ports.ChatRequest, onDelta func(string)) (string, error) {
	if c == nil || c.endpoint == "" {
		return "", fmt.Errorf("ollama client misconfigured")
	}
	if req.Model == "" {
		return "", fmt.Errorf("ollama: model is required")
	}

	payload := ollamaChatRequest{
		Model:    req.Model,
		Messages: req.Messages,
		Stream:   req.Stream,
		Options:  map[string]any{"temperature": req.Temperature},
	}
	if req.JSON {
		payload.Format = "json"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal ollama payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("ollama error %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	if !req.Stream {
		var chunk ollamaChatChunk
		if err := json.NewDecoder(resp.Body).Decode(&chunk); err != nil {
			return "", fmt.Errorf("decode ollama response: %w", err)
		}
		if chunk.Error != "" {
			return "", fmt.Errorf("ollama error: %s", chunk.Error)
		}
		return chunk.Message.Content, nil
	}

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk ollamaChatChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return full.String(), fmt.Errorf("decode ollama chunk: %w", err)
		}
		if chunk.Error != "" {
			return full.String(), fmt.Errorf("ollama error: %s", chunk.Error)
		}
		if chunk.Message.Content != "" {
			full.WriteString(chunk.Message.Content)
			if onDelta != nil {
				onDelta(chunk.Message.Content)
			}
		}
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return full.String(), fmt.Errorf("read ollama stream: %w", err)
	}

	return full.String(), nil
}
