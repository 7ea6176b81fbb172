package ports

import (
	"context"
	"time"

	"BookPublisher/internal/domain"
)

// RenderRequest asks a renderer to load a page and wait for its content container.
type RenderRequest struct {
	URL          string
	WaitSelector string
	Screenshot   bool
}

// RenderedPage is the browser's view of a loaded page.
type RenderedPage struct {
	Title      string
	HTML       string
	Screenshot []byte
}

// PageRenderer loads pages (headless browser or plain HTTP).
type PageRenderer interface {
	Render(ctx context.Context, req RenderRequest) (RenderedPage, error)
}

// ChapterSource turns a chapter URL into title, paragraphs and a screenshot.
type ChapterSource interface {
	FetchChapter(ctx context.Context, url string) (domain.ScrapedChapter, error)
}

// ChatMessage is a single {role, content} turn.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest carries everything a language-model call needs.
type ChatRequest struct {
	Model       string
	Messages    []ChatMessage
	Temperature float64
	Stream      bool
	// JSON asks the model for a JSON object when the backend supports it.
	JSON bool
}

// ChatClient sends chat turns to a language model. When req.Stream is set the
// fragments are handed to onDelta as they arrive; the return value is always the
// full concatenated text.
type ChatClient interface {
	Chat(ctx context.Context, req ChatRequest, onDelta func(string)) (string, error)
}

// Embedder computes vector embeddings for texts.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// IndexDocument is one addressable entry of the archive index.
type IndexDocument struct {
	ID        string
	Text      string
	Metadata  map[string]string
	Embedding []float32
}

// IndexMatch is a query hit; Distance semantics belong to the index.
type IndexMatch struct {
	ID       string
	Text     string
	Metadata map[string]string
	Distance float64
}

// VectorIndex stores documents with embeddings and answers nearest-neighbour queries.
type VectorIndex interface {
	Upsert(ctx context.Context, doc IndexDocument) error
	Query(ctx context.Context, embedding []float32, topK int) ([]IndexMatch, error)
	Get(ctx context.Context, id string) (IndexMatch, bool, error)
	Close() error
}

// ArtifactStore persists stage artifacts keyed by chapter id and status.
type ArtifactStore interface {
	Save(ctx context.Context, record domain.ChapterRecord) (string, error)
	SaveScreenshot(ctx context.Context, chapterID string, png []byte) (string, error)
	Load(ctx context.Context, path string) (domain.ChapterRecord, error)
	PathFor(status domain.Status, chapterID string) (string, error)
	List(status domain.Status) ([]string, error)
	Lock(chapterID string) (unlock func() error, err error)
}

// Notifier pushes short human-readable notices to an outbound channel.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Scheduler runs a job repeatedly until stopped.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
