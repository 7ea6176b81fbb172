package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"BookPublisher/internal/domain"
	"BookPublisher/internal/ports"
)

// Search result limits.
const (
	DefaultTopK = 5
	MaxTopK     = 50
)

// SearchResult is one archive hit. Similarity is 1 - distance rounded to four
// decimals; it lies in [0, 1] only while the index distance does.
type SearchResult struct {
	ChapterID   string  `json:"chapter_id"`
	Excerpt     string  `json:"excerpt"`
	Title       string  `json:"title"`
	FinalizedOn string  `json:"finalized_on"`
	Comments    string  `json:"comments"`
	URL         string  `json:"url"`
	Similarity  float64 `json:"similarity"`
}

// Archive indexes finalized chapters and answers similarity searches.
type Archive struct {
	embedder ports.Embedder
	index    ports.VectorIndex
	logger   *slog.Logger
}

// NewArchive wires the embeddings backend with the vector index.
func NewArchive(embedder ports.Embedder, index ports.VectorIndex, log *slog.Logger) *Archive {
	return &Archive{
		embedder: embedder,
		index:    index,
		logger:   log,
	}
}

// Ingest embeds final_text and stores it keyed by chapter_id; ingesting the same id again replaces it.
func (a *Archive) Ingest(ctx context.Context, record domain.ChapterRecord) (string, error) {
	if a.embedder == nil || a.index == nil {
		return "", fmt.Errorf("archive is not configured")
	}
	if err := record.ReadyForArchive(); err != nil {
		return "", err
	}

	vectors, err := a.embedder.Embed(ctx, []string{record.FinalText})
	if err != nil {
		return "", fmt.Errorf("embed %s: %w", record.ChapterID, err)
	}
	if len(vectors) != 1 {
		return "", fmt.Errorf("embed %s: got %d vectors", record.ChapterID, len(vectors))
	}

	doc := ports.IndexDocument{
		ID:   record.ChapterID,
		Text: record.FinalText,
		Metadata: map[string]string{
			"title":        record.Title,
			"finalized_on": record.FinalizedOn.String(),
			"comments":     record.HumanComments,
			"url":          record.URL,
		},
		Embedding: vectors[0],
	}
	if err := a.index.Upsert(ctx, doc); err != nil {
		return "", fmt.Errorf("index %s: %w", record.ChapterID, err)
	}

	if a.logger != nil {
		a.logger.Info("chapter archived", "chapter_id", record.ChapterID, "dimensions", len(doc.Embedding))
	}
	return record.ChapterID, nil
}

// Search returns up to topK chapters in index order, nearest first.
func (a *Archive) Search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	if a.embedder == nil || a.index == nil {
		return nil, fmt.Errorf("archive is not configured")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query is empty")
	}

	vectors, err := a.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vectors))
	}

	matches, err := a.index.Query(ctx, vectors[0], ClampTopK(topK))
	if err != nil {
		return nil, fmt.Errorf("query archive: %w", err)
	}

	results := make([]SearchResult, 0, len(matches))
	for _, m := range matches {
		if (m.Distance < 0 || m.Distance > 1) && a.logger != nil {
			a.logger.Warn("index distance outside [0,1], similarity out of range",
				"chapter_id", m.ID, "distance", m.Distance)
		}
		result := resultFromMatch(m)
		result.Similarity = math.Round((1-m.Distance)*1e4) / 1e4
		results = append(results, result)
	}
	return results, nil
}

// Lookup returns the archived chapter with exactly this id.
func (a *Archive) Lookup(ctx context.Context, chapterID string) (SearchResult, bool, error) {
	if a.index == nil {
		return SearchResult{}, false, fmt.Errorf("archive is not configured")
	}
	if err := domain.ValidateChapterID(chapterID); err != nil {
		return SearchResult{}, false, err
	}

	match, ok, err := a.index.Get(ctx, chapterID)
	if err != nil || !ok {
		return SearchResult{}, ok, err
	}
	result := resultFromMatch(match)
	result.Similarity = 1
	return result, true, nil
}

// ClampTopK maps non-positive values to DefaultTopK and caps at MaxTopK.
func ClampTopK(topK int) int {
	switch {
	case topK <= 0:
		return DefaultTopK
	case topK > MaxTopK:
		return MaxTopK
	default:
		return topK
	}
}

func resultFromMatch(m ports.IndexMatch) SearchResult {
	return SearchResult{
		ChapterID:   m.ID,
		Excerpt:     m.Text,
		Title:       m.Metadata["title"],
		FinalizedOn: m.Metadata["finalized_on"],
		Comments:    m.Metadata["comments"],
		URL:         m.Metadata["url"],
	}
}
