package parser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"BookPublisher/internal/domain"
	"BookPublisher/internal/ports"
	"BookPublisher/internal/scanner"
)

// ChapterSource implements ports.ChapterSource with a page renderer and site profiles.
type ChapterSource struct {
	renderer    ports.PageRenderer
	registry    *scanner.Registry
	screenshots bool
	logger      *slog.Logger
}

var _ ports.ChapterSource = (*ChapterSource)(nil)

// NewChapterSource wires a renderer with the profile registry. screenshots
// should be false for renderers that cannot capture them.
func NewChapterSource(renderer ports.PageRenderer, reg *scanner.Registry, screenshots bool, log *slog.Logger) *ChapterSource {
	return &ChapterSource{
		renderer:    renderer,
		registry:    reg,
		screenshots: screenshots,
		logger:      log,
	}
}

// FetchChapter renders the page, waits for the profile container and extracts its paragraphs.
func (s *ChapterSource) FetchChapter(ctx context.Context, url string) (domain.ScrapedChapter, error) {
	if s.renderer == nil || s.registry == nil {
		return domain.ScrapedChapter{}, fmt.Errorf("chapter source is not configured")
	}

	profile, err := s.registry.Resolve(url)
	if err != nil {
		return domain.ScrapedChapter{}, err
	}
	s.debug("render chapter", "url", url, "profile", profile.Name, "container", profile.Container)

	page, err := s.renderer.Render(ctx, ports.RenderRequest{
		URL:          url,
		WaitSelector: profile.Container,
		Screenshot:   s.screenshots,
	})
	if err != nil {
		return domain.ScrapedChapter{}, err
	}

	parsed, err := ParseChapter(page.HTML, profile)
	if err != nil {
		return domain.ScrapedChapter{}, fmt.Errorf("extract %s: %w", url, err)
	}

	title := strings.TrimSpace(page.Title)
	if title == "" {
		title = parsed.Title
	}

	s.debug("chapter extracted", "url", url, "paragraphs", len(parsed.Paragraphs), "screenshot_bytes", len(page.Screenshot))
	return domain.ScrapedChapter{
		Title:      title,
		Paragraphs: parsed.Paragraphs,
		Screenshot: page.Screenshot,
	}, nil
}

func (s *ChapterSource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
