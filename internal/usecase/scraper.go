package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"BookPublisher/internal/domain"
	"BookPublisher/internal/ports"
)

// Scraper renders a chapter page and writes the raw artifact.
type Scraper struct {
	source ports.ChapterSource
	store  ports.ArtifactStore
	logger *slog.Logger
	now    func() time.Time
}

// NewScraper wires a chapter source to the artifact store.
func NewScraper(source ports.ChapterSource, store ports.ArtifactStore, log *slog.Logger) *Scraper {
	return &Scraper{
		source: source,
		store:  store,
		logger: log,
		now:    time.Now,
	}
}

// Run fetches url and persists the screenshot (if any) and then the raw record.
// Nothing is written when fetching or extraction fails.
func (s *Scraper) Run(ctx context.Context, url, chapterID string) (domain.ChapterRecord, string, error) {
	if s.source == nil || s.store == nil {
		return domain.ChapterRecord{}, "", fmt.Errorf("scraper is not configured")
	}
	if err := domain.ValidateChapterID(chapterID); err != nil {
		return domain.ChapterRecord{}, "", err
	}

	chapter, err := s.source.FetchChapter(ctx, url)
	if err != nil {
		return domain.ChapterRecord{}, "", fmt.Errorf("scrape %s: %w", url, err)
	}
	text := chapter.Text()
	if strings.TrimSpace(text) == "" {
		return domain.ChapterRecord{}, "", fmt.Errorf("scrape %s: page has no chapter text", url)
	}

	s.warnOnCollision(ctx, chapterID, url)

	if len(chapter.Screenshot) > 0 {
		shot, err := s.store.SaveScreenshot(ctx, chapterID, chapter.Screenshot)
		if err != nil {
			return domain.ChapterRecord{}, "", fmt.Errorf("save screenshot: %w", err)
		}
		s.debug("screenshot saved", "chapter_id", chapterID, "path", shot)
	}

	record := domain.ChapterRecord{
		ChapterID:    chapterID,
		Title:        chapter.Title,
		URL:          url,
		ScrapedOn:    domain.NewTimestamp(s.now()),
		OriginalText: text,
		Status:       domain.StatusRaw,
	}

	path, err := s.store.Save(ctx, record)
	if err != nil {
		return domain.ChapterRecord{}, "", fmt.Errorf("save raw chapter: %w", err)
	}
	return record, path, nil
}

// Two URLs can share their last three path segments; the later scrape wins.
func (s *Scraper) warnOnCollision(ctx context.Context, chapterID, url string) {
	if s.logger == nil {
		return
	}
	path, err := s.store.PathFor(domain.StatusRaw, chapterID)
	if err != nil {
		return
	}
	existing, err := s.store.Load(ctx, path)
	if err != nil {
		return
	}
	if existing.URL != "" && existing.URL != url {
		s.logger.Warn("chapter id collision, overwriting raw artifact",
			"chapter_id", chapterID, "previous_url", existing.URL, "url", url)
	}
}

func (s *Scraper) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
