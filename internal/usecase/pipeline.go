package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"BookPublisher/internal/domain"
	"BookPublisher/internal/ports"
)

// PipelineDeps wires the stages into the orchestration pipeline.
type PipelineDeps struct {
	Scraper  *Scraper
	Writer   *Writer
	Reviewer *Reviewer
	Store    ports.ArtifactStore
	// Progress receives one human-readable line per written artifact.
	Progress io.Writer
	Logger   *slog.Logger
}

// StageResult is what a single stage leaves behind.
type StageResult struct {
	ChapterID string
	Path      string
	Record    domain.ChapterRecord
}

// RunResult describes a complete scrape, write and review run.
type RunResult struct {
	RunID string
	StageResult
}

// Pipeline sequences scrape, write and review for one chapter at a time.
// It keeps no state between calls beyond what the artifact store holds.
type Pipeline struct {
	scraper  *Scraper
	writer   *Writer
	reviewer *Reviewer
	store    ports.ArtifactStore
	progress io.Writer
	logger   *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	progress := deps.Progress
	if progress == nil {
		progress = io.Discard
	}
	return &Pipeline{
		scraper:  deps.Scraper,
		writer:   deps.Writer,
		reviewer: deps.Reviewer,
		store:    deps.Store,
		progress: progress,
		logger:   deps.Logger,
	}
}

// Run scrapes url, rewrites and reviews it, each stage reading the artifact the
// previous one wrote. It stops at the first failing stage.
func (p *Pipeline) Run(ctx context.Context, url string, onDelta func(string)) (RunResult, error) {
	if err := p.ready(); err != nil {
		return RunResult{}, err
	}
	chapterID, err := domain.DeriveChapterID(url)
	if err != nil {
		return RunResult{}, err
	}

	result := RunResult{RunID: uuid.NewString()}
	log := p.runLogger(result.RunID, chapterID)

	err = p.locked(chapterID, func() error {
		log.Info("pipeline started", "url", url)

		raw, err := p.scrape(ctx, url, chapterID)
		if err != nil {
			return err
		}
		result.StageResult = raw

		spun, err := p.write(ctx, raw.Path)
		if err != nil {
			return err
		}
		result.StageResult = spun

		reviewed, err := p.review(ctx, spun.Path, onDelta)
		if err != nil {
			return err
		}
		result.StageResult = reviewed
		return nil
	})
	if err != nil {
		log.Error("pipeline stopped", "error", err, "last_artifact", result.Path)
		return result, err
	}

	log.Info("pipeline finished", "path", result.Path)
	return result, nil
}

// Scrape runs only the scraping stage.
func (p *Pipeline) Scrape(ctx context.Context, url string) (StageResult, error) {
	if err := p.ready(); err != nil {
		return StageResult{}, err
	}
	chapterID, err := domain.DeriveChapterID(url)
	if err != nil {
		return StageResult{}, err
	}

	var result StageResult
	err = p.locked(chapterID, func() error {
		result, err = p.scrape(ctx, url, chapterID)
		return err
	})
	return result, err
}

// Write rewrites the chapter's raw artifact.
func (p *Pipeline) Write(ctx context.Context, chapterID string) (StageResult, error) {
	if err := p.ready(); err != nil {
		return StageResult{}, err
	}
	rawPath, err := p.store.PathFor(domain.StatusRaw, chapterID)
	if err != nil {
		return StageResult{}, err
	}

	var result StageResult
	err = p.locked(chapterID, func() error {
		result, err = p.write(ctx, rawPath)
		return err
	})
	return result, err
}

// Review critiques the chapter's spun artifact.
func (p *Pipeline) Review(ctx context.Context, chapterID string, onDelta func(string)) (StageResult, error) {
	if err := p.ready(); err != nil {
		return StageResult{}, err
	}
	spunPath, err := p.store.PathFor(domain.StatusSpun, chapterID)
	if err != nil {
		return StageResult{}, err
	}

	var result StageResult
	err = p.locked(chapterID, func() error {
		result, err = p.review(ctx, spunPath, onDelta)
		return err
	})
	return result, err
}

func (p *Pipeline) scrape(ctx context.Context, url, chapterID string) (StageResult, error) {
	record, path, err := p.scraper.Run(ctx, url, chapterID)
	if err != nil {
		return StageResult{}, err
	}
	fmt.Fprintf(p.progress, "Scraped chapter saved to %s\n", path)
	return StageResult{ChapterID: chapterID, Path: path, Record: record}, nil
}

func (p *Pipeline) write(ctx context.Context, rawPath string) (StageResult, error) {
	record, path, err := p.writer.Run(ctx, rawPath)
	if err != nil {
		return StageResult{}, err
	}
	fmt.Fprintf(p.progress, "Spun chapter saved to %s\n", path)
	return StageResult{ChapterID: record.ChapterID, Path: path, Record: record}, nil
}

func (p *Pipeline) review(ctx context.Context, spunPath string, onDelta func(string)) (StageResult, error) {
	record, path, err := p.reviewer.Run(ctx, spunPath, onDelta)
	if err != nil {
		return StageResult{}, err
	}
	fmt.Fprintf(p.progress, "Reviewed chapter saved to %s\n", path)
	return StageResult{ChapterID: record.ChapterID, Path: path, Record: record}, nil
}

func (p *Pipeline) locked(chapterID string, fn func() error) error {
	unlock, err := p.store.Lock(chapterID)
	if err != nil {
		return err
	}
	defer func() {
		if uErr := unlock(); uErr != nil && p.logger != nil {
			p.logger.Warn("release chapter lock", "chapter_id", chapterID, "error", uErr)
		}
	}()
	return fn()
}

func (p *Pipeline) ready() error {
	if p.scraper == nil || p.writer == nil || p.reviewer == nil || p.store == nil {
		return fmt.Errorf("pipeline is not configured")
	}
	return nil
}

func (p *Pipeline) runLogger(runID, chapterID string) *slog.Logger {
	if p.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.logger.With("run_id", runID, "chapter_id", chapterID)
}
