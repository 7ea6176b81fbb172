package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"BookPublisher/internal/config"
	"BookPublisher/internal/infrastructure/browser"
	"BookPublisher/internal/infrastructure/llm"
	"BookPublisher/internal/infrastructure/ml"
	"BookPublisher/internal/infrastructure/parser"
	"BookPublisher/internal/infrastructure/scheduler"
	"BookPublisher/internal/infrastructure/storage"
	"BookPublisher/internal/infrastructure/telegram"
	"BookPublisher/internal/logging"
	"BookPublisher/internal/ports"
	"BookPublisher/internal/scanner"
	"BookPublisher/internal/usecase"
	"BookPublisher/pkg/logger"
)

// Application owns every service handle and the use cases built on them.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	store *storage.FileStore
	index *storage.SQLIndex

	Pipeline    *usecase.Pipeline
	Finalizer   *usecase.Finalizer
	Archive     *usecase.Archive
	ArchiveSync *usecase.ArchiveSync
}

// Options lets callers replace adapters; zero values are built from the config.
type Options struct {
	Progress io.Writer
	Renderer ports.PageRenderer
	Chat     ports.ChatClient
	Embedder ports.Embedder
}

// New opens the archive database and wires configs to use cases. Close releases what New opened.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger, opts Options) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	store := storage.NewFileStore(cfg.Data.Root)
	index, err := storage.OpenSQLIndex(ctx, cfg.Archive.Driver, cfg.Archive.DSN)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	renderer, screenshots := opts.Renderer, false
	if renderer == nil {
		renderer, screenshots = newRenderer(cfg.Browser)
	}

	registry := scanner.NewRegistry(scanner.Wikisource)
	for _, site := range cfg.Sites {
		registry.Register(scanner.Profile{
			Name:       site.Name,
			Hosts:      site.Hosts,
			Container:  site.Container,
			Paragraphs: site.Paragraphs,
		})
	}
	source := parser.NewChapterSource(renderer, registry, screenshots, baseLogger.With("component", "source"))

	chat := opts.Chat
	if chat == nil {
		chat, err = newChatClient(cfg.LLM)
		if err != nil {
			_ = index.Close()
			return nil, err
		}
	}

	embedder := opts.Embedder
	if embedder == nil {
		embedder = ml.NewClient(cfg.Embedding.Provider, cfg.Embedding.Endpoint, cfg.Embedding.APIKey, cfg.Embedding.Model)
	}

	var notifier ports.Notifier
	if tg := cfg.Notifications.Telegram; tg.BotToken != "" && tg.ChatID != "" {
		notifier = telegram.NewNotifier(tg.BotToken, tg.ChatID)
	}

	settings := usecase.ModelSettings{Model: cfg.LLM.Model, Temperature: cfg.LLM.Temperature}
	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Scraper: usecase.NewScraper(source, store, baseLogger.With("component", "scraper")),
		Writer:  usecase.NewWriter(chat, store, settings, baseLogger.With("component", "writer")),
		Reviewer: usecase.NewReviewer(chat, store, usecase.ReviewerOptions{
			Model:  settings,
			Stream: cfg.LLM.StreamEnabled(),
			Mode:   usecase.ReviewMode(strings.ToLower(cfg.Review.Mode)),
		}, baseLogger.With("component", "reviewer")),
		Store:    store,
		Progress: opts.Progress,
		Logger:   baseLogger.With("component", "pipeline"),
	})

	archive := usecase.NewArchive(embedder, index, baseLogger.With("component", "archive"))
	sync := usecase.NewArchiveSync(store, archive,
		scheduler.NewIntervalScheduler(cfg.Archive.SyncInterval), baseLogger.With("component", "archive.sync"))

	return &Application{
		cfg:         cfg,
		logger:      baseLogger,
		store:       store,
		index:       index,
		Pipeline:    pipeline,
		Finalizer:   usecase.NewFinalizer(store, notifier, baseLogger.With("component", "finalizer")),
		Archive:     archive,
		ArchiveSync: sync,
	}, nil
}

// Config returns the configuration the application was built from.
func (a *Application) Config() config.Config {
	return a.cfg
}

// Store exposes the artifact tree for loading and serving artifacts.
func (a *Application) Store() *storage.FileStore {
	return a.store
}

// Logger returns the base logger.
func (a *Application) Logger() *slog.Logger {
	return a.logger
}

// Close releases the archive database.
func (a *Application) Close() error {
	if a == nil || a.index == nil {
		return nil
	}
	err := a.index.Close()
	a.index = nil
	if err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return nil
}

func newRenderer(cfg config.BrowserConfig) (ports.PageRenderer, bool) {
	if strings.EqualFold(cfg.Mode, "http") {
		return browser.NewHTTPRenderer(nil), false
	}
	return browser.NewChromeRenderer(browser.ChromeOptions{
		Headless: cfg.IsHeadless(),
		ExecPath: cfg.ExecPath,
		Timeout:  cfg.Timeout,
		Errorf:   logger.Printf(logger.New("chromedp")),
	}), true
}

func newChatClient(cfg config.LLMConfig) (ports.ChatClient, error) {
	switch strings.ToLower(cfg.Provider) {
	case config.ProviderOllama, "":
		return llm.NewOllamaClient(cfg.Endpoint, cfg.Timeout), nil
	case config.ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, errors.New("llm provider openai needs an API key (LLM_API_KEY)")
		}
		return llm.NewChatGPTClient(cfg.Endpoint, cfg.APIKey, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
