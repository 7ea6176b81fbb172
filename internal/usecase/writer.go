package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"BookPublisher/internal/domain"
	"BookPublisher/internal/ports"
)

// ErrEmptyCompletion is returned when the language model answers with nothing but whitespace.
var ErrEmptyCompletion = errors.New("language model returned an empty completion")

const (
	writerPersona      = "You are a skilled creative writer."
	rewriteInstruction = "Rewrite the following historical fiction passage in a clearer, modern style " +
		"while preserving the original content, meaning, and tone:\n\n"
)

// ModelSettings selects the chat model and sampling temperature for a stage.
type ModelSettings struct {
	Model       string
	Temperature float64
}

// Writer produces the modernized ("spun") rewrite of a raw chapter.
type Writer struct {
	chat     ports.ChatClient
	store    ports.ArtifactStore
	settings ModelSettings
	logger   *slog.Logger
}

// NewWriter wires the chat model and the artifact store.
func NewWriter(chat ports.ChatClient, store ports.ArtifactStore, settings ModelSettings, log *slog.Logger) *Writer {
	return &Writer{
		chat:     chat,
		store:    store,
		settings: settings,
		logger:   log,
	}
}

// Run loads the raw artifact at rawPath and rewrites it.
func (w *Writer) Run(ctx context.Context, rawPath string) (domain.ChapterRecord, string, error) {
	if w.store == nil {
		return domain.ChapterRecord{}, "", fmt.Errorf("writer is not configured")
	}
	record, err := w.store.Load(ctx, rawPath)
	if err != nil {
		return domain.ChapterRecord{}, "", err
	}
	return w.Rewrite(ctx, record)
}

// Rewrite sets spun_text, advances the record to spun and saves it.
func (w *Writer) Rewrite(ctx context.Context, record domain.ChapterRecord) (domain.ChapterRecord, string, error) {
	if w.chat == nil || w.store == nil {
		return domain.ChapterRecord{}, "", fmt.Errorf("writer is not configured")
	}
	if err := record.ReadyForRewrite(); err != nil {
		return domain.ChapterRecord{}, "", err
	}

	w.debug("rewrite chapter", "chapter_id", record.ChapterID, "model", w.settings.Model, "chars", len(record.OriginalText))
	reply, err := w.chat.Chat(ctx, ports.ChatRequest{
		Model:       w.settings.Model,
		Temperature: w.settings.Temperature,
		Messages: []ports.ChatMessage{
			{Role: "system", Content: writerPersona},
			{Role: "user", Content: rewriteInstruction + record.OriginalText},
		},
	}, nil)
	if err != nil {
		return domain.ChapterRecord{}, "", fmt.Errorf("rewrite %s: %w", record.ChapterID, err)
	}

	spun := strings.TrimSpace(reply)
	if spun == "" {
		return domain.ChapterRecord{}, "", fmt.Errorf("rewrite %s: %w", record.ChapterID, ErrEmptyCompletion)
	}

	record.SpunText = spun
	record.Status = domain.StatusSpun

	path, err := w.store.Save(ctx, record)
	if err != nil {
		return domain.ChapterRecord{}, "", fmt.Errorf("save spun chapter: %w", err)
	}
	return record, path, nil
}

func (w *Writer) debug(msg string, args ...interface{}) {
	if w.logger != nil {
		w.logger.Debug(msg, args...)
	}
}
