package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"BookPublisher/internal/domain"
	"BookPublisher/internal/ports"
)

const (
	// ReviewMarker separates the refined text from the evaluation report in a marker-mode response.
	ReviewMarker = "Review Report:"
	// NoReviewNotes is stored as review_notes when the marker is missing.
	NoReviewNotes = "N/A"

	reviewerPersona = "You are a professional editor and creative writing coach."
)

// ReviewMode selects how the critique response is shaped.
type ReviewMode string

const (
	// ReviewModeMarker asks for free text split on ReviewMarker.
	ReviewModeMarker ReviewMode = "marker"
	// ReviewModeStructured asks for a JSON object and falls back to the marker split.
	ReviewModeStructured ReviewMode = "structured"
)

// ReviewerOptions configures a Reviewer.
type ReviewerOptions struct {
	Model  ModelSettings
	Stream bool
	Mode   ReviewMode
}

// Reviewer asks a second model pass to refine the spun text and report on it.
type Reviewer struct {
	chat   ports.ChatClient
	store  ports.ArtifactStore
	opts   ReviewerOptions
	logger *slog.Logger
}

// NewReviewer wires the chat model and the artifact store.
func NewReviewer(chat ports.ChatClient, store ports.ArtifactStore, opts ReviewerOptions, log *slog.Logger) *Reviewer {
	if opts.Mode == "" {
		opts.Mode = ReviewModeMarker
	}
	return &Reviewer{
		chat:   chat,
		store:  store,
		opts:   opts,
		logger: log,
	}
}

// Run loads the spun artifact at spunPath and reviews it.
func (r *Reviewer) Run(ctx context.Context, spunPath string, onDelta func(string)) (domain.ChapterRecord, string, error) {
	if r.store == nil {
		return domain.ChapterRecord{}, "", fmt.Errorf("reviewer is not configured")
	}
	record, err := r.store.Load(ctx, spunPath)
	if err != nil {
		return domain.ChapterRecord{}, "", err
	}
	return r.Review(ctx, record, onDelta)
}

// Review sets reviewed_text and review_notes, advances the record to reviewed and saves it.
// With streaming enabled, fragments reach onDelta as they arrive; the artifact only
// depends on the concatenated response.
func (r *Reviewer) Review(ctx context.Context, record domain.ChapterRecord, onDelta func(string)) (domain.ChapterRecord, string, error) {
	if r.chat == nil || r.store == nil {
		return domain.ChapterRecord{}, "", fmt.Errorf("reviewer is not configured")
	}
	if err := record.ReadyForReview(); err != nil {
		return domain.ChapterRecord{}, "", err
	}

	structured := r.opts.Mode == ReviewModeStructured
	req := ports.ChatRequest{
		Model:       r.opts.Model.Model,
		Temperature: r.opts.Model.Temperature,
		Stream:      r.opts.Stream,
		JSON:        structured,
		Messages: []ports.ChatMessage{
			{Role: "system", Content: reviewerPersona},
			{Role: "user", Content: reviewPrompt(record.OriginalText, record.SpunText, structured)},
		},
	}
	if !r.opts.Stream {
		onDelta = nil
	}

	r.debug("review chapter", "chapter_id", record.ChapterID, "mode", r.opts.Mode, "stream", r.opts.Stream)
	reply, err := r.chat.Chat(ctx, req, onDelta)
	if err != nil {
		return domain.ChapterRecord{}, "", fmt.Errorf("review %s: %w", record.ChapterID, err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return domain.ChapterRecord{}, "", fmt.Errorf("review %s: %w", record.ChapterID, ErrEmptyCompletion)
	}

	var reviewed, notes string
	parsed := false
	if structured {
		reviewed, notes, parsed = ParseStructuredReview(reply)
		if !parsed {
			r.warn("structured review not returned, splitting on marker", "chapter_id", record.ChapterID)
		}
	}
	if !parsed {
		reviewed, notes = SplitReview(reply)
	}

	record.ReviewedText = reviewed
	record.ReviewNotes = notes
	record.Status = domain.StatusReviewed

	path, err := r.store.Save(ctx, record)
	if err != nil {
		return domain.ChapterRecord{}, "", fmt.Errorf("save reviewed chapter: %w", err)
	}
	return record, path, nil
}

// SplitReview divides a marker-mode response at the first ReviewMarker. Without
// the marker the whole response is the refined text and the notes are NoReviewNotes.
func SplitReview(response string) (reviewed, notes string) {
	before, after, found := strings.Cut(response, ReviewMarker)
	if !found {
		return strings.TrimSpace(response), NoReviewNotes
	}
	return strings.TrimSpace(before), strings.TrimSpace(after)
}

// ParseStructuredReview reads {"reviewed_text": ..., "review_notes": ...}. ok is
// false unless the payload is that object with a non-empty reviewed_text.
func ParseStructuredReview(response string) (reviewed, notes string, ok bool) {
	var payload struct {
		ReviewedText *string `json:"reviewed_text"`
		ReviewNotes  *string `json:"review_notes"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(response)), &payload); err != nil {
		return "", "", false
	}
	if payload.ReviewedText == nil || strings.TrimSpace(*payload.ReviewedText) == "" {
		return "", "", false
	}
	notes = NoReviewNotes
	if payload.ReviewNotes != nil && strings.TrimSpace(*payload.ReviewNotes) != "" {
		notes = strings.TrimSpace(*payload.ReviewNotes)
	}
	return strings.TrimSpace(*payload.ReviewedText), notes, true
}

func reviewPrompt(original, spun string, structured bool) string {
	var b strings.Builder
	b.WriteString("An AI Writer has rewritten a chapter. As an AI Reviewer, you need to:\n")
	b.WriteString("1. Provide a refined version of the rewritten (spun) text.\n")
	b.WriteString("2. Write a short review report on how well the AI did in terms of clarity, tone, fluency, and originality.")
	if structured {
		b.WriteString("\n\nAnswer with a JSON object with exactly two string fields: ")
		b.WriteString(`"reviewed_text" holding the refined text and "review_notes" holding the report.`)
	} else {
		b.WriteString("\nWrite the refined text first, then the line \"" + ReviewMarker + "\", then the report.")
	}
	b.WriteString("\n\nOriginal Text:\n")
	b.WriteString(original)
	b.WriteString("\n\nSpun Text:\n")
	b.WriteString(spun)
	return b.String()
}

func (r *Reviewer) debug(msg string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

func (r *Reviewer) warn(msg string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}
