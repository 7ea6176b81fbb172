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

// finalComment is recorded when a chapter is finalized without a comment.
const finalComment = "final"

// Decision is what the human editor submits for a reviewed chapter.
type Decision struct {
	Text     string
	Comments string
	// Disposition wins over the comment; when empty it is derived from Comments.
	Disposition domain.Disposition
}

// Resolve returns the effective disposition.
func (d Decision) Resolve() domain.Disposition {
	if d.Disposition != "" {
		return d.Disposition
	}
	return domain.DispositionFromComment(d.Comments)
}

// Outcome reports what the finalizer did. Path is empty for discarded edits.
type Outcome struct {
	Record      domain.ChapterRecord
	Path        string
	Disposition domain.Disposition
}

// Finalizer applies a human decision to a reviewed chapter.
type Finalizer struct {
	store    ports.ArtifactStore
	notifier ports.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewFinalizer wires the artifact store and an optional notifier.
func NewFinalizer(store ports.ArtifactStore, notifier ports.Notifier, log *slog.Logger) *Finalizer {
	return &Finalizer{
		store:    store,
		notifier: notifier,
		logger:   log,
		now:      time.Now,
	}
}

// Apply validates the record and the decision before anything is written. A
// finalize decision saves a final artifact, needs-review saves the record back
// as reviewed, discard leaves the artifacts untouched. A final record can be
// finalized again or discarded but never sent back for review.
func (f *Finalizer) Apply(ctx context.Context, record domain.ChapterRecord, decision Decision) (Outcome, error) {
	if f.store == nil {
		return Outcome{}, fmt.Errorf("finalizer is not configured")
	}
	if err := record.ReadyForFinalization(); err != nil {
		return Outcome{}, err
	}

	disposition := decision.Resolve()
	if _, err := domain.ParseDisposition(string(disposition)); err != nil {
		return Outcome{}, err
	}

	text := strings.TrimSpace(decision.Text)
	switch disposition {
	case domain.DispositionDiscard:
		f.info("edit discarded", "chapter_id", record.ChapterID)
		return Outcome{Record: record, Disposition: disposition}, nil
	case domain.DispositionFinalize:
		if text == "" {
			return Outcome{}, fmt.Errorf("%w: final text is empty", domain.ErrMalformedRecord)
		}
		record.Status = domain.StatusFinal
	default:
		if record.Status == domain.StatusFinal {
			return Outcome{}, fmt.Errorf("%w: chapter %s is already final", domain.ErrMalformedRecord, record.ChapterID)
		}
		record.Status = domain.StatusReviewed
	}

	record.FinalText = text
	record.FinalizedOn = domain.NewTimestampPtr(f.now())
	record.HumanComments = decision.Comments
	if record.Status == domain.StatusFinal && strings.TrimSpace(record.HumanComments) == "" {
		record.HumanComments = finalComment
	}

	path, err := f.store.Save(ctx, record)
	if err != nil {
		return Outcome{}, fmt.Errorf("save %s chapter: %w", record.Status, err)
	}
	f.info("chapter saved", "chapter_id", record.ChapterID, "status", record.Status, "path", path)

	if record.Status == domain.StatusFinal {
		f.notify(ctx, record)
	}
	return Outcome{Record: record, Path: path, Disposition: disposition}, nil
}

func (f *Finalizer) notify(ctx context.Context, record domain.ChapterRecord) {
	if f.notifier == nil {
		return
	}
	message := fmt.Sprintf("Chapter finalized: %s\n%s", record.Title, record.URL)
	if err := f.notifier.Notify(ctx, message); err != nil && f.logger != nil {
		f.logger.Warn("finalization notice failed", "chapter_id", record.ChapterID, "error", err)
	}
}

func (f *Finalizer) info(msg string, args ...interface{}) {
	if f.logger != nil {
		f.logger.Info(msg, args...)
	}
}
