package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedRecord marks a chapter record that lacks fields a stage depends on.
var ErrMalformedRecord = errors.New("malformed chapter record")

// Status enumerates the lifecycle stages of a chapter record.
type Status string

const (
	StatusRaw      Status = "raw"
	StatusSpun     Status = "spun"
	StatusReviewed Status = "reviewed"
	StatusFinal    Status = "final"
)

// Valid reports whether s is one of the four lifecycle stages.
func (s Status) Valid() bool {
	switch s {
	case StatusRaw, StatusSpun, StatusReviewed, StatusFinal:
		return true
	default:
		return false
	}
}

// ChapterRecord is the single entity moving through the pipeline. Fields only accumulate.
type ChapterRecord struct {
	ChapterID     string     `json:"chapter_id"`
	Title         string     `json:"title"`
	URL           string     `json:"url"`
	ScrapedOn     Timestamp  `json:"scraped_on"`
	OriginalText  string     `json:"original_text"`
	Status        Status     `json:"status"`
	SpunText      string     `json:"spun_text,omitempty"`
	ReviewedText  string     `json:"reviewed_text,omitempty"`
	ReviewNotes   string     `json:"review_notes,omitempty"`
	FinalText     string     `json:"final_text,omitempty"`
	FinalizedOn   *Timestamp `json:"finalized_on,omitempty"`
	HumanComments string     `json:"human_comments,omitempty"`
}

// ScrapedChapter is what a chapter source hands back after rendering a page.
type ScrapedChapter struct {
	Title      string
	Paragraphs []string
	Screenshot []byte
}

// Text joins paragraphs with a blank line.
func (s ScrapedChapter) Text() string {
	return strings.Join(s.Paragraphs, "\n\n")
}

// ReadyForRewrite checks the fields the scraper guarantees.
func (r ChapterRecord) ReadyForRewrite() error {
	if err := r.requireIdentity(); err != nil {
		return err
	}
	if r.Status != StatusRaw {
		return malformed("status %q cannot be rewritten, want %q", r.Status, StatusRaw)
	}
	if strings.TrimSpace(r.OriginalText) == "" {
		return malformed("original_text is empty")
	}
	return nil
}

// ReadyForReview checks the fields the rewriter guarantees.
func (r ChapterRecord) ReadyForReview() error {
	if err := r.requireIdentity(); err != nil {
		return err
	}
	if r.Status != StatusSpun {
		return malformed("status %q cannot be reviewed, want %q", r.Status, StatusSpun)
	}
	if strings.TrimSpace(r.OriginalText) == "" {
		return malformed("original_text is empty")
	}
	if strings.TrimSpace(r.SpunText) == "" {
		return malformed("spun_text is empty")
	}
	return nil
}

// ReadyForFinalization accepts reviewed records and already final ones, which may be
// finalized again.
func (r ChapterRecord) ReadyForFinalization() error {
	if err := r.requireIdentity(); err != nil {
		return err
	}
	if r.Status != StatusReviewed && r.Status != StatusFinal {
		return malformed("status %q cannot be finalized, want %q or %q", r.Status, StatusReviewed, StatusFinal)
	}
	return nil
}

// ReadyForArchive checks a record is terminal and carries everything the archive indexes.
func (r ChapterRecord) ReadyForArchive() error {
	if err := r.requireIdentity(); err != nil {
		return err
	}
	if r.Status != StatusFinal {
		return malformed("status %q cannot be archived, want %q", r.Status, StatusFinal)
	}
	switch {
	case strings.TrimSpace(r.FinalText) == "":
		return malformed("final_text is empty")
	case strings.TrimSpace(r.Title) == "":
		return malformed("title is empty")
	case strings.TrimSpace(r.URL) == "":
		return malformed("url is empty")
	case r.FinalizedOn == nil || r.FinalizedOn.IsZero():
		return malformed("finalized_on is missing")
	case strings.TrimSpace(r.HumanComments) == "":
		return malformed("human_comments is empty")
	}
	return nil
}

func (r ChapterRecord) requireIdentity() error {
	if err := ValidateChapterID(r.ChapterID); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if !r.Status.Valid() {
		return malformed("unknown status %q", r.Status)
	}
	return nil
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedRecord, fmt.Sprintf(format, args...))
}

// Disposition is the explicit human decision taken in the editor.
type Disposition string

const (
	DispositionNeedsReview Disposition = "needs-review"
	DispositionFinalize    Disposition = "finalize"
	DispositionDiscard     Disposition = "discard"
)

// ParseDisposition accepts the three known values; an empty string stays empty.
func ParseDisposition(value string) (Disposition, error) {
	switch d := Disposition(strings.ToLower(strings.TrimSpace(value))); d {
	case "", DispositionNeedsReview, DispositionFinalize, DispositionDiscard:
		return d, nil
	default:
		return "", fmt.Errorf("unknown disposition %q", value)
	}
}

// IsFinalComment is the legacy finality signal: the comment is exactly "final", ignoring case and surrounding space.
func IsFinalComment(comment string) bool {
	return strings.ToLower(strings.TrimSpace(comment)) == "final"
}

// DispositionFromComment maps a free-text comment onto a disposition.
func DispositionFromComment(comment string) Disposition {
	if IsFinalComment(comment) {
		return DispositionFinalize
	}
	return DispositionNeedsReview
}
