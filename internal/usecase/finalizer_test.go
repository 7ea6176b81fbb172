package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"BookPublisher/internal/domain"
	"BookPublisher/internal/infrastructure/storage"
	"BookPublisher/internal/logging"
)

func reviewedRecord() domain.ChapterRecord {
	record := spunRecord()
	record.ReviewedText = "Better text."
	record.ReviewNotes = "Good job."
	record.Status = domain.StatusReviewed
	return record
}

func newTestFinalizer(t *testing.T, notifier *recordingNotifier) (*Finalizer, string) {
	t.Helper()
	root := t.TempDir()
	var f *Finalizer
	if notifier != nil {
		f = NewFinalizer(storage.NewFileStore(root), notifier, logging.Discard())
	} else {
		f = NewFinalizer(storage.NewFileStore(root), nil, logging.Discard())
	}
	f.now = func() time.Time { return time.Date(2025, 7, 2, 8, 0, 0, 0, time.UTC) }
	return f, root
}

func TestFinalizerFinalComment(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	finalizer, root := newTestFinalizer(t, notifier)

	out, err := finalizer.Apply(context.Background(), reviewedRecord(), Decision{Text: "  Edited text.  ", Comments: "  FINAL "})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Disposition != domain.DispositionFinalize || out.Record.Status != domain.StatusFinal {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if out.Record.FinalText != "Edited text." || out.Record.HumanComments != "  FINAL " {
		t.Fatalf("unexpected record fields %+v", out.Record)
	}
	if out.Record.FinalizedOn == nil || out.Record.FinalizedOn.Year() != 2025 {
		t.Fatalf("finalized_on not stamped: %+v", out.Record.FinalizedOn)
	}
	if out.Path != filepath.Join(root, "processed", "final", "wiki_Book_Chapter_1_final.json") {
		t.Fatalf("unexpected path %s", out.Path)
	}
	if len(notifier.messages) != 1 {
		t.Fatalf("expected one notice, got %v", notifier.messages)
	}
}

func TestFinalizerNonFinalComment(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	finalizer, root := newTestFinalizer(t, notifier)

	for _, comment := range []string{"", "not final", "finalize", "final!"} {
		out, err := finalizer.Apply(context.Background(), reviewedRecord(), Decision{Text: "Edited.", Comments: comment})
		if err != nil {
			t.Fatalf("Apply(%q): %v", comment, err)
		}
		if out.Record.Status != domain.StatusReviewed {
			t.Fatalf("comment %q should keep the record reviewed", comment)
		}
		if out.Path != filepath.Join(root, "processed", "reviewed", "wiki_Book_Chapter_1_reviewed.json") {
			t.Fatalf("unexpected path %s", out.Path)
		}
		if out.Record.FinalText != "Edited." || out.Record.FinalizedOn == nil {
			t.Fatalf("final_text and finalized_on are always set: %+v", out.Record)
		}
	}
	if len(notifier.messages) != 0 {
		t.Fatalf("no notice expected for reviewed saves, got %v", notifier.messages)
	}
}

func TestFinalizerExplicitDisposition(t *testing.T) {
	t.Parallel()

	finalizer, _ := newTestFinalizer(t, nil)
	ctx := context.Background()

	out, err := finalizer.Apply(ctx, reviewedRecord(), Decision{Text: "Edited.", Comments: "ship it", Disposition: domain.DispositionFinalize})
	if err != nil || out.Record.Status != domain.StatusFinal {
		t.Fatalf("explicit finalize: %+v %v", out, err)
	}

	out, err = finalizer.Apply(ctx, reviewedRecord(), Decision{Text: "Edited.", Comments: "final", Disposition: domain.DispositionNeedsReview})
	if err != nil || out.Record.Status != domain.StatusReviewed {
		t.Fatalf("explicit needs-review must win over the comment: %+v %v", out, err)
	}

	discardRoot := t.TempDir()
	discarder := NewFinalizer(storage.NewFileStore(discardRoot), nil, nil)
	out, err = discarder.Apply(ctx, reviewedRecord(), Decision{Text: "Edited.", Comments: "final", Disposition: domain.DispositionDiscard})
	if err != nil || out.Path != "" || out.Record.Status != domain.StatusReviewed {
		t.Fatalf("discard: %+v %v", out, err)
	}
	if entries, _ := os.ReadDir(discardRoot); len(entries) != 0 {
		t.Fatalf("discard must not write, found %v", entries)
	}
}

func TestFinalizerRejectsMalformedInput(t *testing.T) {
	t.Parallel()

	finalizer, root := newTestFinalizer(t, nil)
	ctx := context.Background()

	bad := reviewedRecord()
	bad.ChapterID = "../etc"
	if _, err := finalizer.Apply(ctx, bad, Decision{Text: "x", Comments: "final"}); !errors.Is(err, domain.ErrMalformedRecord) {
		t.Fatalf("expected malformed id, got %v", err)
	}

	if _, err := finalizer.Apply(ctx, spunRecord(), Decision{Text: "x", Comments: "final"}); !errors.Is(err, domain.ErrMalformedRecord) {
		t.Fatalf("expected malformed status, got %v", err)
	}

	if _, err := finalizer.Apply(ctx, reviewedRecord(), Decision{Text: "   ", Comments: "final"}); !errors.Is(err, domain.ErrMalformedRecord) {
		t.Fatalf("expected malformed empty text, got %v", err)
	}

	if _, err := finalizer.Apply(ctx, reviewedRecord(), Decision{Text: "x", Disposition: "publish"}); err == nil {
		t.Fatalf("expected unknown disposition error")
	}

	if entries, _ := os.ReadDir(root); len(entries) != 0 {
		t.Fatalf("nothing may be written for rejected input, found %v", entries)
	}
}

func TestFinalizerNoticeFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{err: errBackend}
	finalizer, _ := newTestFinalizer(t, notifier)

	if _, err := finalizer.Apply(context.Background(), reviewedRecord(), Decision{Text: "x", Comments: "final"}); err != nil {
		t.Fatalf("notice failure must not fail finalization: %v", err)
	}
}

func TestFinalizerExplicitFinalizeWithoutComment(t *testing.T) {
	t.Parallel()

	finalizer, _ := newTestFinalizer(t, nil)
	for _, comment := range []string{"", "   "} {
		out, err := finalizer.Apply(context.Background(), reviewedRecord(), Decision{Text: "Edited.", Comments: comment, Disposition: domain.DispositionFinalize})
		if err != nil {
			t.Fatalf("Apply(%q): %v", comment, err)
		}
		if out.Record.Status != domain.StatusFinal || out.Record.HumanComments != "final" {
			t.Fatalf("final record needs a comment, got %+v", out.Record)
		}

		raw, err := os.ReadFile(out.Path)
		if err != nil {
			t.Fatalf("read artifact: %v", err)
		}
		if !strings.Contains(string(raw), `"human_comments": "final"`) {
			t.Fatalf("human_comments missing from artifact:\n%s", raw)
		}
		if err := out.Record.ReadyForArchive(); err != nil {
			t.Fatalf("finalized record should be archivable: %v", err)
		}
	}
}

func TestFinalizerRefinalizesFinalRecord(t *testing.T) {
	t.Parallel()

	finalizer, _ := newTestFinalizer(t, nil)
	first, err := finalizer.Apply(context.Background(), reviewedRecord(), Decision{Text: "One.", Comments: "final"})
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := finalizer.Apply(context.Background(), first.Record, Decision{Text: "Two.", Comments: "Final"})
	if err != nil || second.Record.FinalText != "Two." || second.Record.Status != domain.StatusFinal {
		t.Fatalf("re-finalize: %+v %v", second, err)
	}
}

func TestFinalizerKeepsFinalRecordFinal(t *testing.T) {
	t.Parallel()

	finalizer, root := newTestFinalizer(t, nil)
	first, err := finalizer.Apply(context.Background(), reviewedRecord(), Decision{Text: "One.", Comments: "final"})
	if err != nil {
		t.Fatalf("first: %v", err)
	}

	for _, decision := range []Decision{
		{Text: "Two.", Comments: "more edits"},
		{Text: "Two.", Comments: "final", Disposition: domain.DispositionNeedsReview},
	} {
		if _, err := finalizer.Apply(context.Background(), first.Record, decision); !errors.Is(err, domain.ErrMalformedRecord) {
			t.Fatalf("final record sent back for review with %+v: %v", decision, err)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "processed", "reviewed")); !os.IsNotExist(err) {
		t.Fatalf("no reviewed artifact may be written, stat err %v", err)
	}

	out, err := finalizer.Apply(context.Background(), first.Record, Decision{Text: "Two.", Disposition: domain.DispositionDiscard})
	if err != nil || out.Path != "" || out.Record.Status != domain.StatusFinal {
		t.Fatalf("discard on final record: %+v %v", out, err)
	}
}
