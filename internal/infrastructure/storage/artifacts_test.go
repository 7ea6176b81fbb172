package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"BookPublisher/internal/domain"
)

func TestFileStorePaths(t *testing.T) {
	t.Parallel()

	store := NewFileStore("data")
	cases := map[domain.Status]string{
		domain.StatusRaw:      filepath.Join("data", "raw", "c1.json"),
		domain.StatusSpun:     filepath.Join("data", "processed", "spun", "c1_spun.json"),
		domain.StatusReviewed: filepath.Join("data", "processed", "reviewed", "c1_reviewed.json"),
		domain.StatusFinal:    filepath.Join("data", "processed", "final", "c1_final.json"),
	}
	for status, want := range cases {
		got, err := store.PathFor(status, "c1")
		if err != nil {
			t.Fatalf("PathFor(%s): %v", status, err)
		}
		if got != want {
			t.Fatalf("PathFor(%s) = %s, want %s", status, got, want)
		}
	}

	shot, err := store.ScreenshotPath("c1")
	if err != nil || shot != filepath.Join("data", "screenshots", "c1.png") {
		t.Fatalf("ScreenshotPath = %s, %v", shot, err)
	}

	if _, err := store.PathFor(domain.StatusRaw, "../escape"); !errors.Is(err, domain.ErrInvalidChapterID) {
		t.Fatalf("expected invalid id error, got %v", err)
	}
	if _, err := store.PathFor("published", "c1"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}

func TestFileStoreSaveAndLoad(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := NewFileStore(root)
	ctx := context.Background()

	record := domain.ChapterRecord{
		ChapterID:    "wiki_Book_Chapter_1",
		Title:        "Chapter <1>",
		URL:          "https://en.wikisource.org/wiki/Book/Chapter_1",
		ScrapedOn:    domain.NewTimestamp(time.Date(2025, 7, 1, 9, 30, 0, 0, time.UTC)),
		OriginalText: "Ça commence.\n\nAnd & so on.",
		Status:       domain.StatusRaw,
	}

	path, err := store.Save(ctx, record)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if path != filepath.Join(root, "raw", "wiki_Book_Chapter_1.json") {
		t.Fatalf("unexpected path %s", path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	text := string(raw)
	if !strings.Contains(text, "\n    \"chapter_id\"") {
		t.Fatalf("expected 4-space indentation:\n%s", text)
	}
	if !strings.Contains(text, "Ça commence") || !strings.Contains(text, "Chapter <1>") || !strings.Contains(text, "And & so on") {
		t.Fatalf("expected unescaped UTF-8 text:\n%s", text)
	}

	loaded, err := store.Load(ctx, path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.ChapterID != record.ChapterID || loaded.OriginalText != record.OriginalText || !loaded.ScrapedOn.Equal(record.ScrapedOn.Time) {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestFileStoreLoadMalformed(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	path := filepath.Join(root, "broken.json")
	if err := os.WriteFile(path, []byte(`{"chapter_id": 12`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := NewFileStore(root).Load(context.Background(), path)
	if !errors.Is(err, domain.ErrMalformedRecord) {
		t.Fatalf("expected ErrMalformedRecord, got %v", err)
	}
}

func TestFileStoreSaveScreenshot(t *testing.T) {
	t.Parallel()

	store := NewFileStore(t.TempDir())
	path, err := store.SaveScreenshot(context.Background(), "c1", []byte{0x89, 'P', 'N', 'G'})
	if err != nil {
		t.Fatalf("SaveScreenshot: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil || len(got) != 4 {
		t.Fatalf("screenshot not written: %v %v", got, err)
	}
}

func TestFileStoreLock(t *testing.T) {
	t.Parallel()

	store := NewFileStore(t.TempDir())
	unlock, err := store.Lock("c1")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	if _, err := store.Lock("c1"); !errors.Is(err, ErrChapterBusy) {
		t.Fatalf("expected ErrChapterBusy, got %v", err)
	}

	other, err := store.Lock("c2")
	if err != nil {
		t.Fatalf("lock other chapter: %v", err)
	}
	_ = other()

	if err := unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	again, err := store.Lock("c1")
	if err != nil {
		t.Fatalf("relock after unlock: %v", err)
	}
	_ = again()
}

func TestFileStoreList(t *testing.T) {
	t.Parallel()

	store := NewFileStore(t.TempDir())
	ctx := context.Background()

	if paths, err := store.List(domain.StatusFinal); err != nil || len(paths) != 0 {
		t.Fatalf("empty tree: %v %v", paths, err)
	}

	for _, id := range []string{"b", "a"} {
		rec := domain.ChapterRecord{ChapterID: id, Status: domain.StatusFinal}
		if _, err := store.Save(ctx, rec); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}
	if _, err := store.Save(ctx, domain.ChapterRecord{ChapterID: "c", Status: domain.StatusReviewed}); err != nil {
		t.Fatalf("Save reviewed: %v", err)
	}

	paths, err := store.List(domain.StatusFinal)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(paths) != 2 || filepath.Base(paths[0]) != "a_final.json" || filepath.Base(paths[1]) != "b_final.json" {
		t.Fatalf("unexpected listing %v", paths)
	}
}
