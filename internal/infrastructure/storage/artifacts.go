package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"BookPublisher/internal/domain"
	"BookPublisher/internal/ports"
)

// ErrChapterBusy is returned when another run holds the chapter lock.
var ErrChapterBusy = errors.New("chapter is being processed by another run")

// FileStore lays out stage artifacts under a data root:
//
//	raw/{id}.json
//	screenshots/{id}.png
//	processed/spun/{id}_spun.json
//	processed/reviewed/{id}_reviewed.json
//	processed/final/{id}_final.json
type FileStore struct {
	root string
}

var _ ports.ArtifactStore = (*FileStore)(nil)

// NewFileStore roots the artifact tree at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{root: dir}
}

// Root returns the data directory.
func (s *FileStore) Root() string {
	return s.root
}

// PathFor returns where the artifact of the given status lives.
func (s *FileStore) PathFor(status domain.Status, chapterID string) (string, error) {
	if err := domain.ValidateChapterID(chapterID); err != nil {
		return "", err
	}
	dir, suffix, err := s.layout(status)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, chapterID+suffix), nil
}

// List returns the artifact paths stored for a status, sorted by name.
func (s *FileStore) List(status domain.Status) ([]string, error) {
	dir, suffix, err := s.layout(status)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s artifacts: %w", status, err)
	}

	var paths []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, suffix) {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	return paths, nil
}

func (s *FileStore) layout(status domain.Status) (dir, suffix string, err error) {
	switch status {
	case domain.StatusRaw:
		return filepath.Join(s.root, "raw"), ".json", nil
	case domain.StatusSpun:
		return filepath.Join(s.root, "processed", "spun"), "_spun.json", nil
	case domain.StatusReviewed:
		return filepath.Join(s.root, "processed", "reviewed"), "_reviewed.json", nil
	case domain.StatusFinal:
		return filepath.Join(s.root, "processed", "final"), "_final.json", nil
	default:
		return "", "", fmt.Errorf("no artifact path for status %q", status)
	}
}

// ScreenshotPath returns where the page screenshot for a chapter lives.
func (s *FileStore) ScreenshotPath(chapterID string) (string, error) {
	if err := domain.ValidateChapterID(chapterID); err != nil {
		return "", err
	}
	return filepath.Join(s.root, "screenshots", chapterID+".png"), nil
}

// Save writes the record to the artifact for its status.
func (s *FileStore) Save(_ context.Context, record domain.ChapterRecord) (string, error) {
	path, err := s.PathFor(record.Status, record.ChapterID)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(record); err != nil {
		return "", fmt.Errorf("encode %s: %w", record.ChapterID, err)
	}

	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return "", err
	}
	return path, nil
}

// SaveScreenshot writes the PNG for a chapter.
func (s *FileStore) SaveScreenshot(_ context.Context, chapterID string, png []byte) (string, error) {
	path, err := s.ScreenshotPath(chapterID)
	if err != nil {
		return "", err
	}
	if err := writeFileAtomic(path, png); err != nil {
		return "", err
	}
	return path, nil
}

// Load reads a record from any artifact path.
func (s *FileStore) Load(_ context.Context, path string) (domain.ChapterRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.ChapterRecord{}, fmt.Errorf("read artifact: %w", err)
	}
	return DecodeRecord(raw)
}

// Lock takes an exclusive advisory lock for a chapter; it fails fast if held.
func (s *FileStore) Lock(chapterID string) (func() error, error) {
	if err := domain.ValidateChapterID(chapterID); err != nil {
		return nil, err
	}
	dir := filepath.Join(s.root, "locks")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	lock := flock.New(filepath.Join(dir, chapterID+".lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", chapterID, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChapterBusy, chapterID)
	}
	return lock.Unlock, nil
}

// DecodeRecord parses an artifact or an uploaded JSON document.
func DecodeRecord(raw []byte) (domain.ChapterRecord, error) {
	var record domain.ChapterRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return domain.ChapterRecord{}, fmt.Errorf("%w: %v", domain.ErrMalformedRecord, err)
	}
	return record, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
