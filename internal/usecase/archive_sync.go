package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"BookPublisher/internal/domain"
	"BookPublisher/internal/ports"
)

// ArchiveSync ingests every final artifact on disk, so chapters finalized in the
// editor become searchable without a manual upload.
type ArchiveSync struct {
	store   ports.ArtifactStore
	archive *Archive
	driver  ports.Scheduler
	logger  *slog.Logger
}

// NewArchiveSync wires the artifact tree, the archive and an optional scheduler.
func NewArchiveSync(store ports.ArtifactStore, archive *Archive, driver ports.Scheduler, log *slog.Logger) *ArchiveSync {
	return &ArchiveSync{
		store:   store,
		archive: archive,
		driver:  driver,
		logger:  log,
	}
}

// SyncOnce ingests all final artifacts and returns how many were indexed.
// Malformed artifacts are logged and skipped; other failures stop the sync.
func (s *ArchiveSync) SyncOnce(ctx context.Context) (int, error) {
	if s.store == nil || s.archive == nil {
		return 0, fmt.Errorf("archive sync is not configured")
	}

	paths, err := s.store.List(domain.StatusFinal)
	if err != nil {
		return 0, err
	}

	indexed := 0
	for _, path := range paths {
		record, err := s.store.Load(ctx, path)
		if err == nil {
			_, err = s.archive.Ingest(ctx, record)
		}
		if err != nil {
			if isMalformed(err) {
				s.warn("skipping final artifact", "path", path, "error", err)
				continue
			}
			return indexed, fmt.Errorf("sync %s: %w", path, err)
		}
		indexed++
	}
	return indexed, nil
}

// Start registers the sync with the scheduler.
func (s *ArchiveSync) Start(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	job := func(trigger time.Time) {
		n, err := s.SyncOnce(ctx)
		if err != nil {
			s.warn("archive sync failed", "error", err)
			return
		}
		if s.logger != nil {
			s.logger.Debug("archive sync finished", "indexed", n, "started", trigger)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *ArchiveSync) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}

func (s *ArchiveSync) warn(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
