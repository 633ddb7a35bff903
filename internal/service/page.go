package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lanreader/lanreader/internal/domain"
	apperrors "github.com/lanreader/lanreader/internal/errors"
	"github.com/lanreader/lanreader/internal/media/images"
	"github.com/lanreader/lanreader/internal/prefetch"
	"github.com/lanreader/lanreader/internal/store"
)

// DefaultHistoryLimit bounds History when no limit is given.
const DefaultHistoryLimit = 50

// PageService serves a reading session: page lists, page bytes and history.
type PageService struct {
	store    store.Store
	remote   Remote
	pipeline *prefetch.Pipeline
	files    *images.Storage
	logger   *slog.Logger
}

// NewPageService creates a page service.
func NewPageService(store store.Store, remote Remote, pipeline *prefetch.Pipeline, files *images.Storage, logger *slog.Logger) *PageService {
	return &PageService{
		store:    store,
		remote:   remote,
		pipeline: pipeline,
		files:    files,
		logger:   logger,
	}
}

// Extract asks the server to unpack an archive and returns its normalized
// page paths. An archive without pages fails with CodeEmptyResult.
func (s *PageService) Extract(ctx context.Context, id string) ([]string, error) {
	pages, err := s.remote.Extract(ctx, id)
	if err != nil {
		return nil, apperrors.FromRemote("extract archive", err)
	}
	return pages, nil
}

// Page returns the bytes of one page, from the cache when present.
func (s *PageService) Page(ctx context.Context, archiveID, pageID string, progress prefetch.ProgressFunc) ([]byte, error) {
	if _, err := s.store.GetArchiveImage(ctx, pageID); err == nil {
		data, err := s.files.Get(pageID)
		if err == nil {
			return data, nil
		}
		s.logger.Debug("cached page file missing, downloading", "page", pageID, "error", err)
	} else if !errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("page cache read failed", "page", pageID, "error", err)
	}

	if _, err := s.pipeline.Fetch(ctx, archiveID, pageID, progress); err != nil {
		return nil, apperrors.FromRemote("get page", err)
	}
	data, err := s.files.Get(pageID)
	if err != nil {
		return nil, apperrors.Persistence("read cached page", err)
	}
	return data, nil
}

// Prefetch downloads pages ahead of the reader. Failures are logged per
// page and counted in the summary.
func (s *PageService) Prefetch(ctx context.Context, archiveID string, pages []string, progress prefetch.ProgressFunc) prefetch.Summary {
	sum := s.pipeline.Prefetch(ctx, archiveID, pages, progress)
	s.logger.Debug("prefetch finished",
		"archive_id", archiveID,
		"downloaded", sum.Downloaded,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
	)
	return sum
}

// RecordHistory marks id as opened now.
func (s *PageService) RecordHistory(ctx context.Context, id string) error {
	if err := s.store.SaveHistory(ctx, &domain.History{ArchiveID: id, UpdatedAt: time.Now()}); err != nil {
		return apperrors.Persistence("save history", err)
	}
	return nil
}

// History returns recently opened archives, newest first.
func (s *PageService) History(ctx context.Context, limit int) ([]*domain.History, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	entries, err := s.store.ListHistory(ctx, limit)
	if err != nil {
		return nil, apperrors.Persistence("list history", err)
	}
	return entries, nil
}

// ClearHistory forgets one archive, or all of them when id is empty.
func (s *PageService) ClearHistory(ctx context.Context, id string) error {
	var err error
	if id == "" {
		_, err = s.store.DeleteAllHistory(ctx)
	} else {
		err = s.store.DeleteHistory(ctx, id)
	}
	if err != nil {
		return apperrors.Persistence("delete history", err)
	}
	return nil
}
