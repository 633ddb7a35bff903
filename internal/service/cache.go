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
	"github.com/lanreader/lanreader/internal/watcher"
)

// CacheSize reports local disk usage in bytes.
type CacheSize struct {
	Database int64
	Pages    int64
}

// Total is the combined size.
func (c CacheSize) Total() int64 {
	return c.Database + c.Pages
}

// CacheService manages cached files and offline archive copies.
type CacheService struct {
	store    store.Store
	remote   Remote
	pipeline *prefetch.Pipeline
	files    *images.Storage
	logger   *slog.Logger
}

// NewCacheService creates a cache service.
func NewCacheService(store store.Store, remote Remote, pipeline *prefetch.Pipeline, files *images.Storage, logger *slog.Logger) *CacheService {
	return &CacheService{
		store:    store,
		remote:   remote,
		pipeline: pipeline,
		files:    files,
		logger:   logger,
	}
}

// Size returns the database and page directory sizes.
func (s *CacheService) Size(ctx context.Context) (CacheSize, error) {
	db, err := s.store.DiskSize(ctx)
	if err != nil {
		return CacheSize{}, apperrors.Persistence("database size", err)
	}
	pages, err := s.files.Size()
	if err != nil {
		return CacheSize{}, apperrors.Persistence("page cache size", err)
	}
	return CacheSize{Database: db, Pages: pages}, nil
}

// Clear removes thumbnails, cached pages and offline archive copies. The
// archive list, tags, categories and history are kept. It returns the number
// of rows removed.
func (s *CacheService) Clear(ctx context.Context) (int, error) {
	thumbs, err := s.store.DeleteAllThumbnails(ctx)
	if err != nil {
		return 0, apperrors.Persistence("clear thumbnails", err)
	}
	pages, err := s.store.DeleteAllArchiveImages(ctx)
	if err != nil {
		return thumbs, apperrors.Persistence("clear page rows", err)
	}
	caches, err := s.store.DeleteAllArchiveCaches(ctx)
	if err != nil {
		return thumbs + pages, apperrors.Persistence("clear archive caches", err)
	}

	files, err := s.files.Clear()
	if err != nil {
		return thumbs + pages + caches, apperrors.Persistence("clear page files", err)
	}

	s.logger.Info("cache cleared",
		"thumbnails", thumbs,
		"pages", pages,
		"archive_caches", caches,
		"files", files,
	)
	return thumbs + pages + caches, nil
}

// ResetPages drops every cached page row and file. Offline copies stay
// listed but incomplete until CacheArchive runs again. Called on cold start.
func (s *CacheService) ResetPages(ctx context.Context) error {
	if _, err := s.store.ResetPageCache(ctx); err != nil {
		return apperrors.Persistence("clear page rows", err)
	}
	n, err := s.files.Clear()
	if err != nil {
		return apperrors.Persistence("clear page files", err)
	}
	s.logger.Debug("page cache reset", "files", n)
	return nil
}

// CacheArchive downloads every page of an archive for offline reading. The
// cache entry is marked Cached only when all pages landed; calling it again
// fetches just the missing ones.
func (s *CacheService) CacheArchive(ctx context.Context, id string, progress prefetch.ProgressFunc) (*domain.ArchiveCache, error) {
	a, err := s.store.GetArchive(ctx, id)
	if err != nil {
		return nil, mapStoreError("get archive", id, err)
	}

	pages, err := s.remote.Extract(ctx, id)
	if err != nil {
		return nil, apperrors.FromRemote("extract archive", err)
	}

	entry := &domain.ArchiveCache{
		ID:         id,
		Title:      a.Title,
		Tags:       a.Tags,
		TotalPages: len(pages),
		UpdatedAt:  time.Now(),
	}
	if thumb, err := s.store.GetThumbnail(ctx, id); err == nil {
		entry.Thumbnail = thumb.Data
	}
	if err := s.store.SaveArchiveCache(ctx, entry); err != nil {
		return nil, apperrors.Persistence("save archive cache", err)
	}

	sum := s.pipeline.Prefetch(ctx, id, pages, progress)
	entry.Cached = sum.Failed == 0 && ctx.Err() == nil && sum.Requested == len(pages)
	entry.UpdatedAt = time.Now()
	if err := s.store.SaveArchiveCache(ctx, entry); err != nil {
		return nil, apperrors.Persistence("save archive cache", err)
	}

	s.logger.Info("archive cached",
		"archive_id", id,
		"pages", len(pages),
		"failed", sum.Failed,
		"complete", entry.Cached,
	)
	return entry, nil
}

// CachedArchives lists offline copies, most recent first.
func (s *CacheService) CachedArchives(ctx context.Context) ([]*domain.ArchiveCache, error) {
	entries, err := s.store.ListArchiveCaches(ctx)
	if err != nil {
		return nil, apperrors.Persistence("list archive caches", err)
	}
	return entries, nil
}

// UncacheArchive removes an offline copy and its page files.
func (s *CacheService) UncacheArchive(ctx context.Context, id string) error {
	pages, err := s.store.ListArchiveImages(ctx, id)
	if err != nil {
		return apperrors.Persistence("list cached pages", err)
	}
	if _, err := s.store.DeleteArchiveImages(ctx, id); err != nil {
		return apperrors.Persistence("delete cached pages", err)
	}
	if err := s.store.DeleteArchiveCache(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		return apperrors.Persistence("delete archive cache", err)
	}
	for _, p := range pages {
		if err := s.files.DeletePath(p.Path); err != nil {
			s.logger.Warn("failed to remove cached page", "path", p.Path, "error", err)
		}
	}
	return nil
}

// FollowPageRemovals deletes page rows whose files disappear from disk,
// e.g. after the OS purged the cache directory. It blocks until ctx is done
// or w stops.
func (s *CacheService) FollowPageRemovals(ctx context.Context, w *watcher.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.Done():
			return
		case err := <-w.Errors():
			s.logger.Warn("page cache watcher error", "error", err)
		case event := <-w.Events():
			if event.Type != watcher.EventRemoved {
				continue
			}
			n, err := s.store.DeleteArchiveImageByPath(ctx, event.Path)
			if err != nil {
				s.logger.Warn("failed to drop removed page", "path", event.Path, "error", err)
				continue
			}
			if n > 0 {
				s.logger.Debug("dropped externally removed page", "path", event.Path)
			}
		}
	}
}
