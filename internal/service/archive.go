package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lanreader/lanreader/internal/domain"
	apperrors "github.com/lanreader/lanreader/internal/errors"
	"github.com/lanreader/lanreader/internal/media/images"
	"github.com/lanreader/lanreader/internal/store"
	"github.com/lanreader/lanreader/internal/validation"
)

// MetadataUpdate is a user edit of an archive's title and tags.
type MetadataUpdate struct {
	Title string `json:"title" validate:"required,max=1024"`
	Tags  string `json:"tags" validate:"max=16384"`
}

// ArchiveService reads and writes the cached archive set.
type ArchiveService struct {
	store     store.Store
	remote    Remote
	tags      *TagService
	files     *images.Storage
	tasks     *Tasks
	validator *validation.Validator
	logger    *slog.Logger

	flight singleflight.Group
}

// NewArchiveService creates an archive service.
func NewArchiveService(
	store store.Store,
	remote Remote,
	tags *TagService,
	files *images.Storage,
	tasks *Tasks,
	validator *validation.Validator,
	logger *slog.Logger,
) *ArchiveService {
	return &ArchiveService{
		store:     store,
		remote:    remote,
		tags:      tags,
		files:     files,
		tasks:     tasks,
		validator: validator,
		logger:    logger,
	}
}

// LoadArchives returns the archive set. With fromServer false a non-empty
// cache is returned without touching the network. Otherwise the server list
// is upserted into the cache and returned; on failure the cache is left as
// it was. A tag rebuild is scheduled either way.
func (s *ArchiveService) LoadArchives(ctx context.Context, fromServer bool) ([]*domain.Archive, error) {
	defer s.tags.ScheduleRebuild()

	if !fromServer {
		cached, err := s.store.ListArchives(ctx)
		if err != nil {
			return nil, apperrors.Persistence("list cached archives", err)
		}
		if len(cached) > 0 {
			return cached, nil
		}
	}

	// The shared sync must outlive any single caller; each caller still
	// stops waiting when its own ctx is done.
	detached := context.WithoutCancel(ctx)
	ch := s.flight.DoChan("archives", func() (any, error) {
		return s.syncArchives(detached)
	})
	select {
	case <-ctx.Done():
		return nil, apperrors.Server("load archives", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug("archive load coalesced with in-flight request")
		}
		return res.Val.([]*domain.Archive), nil
	}
}

func (s *ArchiveService) syncArchives(ctx context.Context) ([]*domain.Archive, error) {
	s.pushPending(ctx)

	summaries, err := s.remote.ListArchives(ctx)
	if err != nil {
		return nil, apperrors.FromRemote("list archives", err)
	}

	archives := make([]*domain.Archive, 0, len(summaries))
	for _, sum := range summaries {
		archives = append(archives, sum.ToDomain())
	}
	if err := s.store.SaveArchives(ctx, archives); err != nil {
		return nil, apperrors.Persistence("save archives", err)
	}

	s.logger.Info("archives synced", "count", len(archives))
	return s.listCached(ctx)
}

// pushPending retries local edits whose earlier push failed. Rows that still
// fail stay pending and keep their local values through the upsert.
func (s *ArchiveService) pushPending(ctx context.Context) {
	pending, err := s.store.ListPendingArchives(ctx)
	if err != nil {
		s.logger.Warn("failed to list pending archive edits", "error", err)
		return
	}
	for _, a := range pending {
		for _, flag := range []domain.Pending{domain.PendingProgress, domain.PendingMetadata, domain.PendingNew} {
			if !a.Pending.Has(flag) {
				continue
			}
			if err := s.push(ctx, a, flag); err != nil {
				s.logger.Warn("pending edit still not pushed", "archive_id", a.ID, "pending", flag, "error", err)
			}
		}
	}
}

// push sends the field group named by flag to the server and, once accepted,
// clears its pending mark.
func (s *ArchiveService) push(ctx context.Context, a *domain.Archive, flag domain.Pending) error {
	var err error
	switch flag {
	case domain.PendingProgress:
		err = s.remote.UpdateProgress(ctx, a.ID, a.Progress)
	case domain.PendingMetadata:
		err = s.remote.UpdateMetadata(ctx, a.ID, a.Title, a.Tags)
	case domain.PendingNew:
		err = s.remote.ClearNew(ctx, a.ID)
	}
	if err != nil {
		return apperrors.FromRemote("push archive edit", err)
	}
	if err := s.store.ClearArchivePending(ctx, a, flag); err != nil {
		return apperrors.Persistence("clear pending", err)
	}
	return nil
}

func (s *ArchiveService) listCached(ctx context.Context) ([]*domain.Archive, error) {
	archives, err := s.store.ListArchives(ctx)
	if err != nil {
		return nil, apperrors.Persistence("list cached archives", err)
	}
	return archives, nil
}

// Archive returns one cached archive.
func (s *ArchiveService) Archive(ctx context.Context, id string) (*domain.Archive, error) {
	a, err := s.store.GetArchive(ctx, id)
	if err != nil {
		return nil, mapStoreError("get archive", id, err)
	}
	return a, nil
}

// RefreshArchive re-reads one archive's metadata from the server into the cache.
func (s *ArchiveService) RefreshArchive(ctx context.Context, id string) (*domain.Archive, error) {
	summary, err := s.remote.Metadata(ctx, id)
	if err != nil {
		return nil, apperrors.FromRemote("get archive metadata", err)
	}
	a := summary.ToDomain()
	if err := s.store.SaveArchive(ctx, a); err != nil {
		return nil, apperrors.Persistence("save archive", err)
	}
	s.tags.ScheduleRebuild()
	return a, nil
}

// UpdateProgress stores the last read page locally and pushes it to the
// server in the background. An unpushed value wins over server data until
// a later push succeeds.
func (s *ArchiveService) UpdateProgress(ctx context.Context, id string, page int) error {
	if page < 0 {
		return apperrors.Validation("page must not be negative")
	}
	if err := s.store.UpdateArchiveProgress(ctx, id, page); err != nil {
		return mapStoreError("update progress", id, err)
	}

	pushed := &domain.Archive{ID: id, Progress: page}
	s.tasks.Go(ctx, "update progress", func(ctx context.Context) error {
		return s.push(ctx, pushed, domain.PendingProgress)
	})
	return nil
}

// UpdateMetadata stores a title and tag edit locally, pushes it in the
// background and schedules a tag rebuild.
func (s *ArchiveService) UpdateMetadata(ctx context.Context, id string, update MetadataUpdate) error {
	update.Tags = domain.JoinTags(domain.SplitTags(update.Tags))
	if err := s.validator.Validate(update); err != nil {
		return err
	}
	if err := s.store.UpdateArchiveMetadata(ctx, id, update.Title, update.Tags); err != nil {
		return mapStoreError("update metadata", id, err)
	}
	s.tags.ScheduleRebuild()

	pushed := &domain.Archive{ID: id, Title: update.Title, Tags: update.Tags}
	s.tasks.Go(ctx, "update metadata", func(ctx context.Context) error {
		return s.push(ctx, pushed, domain.PendingMetadata)
	})
	return nil
}

// ClearNew drops the "new" marker locally and on the server.
func (s *ArchiveService) ClearNew(ctx context.Context, id string) error {
	if err := s.store.ClearArchiveNew(ctx, id); err != nil {
		return mapStoreError("clear new", id, err)
	}

	pushed := &domain.Archive{ID: id}
	s.tasks.Go(ctx, "clear new", func(ctx context.Context) error {
		return s.push(ctx, pushed, domain.PendingNew)
	})
	return nil
}

// DeleteArchive deletes on the server first. Only a confirmed delete
// removes the archive and everything keyed by it from the cache.
func (s *ArchiveService) DeleteArchive(ctx context.Context, id string) error {
	ok, err := s.remote.DeleteArchive(ctx, id)
	if err != nil {
		return apperrors.FromRemote("delete archive", err)
	}
	if !ok {
		return apperrors.Server("delete archive: server refused", nil)
	}

	pages, err := s.store.ListArchiveImages(ctx, id)
	if err != nil {
		return apperrors.Persistence("list cached pages", err)
	}
	if err := s.store.DeleteArchive(ctx, id); err != nil {
		return apperrors.Persistence("delete archive", err)
	}
	for _, p := range pages {
		if err := s.files.DeletePath(p.Path); err != nil {
			s.logger.Warn("failed to remove cached page", "path", p.Path, "error", err)
		}
	}

	s.tags.ScheduleRebuild()
	s.logger.Info("archive deleted", "archive_id", id, "pages_removed", len(pages))
	return nil
}

// Thumbnail returns the cover for id, from the cache unless force is set.
// Downloaded covers are cached together with a BlurHash placeholder.
func (s *ArchiveService) Thumbnail(ctx context.Context, id string, force bool) (*domain.ArchiveThumbnail, error) {
	if !force {
		thumb, err := s.store.GetThumbnail(ctx, id)
		if err == nil {
			return thumb, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("thumbnail cache read failed", "archive_id", id, "error", err)
		}
	}

	data, err := s.remote.Thumbnail(ctx, id)
	if err != nil {
		return nil, apperrors.FromRemote("get thumbnail", err)
	}

	thumb := &domain.ArchiveThumbnail{ID: id, Data: data, UpdatedAt: time.Now()}
	if hash, err := images.ComputeBlurHash(data); err != nil {
		s.logger.Debug("blurhash failed", "archive_id", id, "error", err)
	} else {
		thumb.BlurHash = hash
	}

	if err := s.store.SaveThumbnail(ctx, thumb); err != nil {
		s.logger.Warn("failed to cache thumbnail", "archive_id", id, "error", err)
	}
	return thumb, nil
}

// mapStoreError turns a store failure into a domain error.
func mapStoreError(op, id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NotFoundf("%s: %s not found", op, id)
	}
	return apperrors.Persistence(op, err)
}
