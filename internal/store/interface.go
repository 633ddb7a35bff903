// Package store defines the persistence interface for the local archive cache.
package store

import (
	"context"

	"github.com/lanreader/lanreader/internal/domain"
)

// Store defines every persistence operation used by the sync engine.
// Saves are upserts by primary key inside a write transaction; last write wins.
type Store interface {
	Close() error

	// Archives
	SaveArchive(ctx context.Context, a *domain.Archive) error
	SaveArchives(ctx context.Context, archives []*domain.Archive) error
	GetArchive(ctx context.Context, id string) (*domain.Archive, error)
	ListArchives(ctx context.Context) ([]*domain.Archive, error)
	ArchiveExists(ctx context.Context, id string) (bool, error)
	CountArchives(ctx context.Context) (int, error)
	UpdateArchiveProgress(ctx context.Context, id string, progress int) error
	UpdateArchiveMetadata(ctx context.Context, id, title, tags string) error
	ClearArchiveNew(ctx context.Context, id string) error
	ListPendingArchives(ctx context.Context) ([]*domain.Archive, error)
	ClearArchivePending(ctx context.Context, pushed *domain.Archive, flag domain.Pending) error
	DeleteArchive(ctx context.Context, id string) error
	DeleteAllArchives(ctx context.Context) (int, error)

	// Thumbnails
	SaveThumbnail(ctx context.Context, t *domain.ArchiveThumbnail) error
	GetThumbnail(ctx context.Context, id string) (*domain.ArchiveThumbnail, error)
	ThumbnailExists(ctx context.Context, id string) (bool, error)
	DeleteAllThumbnails(ctx context.Context) (int, error)

	// Page images
	SaveArchiveImage(ctx context.Context, img *domain.ArchiveImage) error
	GetArchiveImage(ctx context.Context, id string) (*domain.ArchiveImage, error)
	ArchiveImageExists(ctx context.Context, id string) (bool, error)
	ListArchiveImages(ctx context.Context, archiveID string) ([]*domain.ArchiveImage, error)
	ListAllArchiveImages(ctx context.Context) ([]*domain.ArchiveImage, error)
	DeleteArchiveImageByPath(ctx context.Context, path string) (int, error)
	DeleteArchiveImages(ctx context.Context, archiveID string) (int, error)
	DeleteAllArchiveImages(ctx context.Context) (int, error)
	ResetPageCache(ctx context.Context) (int, error)

	// Full archive downloads
	SaveArchiveCache(ctx context.Context, c *domain.ArchiveCache) error
	GetArchiveCache(ctx context.Context, id string) (*domain.ArchiveCache, error)
	ListArchiveCaches(ctx context.Context) ([]*domain.ArchiveCache, error)
	DeleteArchiveCache(ctx context.Context, id string) error
	DeleteAllArchiveCaches(ctx context.Context) (int, error)

	// Tags
	ReplaceTagItems(ctx context.Context, items []domain.TagItem) error
	ListTagItems(ctx context.Context) ([]domain.TagItem, error)
	SearchTags(ctx context.Context, substring string, limit int) ([]domain.TagItem, error)
	DeleteAllTagItems(ctx context.Context) (int, error)

	// Categories
	SaveCategory(ctx context.Context, c *domain.Category) error
	ReplaceCategories(ctx context.Context, categories []*domain.Category) error
	GetCategory(ctx context.Context, id string) (*domain.Category, error)
	ListCategories(ctx context.Context) ([]*domain.Category, error)
	ListPendingCategories(ctx context.Context) ([]*domain.Category, error)
	ClearCategoryPending(ctx context.Context, pushed *domain.Category) error
	DeleteAllCategories(ctx context.Context) (int, error)

	// Download jobs
	SaveDownloadJob(ctx context.Context, j *domain.DownloadJob) error
	GetDownloadJob(ctx context.Context, id int) (*domain.DownloadJob, error)
	ListDownloadJobs(ctx context.Context) ([]*domain.DownloadJob, error)
	ListActiveDownloadJobs(ctx context.Context) ([]*domain.DownloadJob, error)
	DeleteDownloadJob(ctx context.Context, id int) error
	DeleteAllDownloadJobs(ctx context.Context) (int, error)

	// History
	SaveHistory(ctx context.Context, h *domain.History) error
	ListHistory(ctx context.Context, limit int) ([]*domain.History, error)
	DeleteHistory(ctx context.Context, archiveID string) error
	DeleteAllHistory(ctx context.Context) (int, error)

	// Diagnostics
	DiskSize(ctx context.Context) (int64, error)
}
