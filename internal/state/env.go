package state

import (
	"context"
	"log/slog"

	"github.com/lanreader/lanreader/internal/domain"
	"github.com/lanreader/lanreader/internal/lanraragi"
	"github.com/lanreader/lanreader/internal/logger"
	"github.com/lanreader/lanreader/internal/prefetch"
	"github.com/lanreader/lanreader/internal/search"
	"github.com/lanreader/lanreader/internal/service"
)

// DefaultPrefetchAhead is how many pages past the current one the reader
// downloads in the background.
const DefaultPrefetchAhead = 5

// ArchiveSource is the archive side of the sync engine used by effects.
type ArchiveSource interface {
	LoadArchives(ctx context.Context, fromServer bool) ([]*domain.Archive, error)
	UpdateProgress(ctx context.Context, id string, page int) error
	UpdateMetadata(ctx context.Context, id string, update service.MetadataUpdate) error
	ClearNew(ctx context.Context, id string) error
	DeleteArchive(ctx context.Context, id string) error
	Thumbnail(ctx context.Context, id string, force bool) (*domain.ArchiveThumbnail, error)
}

// Searcher runs server and offline searches.
type Searcher interface {
	Search(ctx context.Context, params lanraragi.SearchParams) (*service.SearchPage, error)
	SearchLocal(ctx context.Context, params search.Params) ([]*domain.Archive, int, error)
}

// TagSuggester completes partial tags.
type TagSuggester interface {
	Suggest(ctx context.Context, text string) ([]domain.TagItem, error)
}

// CategorySource loads and edits categories.
type CategorySource interface {
	Load(ctx context.Context, fromServer bool) ([]*domain.Category, error)
	UpdateDynamic(ctx context.Context, id string, update service.CategoryUpdate) (*domain.Category, error)
}

// PageSource serves a reading session.
type PageSource interface {
	Extract(ctx context.Context, id string) ([]string, error)
	Prefetch(ctx context.Context, archiveID string, pages []string, progress prefetch.ProgressFunc) prefetch.Summary
	RecordHistory(ctx context.Context, id string) error
}

// DownloadSource queues and tracks server-side downloads.
type DownloadSource interface {
	Queue(ctx context.Context, sourceURL string) (*domain.DownloadJob, error)
	PollActive(ctx context.Context) ([]*domain.DownloadJob, error)
	Jobs(ctx context.Context) ([]*domain.DownloadJob, error)
	Dismiss(ctx context.Context, jobID int) error
}

// Env carries the collaborators effects call into.
type Env struct {
	Archives   ArchiveSource
	Search     Searcher
	Tags       TagSuggester
	Categories CategorySource
	Pages      PageSource
	Downloads  DownloadSource

	// PrefetchAhead is the reader's look-ahead window. Zero means
	// DefaultPrefetchAhead.
	PrefetchAhead int

	Logger *slog.Logger
}

func (e *Env) logger() *slog.Logger {
	if e == nil || e.Logger == nil {
		return logger.Discard()
	}
	return e.Logger
}

func (e *Env) prefetchAhead() int {
	if e == nil || e.PrefetchAhead <= 0 {
		return DefaultPrefetchAhead
	}
	return e.PrefetchAhead
}
