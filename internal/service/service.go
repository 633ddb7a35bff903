// Package service is the synchronization engine. It decides cache versus
// network for every read and fans writes out to the local store and the
// archive server.
package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/lanreader/lanreader/internal/domain"
	"github.com/lanreader/lanreader/internal/lanraragi"
)

// Remote is the archive server surface used by the services.
// *lanraragi.Client implements it.
type Remote interface {
	Info(ctx context.Context) (*lanraragi.Info, error)
	ListArchives(ctx context.Context) ([]lanraragi.ArchiveSummary, error)
	Search(ctx context.Context, params lanraragi.SearchParams) (*lanraragi.SearchResult, error)
	Thumbnail(ctx context.Context, id string) ([]byte, error)
	Metadata(ctx context.Context, id string) (*lanraragi.ArchiveSummary, error)
	UpdateMetadata(ctx context.Context, id, title, tags string) error
	Extract(ctx context.Context, id string) ([]string, error)
	Page(ctx context.Context, path string, progress func(float64)) ([]byte, error)
	UpdateProgress(ctx context.Context, id string, page int) error
	DeleteArchive(ctx context.Context, id string) (bool, error)
	ClearNew(ctx context.Context, id string) error
	ListCategories(ctx context.Context) ([]lanraragi.Category, error)
	UpdateCategory(ctx context.Context, cat *domain.Category) error
	QueueDownload(ctx context.Context, sourceURL string) (int, error)
	JobStatus(ctx context.Context, job int) (*lanraragi.JobStatus, error)
	SetCredentials(serverURL, apiKey string) error
}

// Tasks runs fire-and-forget remote pushes. A failed push is logged; the
// local write it mirrors stays pending and is retried on the next sync.
type Tasks struct {
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewTasks creates an empty task group.
func NewTasks(logger *slog.Logger) *Tasks {
	return &Tasks{logger: logger}
}

// Go runs fn detached from ctx's cancellation but keeps its values.
func (t *Tasks) Go(ctx context.Context, op string, fn func(ctx context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	t.wg.Go(func() {
		if err := fn(ctx); err != nil {
			t.logger.Warn("remote update failed, keeping local value", "op", op, "error", err)
		}
	})
}

// Wait blocks until every started task has returned.
func (t *Tasks) Wait() {
	t.wg.Wait()
}
