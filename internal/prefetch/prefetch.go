// Package prefetch downloads page images ahead of the reader, applies the
// compression policy and records each landed file in the page cache.
package prefetch

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/lanreader/lanreader/internal/domain"
	"github.com/lanreader/lanreader/internal/media/images"
)

// Progress values outside the download range.
const (
	// ProgressDone is reported once a page is on disk and recorded.
	ProgressDone = 1.0
	// ProgressCompressing is reported while a downloaded page is post-processed.
	ProgressCompressing = 2.0
)

// Downloader fetches raw page bytes by normalized page path.
type Downloader interface {
	Page(ctx context.Context, path string, progress func(float64)) ([]byte, error)
}

// ImageStore is the slice of the local store the pipeline writes to.
type ImageStore interface {
	GetArchiveImage(ctx context.Context, id string) (*domain.ArchiveImage, error)
	SaveArchiveImage(ctx context.Context, img *domain.ArchiveImage) error
}

// ProgressFunc receives per-page progress. It is called from several
// goroutines at once.
type ProgressFunc func(pageID string, value float64)

// Options tunes the pipeline.
type Options struct {
	// MaxConcurrent bounds simultaneous downloads. 0 means unbounded.
	MaxConcurrent int
}

// Result is the outcome for one submitted page.
type Result struct {
	PageID  string
	Image   *domain.ArchiveImage
	Skipped bool // Already cached
	Err     error
}

// Summary totals a finished batch.
type Summary struct {
	Requested  int
	Skipped    int
	Downloaded int
	Failed     int
}

// Pipeline is safe for concurrent use.
type Pipeline struct {
	remote     Downloader
	store      ImageStore
	files      *images.Storage
	compressor *images.Compressor
	logger     *slog.Logger

	sem   *semaphore.Weighted
	group singleflight.Group

	mu        sync.Mutex
	listeners map[string][]*listener
}

// listener is one caller waiting on a page download.
type listener struct {
	progress ProgressFunc
	done     atomic.Bool // Saw ProgressDone
}

// New creates a pipeline. compressor may be nil to store pages unmodified.
func New(remote Downloader, store ImageStore, files *images.Storage, compressor *images.Compressor, opts Options, logger *slog.Logger) *Pipeline {
	p := &Pipeline{
		remote:     remote,
		store:      store,
		files:      files,
		compressor: compressor,
		logger:     logger,
		listeners:  make(map[string][]*listener),
	}
	if opts.MaxConcurrent > 0 {
		p.sem = semaphore.NewWeighted(int64(opts.MaxConcurrent))
	}
	return p
}

// Prefetch downloads every page of pages that is not cached yet and blocks
// until all of them have finished or failed.
func (p *Pipeline) Prefetch(ctx context.Context, archiveID string, pages []string, progress ProgressFunc) Summary {
	ids := make(chan string, len(pages))
	for _, id := range pages {
		ids <- id
	}
	close(ids)

	var sum Summary
	for res := range p.Stream(ctx, archiveID, ids, progress) {
		sum.Requested++
		switch {
		case res.Err != nil:
			sum.Failed++
		case res.Skipped:
			sum.Skipped++
		default:
			sum.Downloaded++
		}
	}
	return sum
}

// Stream consumes page ids until ids is closed or ctx is done and emits one
// Result per id on the returned channel, in completion order. The channel is
// closed after the last in-flight page finishes. A failing page never
// cancels its siblings.
func (p *Pipeline) Stream(ctx context.Context, archiveID string, ids <-chan string, progress ProgressFunc) <-chan Result {
	out := make(chan Result)
	if progress == nil {
		progress = func(string, float64) {}
	}

	go func() {
		var wg sync.WaitGroup
		defer func() {
			wg.Wait()
			close(out)
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case id, ok := <-ids:
				if !ok {
					return
				}
				wg.Go(func() {
					out <- p.process(ctx, archiveID, id, progress)
				})
			}
		}
	}()

	return out
}

func (p *Pipeline) process(ctx context.Context, archiveID, pageID string, progress ProgressFunc) Result {
	if img, ok := p.cached(ctx, pageID); ok {
		progress(pageID, ProgressDone)
		return Result{PageID: pageID, Image: img, Skipped: true}
	}

	img, err := p.Fetch(ctx, archiveID, pageID, progress)
	if err != nil {
		p.logger.Warn("prefetch failed", "archive_id", archiveID, "page", pageID, "error", err)
		return Result{PageID: pageID, Err: err}
	}
	return Result{PageID: pageID, Image: img}
}

// cached reports a page whose row and file both exist.
func (p *Pipeline) cached(ctx context.Context, pageID string) (*domain.ArchiveImage, bool) {
	img, err := p.store.GetArchiveImage(ctx, pageID)
	if err != nil {
		return nil, false
	}
	return img, p.files.Exists(pageID)
}

// Fetch downloads and stores one page. Concurrent calls for the same page
// share a single download, and every caller receives its progress. The
// shared download outlives a cancelled caller; that caller returns ctx.Err().
func (p *Pipeline) Fetch(ctx context.Context, archiveID, pageID string, progress ProgressFunc) (*domain.ArchiveImage, error) {
	if progress == nil {
		progress = func(string, float64) {}
	}

	l := p.listen(pageID, progress)
	defer p.unlisten(pageID, l)

	detached := context.WithoutCancel(ctx)
	ch := p.group.DoChan(pageID, func() (any, error) {
		return p.fetch(detached, archiveID, pageID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		// A caller that joined after the final report still gets one.
		if !l.done.Load() {
			progress(pageID, ProgressDone)
		}
		return res.Val.(*domain.ArchiveImage), nil
	}
}

func (p *Pipeline) listen(pageID string, progress ProgressFunc) *listener {
	l := &listener{progress: progress}
	p.mu.Lock()
	p.listeners[pageID] = append(p.listeners[pageID], l)
	p.mu.Unlock()
	return l
}

func (p *Pipeline) unlisten(pageID string, l *listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ls := slices.DeleteFunc(slices.Clone(p.listeners[pageID]), func(x *listener) bool { return x == l })
	if len(ls) == 0 {
		delete(p.listeners, pageID)
		return
	}
	p.listeners[pageID] = ls
}

// report fans a progress value out to every caller waiting on pageID.
func (p *Pipeline) report(pageID string, value float64) {
	p.mu.Lock()
	ls := slices.Clone(p.listeners[pageID])
	p.mu.Unlock()

	for _, l := range ls {
		if value == ProgressDone {
			l.done.Store(true)
		}
		l.progress(pageID, value)
	}
}

func (p *Pipeline) fetch(ctx context.Context, archiveID, pageID string) (*domain.ArchiveImage, error) {
	if p.sem != nil {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer p.sem.Release(1)
	}

	data, err := p.remote.Page(ctx, pageID, func(f float64) {
		if f < ProgressDone {
			p.report(pageID, f)
		}
	})
	if err != nil {
		return nil, err
	}

	p.report(pageID, ProgressCompressing)
	compressed := false
	if p.compressor != nil {
		out, changed, err := p.compressor.Process(data)
		if err != nil {
			p.logger.Warn("page compression failed, storing original", "page", pageID, "error", err)
		} else {
			data, compressed = out, changed
		}
	}

	path, err := p.files.Save(pageID, data)
	if err != nil {
		return nil, fmt.Errorf("write page %s: %w", pageID, err)
	}

	img := &domain.ArchiveImage{
		ID:         pageID,
		ArchiveID:  archiveID,
		Path:       path,
		Compressed: compressed,
		UpdatedAt:  time.Now(),
	}
	// The file is usable even if the row is lost; the next prefetch rewrites it.
	if err := p.store.SaveArchiveImage(ctx, img); err != nil {
		p.logger.Warn("failed to record cached page", "page", pageID, "error", err)
	}

	p.report(pageID, ProgressDone)
	return img, nil
}
