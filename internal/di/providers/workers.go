package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/lanreader/lanreader/internal/config"
	"github.com/lanreader/lanreader/internal/domain"
	"github.com/lanreader/lanreader/internal/logger"
	"github.com/lanreader/lanreader/internal/media/images"
	"github.com/lanreader/lanreader/internal/service"
	"github.com/lanreader/lanreader/internal/state"
	"github.com/lanreader/lanreader/internal/watcher"
)

// PageWatcherHandle wraps the page cache watcher with shutdown capability.
type PageWatcherHandle struct {
	*watcher.Watcher
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *PageWatcherHandle) Shutdown() error {
	h.cancel()
	return h.Watcher.Stop()
}

// ProvidePageWatcher watches the page directory and drops cache rows for
// files removed behind the store's back.
func ProvidePageWatcher(i do.Injector) (*PageWatcherHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)
	pages := do.MustInvoke[*images.Storage](i)
	cache := do.MustInvoke[*service.CacheService](i)

	w, err := watcher.New(log.WithComponent("watcher"), watcher.Options{})
	if err != nil {
		return nil, err
	}
	if err := w.Watch(pages.Dir()); err != nil {
		_ = w.Stop()
		return nil, err
	}

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		if err := w.Start(ctx); err != nil {
			log.Error("Page watcher error", "error", err)
		}
	}()
	go cache.FollowPageRemovals(ctx, w)

	log.Info("Page watcher started", "path", pages.Dir())

	return &PageWatcherHandle{
		Watcher: w,
		cancel:  cancel,
	}, nil
}

// DownloadPoller polls active download jobs and feeds them to the state store.
type DownloadPoller struct {
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (p *DownloadPoller) Shutdown() error {
	p.cancel()
	return nil
}

// ProvideDownloadPoller starts the periodic download job poller.
func ProvideDownloadPoller(i do.Injector) (*DownloadPoller, error) {
	cfg := do.MustInvoke[*config.Config](i)
	downloads := do.MustInvoke[*service.DownloadService](i)
	stateHandle := do.MustInvoke[*StateStoreHandle](i)

	ctx, cancel := context.WithCancel(context.Background())
	go downloads.RunPoller(ctx, cfg.Sync.JobPollInterval, func(jobs []*domain.DownloadJob) {
		stateHandle.Dispatch(state.DownloadsUpdated{Jobs: jobs})
	})

	return &DownloadPoller{cancel: cancel}, nil
}
