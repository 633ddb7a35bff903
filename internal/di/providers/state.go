package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/lanreader/lanreader/internal/config"
	"github.com/lanreader/lanreader/internal/logger"
	"github.com/lanreader/lanreader/internal/service"
	"github.com/lanreader/lanreader/internal/state"
)

// StateStoreHandle wraps the state container for lifecycle management.
type StateStoreHandle struct {
	*state.Store
}

// Shutdown implements do.Shutdownable.
func (h *StateStoreHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Store.Shutdown(ctx)
}

// ProvideStateStore provides the state container and starts its dispatch loop.
func ProvideStateStore(i do.Injector) (*StateStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	tags := do.MustInvoke[*TagServiceHandle](i)

	env := &state.Env{
		Archives:      do.MustInvoke[*service.ArchiveService](i),
		Search:        do.MustInvoke[*service.SearchService](i),
		Tags:          tags.TagService,
		Categories:    do.MustInvoke[*service.CategoryService](i),
		Pages:         do.MustInvoke[*service.PageService](i),
		Downloads:     do.MustInvoke[*service.DownloadService](i),
		PrefetchAhead: cfg.Prefetch.Ahead,
		Logger:        log.WithComponent("effects"),
	}

	store := state.NewStore(env, state.State{}, log.WithComponent("state"))
	go store.Start(context.Background())

	log.Info("State store started")

	return &StateStoreHandle{Store: store}, nil
}
