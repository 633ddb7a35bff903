// Package di provides dependency injection configuration for the lanreader core.
package di

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/lanreader/lanreader/internal/config"
	"github.com/lanreader/lanreader/internal/di/providers"
	"github.com/lanreader/lanreader/internal/lanraragi"
	"github.com/lanreader/lanreader/internal/logger"
	"github.com/lanreader/lanreader/internal/media/images"
	"github.com/lanreader/lanreader/internal/prefetch"
	"github.com/lanreader/lanreader/internal/service"
	"github.com/lanreader/lanreader/internal/validation"
)

// NewContainer creates and configures the DI container with all providers.
// args are the command-line arguments configuration is parsed from.
func NewContainer(args []string) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.ProvideValue(injector, providers.Args(args))
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSlogLogger)
	do.Provide(injector, providers.ProvideValidator)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideSettings)
	do.Provide(injector, providers.ProvideSearchIndex)
	do.Provide(injector, providers.ProvidePageStorage)
	do.Provide(injector, providers.ProvideCompressor)

	// Remote layer
	do.Provide(injector, providers.ProvideRemoteClient)
	do.Provide(injector, providers.ProvidePipeline)

	// Sync engine
	do.Provide(injector, providers.ProvideTasks)
	do.Provide(injector, providers.ProvideTagService)
	do.Provide(injector, providers.ProvideArchiveService)
	do.Provide(injector, providers.ProvideSearchService)
	do.Provide(injector, providers.ProvideCategoryService)
	do.Provide(injector, providers.ProvidePageService)
	do.Provide(injector, providers.ProvideDownloadService)
	do.Provide(injector, providers.ProvideCacheService)
	do.Provide(injector, providers.ProvideSettingsService)

	// State container
	do.Provide(injector, providers.ProvideStateStore)

	// Workers
	do.Provide(injector, providers.ProvidePageWatcher)
	do.Provide(injector, providers.ProvideDownloadPoller)

	return injector
}

// Bootstrap initializes all services, starts the background workers and
// dispatches the initial sync.
func Bootstrap(ctx context.Context, injector *do.RootScope) error {
	// Invoke core services to trigger initialization
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*validation.Validator](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.SettingsHandle](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*images.Storage](injector)
	_ = do.MustInvoke[*images.Compressor](injector)
	_ = do.MustInvoke[*lanraragi.Client](injector)
	_ = do.MustInvoke[*prefetch.Pipeline](injector)

	// Sync engine
	_ = do.MustInvoke[*providers.TasksHandle](injector)
	_ = do.MustInvoke[*providers.TagServiceHandle](injector)
	_ = do.MustInvoke[*service.ArchiveService](injector)
	_ = do.MustInvoke[*service.SearchService](injector)
	_ = do.MustInvoke[*service.CategoryService](injector)
	_ = do.MustInvoke[*service.PageService](injector)
	_ = do.MustInvoke[*service.DownloadService](injector)
	_ = do.MustInvoke[*service.CacheService](injector)
	_ = do.MustInvoke[*service.SettingsService](injector)

	_ = do.MustInvoke[*providers.StateStoreHandle](injector)

	if err := providers.ColdStart(ctx, injector); err != nil {
		return err
	}

	// Workers
	_ = do.MustInvoke[*providers.PageWatcherHandle](injector)
	_ = do.MustInvoke[*providers.DownloadPoller](injector)

	return nil
}
