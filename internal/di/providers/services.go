package providers

import (
	"github.com/samber/do/v2"

	"github.com/lanreader/lanreader/internal/config"
	"github.com/lanreader/lanreader/internal/lanraragi"
	"github.com/lanreader/lanreader/internal/logger"
	"github.com/lanreader/lanreader/internal/media/images"
	"github.com/lanreader/lanreader/internal/prefetch"
	"github.com/lanreader/lanreader/internal/service"
	"github.com/lanreader/lanreader/internal/validation"
)

// TasksHandle wraps the remote push group so shutdown waits for it.
type TasksHandle struct {
	*service.Tasks
}

// Shutdown implements do.Shutdownable.
func (h *TasksHandle) Shutdown() error {
	h.Wait()
	return nil
}

// ProvideTasks provides the async remote push group.
func ProvideTasks(i do.Injector) (*TasksHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return &TasksHandle{Tasks: service.NewTasks(log.WithComponent("tasks"))}, nil
}

// TagServiceHandle wraps the tag service so a pending rebuild runs before exit.
type TagServiceHandle struct {
	*service.TagService
}

// Shutdown implements do.Shutdownable.
func (h *TagServiceHandle) Shutdown() error {
	h.Flush()
	h.Close()
	return nil
}

// ProvideTagService provides the tag service.
func ProvideTagService(i do.Injector) (*TagServiceHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)

	svc := service.NewTagService(storeHandle.Store, indexHandle.ArchiveIndex, cfg.Sync.TagRebuildDelay, log.WithComponent("tags"))
	return &TagServiceHandle{TagService: svc}, nil
}

// ProvideArchiveService provides the archive service.
func ProvideArchiveService(i do.Injector) (*service.ArchiveService, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	client := do.MustInvoke[*lanraragi.Client](i)
	tags := do.MustInvoke[*TagServiceHandle](i)
	pages := do.MustInvoke[*images.Storage](i)
	tasks := do.MustInvoke[*TasksHandle](i)
	validator := do.MustInvoke[*validation.Validator](i)

	return service.NewArchiveService(
		storeHandle.Store,
		client,
		tags.TagService,
		pages,
		tasks.Tasks,
		validator,
		log.WithComponent("archives"),
	), nil
}

// ProvideSearchService provides the search service.
func ProvideSearchService(i do.Injector) (*service.SearchService, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	client := do.MustInvoke[*lanraragi.Client](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)

	return service.NewSearchService(storeHandle.Store, client, indexHandle.ArchiveIndex, log.WithComponent("search")), nil
}

// ProvideCategoryService provides the category service.
func ProvideCategoryService(i do.Injector) (*service.CategoryService, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	client := do.MustInvoke[*lanraragi.Client](i)
	tasks := do.MustInvoke[*TasksHandle](i)
	validator := do.MustInvoke[*validation.Validator](i)

	return service.NewCategoryService(storeHandle.Store, client, tasks.Tasks, validator, log.WithComponent("categories")), nil
}

// ProvidePageService provides the reading session service.
func ProvidePageService(i do.Injector) (*service.PageService, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	client := do.MustInvoke[*lanraragi.Client](i)
	pipeline := do.MustInvoke[*prefetch.Pipeline](i)
	pages := do.MustInvoke[*images.Storage](i)

	return service.NewPageService(storeHandle.Store, client, pipeline, pages, log.WithComponent("pages")), nil
}

// ProvideDownloadService provides the download job service.
func ProvideDownloadService(i do.Injector) (*service.DownloadService, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	client := do.MustInvoke[*lanraragi.Client](i)
	archives := do.MustInvoke[*service.ArchiveService](i)
	validator := do.MustInvoke[*validation.Validator](i)

	return service.NewDownloadService(storeHandle.Store, client, archives, validator, log.WithComponent("downloads")), nil
}

// ProvideCacheService provides the cache maintenance service.
func ProvideCacheService(i do.Injector) (*service.CacheService, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	client := do.MustInvoke[*lanraragi.Client](i)
	pipeline := do.MustInvoke[*prefetch.Pipeline](i)
	pages := do.MustInvoke[*images.Storage](i)

	return service.NewCacheService(storeHandle.Store, client, pipeline, pages, log.WithComponent("cache")), nil
}

// ProvideSettingsService provides the settings service.
func ProvideSettingsService(i do.Injector) (*service.SettingsService, error) {
	log := do.MustInvoke[*logger.Logger](i)
	settingsHandle := do.MustInvoke[*SettingsHandle](i)
	client := do.MustInvoke[*lanraragi.Client](i)
	validator := do.MustInvoke[*validation.Validator](i)

	return service.NewSettingsService(settingsHandle.Store, client, validator, log.WithComponent("settings")), nil
}
