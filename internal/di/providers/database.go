package providers

import (
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/lanreader/lanreader/internal/config"
	"github.com/lanreader/lanreader/internal/domain"
	"github.com/lanreader/lanreader/internal/logger"
	"github.com/lanreader/lanreader/internal/search"
	"github.com/lanreader/lanreader/internal/settings"
	"github.com/lanreader/lanreader/internal/store/sqlite"
)

// StoreHandle wraps the cache database with shutdown capability.
type StoreHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the sqlite cache. Opening it migrates the schema and
// drops page rows left over from the previous run.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	db, err := sqlite.Open(cfg.DatabasePath(), log.WithComponent("store"))
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "path", cfg.DatabasePath())

	return &StoreHandle{Store: db}, nil
}

// SettingsHandle wraps the settings store with shutdown capability.
type SettingsHandle struct {
	*settings.Store
}

// Shutdown implements do.Shutdownable.
func (h *SettingsHandle) Shutdown() error {
	return h.Close()
}

// ProvideSettings provides the key-value settings store. Configured server
// credentials are the defaults until the user saves their own.
func ProvideSettings(i do.Injector) (*SettingsHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	defaults := domain.Credentials{
		ServerURL: cfg.Remote.ServerURL,
		APIKey:    cfg.Remote.APIKey,
	}
	s, err := settings.Open(cfg.SettingsPath(), defaults, log.WithComponent("settings"))
	if err != nil {
		return nil, err
	}

	log.Info("Settings initialized", "path", cfg.SettingsPath())

	return &SettingsHandle{Store: s}, nil
}

// SearchIndexHandle wraps the offline search index with shutdown capability.
type SearchIndexHandle struct {
	*search.ArchiveIndex
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the in-memory bleve index. It is filled by the
// first tag rebuild.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.NewArchiveIndex(log.WithComponent("search"))
	if err != nil {
		return nil, err
	}

	return &SearchIndexHandle{ArchiveIndex: index}, nil
}

// ProvideSlogLogger provides access to the underlying slog.Logger for packages that need it.
func ProvideSlogLogger(i do.Injector) (*slog.Logger, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return log.Logger, nil
}
