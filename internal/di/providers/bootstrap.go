package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/lanreader/lanreader/internal/logger"
	"github.com/lanreader/lanreader/internal/service"
	"github.com/lanreader/lanreader/internal/state"
)

// ColdStart prepares a fresh process: page files from the previous run are
// removed, saved credentials are pushed to the client and the first loads are
// dispatched. The library syncs from the server only when it answers;
// otherwise the local cache is served.
func ColdStart(ctx context.Context, i do.Injector) error {
	log := do.MustInvoke[*logger.Logger](i)
	cache := do.MustInvoke[*service.CacheService](i)
	settingsSvc := do.MustInvoke[*service.SettingsService](i)
	stateHandle := do.MustInvoke[*StateStoreHandle](i)

	if err := cache.ResetPages(ctx); err != nil {
		return err
	}

	online := false
	creds, err := settingsSvc.Credentials(ctx)
	if err != nil {
		return err
	}
	switch {
	case !creds.Configured():
		log.Info("No archive server configured, serving the local cache")
	default:
		if err := settingsSvc.Apply(ctx); err != nil {
			log.WithError(err).Warn("Saved server credentials rejected, serving the local cache")
			break
		}
		serverLog := log.WithField("url", creds.ServerURL)
		info, err := settingsSvc.Verify(ctx)
		if err != nil {
			serverLog.WithError(err).Warn("Archive server unreachable, serving the local cache")
			break
		}
		serverLog.Info("Connected to archive server", "name", info.Name, "version", info.Version)
		online = true
	}

	stateHandle.Dispatch(state.LoadArchives{FromServer: online})
	stateHandle.Dispatch(state.LoadCategories{FromServer: online})
	stateHandle.Dispatch(state.LoadDownloads{})
	return nil
}
