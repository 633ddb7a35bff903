package providers

import (
	"github.com/samber/do/v2"

	"github.com/lanreader/lanreader/internal/config"
	"github.com/lanreader/lanreader/internal/lanraragi"
	"github.com/lanreader/lanreader/internal/logger"
)

// ProvideRemoteClient provides the LANraragi client. It starts without
// credentials; the settings service applies the saved ones at bootstrap.
func ProvideRemoteClient(i do.Injector) (*lanraragi.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return lanraragi.New(lanraragi.Options{
		Timeout: cfg.Remote.Timeout,
		APIRPS:  cfg.Remote.APIRPS,
		PageRPS: cfg.Remote.PageRPS,
	}, log.WithComponent("lanraragi"))
}
