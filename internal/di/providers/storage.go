package providers

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/lanreader/lanreader/internal/config"
	"github.com/lanreader/lanreader/internal/lanraragi"
	"github.com/lanreader/lanreader/internal/logger"
	"github.com/lanreader/lanreader/internal/media/images"
	"github.com/lanreader/lanreader/internal/prefetch"
)

// ProvidePageStorage provides the page image file store.
func ProvidePageStorage(i do.Injector) (*images.Storage, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	pages, err := images.NewStorage(cfg.Data.BasePath)
	if err != nil {
		return nil, fmt.Errorf("page storage: %w", err)
	}

	log.Info("Page storage initialized", "path", pages.Dir())

	return pages, nil
}

// ProvideCompressor provides the page compression policy.
func ProvideCompressor(i do.Injector) (*images.Compressor, error) {
	cfg := do.MustInvoke[*config.Config](i)

	return &images.Compressor{
		ScreenWidth:  cfg.Prefetch.ScreenWidth,
		ScreenHeight: cfg.Prefetch.ScreenHeight,
		Multiplier:   cfg.Prefetch.CompressMultiplier,
		CanvasScale:  cfg.Prefetch.CanvasScale,
		Quality:      cfg.Prefetch.JPEGQuality,
	}, nil
}

// ProvidePipeline provides the page prefetch pipeline.
func ProvidePipeline(i do.Injector) (*prefetch.Pipeline, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	client := do.MustInvoke[*lanraragi.Client](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	pages := do.MustInvoke[*images.Storage](i)
	compressor := do.MustInvoke[*images.Compressor](i)

	return prefetch.New(
		client,
		storeHandle.Store,
		pages,
		compressor,
		prefetch.Options{MaxConcurrent: cfg.Prefetch.MaxConcurrent},
		log.WithComponent("prefetch"),
	), nil
}
