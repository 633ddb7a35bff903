// Package main provides the entry point for the lanreader sync core.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/lanreader/lanreader/internal/di"
	"github.com/lanreader/lanreader/internal/di/providers"
	"github.com/lanreader/lanreader/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Create DI container
	injector := di.NewContainer(os.Args[1:])

	// Bootstrap all services
	if err := di.Bootstrap(ctx, injector); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap lanreader: %v\n", err)
		os.Exit(1)
	}

	log := do.MustInvoke[*logger.Logger](injector)

	// Log every state change at debug level until shutdown.
	stateHandle := do.MustInvoke[*providers.StateStoreHandle](injector)
	sub := stateHandle.Subscribe()
	go func() {
		for s := range sub.States {
			log.Debug("State updated",
				"archives", len(s.Archives.Archives),
				"categories", len(s.Categories.Categories),
				"downloads", len(s.Downloads.Jobs),
				"reader_archive", s.Reader.ArchiveID,
			)
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down gracefully...")

	// The container shuts services down in reverse dependency order.
	if err := injector.Shutdown(); err != nil {
		log.Error("Shutdown error", "error", err)
	}

	log.Info("See you space cowboy...")
}
