// Package di provides dependency injection configuration for the HomeFlix server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/homeflixapp/homeflix-server/internal/config"
	"github.com/homeflixapp/homeflix-server/internal/di/providers"
	"github.com/homeflixapp/homeflix-server/internal/logger"
	"github.com/homeflixapp/homeflix-server/internal/media/images"
	"github.com/homeflixapp/homeflix-server/internal/probe"
	"github.com/homeflixapp/homeflix-server/internal/scanner"
	"github.com/homeflixapp/homeflix-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Media tooling
	do.Provide(injector, providers.ProvideProber)
	do.Provide(injector, providers.ProvideImageStorage)
	do.Provide(injector, providers.ProvidePosterGenerator)

	// Scanner layer
	do.Provide(injector, providers.ProvideScanner)
	do.Provide(injector, providers.ProvideFileWatcher)

	// Business services
	do.Provide(injector, providers.ProvideLibraryService)
	do.Provide(injector, providers.ProvideMediaService)
	do.Provide(injector, providers.ProvideStreamer)

	// Workers
	do.Provide(injector, providers.ProvideTranscodeService)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)
	do.Provide(injector, providers.ProvideMDNSService)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)

	_ = do.MustInvoke[*probe.Prober](injector)
	_ = do.MustInvoke[*images.Storage](injector)
	_ = do.MustInvoke[*images.Generator](injector)

	_ = do.MustInvoke[*scanner.Scanner](injector)
	_ = do.MustInvoke[*providers.FileWatcherHandle](injector)

	_ = do.MustInvoke[*service.LibraryService](injector)
	_ = do.MustInvoke[*service.MediaService](injector)
	_ = do.MustInvoke[*service.Streamer](injector)

	_ = do.MustInvoke[*providers.TranscodeServiceHandle](injector)

	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)
	_ = do.MustInvoke[*providers.MDNSServiceHandle](injector)

	providers.TriggerSearchReindexIfNeeded(injector)

	return nil
}
