package providers

import (
	"github.com/samber/do/v2"

	"github.com/homeflixapp/homeflix-server/internal/config"
	"github.com/homeflixapp/homeflix-server/internal/logger"
	"github.com/homeflixapp/homeflix-server/internal/scanner"
	"github.com/homeflixapp/homeflix-server/internal/service"
)

// ProvideLibraryService provides the library service.
func ProvideLibraryService(i do.Injector) (*service.LibraryService, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	fileScanner := do.MustInvoke[*scanner.Scanner](i)

	return service.NewLibraryService(storeHandle.Store, fileScanner, log.Logger), nil
}

// ProvideMediaService provides the media catalog service.
func ProvideMediaService(i do.Injector) (*service.MediaService, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	searchHandle := do.MustInvoke[*SearchIndexHandle](i)

	return service.NewMediaService(storeHandle.Store, searchHandle.Index, log.Logger), nil
}

// ProvideStreamer provides the playback streamer.
func ProvideStreamer(i do.Injector) (*service.Streamer, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewStreamer(cfg.Media.FFmpegPath, log.Logger), nil
}
