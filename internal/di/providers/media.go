package providers

import (
	"github.com/samber/do/v2"

	"github.com/homeflixapp/homeflix-server/internal/config"
	"github.com/homeflixapp/homeflix-server/internal/logger"
	"github.com/homeflixapp/homeflix-server/internal/media/images"
	"github.com/homeflixapp/homeflix-server/internal/probe"
)

// ProvideProber provides the ffprobe adapter.
func ProvideProber(i do.Injector) (*probe.Prober, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return probe.New(cfg.Media.FFprobePath, log.Logger), nil
}

// ProvideImageStorage provides the on-disk poster cache.
func ProvideImageStorage(i do.Injector) (*images.Storage, error) {
	cfg := do.MustInvoke[*config.Config](i)

	return images.NewStorage(cfg.PosterCachePath())
}

// ProvidePosterGenerator provides the poster frame extractor.
func ProvidePosterGenerator(i do.Injector) (*images.Generator, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	storage := do.MustInvoke[*images.Storage](i)

	return images.NewGenerator(
		storeHandle.Store, storage, cfg.Media.FFmpegPath, cfg.Media.PosterWidth, log.Logger), nil
}
