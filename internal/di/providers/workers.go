package providers

import (
	"github.com/samber/do/v2"

	"github.com/homeflixapp/homeflix-server/internal/config"
	"github.com/homeflixapp/homeflix-server/internal/logger"
	"github.com/homeflixapp/homeflix-server/internal/service"
)

// TranscodeServiceHandle wraps the transcode service with shutdown capability.
type TranscodeServiceHandle struct {
	*service.TranscodeService
}

// Shutdown implements do.Shutdownable.
func (h *TranscodeServiceHandle) Shutdown() error {
	h.TranscodeService.Stop()
	return nil
}

// ProvideTranscodeService provides the HLS transcoding service.
func ProvideTranscodeService(i do.Injector) (*TranscodeServiceHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)

	svc, err := service.NewTranscodeService(
		storeHandle.Store, sseHandle.Manager, log.Logger,
		cfg.Media.FFmpegPath, cfg.HLSCachePath(),
		cfg.Transcode.SegmentSeconds, cfg.Transcode.Workers)
	if err != nil {
		return nil, err
	}

	svc.Start()

	log.Info("Transcode service started", "workers", cfg.Transcode.Workers)

	return &TranscodeServiceHandle{TranscodeService: svc}, nil
}
