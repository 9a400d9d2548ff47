package providers

import (
	"github.com/samber/do/v2"

	"github.com/homeflixapp/homeflix-server/internal/config"
	"github.com/homeflixapp/homeflix-server/internal/logger"
)

// ProvideConfig loads the server configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the application logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Format:      cfg.Logger.Format,
		Environment: cfg.App.Environment,
		Level:       logger.ParseLevel(cfg.Logger.Level),
	})

	log.Info("Logger initialized",
		"environment", cfg.App.Environment, "level", cfg.Logger.Level)

	return log, nil
}
