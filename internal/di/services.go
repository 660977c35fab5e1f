package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/xray/internal/config"
	"github.com/aristath/xray/internal/modules/xray"
)

// InitializeServices creates the analysis service. Price history backs requests
// without inline prices and the run repository backs the result cache.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container.HistoryRepo == nil || container.RunRepo == nil {
		return fmt.Errorf("repositories must be initialized before services")
	}

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return fmt.Errorf("invalid analysis defaults: %w", err)
	}

	container.XRayService = xray.NewService(engineCfg, container.HistoryRepo, container.RunRepo, cfg.RunTTL, log)

	log.Debug().
		Float64("stress_quantile", engineCfg.StressQuantile).
		Str("quantile_method", string(engineCfg.QuantileMethod)).
		Int("horizons", len(engineCfg.Horizons)).
		Dur("run_ttl", cfg.RunTTL).
		Msg("X-Ray service initialized")

	return nil
}
