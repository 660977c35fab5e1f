package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/xray/internal/config"
	"github.com/aristath/xray/internal/database"
)

// InitializeDatabases opens both databases and applies their schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// history.db - daily adjusted closes, expensive to rebuild
	historyDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath(database.HistoryDB),
		Profile: database.ProfileStandard,
		Name:    database.HistoryDB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize history database: %w", err)
	}
	container.HistoryDB = historyDB

	// cache.db - analysis runs, recomputable
	cacheDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath(database.CacheDB),
		Profile: database.ProfileCache,
		Name:    database.CacheDB,
	})
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize cache database: %w", err)
	}
	container.CacheDB = cacheDB

	for _, db := range []*database.DB{historyDB, cacheDB} {
		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to apply schema to %s: %w", db.Name(), err)
		}
	}

	log.Info().Str("data_dir", cfg.DataDir).Msg("Databases initialized and schemas applied")

	return container, nil
}
