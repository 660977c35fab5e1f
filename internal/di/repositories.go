package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/xray/internal/modules/history"
	"github.com/aristath/xray/internal/modules/runs"
)

// InitializeRepositories creates the repositories over the open databases
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil || container.HistoryDB == nil || container.CacheDB == nil {
		return fmt.Errorf("databases must be initialized before repositories")
	}

	container.HistoryRepo = history.NewRepository(container.HistoryDB.Conn(), log)
	container.RunRepo = runs.NewRepository(container.CacheDB.Conn(), log)

	return nil
}
