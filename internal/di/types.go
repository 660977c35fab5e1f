// Package di provides dependency injection wiring and initialization.
package di

import (
	"github.com/aristath/xray/internal/database"
	"github.com/aristath/xray/internal/modules/history"
	"github.com/aristath/xray/internal/modules/runs"
	"github.com/aristath/xray/internal/modules/xray"
	"github.com/aristath/xray/internal/scheduler"
)

// Container holds all application dependencies
type Container struct {
	// Databases
	HistoryDB *database.DB // Daily adjusted closes
	CacheDB   *database.DB // Persisted analysis runs, safe to delete

	// Repositories
	HistoryRepo *history.Repository
	RunRepo     *runs.Repository

	// Services
	XRayService *xray.Service

	// Background jobs
	Scheduler *scheduler.Scheduler
}

// JobInstances holds the registered jobs for manual triggering via API
type JobInstances struct {
	RunCacheCleanup     scheduler.Job
	CheckWALCheckpoints scheduler.Job
}

// All returns the registered jobs.
func (j *JobInstances) All() []scheduler.Job {
	return []scheduler.Job{j.RunCacheCleanup, j.CheckWALCheckpoints}
}

// Close closes every open database. Errors are ignored; it is called on shutdown paths.
func (c *Container) Close() {
	for _, db := range []*database.DB{c.HistoryDB, c.CacheDB} {
		if db != nil {
			_ = db.Close()
		}
	}
}
