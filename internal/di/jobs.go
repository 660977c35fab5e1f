package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/xray/internal/config"
	"github.com/aristath/xray/internal/modules/runs"
	"github.com/aristath/xray/internal/scheduler"
)

// RegisterJobs creates the background jobs and schedules them.
// Returns JobInstances for manual triggering via API.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}
	if container.RunRepo == nil {
		return nil, fmt.Errorf("repositories must be initialized before jobs")
	}

	instances := &JobInstances{
		RunCacheCleanup:     runs.NewCleanupJob(container.RunRepo, log),
		CheckWALCheckpoints: scheduler.NewCheckWALCheckpointsJob(log, container.HistoryDB, container.CacheDB),
	}

	sched := scheduler.New(log)
	if err := sched.AddJob(cfg.CleanupSchedule, instances.RunCacheCleanup); err != nil {
		return nil, fmt.Errorf("failed to schedule %s: %w", instances.RunCacheCleanup.Name(), err)
	}
	if err := sched.AddJob(cfg.WALCheckpointSchedule, instances.CheckWALCheckpoints); err != nil {
		return nil, fmt.Errorf("failed to schedule %s: %w", instances.CheckWALCheckpoints.Name(), err)
	}
	container.Scheduler = sched

	return instances, nil
}
