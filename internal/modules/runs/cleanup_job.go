package runs

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// CleanupJob removes expired runs from the cache.
type CleanupJob struct {
	repo    *Repository
	log     zerolog.Logger
	timeout time.Duration
}

// NewCleanupJob creates a new run cache cleanup job.
func NewCleanupJob(repo *Repository, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		repo:    repo,
		log:     log.With().Str("job", "run_cache_cleanup").Logger(),
		timeout: time.Minute,
	}
}

// Run executes the cleanup job.
func (j *CleanupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	deleted, err := j.repo.DeleteExpired(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to delete expired runs")
		return err
	}

	if deleted > 0 {
		j.log.Info().Int64("deleted", deleted).Msg("Run cache cleanup completed")
	}
	return nil
}

// Name returns the job name for scheduling and logging.
func (j *CleanupJob) Name() string {
	return "run_cache_cleanup"
}
