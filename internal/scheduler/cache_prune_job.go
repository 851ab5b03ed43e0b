package scheduler

import (
	"github.com/rs/zerolog"
)

// CachePruner removes expired cache entries and reports how many were dropped
type CachePruner interface {
	PruneExpired() (int, error)
}

// CachePruneJob periodically drops expired price history cache files so the
// cache directory does not grow without bound.
type CachePruneJob struct {
	pruner CachePruner
	log    zerolog.Logger
}

// NewCachePruneJob creates the cache maintenance job
func NewCachePruneJob(pruner CachePruner, log zerolog.Logger) *CachePruneJob {
	return &CachePruneJob{
		pruner: pruner,
		log:    log.With().Str("job", "cache_prune").Logger(),
	}
}

// Name implements Job
func (j *CachePruneJob) Name() string {
	return "cache_prune"
}

// Run implements Job
func (j *CachePruneJob) Run() error {
	pruned, err := j.pruner.PruneExpired()
	if err != nil {
		return err
	}
	if pruned > 0 {
		j.log.Info().Int("pruned", pruned).Msg("Dropped expired cache entries")
	}
	return nil
}
