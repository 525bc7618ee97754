package store

import (
	"context"
	"log"
	"time"
)

const (
	defaultPruneEvery = time.Hour
	defaultMaxAge     = 7 * 24 * time.Hour
)

// Janitor prunes stale cached search rows on a schedule. With several
// replicas sharing a database, an optional LeaderElection keeps only one
// of them pruning.
type Janitor struct {
	Search *SearchStore
	// MaxAge is how long cached search rows are kept. Defaults to a week.
	MaxAge time.Duration
	// Every is the pruning interval. Defaults to an hour.
	Every time.Duration
	// Elector gates pruning to the elected leader when set.
	Elector *LeaderElection
}

// Run blocks until ctx is done, pruning on each tick.
func (j *Janitor) Run(ctx context.Context) {
	every := j.Every
	if every <= 0 {
		every = defaultPruneEvery
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.prune(ctx)
		}
	}
}

func (j *Janitor) prune(ctx context.Context) {
	if j.Elector != nil && !j.Elector.IsLeader() {
		return
	}
	maxAge := j.MaxAge
	if maxAge <= 0 {
		maxAge = defaultMaxAge
	}
	n, err := j.Search.PruneOlderThan(ctx, time.Now().Add(-maxAge))
	if err != nil {
		log.Printf("janitor: pruning search cache failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("janitor: pruned %d cached search rows", n)
	}
}
