package api

import (
	"context"

	"intake/internal/config"
	"intake/internal/preflight"
	"intake/internal/queue"
)

// StatusService builds the aggregate snapshot "intake status" renders.
type StatusService struct {
	cfg   *config.Config
	store QueueReader
}

// NewStatusService constructs the status facade.
func NewStatusService(cfg *config.Config, store QueueReader) *StatusService {
	if cfg == nil {
		return nil
	}
	return &StatusService{cfg: cfg, store: store}
}

// Snapshot runs the preflight checks and reads queue stats. A store error is
// reported through the snapshot's queue stats being nil, not as a failure,
// so status stays usable when the database is the broken piece.
func (s *StatusService) Snapshot(ctx context.Context) StatusSnapshot {
	snapshot := StatusSnapshot{
		QueueDB:   s.cfg.QueueDatabasePath(),
		Preflight: fromPreflight(preflight.RunAll(ctx, s.cfg)),
	}
	if s.store != nil {
		if stats, err := s.store.Stats(ctx); err == nil {
			snapshot.QueueStats = MergeQueueStats(stats)
		}
	}
	return snapshot
}

func fromPreflight(results []preflight.Result) []PreflightResult {
	if len(results) == 0 {
		return nil
	}
	out := make([]PreflightResult, 0, len(results))
	for _, r := range results {
		out = append(out, PreflightResult{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
	}
	return out
}

// statusOrder is the render order for queue stat tables.
var statusOrder = queue.AllStatuses()

// OrderedStatuses returns the canonical status display order.
func OrderedStatuses() []queue.Status {
	return statusOrder
}
