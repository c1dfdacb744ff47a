package api

import (
	"context"

	"intake/internal/queue"
)

// QueueMutator abstracts the store mutations the maintenance actions drive.
type QueueMutator interface {
	Clear(ctx context.Context) (int64, error)
	ClearCompleted(ctx context.Context) (int64, error)
	ClearFailed(ctx context.Context) (int64, error)
	RetryFailed(ctx context.Context, ids ...int64) (int64, error)
	ResetStuckProcessing(ctx context.Context) (int64, error)
	Remove(ctx context.Context, id int64) (bool, error)
	Health(ctx context.Context) (queue.HealthSummary, error)
}

// QueueActions bundles queue maintenance operations for the CLI.
type QueueActions struct {
	store QueueMutator
}

// NewQueueActions constructs queue maintenance actions around a store.
func NewQueueActions(store QueueMutator) *QueueActions {
	if store == nil {
		return nil
	}
	return &QueueActions{store: store}
}

// Clear removes all queue items and reports the removed count.
func (a *QueueActions) Clear(ctx context.Context) (int64, error) {
	return a.store.Clear(ctx)
}

// ClearCompleted removes completed items only.
func (a *QueueActions) ClearCompleted(ctx context.Context) (int64, error) {
	return a.store.ClearCompleted(ctx)
}

// ClearFailed removes failed items only.
func (a *QueueActions) ClearFailed(ctx context.Context) (int64, error) {
	return a.store.ClearFailed(ctx)
}

// Retry returns failed and review items (optionally a subset by id) to
// pending.
func (a *QueueActions) Retry(ctx context.Context, ids ...int64) (int64, error) {
	return a.store.RetryFailed(ctx, ids...)
}

// ResetStuck rolls in-flight items back to the start of their stage.
func (a *QueueActions) ResetStuck(ctx context.Context) (int64, error) {
	return a.store.ResetStuckProcessing(ctx)
}

// Remove deletes one queue item by id.
func (a *QueueActions) Remove(ctx context.Context, id int64) (bool, error) {
	return a.store.Remove(ctx, id)
}

// Health reports aggregate queue diagnostics.
func (a *QueueActions) Health(ctx context.Context) (queue.HealthSummary, error) {
	return a.store.Health(ctx)
}
