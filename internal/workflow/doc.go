// Package workflow advances queue items through the configured processing
// stages.
//
// The Manager polls the queue, reclaims stale work via heartbeats, and feeds
// items into registered stage handlers (resolver, publisher) while capturing
// progress and failure metadata. It also aggregates queue stats, calls stage
// health checks, and emits queue-level notifications when processing starts
// or completes.
//
// The workflow runs a single lane: one item at a time moves from pending
// through resolving and publishing to completed, so a delivery's items reach
// the tracking service serially and entity creation never races itself.
// Failures park items as failed or, for problems a retry cannot fix (bad
// manifest rows, missing configuration, unknown shots), as review.
//
// Add new lifecycle stages by extending StageSet, updating the queue status
// enums, and teaching the manager how to transition items; this package is the
// authoritative home for that coordination logic.
package workflow
