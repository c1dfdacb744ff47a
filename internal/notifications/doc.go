// Package notifications pushes ingest milestones to operators.
//
// The default implementation publishes to an ntfy topic from config.toml and
// degrades to a no-op when no topic is configured, so callers never branch on
// whether notifications are enabled. Event types cover the delivery lifecycle
// (detected, ingest started, item published, review needed, errors, queue
// drained) and each renders with its own title, tags, and priority.
//
// The watcher, daemon, and workflow manager depend only on the Service
// interface; alternative transports slot in behind it.
package notifications
