// Package api provides the service facades the CLI drives: read-only queue
// views, queue maintenance actions, manual delivery ingestion, and a status
// snapshot combining queue health with preflight results. Each facade wraps
// the narrow slice of store or collector behavior it needs behind a small
// interface so command tests can substitute fakes.
package api
