// Package prodctx resolves delivered paths to a production context: the
// project, the entity the delivery belongs to, and the pipeline step and
// ingest task work is filed under. Context survives on queue items as JSON
// so later stages and retries see what resolution decided.
package prodctx
