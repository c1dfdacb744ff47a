// Package delivery discovers vendor deliveries in the drop directory.
//
// FindManifest locates the manifest file inside a dropped delivery, the
// Watcher turns filesystem activity into "delivery ready" callbacks once a
// drop has gone quiet for a full debounce window, and Guard serializes
// ingestion of one delivery across processes so the daemon and a manual CLI
// ingest cannot double-ingest the same drop.
package delivery
