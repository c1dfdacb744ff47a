// Package tracking is the client surface for the production tracking
// service. The pipeline talks to it through the Client interface: entity
// search and CRUD plus schema field access, all synchronous with no retry
// layer. HTTPClient is the JSON REST implementation; Memory backs tests and
// dry-run ingestion.
package tracking
