// Package daemon wires the delivery watcher and the workflow manager into a
// single supervised process. It enforces single-instance execution through a
// file lock, claims each ready delivery with a per-delivery guard before
// collection, and exposes a status snapshot for the CLI.
package daemon
