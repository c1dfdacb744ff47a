// Package manifest reads vendor delivery manifests into typed records.
//
// A manifest is a YAML document dropped at the root of a delivery package.
// It carries a required snapshots list plus optional notes and versions
// lists. File paths inside the manifest are relative to the manifest's own
// directory; parsing resolves them to absolute paths once so downstream
// stages never deal with the delivery layout again.
//
// Read or decode failures are reported as a *ReadError alongside an empty
// document: a bad manifest means "nothing to ingest", it must never abort a
// batch. Malformed nested structures inside an otherwise readable manifest
// degrade to skipped entries.
package manifest
