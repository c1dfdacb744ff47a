// Package collector turns delivered files into queue items and resolves
// them. Collection walks a delivery (directory, manifest, or lone file),
// decides each file's item type from the configured definitions, and inserts
// pending queue items. The resolve stage then attaches a production context
// and the field set the publish stage needs.
package collector
