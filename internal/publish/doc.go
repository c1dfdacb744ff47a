// Package publish implements the final pipeline stage: registering a
// PublishedFile record for a resolved item and linking it to a container
// entity derived from the item's snapshot type.
//
// The snapshot type decides everything. It maps through
// publish.snapshot_types to a container entity type (Element, Asset, ...),
// with "*" as the fallback and "(UNLINKED)" meaning no container at all.
// Containers are created with status "ip" and cleared once their published
// file is attached, so a crash mid-link leaves a visibly incomplete entity
// rather than a silently wrong one. When linking fails outright the stage
// undoes its own work: the published file is deleted and the container is
// deleted too, unless other published files already point at it.
package publish
