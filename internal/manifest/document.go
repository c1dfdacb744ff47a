package manifest

import "sort"

// Document is the parse result of one vendor manifest.
type Document struct {
	Snapshots []SnapshotRecord
	Notes     []NoteRecord
	Versions  []VersionRecord
}

// Empty reports whether the document carries nothing to ingest.
func (d *Document) Empty() bool {
	return d == nil || (len(d.Snapshots) == 0 && len(d.Notes) == 0)
}

// SnapshotRecord is one delivered snapshot: its mapped fields plus the file
// groups extracted from the snapshot's file_types table. A group key is
// either a single absolute file path or, for frame sequences, the directory
// holding the sequence. The value lists the tag names accumulated for that
// key; a key collects one tag per file type that referenced it.
type SnapshotRecord struct {
	Fields     map[string]any
	FileGroups map[string][]string
}

// GroupKeys returns the file group keys in sorted order for deterministic
// iteration.
func (r SnapshotRecord) GroupKeys() []string {
	keys := make([]string, 0, len(r.FileGroups))
	for key := range r.FileGroups {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// NoteRecord is one delivered client note with fields merged from the
// positionally paired snapshot and version records. NoteLinks indexes the
// note's linked entities by their type; the same index is available in
// Fields under "ingest_note_links". GroupPath is the first attachment's
// absolute path, kept as the representative path for template resolution,
// and Fields["attachments"] always holds the full resolved list.
type NoteRecord struct {
	Fields      map[string]any
	NoteLinks   map[string]map[string]any
	Attachments []string
	GroupPath   string
}

// VersionRecord is one client version entry, mapped for inspection. Version
// fields reach note items through the positional merge, not through this
// record.
type VersionRecord struct {
	Fields map[string]any
}
