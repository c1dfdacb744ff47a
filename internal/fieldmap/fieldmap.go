// Package fieldmap renames vendor manifest keys to pipeline field names.
package fieldmap

// Table maps one field vocabulary onto another. Keys absent from the table
// pass through Apply unchanged, so partial tables are safe.
type Table map[string]string

// Apply returns a copy of record with every key renamed through the table.
// Unmapped keys keep their original name. The input map is not modified.
func (t Table) Apply(record map[string]any) map[string]any {
	if record == nil {
		return nil
	}
	out := make(map[string]any, len(record))
	for key, value := range record {
		if mapped, ok := t[key]; ok {
			out[mapped] = value
			continue
		}
		out[key] = value
	}
	return out
}

// Invert swaps keys and values. Rename tables are injective, so applying a
// table and then its inversion restores the original key set.
func (t Table) Invert() Table {
	out := make(Table, len(t))
	for key, value := range t {
		out[value] = key
	}
	return out
}

// Clone returns an independent copy of the table.
func (t Table) Clone() Table {
	if t == nil {
		return nil
	}
	out := make(Table, len(t))
	for key, value := range t {
		out[key] = value
	}
	return out
}

// Mapping groups the rename tables applied to the record families of a
// vendor manifest. File records carry only snapshot fields; note records
// merge fields from the note itself plus positionally paired snapshot and
// version records.
type Mapping struct {
	File FileTables `toml:"file"`
	Note NoteTables `toml:"note"`
}

// FileTables holds the tables applied to manifest file records.
type FileTables struct {
	Snapshots Table `toml:"snapshots"`
}

// NoteTables holds the tables applied to manifest note records.
type NoteTables struct {
	Notes     Table `toml:"notes"`
	Snapshots Table `toml:"snapshots"`
	Versions  Table `toml:"versions"`
}

// DefaultMapping returns the field vocabulary vendor deliveries use unless
// the configuration overrides a table. Overrides replace whole tables rather
// than merging into them.
func DefaultMapping() Mapping {
	return Mapping{
		File: FileTables{
			Snapshots: Table{
				"id":      "snapshot_id",
				"user":    "snapshot_user",
				"name":    "manifest_name",
				"version": "snapshot_version",
			},
		},
		Note: NoteTables{
			Notes: Table{
				"notes": "description",
				"name":  "snapshot_name",
				"body":  "content",
				"id":    "client_note_id",
			},
			Snapshots: Table{
				"id":      "snapshot_id",
				"user":    "snapshot_user",
				"name":    "manifest_name",
				"version": "snapshot_version",
			},
			Versions: Table{
				"id":   "client_version_id",
				"name": "version_name",
			},
		},
	}
}
