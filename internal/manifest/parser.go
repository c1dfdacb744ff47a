package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.yaml.in/yaml/v3"

	"intake/internal/fieldmap"
)

// ReadError reports a manifest that could not be read or decoded.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read manifest %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Parser turns manifest files into Documents using the configured field
// mapping.
type Parser struct {
	mapping fieldmap.Mapping
}

// NewParser returns a parser bound to one field mapping.
func NewParser(mapping fieldmap.Mapping) *Parser {
	return &Parser{mapping: mapping}
}

type rawManifest struct {
	Snapshots []map[string]any `yaml:"snapshots"`
	Notes     []map[string]any `yaml:"notes"`
	Versions  []map[string]any `yaml:"versions"`
}

// Parse reads the manifest at path. On any read or decode failure it
// returns an empty document and a *ReadError.
func (p *Parser) Parse(path string) (*Document, error) {
	doc := &Document{}

	data, err := os.ReadFile(path)
	if err != nil {
		return doc, &ReadError{Path: path, Err: err}
	}
	var raw rawManifest
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return doc, &ReadError{Path: path, Err: err}
	}
	if raw.Snapshots == nil {
		return doc, &ReadError{Path: path, Err: errors.New("manifest has no snapshots list")}
	}

	baseDir := filepath.Dir(path)

	for _, snapshot := range raw.Snapshots {
		doc.Snapshots = append(doc.Snapshots, p.snapshotRecord(baseDir, snapshot))
	}
	for index, note := range raw.Notes {
		doc.Notes = append(doc.Notes, p.noteRecord(baseDir, note, index, raw.Snapshots, raw.Versions))
	}
	for _, version := range raw.Versions {
		doc.Versions = append(doc.Versions, VersionRecord{Fields: p.mapping.Note.Versions.Apply(version)})
	}
	return doc, nil
}

func (p *Parser) snapshotRecord(baseDir string, raw map[string]any) SnapshotRecord {
	fields := p.mapping.File.Snapshots.Apply(raw)
	fileTypes, _ := fields["file_types"].(map[string]any)
	delete(fields, "file_types")

	groups := make(map[string][]string)
	for _, tag := range sortedKeys(fileTypes) {
		spec, ok := fileTypes[tag].(map[string]any)
		if !ok {
			continue
		}
		paths := filePaths(spec["files"])
		if _, sequence := spec["frame_range"]; sequence {
			// A listed frame sequence is keyed by its directory; the full
			// sequence is rediscovered there at collect time.
			if len(paths) == 0 {
				continue
			}
			key := filepath.Dir(resolvePath(baseDir, paths[0]))
			groups[key] = append(groups[key], tag)
			continue
		}
		for _, path := range paths {
			key := resolvePath(baseDir, path)
			groups[key] = append(groups[key], tag)
		}
	}
	return SnapshotRecord{Fields: fields, FileGroups: groups}
}

func (p *Parser) noteRecord(baseDir string, raw map[string]any, index int, snapshots, versions []map[string]any) NoteRecord {
	fields := p.mapping.Note.Notes.Apply(raw)

	// A note_links list is additionally indexed by link type for nested
	// key access; the raw list passes through the mapping untouched.
	var links map[string]map[string]any
	if rawLinks, present := raw["note_links"]; present {
		links = make(map[string]map[string]any)
		list, _ := rawLinks.([]any)
		for _, entry := range list {
			link, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			linkType, _ := link["type"].(string)
			if linkType == "" {
				continue
			}
			links[linkType] = link
		}
		fields["ingest_note_links"] = links
	}

	// Notes pair positionally with snapshots and versions. When the index
	// runs past either list, neither contributes.
	var snapshotFields, versionFields map[string]any
	if index < len(snapshots) && index < len(versions) {
		rawVersion := make(map[string]any, len(versions[index]))
		for key, value := range versions[index] {
			if key == "notes" {
				continue
			}
			rawVersion[key] = value
		}
		versionFields = p.mapping.Note.Versions.Apply(rawVersion)

		snapshotFields = p.mapping.Note.Snapshots.Apply(snapshots[index])
		delete(snapshotFields, "file_types")
	}
	// Snapshot fields win over version fields win over note fields.
	for key, value := range versionFields {
		fields[key] = value
	}
	for key, value := range snapshotFields {
		fields[key] = value
	}

	attachments, _ := fields["attachments"].([]any)
	delete(fields, "attachments")

	resolved := make([]string, 0, len(attachments))
	groupPath := ""
	for _, entry := range attachments {
		attachment, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		path, _ := attachment["path"].(string)
		if path == "" {
			continue
		}
		abs := resolvePath(baseDir, path)
		if groupPath == "" {
			groupPath = abs
		}
		resolved = append(resolved, abs)
	}
	// Re-created as resolved paths for the publish stage, even when empty.
	fields["attachments"] = resolved

	return NoteRecord{Fields: fields, NoteLinks: links, Attachments: resolved, GroupPath: groupPath}
}

func filePaths(v any) []string {
	entries, _ := v.([]any)
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		file, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if path, _ := file["path"].(string); path != "" {
			out = append(out, path)
		}
	}
	return out
}

// resolvePath joins a manifest-relative path to the manifest's directory.
// Absolute paths win, matching classic path join semantics.
func resolvePath(baseDir, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(baseDir, path)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
