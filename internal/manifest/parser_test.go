package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"intake/internal/fieldmap"
)

const sampleManifest = `snapshots:
  - id: 101
    user: vendorbot
    name: sh010_comp
    version: 2
    status: snap
    file_types:
      main:
        files:
          - path: renders/sh010_comp_v002.1001.exr
          - path: renders/sh010_comp_v002.1002.exr
        frame_range: [1001, 1002]
      proxy:
        files:
          - path: proxy/sh010_comp_v002.mov
      exchange:
        files:
          - path: proxy/sh010_comp_v002.mov
notes:
  - id: 7
    note_type: kickoff
    body: Fix the edge matte on the left side.
    notes: client summary
    status: note
    note_links:
      - type: Version
        name: sh010_comp_v002
      - malformed entry
    attachments:
      - path: attachments/ref_annotation.jpg
      - path: /abs/ref2.jpg
  - id: 8
    note_type: dailies
    body: Second note without a paired version.
versions:
  - id: 501
    name: sh010_comp_v002
    status: version
    notes:
      - leftover
`

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "contents.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseSnapshotFileGroups(t *testing.T) {
	path := writeManifest(t, sampleManifest)
	base := filepath.Dir(path)

	doc, err := NewParser(fieldmap.DefaultMapping()).Parse(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Snapshots) != 1 {
		t.Fatalf("got %d snapshots", len(doc.Snapshots))
	}

	snap := doc.Snapshots[0]
	if snap.Fields["snapshot_id"] != 101 || snap.Fields["snapshot_user"] != "vendorbot" {
		t.Fatalf("snapshot fields not mapped: %#v", snap.Fields)
	}
	if snap.Fields["manifest_name"] != "sh010_comp" || snap.Fields["snapshot_version"] != 2 {
		t.Fatalf("snapshot fields not mapped: %#v", snap.Fields)
	}
	if _, ok := snap.Fields["file_types"]; ok {
		t.Fatal("file_types must be popped from snapshot fields")
	}

	// The frame sequence groups by directory, single files by full path,
	// and a path shared by two file types accumulates both tags.
	seqDir := filepath.Join(base, "renders")
	movPath := filepath.Join(base, "proxy", "sh010_comp_v002.mov")
	wantGroups := map[string][]string{
		seqDir:  {"main"},
		movPath: {"exchange", "proxy"},
	}
	if !reflect.DeepEqual(snap.FileGroups, wantGroups) {
		t.Fatalf("FileGroups = %#v, want %#v", snap.FileGroups, wantGroups)
	}
	if got := snap.GroupKeys(); len(got) != 2 || got[0] > got[1] {
		t.Fatalf("GroupKeys() not sorted: %v", got)
	}
}

func TestParseNoteMerge(t *testing.T) {
	path := writeManifest(t, sampleManifest)
	base := filepath.Dir(path)

	doc, err := NewParser(fieldmap.DefaultMapping()).Parse(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Notes) != 2 {
		t.Fatalf("got %d notes", len(doc.Notes))
	}

	note := doc.Notes[0]
	if note.Fields["client_note_id"] != 7 || note.Fields["content"] != "Fix the edge matte on the left side." {
		t.Fatalf("note fields not mapped: %#v", note.Fields)
	}
	if note.Fields["description"] != "client summary" {
		t.Fatalf("description = %v", note.Fields["description"])
	}
	// Snapshot fields override version fields override note fields.
	if note.Fields["status"] != "snap" {
		t.Fatalf("status = %v, want snapshot value", note.Fields["status"])
	}
	if note.Fields["client_version_id"] != 501 || note.Fields["version_name"] != "sh010_comp_v002" {
		t.Fatalf("version fields missing: %#v", note.Fields)
	}
	if note.Fields["snapshot_id"] != 101 || note.Fields["snapshot_version"] != 2 {
		t.Fatalf("snapshot fields missing: %#v", note.Fields)
	}
	if _, ok := note.Fields["file_types"]; ok {
		t.Fatal("merged snapshot fields must drop file_types")
	}
	// The version's own notes list must not leak into the merge.
	if _, ok := note.Fields["notes"]; ok {
		t.Fatal("version notes key must be dropped before mapping")
	}

	links := note.NoteLinks
	if len(links) != 1 || links["Version"]["name"] != "sh010_comp_v002" {
		t.Fatalf("NoteLinks = %#v", links)
	}
	if _, ok := note.Fields["ingest_note_links"]; !ok {
		t.Fatal("ingest_note_links must be surfaced in the fields")
	}

	wantAttachments := []string{
		filepath.Join(base, "attachments/ref_annotation.jpg"),
		"/abs/ref2.jpg",
	}
	if !reflect.DeepEqual(note.Attachments, wantAttachments) {
		t.Fatalf("Attachments = %v, want %v", note.Attachments, wantAttachments)
	}
	if note.GroupPath != wantAttachments[0] {
		t.Fatalf("GroupPath = %q", note.GroupPath)
	}
	if !reflect.DeepEqual(note.Fields["attachments"], wantAttachments) {
		t.Fatalf("attachments field = %#v", note.Fields["attachments"])
	}
}

func TestParseNoteIndexPastEitherList(t *testing.T) {
	path := writeManifest(t, sampleManifest)

	doc, err := NewParser(fieldmap.DefaultMapping()).Parse(path)
	if err != nil {
		t.Fatal(err)
	}

	// The second note has no positional pair (one snapshot, one version),
	// so neither contributes fields.
	note := doc.Notes[1]
	if note.Fields["client_note_id"] != 8 {
		t.Fatalf("note fields not mapped: %#v", note.Fields)
	}
	if _, ok := note.Fields["snapshot_id"]; ok {
		t.Fatal("unpaired note must not receive snapshot fields")
	}
	if _, ok := note.Fields["client_version_id"]; ok {
		t.Fatal("unpaired note must not receive version fields")
	}
	if got, ok := note.Fields["attachments"].([]string); !ok || len(got) != 0 {
		t.Fatalf("attachments field = %#v, want empty slice", note.Fields["attachments"])
	}
	if note.GroupPath != "" {
		t.Fatalf("GroupPath = %q, want empty", note.GroupPath)
	}
}

func TestParseVersionsKeepNotesKey(t *testing.T) {
	path := writeManifest(t, sampleManifest)

	doc, err := NewParser(fieldmap.DefaultMapping()).Parse(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Versions) != 1 {
		t.Fatalf("got %d versions", len(doc.Versions))
	}
	v := doc.Versions[0]
	if v.Fields["client_version_id"] != 501 || v.Fields["version_name"] != "sh010_comp_v002" {
		t.Fatalf("version fields not mapped: %#v", v.Fields)
	}
	if _, ok := v.Fields["notes"]; !ok {
		t.Fatal("standalone version records keep their notes key")
	}
}

func TestParseMissingFile(t *testing.T) {
	parser := NewParser(fieldmap.DefaultMapping())
	doc, err := parser.Parse(filepath.Join(t.TempDir(), "contents.yaml"))

	var readErr *ReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("err = %v, want *ReadError", err)
	}
	if doc == nil || !doc.Empty() {
		t.Fatal("failed parse must return an empty document")
	}
}

func TestParseInvalidYAML(t *testing.T) {
	path := writeManifest(t, "snapshots: [unterminated\n")
	doc, err := NewParser(fieldmap.DefaultMapping()).Parse(path)

	var readErr *ReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("err = %v, want *ReadError", err)
	}
	if !doc.Empty() {
		t.Fatal("failed parse must return an empty document")
	}
}

func TestParseMissingSnapshotsList(t *testing.T) {
	path := writeManifest(t, "notes: []\n")
	_, err := NewParser(fieldmap.DefaultMapping()).Parse(path)

	var readErr *ReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("err = %v, want *ReadError", err)
	}
}

func TestParseEmptySnapshotsList(t *testing.T) {
	path := writeManifest(t, "snapshots: []\n")
	doc, err := NewParser(fieldmap.DefaultMapping()).Parse(path)
	if err != nil {
		t.Fatal(err)
	}
	if !doc.Empty() {
		t.Fatal("document with no records should be empty")
	}
}
