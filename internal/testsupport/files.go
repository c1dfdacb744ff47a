package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates the target path with the given content, making parent
// directories as needed.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteManifest writes a manifest file into dir under the given name and
// returns its path.
func WriteManifest(t testing.TB, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	WriteFile(t, path, content)
	return path
}

// WriteFrames creates a numbered frame sequence (base.NNNN.ext) in dir and
// returns the paths in frame order.
func WriteFrames(t testing.TB, dir, base, ext string, start, count int) []string {
	t.Helper()

	paths := make([]string, 0, count)
	for i := 0; i < count; i++ {
		name := fmt.Sprintf("%s.%04d.%s", base, start+i, ext)
		path := filepath.Join(dir, name)
		WriteFile(t, path, "frame")
		paths = append(paths, path)
	}
	return paths
}
