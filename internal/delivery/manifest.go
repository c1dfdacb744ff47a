package delivery

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// FindManifest walks root for the first file whose base name contains
// manifestName, the same rule the collector applies when deciding whether a
// directly ingested file is a manifest. The walk is lexical, so the match is
// deterministic. An empty path with a nil error means the delivery carries
// no manifest.
func FindManifest(root, manifestName string) (string, error) {
	name := strings.TrimSpace(manifestName)
	if name == "" {
		return "", nil
	}

	var found string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if strings.Contains(d.Name(), name) {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scan delivery %s: %w", root, err)
	}
	return found, nil
}
