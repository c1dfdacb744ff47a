package delivery

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

// Guard is a cross-process lock for one delivery. The daemon watcher and a
// manual CLI ingest both acquire the guard before collecting, so the same
// drop is never ingested twice concurrently. The lock file lives under the
// data directory and is keyed by delivery ID.
type Guard struct {
	path string
	lock *flock.Flock
}

// NewGuard prepares the lock file for a delivery. The locks directory is
// created on first use.
func NewGuard(dataDir, deliveryID string) (*Guard, error) {
	dir := filepath.Join(dataDir, "locks")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	path := filepath.Join(dir, lockName(deliveryID))
	return &Guard{path: path, lock: flock.New(path)}, nil
}

// TryAcquire attempts to take the delivery lock without blocking. A false
// result means another process is ingesting this delivery right now.
func (g *Guard) TryAcquire() (bool, error) {
	ok, err := g.lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire delivery lock: %w", err)
	}
	return ok, nil
}

// Release drops the delivery lock.
func (g *Guard) Release() error {
	return g.lock.Unlock()
}

// Path returns the lock file location.
func (g *Guard) Path() string {
	return g.path
}

func lockName(deliveryID string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':':
			return '_'
		}
		return r
	}, strings.TrimSpace(deliveryID))
	if sanitized == "" {
		sanitized = "delivery"
	}
	return sanitized + ".lock"
}
