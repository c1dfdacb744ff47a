package testsupport

import (
	"context"
	"testing"

	"intake/internal/config"
	"intake/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewItem inserts a pending item for tests using the provided store.
func NewItem(t testing.TB, store *queue.Store, deliveryID, name, sourcePath string) *queue.Item {
	t.Helper()

	item, err := store.Insert(context.Background(), &queue.Item{
		DeliveryID: deliveryID,
		Name:       name,
		SourcePath: sourcePath,
	})
	if err != nil {
		t.Fatalf("store.Insert: %v", err)
	}
	return item
}
