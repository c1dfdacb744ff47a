package api_test

import (
	"context"
	"path/filepath"
	"testing"

	"intake/internal/api"
	"intake/internal/queue"
	"intake/internal/testsupport"
)

type stubIngestor struct {
	lastDelivery string
	lastPath     string
	items        []*queue.Item
	err          error
}

func (s *stubIngestor) ProcessPath(_ context.Context, deliveryID, path string) ([]*queue.Item, error) {
	s.lastDelivery = deliveryID
	s.lastPath = path
	return s.items, s.err
}

func TestIngestDefaultsDeliveryID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	ingestor := &stubIngestor{items: []*queue.Item{{ID: 1, DeliveryID: "VND_A", Name: "a.exr"}}}
	svc := api.NewIngestService(cfg, ingestor)

	root := filepath.Join(cfg.Paths.DeliveryDir, "VND_A")
	testsupport.WriteFile(t, filepath.Join(root, "a.exr"), "frame")

	summary, err := svc.Ingest(context.Background(), root, "")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if summary.DeliveryID != "VND_A" {
		t.Fatalf("expected delivery id from path base, got %q", summary.DeliveryID)
	}
	if ingestor.lastDelivery != "VND_A" || ingestor.lastPath != root {
		t.Fatalf("ingestor called with %q %q", ingestor.lastDelivery, ingestor.lastPath)
	}
	if len(summary.Items) != 1 || summary.Items[0].Name != "a.exr" {
		t.Fatalf("unexpected items %+v", summary.Items)
	}
}

func TestIngestRequiresPath(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	svc := api.NewIngestService(cfg, &stubIngestor{})
	if _, err := svc.Ingest(context.Background(), "  ", ""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestIngestExplicitDeliveryID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	ingestor := &stubIngestor{}
	svc := api.NewIngestService(cfg, ingestor)

	root := filepath.Join(cfg.Paths.DeliveryDir, "drop")
	testsupport.WriteFile(t, filepath.Join(root, "b.mov"), "data")

	if _, err := svc.Ingest(context.Background(), root, "VND_B"); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if ingestor.lastDelivery != "VND_B" {
		t.Fatalf("expected explicit delivery id, got %q", ingestor.lastDelivery)
	}
}
