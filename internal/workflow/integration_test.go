package workflow_test

import (
	"context"
	"path/filepath"
	"testing"

	"intake/internal/collector"
	"intake/internal/logging"
	"intake/internal/publish"
	"intake/internal/queue"
	"intake/internal/testsupport"
	"intake/internal/tracking"
	"intake/internal/workflow"
)

// TestManagerIngestsDeliveryEndToEnd drives a delivery file through the real
// stage handlers: collect to pending, resolve against the tracking service,
// and publish a container entity plus published file.
func TestManagerIngestsDeliveryEndToEnd(t *testing.T) {
	cfg := workflowConfig(t)
	cfg.Tracking.ProjectName = "Atlas"
	cfg.Publish.SnapshotTypes = map[string]string{"ingest": "Element"}
	cfg.Publish.LinkedEntityName = "{shot}_{element}"

	tracker := tracking.NewMemory()
	projectRef := map[string]any{"type": "Project", "id": int64(42)}
	tracker.Seed("Shot", map[string]any{
		"code":    "SH010",
		"name":    "SH010",
		"project": projectRef,
	})
	tracker.Seed("Step", map[string]any{
		"code":        "VENDOR",
		"name":        "Vendor",
		"short_name":  "vendor",
		"entity_type": "Shot",
	})

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	coll, err := collector.New(cfg, store, tracker, nil)
	if err != nil {
		t.Fatalf("collector.New: %v", err)
	}
	publisher, err := publish.New(cfg, tracker, nil)
	if err != nil {
		t.Fatalf("publish.New: %v", err)
	}

	notifier := &recordingNotifier{}
	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), notifier)
	mgr.ConfigureStages(workflow.StageSet{
		Resolver:  collector.NewResolver(coll, nil),
		Publisher: publisher,
	})

	path := filepath.Join(cfg.Paths.DeliveryDir, "VND_0500", "SH010_bg_v002.exr")
	testsupport.WriteFile(t, path, "frame")
	items, err := coll.ProcessPath(context.Background(), "VND_0500", path)
	if err != nil {
		t.Fatalf("ProcessPath: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("ProcessPath collected %d items, want 1", len(items))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(mgr.Stop)

	updated := waitForStatus(t, store, items[0].ID, queue.StatusCompleted)

	elements := tracker.All("Element")
	if len(elements) != 1 {
		t.Fatalf("tracker holds %d Element entities, want 1", len(elements))
	}
	if elements[0]["code"] != "SH010_bg" {
		t.Errorf("element code = %v, want SH010_bg", elements[0]["code"])
	}
	if elements[0]["status"] != nil {
		t.Errorf("element status = %v, want cleared", elements[0]["status"])
	}

	published := tracker.All("PublishedFile")
	if len(published) != 1 {
		t.Fatalf("tracker holds %d PublishedFile entities, want 1", len(published))
	}
	if published[0]["code"] != "SH010_bg_v002.exr" {
		t.Errorf("published file code = %v, want SH010_bg_v002.exr", published[0]["code"])
	}
	if published[0]["version_number"] != 2 {
		t.Errorf("published file version = %v, want 2", published[0]["version_number"])
	}
	if published[0]["path"] != path {
		t.Errorf("published file path = %v, want %v", published[0]["path"], path)
	}

	linked, err := updated.LinkedEntity()
	if err != nil {
		t.Fatalf("LinkedEntity: %v", err)
	}
	if ref := tracking.RefFromValue(linked); ref.Type != "Element" {
		t.Fatalf("linked entity ref = %v, want Element", linked)
	}
	if updated.ProgressPercent != 100 {
		t.Errorf("progress = %v, want 100", updated.ProgressPercent)
	}
}
