package publish_test

import (
	"context"
	"errors"
	"testing"

	"intake/internal/config"
	"intake/internal/prodctx"
	"intake/internal/publish"
	"intake/internal/queue"
	"intake/internal/services"
	"intake/internal/testsupport"
	"intake/internal/tracking"
)

func publishConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Tracking.ProjectName = "Atlas"
	cfg.Publish.SnapshotTypes = map[string]string{
		"ingest": "Element",
		"prop":   "Asset",
		"*":      config.UnlinkedEntityType,
	}
	cfg.Publish.LinkedEntityName = "{shot}_{element}"
	return cfg
}

func shotContext() prodctx.Context {
	project := tracking.EntityRef{Type: "Project", ID: 42, Name: "Atlas"}
	shot := tracking.EntityRef{Type: "Shot", ID: 7, Name: "SH010"}
	task := tracking.EntityRef{Type: "Task", ID: 9, Name: "Vendor"}
	sequence := tracking.EntityRef{Type: "Sequence", ID: 3, Name: "SEQ01"}
	return prodctx.Context{
		Project:    &project,
		Entity:     &shot,
		Task:       &task,
		Additional: []tracking.EntityRef{sequence},
	}
}

func resolvedItem(t *testing.T, fields map[string]any, itemCtx prodctx.Context) *queue.Item {
	t.Helper()
	item := &queue.Item{
		DeliveryID:  "VND_0300",
		Name:        "sh010_bg_v002",
		ItemType:    "plate",
		SourcePath:  "/deliveries/VND_0300/SH010_bg_v002.exr",
		Status:      queue.StatusResolved,
		Description: "Vendor plate",
	}
	if err := item.SetFields(fields); err != nil {
		t.Fatalf("set fields: %v", err)
	}
	if err := prodctx.Store(item, itemCtx); err != nil {
		t.Fatalf("store context: %v", err)
	}
	return item
}

func runPublish(t *testing.T, pub *publish.Publisher, item *queue.Item) error {
	t.Helper()
	ctx := context.Background()
	if err := pub.Prepare(ctx, item); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	return pub.Execute(ctx, item)
}

func TestPublisherExecuteLinksContainerEntity(t *testing.T) {
	cfg := publishConfig(t)
	tracker := tracking.NewMemory()
	pub, err := publish.New(cfg, tracker, nil)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}

	item := resolvedItem(t, map[string]any{
		"snapshot_type": "ingest",
		"name":          "sh010_bg_v002",
		"shot":          "SH010",
		"element":       "bg",
		"version":       "002",
	}, shotContext())

	if err := runPublish(t, pub, item); err != nil {
		t.Fatalf("execute: %v", err)
	}

	elements := tracker.All("Element")
	if len(elements) != 1 {
		t.Fatalf("expected one container entity, got %d", len(elements))
	}
	element := elements[0]
	if element["code"] != "SH010_bg" {
		t.Fatalf("unexpected container code: %v", element["code"])
	}
	if element["status"] != nil {
		t.Fatalf("container status not cleared: %v", element["status"])
	}
	if ref := tracking.RefFromValue(element["shot"]); ref.Type != "Shot" || ref.ID != 7 {
		t.Fatalf("container missing shot link: %+v", ref)
	}
	if ref := tracking.RefFromValue(element["sequence"]); ref.Type != "Sequence" || ref.ID != 3 {
		t.Fatalf("container missing sequence link: %+v", ref)
	}
	if ref := tracking.RefFromValue(element["project"]); ref.ID != 42 {
		t.Fatalf("container missing project: %+v", ref)
	}

	publishedFiles := tracker.All("PublishedFile")
	if len(publishedFiles) != 1 {
		t.Fatalf("expected one published file, got %d", len(publishedFiles))
	}
	published := publishedFiles[0]
	if published["code"] != "sh010_bg_v002" {
		t.Fatalf("unexpected published file code: %v", published["code"])
	}
	if published["version_number"] != 2 {
		t.Fatalf("unexpected version number: %v", published["version_number"])
	}
	if published["path"] != item.SourcePath {
		t.Fatalf("unexpected path: %v", published["path"])
	}
	if published["published_file_type"] != "Plate" {
		t.Fatalf("unexpected published file type: %v", published["published_file_type"])
	}
	if published["description"] != "Vendor plate" {
		t.Fatalf("unexpected description: %v", published["description"])
	}
	if published["element"] != "sh010_bg_v002" {
		t.Fatalf("additional field mapping missing: %v", published["element"])
	}
	if ref := tracking.RefFromValue(published["entity"]); ref.Type != "Shot" || ref.ID != 7 {
		t.Fatalf("published file missing entity link: %+v", ref)
	}
	if ref := tracking.RefFromValue(published["task"]); ref.Type != "Task" || ref.ID != 9 {
		t.Fatalf("published file missing task link: %+v", ref)
	}

	links, _ := element["published_files"].([]any)
	if len(links) != 1 {
		t.Fatalf("expected one published file link, got %v", element["published_files"])
	}
	if ref := tracking.RefFromValue(links[0]); ref.ID != published.ID() {
		t.Fatalf("container links wrong published file: %+v", ref)
	}

	storedEntity, err := item.LinkedEntity()
	if err != nil {
		t.Fatalf("linked entity: %v", err)
	}
	if ref := tracking.RefFromValue(storedEntity); ref.Type != "Element" || ref.ID != element.ID() {
		t.Fatalf("stored linked entity mismatch: %+v", ref)
	}
	storedPublish, err := item.PublishData()
	if err != nil {
		t.Fatalf("publish data: %v", err)
	}
	if ref := tracking.RefFromValue(storedPublish); ref.Type != "PublishedFile" || ref.ID != published.ID() {
		t.Fatalf("stored publish data mismatch: %+v", ref)
	}
	if item.ProgressPercent != 100 {
		t.Fatalf("expected completed progress, got %v", item.ProgressPercent)
	}
}

func TestPublisherExecuteUnlinkedSkipsContainer(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	tracker := tracking.NewMemory()
	pub, err := publish.New(cfg, tracker, nil)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}

	item := resolvedItem(t, map[string]any{"snapshot_type": "ingest"}, shotContext())
	if err := runPublish(t, pub, item); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if n := len(tracker.All("Element")) + len(tracker.All("Asset")); n != 0 {
		t.Fatalf("expected no container entities, got %d", n)
	}
	publishedFiles := tracker.All("PublishedFile")
	if len(publishedFiles) != 1 {
		t.Fatalf("expected one published file, got %d", len(publishedFiles))
	}
	if publishedFiles[0]["version_number"] != 1 {
		t.Fatalf("expected default version 1, got %v", publishedFiles[0]["version_number"])
	}
	storedEntity, err := item.LinkedEntity()
	if err != nil {
		t.Fatalf("linked entity: %v", err)
	}
	if len(storedEntity) != 0 {
		t.Fatalf("unlinked item should store no entity, got %v", storedEntity)
	}
}

func TestPublisherExecuteProvisionsAssetType(t *testing.T) {
	cfg := publishConfig(t)
	tracker := tracking.NewMemory()
	pub, err := publish.New(cfg, tracker, nil)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}

	item := resolvedItem(t, map[string]any{
		"snapshot_type": "prop",
		"shot":          "SH010",
		"element":       "table",
	}, shotContext())
	if err := runPublish(t, pub, item); err != nil {
		t.Fatalf("execute: %v", err)
	}

	props, err := tracker.SchemaFieldRead(context.Background(), "Asset", "asset_type")
	if err != nil {
		t.Fatalf("schema read: %v", err)
	}
	valid, _ := props["valid_values"].([]string)
	found := false
	for _, value := range valid {
		if value == "prop" {
			found = true
		}
	}
	if !found {
		t.Fatalf("asset type not provisioned: %v", props["valid_values"])
	}

	assets := tracker.All("Asset")
	if len(assets) != 1 {
		t.Fatalf("expected one asset, got %d", len(assets))
	}
	if assets[0]["asset_type"] != "prop" {
		t.Fatalf("unexpected asset type: %v", assets[0]["asset_type"])
	}
	if assets[0]["status"] != nil {
		t.Fatalf("asset status not cleared: %v", assets[0]["status"])
	}
}

func TestPublisherExecuteUpdatesExistingContainer(t *testing.T) {
	cfg := publishConfig(t)
	tracker := tracking.NewMemory()
	seeded := tracker.Seed("Element", map[string]any{
		"code":    "SH010_bg",
		"status":  "hold",
		"project": map[string]any{"type": "Project", "id": 42},
		"shot":    map[string]any{"type": "Shot", "id": 7},
	})
	pub, err := publish.New(cfg, tracker, nil)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}

	item := resolvedItem(t, map[string]any{
		"snapshot_type": "ingest",
		"shot":          "SH010",
		"element":       "bg",
		"version":       2,
	}, shotContext())
	if err := runPublish(t, pub, item); err != nil {
		t.Fatalf("execute: %v", err)
	}

	elements := tracker.All("Element")
	if len(elements) != 1 {
		t.Fatalf("expected update of the existing container, got %d entities", len(elements))
	}
	if elements[0].ID() != seeded.ID() {
		t.Fatalf("expected reuse of entity %d, got %d", seeded.ID(), elements[0].ID())
	}
	if elements[0]["status"] != nil {
		t.Fatalf("container status not cleared: %v", elements[0]["status"])
	}
	links, _ := elements[0]["published_files"].([]any)
	if len(links) != 1 {
		t.Fatalf("expected one published file link, got %v", elements[0]["published_files"])
	}
}

// linkFailTracker rejects the published-file link update while letting every
// other call through.
type linkFailTracker struct {
	*tracking.Memory
}

func (f *linkFailTracker) Update(ctx context.Context, entityType string, id int64, data map[string]any, opts ...tracking.UpdateOption) (tracking.Entity, error) {
	if _, ok := data["published_files"]; ok {
		return nil, errors.New("tracking service rejected the link")
	}
	return f.Memory.Update(ctx, entityType, id, data, opts...)
}

func TestPublisherExecuteUndoesOnLinkFailure(t *testing.T) {
	cfg := publishConfig(t)
	memory := tracking.NewMemory()
	pub, err := publish.New(cfg, &linkFailTracker{memory}, nil)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}

	item := resolvedItem(t, map[string]any{
		"snapshot_type": "ingest",
		"shot":          "SH010",
		"element":       "bg",
	}, shotContext())
	err = runPublish(t, pub, item)
	if err == nil {
		t.Fatal("expected link failure")
	}
	if services.FailureStatus(err) != queue.StatusFailed {
		t.Fatalf("link failure should be retryable, got %v", services.FailureStatus(err))
	}

	if n := len(memory.All("PublishedFile")); n != 0 {
		t.Fatalf("published file not undone, %d remain", n)
	}
	if n := len(memory.All("Element")); n != 0 {
		t.Fatalf("container entity not undone, %d remain", n)
	}
	storedEntity, _ := item.LinkedEntity()
	if len(storedEntity) != 0 {
		t.Fatalf("stored linked entity not cleared: %v", storedEntity)
	}
	storedPublish, _ := item.PublishData()
	if len(storedPublish) != 0 {
		t.Fatalf("stored publish data not cleared: %v", storedPublish)
	}
}

func TestPublisherUndoKeepsContainerWithLinkedFiles(t *testing.T) {
	cfg := publishConfig(t)
	memory := tracking.NewMemory()
	earlier := memory.Seed("PublishedFile", map[string]any{"code": "earlier_publish"})
	memory.Seed("Element", map[string]any{
		"code":            "SH010_bg",
		"project":         map[string]any{"type": "Project", "id": 42},
		"shot":            map[string]any{"type": "Shot", "id": 7},
		"published_files": []any{map[string]any{"type": "PublishedFile", "id": earlier.ID()}},
	})
	pub, err := publish.New(cfg, &linkFailTracker{memory}, nil)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}

	item := resolvedItem(t, map[string]any{
		"snapshot_type": "ingest",
		"shot":          "SH010",
		"element":       "bg",
	}, shotContext())
	if err := runPublish(t, pub, item); err == nil {
		t.Fatal("expected link failure")
	}

	elements := memory.All("Element")
	if len(elements) != 1 {
		t.Fatalf("container with existing links must survive undo, got %d", len(elements))
	}
	publishedFiles := memory.All("PublishedFile")
	if len(publishedFiles) != 1 || publishedFiles[0]["code"] != "earlier_publish" {
		t.Fatalf("only the earlier publish should remain: %v", publishedFiles)
	}
}

func TestPublisherExecuteRequiresSnapshotType(t *testing.T) {
	cfg := publishConfig(t)
	pub, err := publish.New(cfg, tracking.NewMemory(), nil)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}

	item := resolvedItem(t, map[string]any{"shot": "SH010"}, shotContext())
	err = runPublish(t, pub, item)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if services.FailureStatus(err) != queue.StatusReview {
		t.Fatalf("missing snapshot type should park for review, got %v", services.FailureStatus(err))
	}
}

func TestPublisherExecuteRejectsUnmappedSnapshotType(t *testing.T) {
	cfg := publishConfig(t)
	cfg.Publish.SnapshotTypes = map[string]string{"ingest": "Element"}
	pub, err := publish.New(cfg, tracking.NewMemory(), nil)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}

	item := resolvedItem(t, map[string]any{"snapshot_type": "mystery"}, shotContext())
	err = runPublish(t, pub, item)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if services.FailureStatus(err) != queue.StatusReview {
		t.Fatalf("unmapped snapshot type should park for review, got %v", services.FailureStatus(err))
	}
}

func TestPublisherExecuteRejectsUnparseableVersion(t *testing.T) {
	cfg := publishConfig(t)
	pub, err := publish.New(cfg, tracking.NewMemory(), nil)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}

	item := resolvedItem(t, map[string]any{
		"snapshot_type": "ingest",
		"shot":          "SH010",
		"element":       "bg",
		"version":       "final",
	}, shotContext())
	err = runPublish(t, pub, item)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

type unreachableTracker struct {
	*tracking.Memory
}

func (u *unreachableTracker) FindOne(ctx context.Context, entityType string, filters []tracking.Filter, fields []string) (tracking.Entity, error) {
	return nil, errors.New("connection refused")
}

func TestPublisherHealthCheck(t *testing.T) {
	cfg := publishConfig(t)
	pub, err := publish.New(cfg, tracking.NewMemory(), nil)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	health := pub.HealthCheck(context.Background())
	if !health.Ready || health.Name != "publisher" {
		t.Fatalf("unexpected health: %+v", health)
	}

	broken, err := publish.New(cfg, &unreachableTracker{tracking.NewMemory()}, nil)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	if health := broken.HealthCheck(context.Background()); health.Ready {
		t.Fatal("expected unhealthy publisher when tracking is unreachable")
	}
}
