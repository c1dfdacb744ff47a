package api_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"intake/internal/api"
	"intake/internal/queue"
)

type stubReader struct {
	items   []*queue.Item
	stats   map[queue.Status]int
	byID    map[int64]*queue.Item
	listErr error
}

func (s *stubReader) List(_ context.Context, statuses ...queue.Status) ([]*queue.Item, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	if len(statuses) == 0 {
		return s.items, nil
	}
	var out []*queue.Item
	for _, item := range s.items {
		for _, status := range statuses {
			if item.Status == status {
				out = append(out, item)
			}
		}
	}
	return out, nil
}

func (s *stubReader) Stats(context.Context) (map[queue.Status]int, error) {
	return s.stats, nil
}

func (s *stubReader) GetByID(_ context.Context, id int64) (*queue.Item, error) {
	return s.byID[id], nil
}

func (s *stubReader) ItemsByDelivery(_ context.Context, deliveryID string) ([]*queue.Item, error) {
	var out []*queue.Item
	for _, item := range s.items {
		if item.DeliveryID == deliveryID {
			out = append(out, item)
		}
	}
	return out, nil
}

func sampleItem(id int64, status queue.Status) *queue.Item {
	return &queue.Item{
		ID:         id,
		DeliveryID: "VND_20260115",
		Name:       "sh010_plate_v001.exr",
		ItemType:   "plate",
		SourcePath: "/deliveries/VND_20260115/sh010_plate_v001.exr",
		Status:     status,
		CreatedAt:  time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
		FieldsJSON: `{"shot":"sh010","version":1}`,
		TagsJSON:   `[{"type":"Tag","id":3,"name":"main"}]`,
	}
}

func TestQueueServiceListFiltersStatus(t *testing.T) {
	reader := &stubReader{items: []*queue.Item{
		sampleItem(1, queue.StatusPending),
		sampleItem(2, queue.StatusCompleted),
	}}
	svc := api.NewQueueService(reader)

	items, err := svc.List(context.Background(), queue.StatusCompleted)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].ID != 2 {
		t.Fatalf("expected only completed item, got %+v", items)
	}
	if items[0].Status != string(queue.StatusCompleted) {
		t.Fatalf("unexpected status %q", items[0].Status)
	}
}

func TestQueueServiceListPropagatesError(t *testing.T) {
	reader := &stubReader{listErr: errors.New("boom")}
	svc := api.NewQueueService(reader)
	if _, err := svc.List(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestQueueServiceDescribeConvertsDetail(t *testing.T) {
	item := sampleItem(5, queue.StatusReview)
	item.NeedsReview = true
	item.ReviewReason = "missing shot context"
	reader := &stubReader{byID: map[int64]*queue.Item{5: item}}
	svc := api.NewQueueService(reader)

	dto, err := svc.Describe(context.Background(), 5)
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if dto == nil {
		t.Fatal("expected item")
	}
	if !dto.NeedsReview || dto.ReviewReason != "missing shot context" {
		t.Fatalf("review fields not converted: %+v", dto)
	}
	if len(dto.Tags) != 1 || dto.Tags[0] != "main" {
		t.Fatalf("expected tag names, got %v", dto.Tags)
	}
	if dto.CreatedAt == "" {
		t.Fatal("expected formatted created timestamp")
	}
}

func TestQueueServiceDescribeMissing(t *testing.T) {
	svc := api.NewQueueService(&stubReader{byID: map[int64]*queue.Item{}})
	dto, err := svc.Describe(context.Background(), 99)
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if dto != nil {
		t.Fatalf("expected nil for missing item, got %+v", dto)
	}
}

func TestQueueServiceStats(t *testing.T) {
	reader := &stubReader{stats: map[queue.Status]int{
		queue.StatusPending: 2,
		queue.StatusFailed:  1,
	}}
	svc := api.NewQueueService(reader)
	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats["pending"] != 2 || stats["failed"] != 1 {
		t.Fatalf("unexpected stats %v", stats)
	}
}

func TestQueueServiceListDelivery(t *testing.T) {
	other := sampleItem(3, queue.StatusPending)
	other.DeliveryID = "OTHER"
	reader := &stubReader{items: []*queue.Item{sampleItem(1, queue.StatusPending), other}}
	svc := api.NewQueueService(reader)

	items, err := svc.ListDelivery(context.Background(), "VND_20260115")
	if err != nil {
		t.Fatalf("list delivery: %v", err)
	}
	if len(items) != 1 || items[0].DeliveryID != "VND_20260115" {
		t.Fatalf("unexpected delivery filter result %+v", items)
	}
}
