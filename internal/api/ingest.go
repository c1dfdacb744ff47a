package api

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"intake/internal/config"
	"intake/internal/delivery"
	"intake/internal/queue"
)

// Ingestor expands a delivered path into queue items.
type Ingestor interface {
	ProcessPath(ctx context.Context, deliveryID, path string) ([]*queue.Item, error)
}

// IngestService drives manual delivery ingestion from the CLI. It claims the
// same per-delivery guard the daemon does, so a manual ingest and a watcher
// ingest of one delivery cannot interleave.
type IngestService struct {
	cfg      *config.Config
	ingestor Ingestor
}

// NewIngestService constructs the manual ingest facade.
func NewIngestService(cfg *config.Config, ingestor Ingestor) *IngestService {
	if cfg == nil || ingestor == nil {
		return nil
	}
	return &IngestService{cfg: cfg, ingestor: ingestor}
}

// Ingest collects one delivered path. The delivery ID defaults to the base
// name of the path's delivery root; pass deliveryID to override.
func (s *IngestService) Ingest(ctx context.Context, path, deliveryID string) (IngestSummary, error) {
	if s == nil {
		return IngestSummary{}, errors.New("ingest service unavailable")
	}
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return IngestSummary{}, errors.New("path is required")
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return IngestSummary{}, fmt.Errorf("resolve path: %w", err)
	}
	if deliveryID = strings.TrimSpace(deliveryID); deliveryID == "" {
		deliveryID = filepath.Base(abs)
	}

	guard, err := delivery.NewGuard(s.cfg.Paths.DataDir, deliveryID)
	if err != nil {
		return IngestSummary{}, fmt.Errorf("delivery guard: %w", err)
	}
	locked, err := guard.TryAcquire()
	if err != nil {
		return IngestSummary{}, fmt.Errorf("delivery guard: %w", err)
	}
	if !locked {
		return IngestSummary{}, fmt.Errorf("delivery %q is already being ingested", deliveryID)
	}
	defer guard.Release() //nolint:errcheck

	items, err := s.ingestor.ProcessPath(ctx, deliveryID, abs)
	if err != nil {
		return IngestSummary{}, err
	}
	return IngestSummary{DeliveryID: deliveryID, Items: FromQueueItems(items)}, nil
}
