package collector

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"intake/internal/fileutil"
	"intake/internal/logging"
	"intake/internal/prodctx"
	"intake/internal/queue"
	"intake/internal/services"
	"intake/internal/stage"
	"intake/internal/tracking"
)

// Resolver is the stage handler that takes a pending item to resolved: it
// resolves the production context from the item's path, recomputes the
// item's fields, and records which template fields are still missing. Items
// that cannot resolve cleanly fail with a validation error so the workflow
// parks them for review instead of retrying.
type Resolver struct {
	collector *Collector
	logger    *slog.Logger

	mu         sync.Mutex
	contextRes *prodctx.Resolver
}

// NewResolver wraps a collector as the resolve stage. The tracking project
// is looked up lazily on first use so the daemon can start while the
// tracking service is unreachable.
func NewResolver(c *Collector, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Resolver{
		collector: c,
		logger:    logging.NewComponentLogger(logger, "resolver"),
	}
}

// Prepare marks the item as entering resolution.
func (r *Resolver) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, r.logger)
	item.InitProgress("Resolving", "Resolving fields and context")
	logger.Info("starting item resolution",
		logging.String("path", item.SourcePath),
		logging.String("item_type", item.ItemType))
	return nil
}

// Execute resolves the item. Context resolution failures and missing
// required fields both store what was resolved so far before failing, so a
// review of the item shows exactly how far it got.
func (r *Resolver) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, r.logger)

	contextRes, err := r.contextResolver(ctx)
	if err != nil {
		return err
	}

	item.SetProgress("Resolving", "Resolving production context", 25)
	seeds := seedsFromItem(item)
	var (
		resolved prodctx.Context
		ctxErr   error
	)
	if item.WorkPathTemplate != "" {
		matchPath := fileutil.DeliveryRelative(item.DeliveryID, item.SourcePath)
		resolved, ctxErr = contextRes.ResolveFromPath(ctx, item.WorkPathTemplate, matchPath, seeds)
	} else {
		resolved = contextRes.ContextFromSeeds(seeds)
	}
	if err := prodctx.Store(item, resolved); err != nil {
		return services.Wrap(services.ErrValidation, "resolve", "store context",
			"Resolved context could not be stored on the item", err)
	}

	item.SetProgress("Resolving", "Resolving item fields", 60)
	taskName := ""
	if resolved.Task != nil {
		taskName = resolved.Task.Name
	}
	fields := r.collector.ResolveFields(item, taskName)
	if err := item.SetFields(fields); err != nil {
		return services.Wrap(services.ErrValidation, "resolve", "store fields",
			"Resolved fields could not be stored on the item", err)
	}

	missing := r.missingFields(item, fields)
	if err := item.SetMissingFields(missing); err != nil {
		return services.Wrap(services.ErrValidation, "resolve", "store fields",
			"Missing field list could not be stored on the item", err)
	}

	if ctxErr != nil {
		return services.Wrap(services.ErrValidation, "resolve", "resolve context",
			fmt.Sprintf("Path %s does not resolve against template %s", item.SourcePath, item.WorkPathTemplate), ctxErr)
	}
	if len(missing) > 0 {
		return services.Wrap(services.ErrValidation, "resolve", "check required fields",
			fmt.Sprintf("Missing required fields: %s", strings.Join(missing, ", ")), nil)
	}

	item.SetProgressComplete("Resolving", "Resolution complete")
	logger.Info("item resolved",
		logging.String("item_type", item.ItemType),
		logging.Int("field_count", len(fields)),
		logging.Any("context", resolved.ContextFields()))
	return nil
}

// HealthCheck probes the tracking service with a cheap read.
func (r *Resolver) HealthCheck(ctx context.Context) stage.Health {
	const name = "resolver"
	if _, err := r.collector.tracker.FindOne(ctx, "Project", nil, []string{"id"}); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("tracking service unreachable: %v", err))
	}
	return stage.Healthy(name)
}

// contextResolver resolves the tracking project once and caches the
// production context resolver built around it.
func (r *Resolver) contextResolver(ctx context.Context) (*prodctx.Resolver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.contextRes != nil {
		return r.contextRes, nil
	}
	project, err := tracking.ResolveProject(ctx, r.collector.tracker, r.collector.cfg)
	if err != nil {
		return nil, err
	}
	r.contextRes = prodctx.NewResolver(r.collector.templates, r.collector.tracker, project, r.logger)
	return r.contextRes, nil
}

// missingFields lists the template fields resolution still has no value
// for. Items without a work path template have nothing to miss.
func (r *Resolver) missingFields(item *queue.Item, fields map[string]any) []string {
	if item.WorkPathTemplate == "" {
		return nil
	}
	tmpl, ok := r.collector.templates.Get(item.WorkPathTemplate)
	if !ok {
		return nil
	}
	missing := tmpl.Missing(fields)
	sort.Strings(missing)
	return missing
}

// seedsFromItem turns the item's stored context back into seed refs so
// re-resolution keeps earlier results when the path alone resolves less.
func seedsFromItem(item *queue.Item) []tracking.EntityRef {
	stored, err := prodctx.FromItem(item)
	if err != nil {
		return nil
	}
	var seeds []tracking.EntityRef
	for _, ref := range []*tracking.EntityRef{stored.Entity, stored.Step, stored.Task} {
		if ref != nil {
			seeds = append(seeds, *ref)
		}
	}
	seeds = append(seeds, stored.Additional...)
	return seeds
}
