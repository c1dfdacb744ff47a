package publish

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"intake/internal/config"
	"intake/internal/itemtype"
	"intake/internal/logging"
	"intake/internal/pathtmpl"
	"intake/internal/prodctx"
	"intake/internal/queue"
	"intake/internal/services"
	"intake/internal/stage"
	"intake/internal/tracking"
)

// statusInProgress marks a container entity that is being linked. The status
// clears once its published file is attached.
const statusInProgress = "ip"

// Publisher is the stage handler that takes a resolved item to completed: it
// registers a PublishedFile for the item and, when the item's snapshot type
// maps to a container entity type, finds or creates that container and links
// the published file to it. A failed link undoes both sides so the tracking
// service never holds a half-linked container.
type Publisher struct {
	cfg      *config.Config
	tracker  tracking.Client
	registry *itemtype.Registry
	nameTmpl *pathtmpl.Template
	logger   *slog.Logger

	mu      sync.Mutex
	project tracking.EntityRef
}

// New builds the publish stage from configuration.
func New(cfg *config.Config, tracker tracking.Client, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	componentLogger := logging.NewComponentLogger(logger, "publisher")

	registry, err := cfg.ItemTypeRegistry(componentLogger)
	if err != nil {
		return nil, err
	}

	p := &Publisher{
		cfg:      cfg,
		tracker:  tracker,
		registry: registry,
		logger:   componentLogger,
	}
	if pattern := cfg.Publish.LinkedEntityName; pattern != "" {
		tmpl, err := pathtmpl.Parse("publish.linked_entity_name", pattern)
		if err != nil {
			return nil, err
		}
		p.nameTmpl = &tmpl
	}
	return p, nil
}

// Prepare marks the item as entering the publish stage.
func (p *Publisher) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, p.logger)
	item.InitProgress("Publishing", "Publishing to the tracking service")
	logger.Info("starting item publish",
		logging.String("path", item.SourcePath),
		logging.String("item_type", item.ItemType))
	return nil
}

// Execute publishes the item. Bad stored state and unresolvable names are
// validation errors (the item parks for review); tracking service failures
// during linking are returned as-is so transient outages retry as failures.
func (p *Publisher) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, p.logger)

	fields, err := stage.DecodeFields("publish", item)
	if err != nil {
		return err
	}
	itemCtx, err := prodctx.FromItem(item)
	if err != nil {
		return services.Wrap(services.ErrValidation, "publish", "read context",
			"Stored production context is unreadable", err)
	}
	project, err := p.projectRef(ctx, itemCtx)
	if err != nil {
		return err
	}

	snapshotType, _ := fields["snapshot_type"].(string)
	if snapshotType == "" {
		return services.Wrap(services.ErrValidation, "publish", "resolve linked entity type",
			"Item has no snapshot_type field", nil)
	}
	linkedType, err := p.linkedEntityType(snapshotType)
	if err != nil {
		return err
	}

	var linked tracking.Entity
	linkedName := ""
	if linkedType != config.UnlinkedEntityType {
		linkedName, err = p.linkedEntityName(item, fields)
		if err != nil {
			return err
		}

		if linkedType == "Asset" {
			item.SetProgress("Publishing", "Updating asset type schema", 15)
			if err := p.ensureAssetType(ctx, snapshotType); err != nil {
				return services.Wrap(nil, "publish", "update asset type schema",
					fmt.Sprintf("Asset type %s could not be provisioned", snapshotType), err)
			}
		}

		item.SetProgress("Publishing", "Linking container entity", 35)
		linked, err = p.createOrUpdateLinkedEntity(ctx, linkedType, linkedName, snapshotType, project, itemCtx, logger)
		if err != nil {
			return err
		}
		if err := item.SetLinkedEntity(linked.Ref().Map()); err != nil {
			return services.Wrap(services.ErrValidation, "publish", "store linked entity",
				"Linked entity could not be stored on the item", err)
		}
	}

	item.SetProgress("Publishing", "Registering published file", 65)
	published, err := p.registerPublishedFile(ctx, item, fields, project, itemCtx)
	if err != nil {
		if linked != nil {
			p.undoLinkedEntity(ctx, linkedType, linkedName, snapshotType, project, itemCtx, item, logger)
		}
		return err
	}
	if err := item.SetPublishData(publishedFileData(published)); err != nil {
		return services.Wrap(services.ErrValidation, "publish", "store publish data",
			"Published file record could not be stored on the item", err)
	}

	if linked != nil {
		item.SetProgress("Publishing", "Linking published file", 85)
		if err := p.linkPublishedFile(ctx, linked, published); err != nil {
			p.undoPublishedFile(ctx, published, logger)
			p.undoLinkedEntity(ctx, linkedType, linkedName, snapshotType, project, itemCtx, item, logger)
			_ = item.SetPublishData(nil)
			_ = item.SetLinkedEntity(nil)
			return fmt.Errorf("link published file to %s %s: %w", linkedType, linkedName, err)
		}
		p.clearLinkedEntityStatus(ctx, linked, logger)
	}

	item.SetProgressComplete("Publishing", "Published")
	logger.Info("item published",
		logging.String("item_type", item.ItemType),
		logging.String("linked_entity_type", linkedType),
		logging.Int64("published_file_id", published.ID()))
	return nil
}

// HealthCheck probes the tracking service with a cheap read.
func (p *Publisher) HealthCheck(ctx context.Context) stage.Health {
	const name = "publisher"
	if _, err := p.tracker.FindOne(ctx, "Project", nil, []string{"id"}); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("tracking service unreachable: %v", err))
	}
	return stage.Healthy(name)
}

// projectRef prefers the project captured in the item's resolved context and
// falls back to the configured project, resolved once and cached.
func (p *Publisher) projectRef(ctx context.Context, itemCtx prodctx.Context) (tracking.EntityRef, error) {
	if itemCtx.Project != nil {
		return *itemCtx.Project, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.project.IsZero() {
		return p.project, nil
	}
	project, err := tracking.ResolveProject(ctx, p.tracker, p.cfg)
	if err != nil {
		return tracking.EntityRef{}, err
	}
	p.project = project
	return project, nil
}

// linkedEntityType maps the item's snapshot type onto the container entity
// type, honoring the "*" fallback.
func (p *Publisher) linkedEntityType(snapshotType string) (string, error) {
	if entityType, ok := p.cfg.Publish.SnapshotTypes[snapshotType]; ok {
		return entityType, nil
	}
	if entityType, ok := p.cfg.Publish.SnapshotTypes["*"]; ok {
		return entityType, nil
	}
	return "", services.Wrap(services.ErrConfiguration, "publish", "resolve linked entity type",
		fmt.Sprintf("No entity type is configured for snapshot type %q and no * fallback exists", snapshotType), nil)
}

// linkedEntityName renders the configured name template against the item's
// fields. Without a template the item's own name is used.
func (p *Publisher) linkedEntityName(item *queue.Item, fields map[string]any) (string, error) {
	if p.nameTmpl == nil {
		return item.Name, nil
	}
	name, err := p.nameTmpl.Apply(fields)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "publish", "build linked entity name",
			"Linked entity name template has unresolved fields", err)
	}
	return name, nil
}

// ensureAssetType adds the snapshot type to the Asset asset_type schema when
// it is not already a valid value.
func (p *Publisher) ensureAssetType(ctx context.Context, snapshotType string) error {
	props, err := p.tracker.SchemaFieldRead(ctx, "Asset", "asset_type")
	if err != nil {
		return fmt.Errorf("read Asset asset_type schema: %w", err)
	}
	valid := stringList(props["valid_values"])
	for _, value := range valid {
		if value == snapshotType {
			return nil
		}
	}
	valid = append(valid, snapshotType)
	if err := p.tracker.SchemaFieldUpdate(ctx, "Asset", "asset_type", map[string]any{"valid_values": valid}); err != nil {
		return fmt.Errorf("add asset type %s: %w", snapshotType, err)
	}
	p.logger.Info("registered new asset type", logging.String("asset_type", snapshotType))
	return nil
}

// findLinkedEntity locates the container entity for the item: scoped to the
// project and name, narrowed by the context entity's link field and, for
// Asset containers, the asset type.
func (p *Publisher) findLinkedEntity(ctx context.Context, linkedType, name, snapshotType string, project tracking.EntityRef, itemCtx prodctx.Context, extraFields ...string) (tracking.Entity, error) {
	filters := []tracking.Filter{
		tracking.Eq("project", project),
		tracking.Eq("code", name),
	}
	if itemCtx.Entity != nil {
		entity := *itemCtx.Entity
		switch entity.Type {
		case "Shot":
			filters = append(filters, tracking.Eq("shot", entity))
		case "Sequence":
			filters = append(filters, tracking.Eq("sequence", entity))
		case "Asset":
			switch linkedType {
			case "Asset":
				filters = append(filters, tracking.Contains("parents", entity))
			case "Element":
				filters = append(filters, tracking.Contains("assets", entity))
			}
		}
	}
	if linkedType == "Asset" {
		filters = append(filters, tracking.Eq("asset_type", snapshotType))
	}
	fields := append([]string{"code", "status"}, extraFields...)
	return p.tracker.FindOne(ctx, linkedType, filters, fields)
}

// createOrUpdateLinkedEntity finds the container entity and updates it, or
// creates it with status "ip" and the context link fields. Both the lookup
// and the write are fatal on failure: a half-linked container is worse than
// a failed item.
func (p *Publisher) createOrUpdateLinkedEntity(ctx context.Context, linkedType, name, snapshotType string, project tracking.EntityRef, itemCtx prodctx.Context, logger *slog.Logger) (tracking.Entity, error) {
	existing, err := p.findLinkedEntity(ctx, linkedType, name, snapshotType, project, itemCtx)
	if err != nil {
		return nil, fmt.Errorf("find linked %s %s: %w", linkedType, name, err)
	}

	data := map[string]any{
		"code":   name,
		"status": statusInProgress,
	}
	if linkedType == "Asset" {
		data["asset_type"] = snapshotType
	}
	if itemCtx.Entity != nil {
		entity := *itemCtx.Entity
		switch entity.Type {
		case "Shot":
			data["shot"] = entity.Map()
			if seq := refOfType(itemCtx.Additional, "Sequence"); seq != nil {
				data["sequence"] = seq.Map()
			}
		case "Sequence":
			data["sequence"] = entity.Map()
		case "Asset":
			if linkedType == "Asset" {
				data["parents"] = []any{entity.Map()}
				if seq := refOfType(itemCtx.Additional, "Sequence"); seq != nil {
					data["sequence"] = seq.Map()
				}
				if shot := refOfType(itemCtx.Additional, "Shot"); shot != nil {
					data["shot"] = shot.Map()
				}
			}
		}
	}

	if existing != nil {
		updated, err := p.tracker.Update(ctx, linkedType, existing.ID(), data,
			tracking.WithMultiEntityMode("shots", tracking.ModeAdd),
			tracking.WithMultiEntityMode("parents", tracking.ModeAdd))
		if err != nil {
			return nil, fmt.Errorf("update linked %s %s: %w", linkedType, name, err)
		}
		logger.Info("updated container entity",
			logging.String("entity_type", linkedType),
			logging.Int64("entity_id", updated.ID()))
		return updated, nil
	}

	data["project"] = project.Map()
	created, err := p.tracker.Create(ctx, linkedType, data)
	if err != nil {
		return nil, fmt.Errorf("create linked %s %s: %w", linkedType, name, err)
	}
	logger.Info("created container entity",
		logging.String("entity_type", linkedType),
		logging.Int64("entity_id", created.ID()))
	return created, nil
}

// registerPublishedFile creates the PublishedFile record for the item,
// carrying the context links and the configured additional fields.
func (p *Publisher) registerPublishedFile(ctx context.Context, item *queue.Item, fields map[string]any, project tracking.EntityRef, itemCtx prodctx.Context) (tracking.Entity, error) {
	version, err := publishVersion(fields)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "publish", "register published file",
			fmt.Sprintf("Item version %v is not a number", fields["version"]), err)
	}

	data := map[string]any{
		"code":           item.Name,
		"version_number": version,
		"path":           item.SourcePath,
		"project":        project.Map(),
	}
	if item.Description != "" {
		data["description"] = item.Description
	}
	if def, ok := p.registry.Definition(item.ItemType); ok && def.TypeDisplay != "" {
		data["published_file_type"] = def.TypeDisplay
	}
	if itemCtx.Entity != nil {
		data["entity"] = itemCtx.Entity.Map()
	}
	if itemCtx.Task != nil {
		data["task"] = itemCtx.Task.Map()
	}
	for itemField, publishField := range p.cfg.Publish.AdditionalFields {
		if value, ok := fields[itemField]; ok {
			data[publishField] = value
		}
	}

	published, err := p.tracker.Create(ctx, "PublishedFile", data)
	if err != nil {
		return nil, fmt.Errorf("register published file for %s: %w", item.Name, err)
	}
	return published, nil
}

// linkPublishedFile attaches the published file to the container entity in
// add mode so re-publishes never drop earlier links.
func (p *Publisher) linkPublishedFile(ctx context.Context, linked, published tracking.Entity) error {
	_, err := p.tracker.Update(ctx, linked.TypeName(), linked.ID(),
		map[string]any{"published_files": []any{published.Ref().Map()}},
		tracking.WithMultiEntityMode("published_files", tracking.ModeAdd))
	return err
}

// clearLinkedEntityStatus resets the container status once linking is done.
// A failed clear is logged and ignored; the link itself already succeeded.
func (p *Publisher) clearLinkedEntityStatus(ctx context.Context, linked tracking.Entity, logger *slog.Logger) {
	_, err := p.tracker.Update(ctx, linked.TypeName(), linked.ID(), map[string]any{"status": nil})
	if err != nil {
		logger.Error("clearing container entity status failed",
			logging.String("entity_type", linked.TypeName()),
			logging.Int64("entity_id", linked.ID()),
			logging.Error(err))
	}
}

// undoLinkedEntity deletes the container entity, but only when it holds no
// published file links; a container another run already linked stays. The
// stored linked entity is cleared either way.
func (p *Publisher) undoLinkedEntity(ctx context.Context, linkedType, name, snapshotType string, project tracking.EntityRef, itemCtx prodctx.Context, item *queue.Item, logger *slog.Logger) {
	live, err := p.findLinkedEntity(ctx, linkedType, name, snapshotType, project, itemCtx, "published_files")
	if err != nil || live == nil {
		logger.Error("undo could not re-read container entity",
			logging.String("entity_type", linkedType),
			logging.String("name", name),
			logging.Error(err))
		return
	}
	if links := listLen(live["published_files"]); links > 0 {
		logger.Warn("container entity kept during undo",
			logging.String("entity_type", linkedType),
			logging.Int64("entity_id", live.ID()),
			logging.Int("published_files", links))
		return
	}
	if err := p.tracker.Delete(ctx, linkedType, live.ID()); err != nil {
		logger.Error("deleting container entity failed",
			logging.String("entity_type", linkedType),
			logging.Int64("entity_id", live.ID()),
			logging.Error(err))
		return
	}
	_ = item.SetLinkedEntity(nil)
	logger.Info("undid container entity",
		logging.String("entity_type", linkedType),
		logging.Int64("entity_id", live.ID()))
}

// undoPublishedFile deletes a registered published file after a failed link.
func (p *Publisher) undoPublishedFile(ctx context.Context, published tracking.Entity, logger *slog.Logger) {
	if err := p.tracker.Delete(ctx, "PublishedFile", published.ID()); err != nil {
		logger.Error("deleting published file failed",
			logging.Int64("published_file_id", published.ID()),
			logging.Error(err))
	}
}

// publishVersion reads the publish version from the item fields, defaulting
// to 1 when absent.
func publishVersion(fields map[string]any) (int, error) {
	value, ok := fields["version"]
	if !ok || value == nil {
		return 1, nil
	}
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, err
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unsupported version value %T", value)
	}
}

// publishedFileData is the slice of the published file stored on the item
// for listings and retries.
func publishedFileData(published tracking.Entity) map[string]any {
	data := published.Ref().Map()
	if version, ok := published["version_number"]; ok {
		data["version_number"] = version
	}
	if path, ok := published["path"]; ok {
		data["path"] = path
	}
	return data
}

func refOfType(refs []tracking.EntityRef, entityType string) *tracking.EntityRef {
	for i := range refs {
		if refs[i].Type == entityType {
			return &refs[i]
		}
	}
	return nil
}

func stringList(value any) []string {
	switch v := value.(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, entry := range v {
			if s, ok := entry.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func listLen(value any) int {
	switch v := value.(type) {
	case nil:
		return 0
	case []any:
		return len(v)
	case []string:
		return len(v)
	case []map[string]any:
		return len(v)
	case []tracking.EntityRef:
		return len(v)
	case []tracking.Entity:
		return len(v)
	default:
		return 0
	}
}
