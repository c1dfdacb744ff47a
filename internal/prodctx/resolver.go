package prodctx

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"intake/internal/logging"
	"intake/internal/pathtmpl"
	"intake/internal/tracking"
)

const (
	// vendorStepShortName is the pipeline step assigned to items whose path
	// names an entity but no step of its own.
	vendorStepShortName = "vendor"

	// taskStatusOnIngest is forced onto the ingest task every resolution so
	// re-deliveries reset tasks that artists already moved along.
	taskStatusOnIngest = "na"
)

// entityKeys lists the template fields that can name an item's primary
// entity, in priority order. The first match becomes the context entity;
// later matches land in Additional.
var entityKeys = []struct {
	field      string
	entityType string
}{
	{"shot", "Shot"},
	{"asset", "Asset"},
	{"sequence", "Sequence"},
}

// Resolver derives a production context from delivery paths. Lookups run
// against the tracking service scoped to a single project.
type Resolver struct {
	templates *pathtmpl.Set
	tracker   tracking.Client
	project   tracking.EntityRef
	logger    *slog.Logger
}

func NewResolver(templates *pathtmpl.Set, tracker tracking.Client, project tracking.EntityRef, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Resolver{
		templates: templates,
		tracker:   tracker,
		project:   project,
		logger:    logging.NewComponentLogger(logger, "prodctx"),
	}
}

// ResolveFromPath resolves the production context for path using the named
// work path template. Seed entities fill slots the path does not provide.
// Tracking failures degrade the context rather than fail it; the returned
// error is non-nil only when the template is unknown or the path does not
// match it, and even then the context carries whatever the seeds provided.
func (r *Resolver) ResolveFromPath(ctx context.Context, templateName, path string, seeds []tracking.EntityRef) (Context, error) {
	tmpl, ok := r.templates.Get(templateName)
	if !ok {
		out := r.baseContext()
		applySeeds(&out, seeds)
		return out, fmt.Errorf("unknown work path template %q", templateName)
	}

	matchPath := path
	if tmpl.IsString() {
		matchPath = filepath.Base(path)
	}

	resolved, err := r.resolveOnce(ctx, tmpl, matchPath, seeds)
	if err != nil {
		return resolved, fmt.Errorf("path %q does not match template %q: %w", matchPath, tmpl.Name(), err)
	}
	if resolved.Entity == nil {
		return resolved, nil
	}

	step := resolved.Step
	if step == nil {
		step = r.findVendorStep(ctx, resolved.Entity.Type)
	}
	if step == nil {
		return resolved, nil
	}
	resolved.Step = step

	task := r.findOrCreateTask(ctx, step, resolved)
	if task == nil {
		return resolved, nil
	}

	// Force the ingest status even on tasks that already existed. A failed
	// status write is not worth degrading the context over.
	if _, err := r.tracker.Update(ctx, "Task", task.ID, map[string]any{"status": taskStatusOnIngest}); err != nil {
		r.logger.Warn("ingest task status update failed",
			logging.Int64("task_id", task.ID),
			logging.Error(err))
	}

	extended := make([]tracking.EntityRef, 0, len(seeds)+2)
	extended = append(extended, seeds...)
	extended = append(extended, *step, *task)
	final, err := r.resolveOnce(ctx, tmpl, matchPath, extended)
	if err != nil {
		return resolved, nil
	}
	return final, nil
}

// ContextFromSeeds builds a context from seed refs alone, for items that
// carry no work path template.
func (r *Resolver) ContextFromSeeds(seeds []tracking.EntityRef) Context {
	out := r.baseContext()
	applySeeds(&out, seeds)
	return out
}

func (r *Resolver) baseContext() Context {
	out := Context{}
	if !r.project.IsZero() {
		project := r.project
		out.Project = &project
	}
	return out
}

// resolveOnce performs a single path-to-context pass: template fields are
// looked up against the tracking service, then seeds fill whatever remains
// empty.
func (r *Resolver) resolveOnce(ctx context.Context, tmpl pathtmpl.Template, path string, seeds []tracking.EntityRef) (Context, error) {
	out := r.baseContext()

	fields, err := tmpl.Fields(path)
	if err != nil {
		applySeeds(&out, seeds)
		return out, err
	}

	for _, candidate := range entityKeys {
		code := strings.TrimSpace(fields[candidate.field])
		if code == "" {
			continue
		}
		ref, lookupErr := r.findByCode(ctx, candidate.entityType, code)
		if lookupErr != nil {
			r.logger.Warn("entity lookup failed",
				logging.String("entity_type", candidate.entityType),
				logging.String("code", code),
				logging.Error(lookupErr))
			continue
		}
		if ref == nil {
			r.logger.Warn("no tracking entity for code",
				logging.String("entity_type", candidate.entityType),
				logging.String("code", code))
			continue
		}
		if out.Entity == nil {
			out.Entity = ref
		} else {
			out.Additional = appendUnique(out.Additional, *ref)
		}
	}

	if stepName := strings.TrimSpace(fields["step"]); stepName != "" && out.Entity != nil {
		if step := r.findStep(ctx, stepName, out.Entity.Type); step != nil {
			out.Step = step
		}
	}

	applySeeds(&out, seeds)
	return out, nil
}

func (r *Resolver) findByCode(ctx context.Context, entityType, code string) (*tracking.EntityRef, error) {
	filters := []tracking.Filter{tracking.Eq("code", code)}
	if !r.project.IsZero() {
		filters = append(filters, tracking.Eq("project", r.project))
	}
	entity, err := r.tracker.FindOne(ctx, entityType, filters, []string{"code"})
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, nil
	}
	ref := entity.Ref()
	return &ref, nil
}

// findStep resolves a pipeline step by short name scoped to the entity type
// it applies to. Failures and misses both return nil; the caller treats a
// missing step as "fall back to the vendor step".
func (r *Resolver) findStep(ctx context.Context, shortName, entityType string) *tracking.EntityRef {
	entity, err := r.tracker.FindOne(ctx, "Step",
		[]tracking.Filter{
			tracking.Eq("short_name", shortName),
			tracking.Eq("entity_type", entityType),
		},
		[]string{"code", "short_name", "entity_type"})
	if err != nil {
		r.logger.Warn("step lookup failed",
			logging.String("short_name", shortName),
			logging.String("entity_type", entityType),
			logging.Error(err))
		return nil
	}
	if entity == nil {
		r.logger.Warn("no pipeline step for short name",
			logging.String("short_name", shortName),
			logging.String("entity_type", entityType))
		return nil
	}
	ref := entity.Ref()
	if ref.Name == "" {
		ref.Name = shortName
	}
	return &ref
}

func (r *Resolver) findVendorStep(ctx context.Context, entityType string) *tracking.EntityRef {
	return r.findStep(ctx, vendorStepShortName, entityType)
}

// findOrCreateTask locates the ingest task for the step and entity, creating
// it when absent. A nil return means the item proceeds without a task.
func (r *Resolver) findOrCreateTask(ctx context.Context, step *tracking.EntityRef, c Context) *tracking.EntityRef {
	content := step.Name
	if content == "" {
		content = vendorStepShortName
	}

	filters := []tracking.Filter{
		tracking.Eq("step", *step),
		tracking.Eq("entity", *c.Entity),
		tracking.Eq("content", content),
	}
	if c.Project != nil {
		filters = append(filters, tracking.Eq("project", *c.Project))
	}
	entity, err := r.tracker.FindOne(ctx, "Task", filters, []string{"content"})
	if err != nil {
		r.logger.Warn("ingest task lookup failed",
			logging.String("content", content),
			logging.Error(err))
		return nil
	}
	if entity != nil {
		return taskRef(entity, content)
	}

	data := map[string]any{
		"step":    step.Map(),
		"entity":  c.Entity.Map(),
		"content": content,
		"status":  taskStatusOnIngest,
	}
	if c.Project != nil {
		data["project"] = c.Project.Map()
	}
	created, err := r.tracker.Create(ctx, "Task", data)
	if err != nil {
		r.logger.Error("ingest task creation failed",
			logging.String("content", content),
			logging.String("entity", c.Entity.Name),
			logging.Error(err))
		return nil
	}
	r.logger.Info("created ingest task",
		logging.Int64("task_id", created.ID()),
		logging.String("content", content),
		logging.String("entity", c.Entity.Name))
	return taskRef(created, content)
}

// taskRef builds a ref for a task entity. Tasks carry their display name in
// "content" rather than "name", so Ref alone comes back nameless.
func taskRef(entity tracking.Entity, content string) *tracking.EntityRef {
	ref := entity.Ref()
	if ref.Name == "" {
		ref.Name = content
	}
	return &ref
}

// applySeeds fills empty context slots from the seed refs. Entity-typed
// seeds that find the primary slot taken are kept as additional context.
func applySeeds(c *Context, seeds []tracking.EntityRef) {
	for _, seed := range seeds {
		if seed.IsZero() {
			continue
		}
		switch seed.Type {
		case "Project":
			if c.Project == nil {
				ref := seed
				c.Project = &ref
			}
		case "Step":
			if c.Step == nil {
				ref := seed
				c.Step = &ref
			}
		case "Task":
			if c.Task == nil {
				ref := seed
				c.Task = &ref
			}
		default:
			if c.Entity == nil {
				ref := seed
				c.Entity = &ref
			} else if !sameRef(*c.Entity, seed) {
				c.Additional = appendUnique(c.Additional, seed)
			}
		}
	}
}

func appendUnique(refs []tracking.EntityRef, ref tracking.EntityRef) []tracking.EntityRef {
	for _, existing := range refs {
		if sameRef(existing, ref) {
			return refs
		}
	}
	return append(refs, ref)
}

func sameRef(a, b tracking.EntityRef) bool {
	return a.Type == b.Type && a.ID == b.ID
}
