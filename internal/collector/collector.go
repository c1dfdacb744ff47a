package collector

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"intake/internal/config"
	"intake/internal/fileutil"
	"intake/internal/itemtype"
	"intake/internal/logging"
	"intake/internal/manifest"
	"intake/internal/pathtmpl"
	"intake/internal/queue"
	"intake/internal/services"
	"intake/internal/tracking"
)

// Collector turns delivered paths into queue items. Directories collect
// recursively with frame-sequence grouping, manifest files expand into the
// items their snapshots and notes describe, and anything else collects as a
// single file.
type Collector struct {
	cfg       *config.Config
	store     *queue.Store
	tracker   tracking.Client
	registry  *itemtype.Registry
	templates *pathtmpl.Set
	parser    *manifest.Parser
	logger    *slog.Logger

	ignoreExtensions map[string]bool
	ignoreFilenames  []*regexp.Regexp
}

// New builds a collector from configuration. Item type definitions,
// templates, ignore patterns, and default-field accessor references are all
// compiled here so a bad configuration fails before any delivery is touched.
func New(cfg *config.Config, store *queue.Store, tracker tracking.Client, logger *slog.Logger) (*Collector, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	componentLogger := logging.NewComponentLogger(logger, "collector")

	registry, err := cfg.ItemTypeRegistry(componentLogger)
	if err != nil {
		return nil, err
	}
	templates, err := cfg.TemplateSet()
	if err != nil {
		return nil, err
	}
	if err := validateDefaultFieldAccessors(cfg.ItemTypes); err != nil {
		return nil, err
	}

	ignoreExtensions := make(map[string]bool, len(cfg.Ingest.IgnoreExtensions))
	for _, ext := range cfg.Ingest.IgnoreExtensions {
		ignoreExtensions[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}
	ignoreFilenames := make([]*regexp.Regexp, 0, len(cfg.Ingest.IgnoreFilenames))
	for _, pattern := range cfg.Ingest.IgnoreFilenames {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("ignore_filenames pattern %q: %w", pattern, err)
		}
		ignoreFilenames = append(ignoreFilenames, re)
	}

	return &Collector{
		cfg:              cfg,
		store:            store,
		tracker:          tracker,
		registry:         registry,
		templates:        templates,
		parser:           manifest.NewParser(cfg.ManifestMappings),
		logger:           componentLogger,
		ignoreExtensions: ignoreExtensions,
		ignoreFilenames:  ignoreFilenames,
	}, nil
}

// ProcessPath collects path into queue items under the given delivery ID.
// Directories collect recursively, a file whose name contains the configured
// manifest file name parses as a manifest, anything else is a single file.
// Per-file problems log and skip; the returned error means the batch itself
// could not run.
func (c *Collector) ProcessPath(ctx context.Context, deliveryID, path string) ([]*queue.Item, error) {
	if strings.TrimSpace(deliveryID) == "" {
		return nil, services.Wrap(services.ErrValidation, "collect", "process path",
			"A delivery ID is required", nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "collect", "process path",
			fmt.Sprintf("Delivered path %s is not readable", path), err)
	}

	if info.IsDir() {
		return c.collectFolder(ctx, deliveryID, path, nil, nil)
	}
	if c.isManifest(path) {
		return c.collectManifest(ctx, deliveryID, path)
	}
	item, err := c.collectFile(ctx, deliveryID, path, nil, nil)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}
	return []*queue.Item{item}, nil
}

func (c *Collector) isManifest(path string) bool {
	name := c.cfg.Ingest.ManifestFileName
	return name != "" && strings.Contains(filepath.Base(path), name)
}

// collectFolder walks dir: frame runs become sequence items, the rest
// collect individually, subdirectories recurse.
func (c *Collector) collectFolder(ctx context.Context, deliveryID, dir string, manifestFields map[string]any, tags []map[string]any) ([]*queue.Item, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read delivery directory %s: %w", dir, err)
	}

	var names []string
	var subdirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			subdirs = append(subdirs, filepath.Join(dir, entry.Name()))
			continue
		}
		names = append(names, entry.Name())
	}

	var items []*queue.Item
	sequences, singles := fileutil.GroupFrameSequences(dir, names)
	for _, seq := range sequences {
		item, err := c.addFileItem(ctx, fileSpec{
			deliveryID:     deliveryID,
			path:           seq.Pattern,
			isSequence:     true,
			frames:         seq.Frames,
			manifestFields: manifestFields,
			tags:           tags,
		})
		if err != nil {
			return items, err
		}
		if item != nil {
			items = append(items, item)
		}
	}
	for _, single := range singles {
		if c.isManifest(single) {
			continue
		}
		item, err := c.collectFile(ctx, deliveryID, single, manifestFields, tags)
		if err != nil {
			return items, err
		}
		if item != nil {
			items = append(items, item)
		}
	}
	for _, subdir := range subdirs {
		nested, err := c.collectFolder(ctx, deliveryID, subdir, manifestFields, tags)
		if err != nil {
			return items, err
		}
		items = append(items, nested...)
	}
	return items, nil
}

func (c *Collector) collectFile(ctx context.Context, deliveryID, path string, manifestFields map[string]any, tags []map[string]any) (*queue.Item, error) {
	return c.addFileItem(ctx, fileSpec{
		deliveryID:     deliveryID,
		path:           path,
		manifestFields: manifestFields,
		tags:           tags,
	})
}

// fileSpec carries everything addFileItem needs to build one queue item.
// Note items preset itemType/template/attachments; file items resolve them
// from the item type registry.
type fileSpec struct {
	deliveryID     string
	path           string
	isSequence     bool
	frames         []string
	name           string
	itemType       string
	template       string
	description    string
	attachments    []string
	manifestFields map[string]any
	tags           []map[string]any
}

func (s fileSpec) fromManifest() bool { return s.manifestFields != nil }

func (c *Collector) addFileItem(ctx context.Context, spec fileSpec) (*queue.Item, error) {
	if c.shouldIgnore(spec) {
		return nil, nil
	}

	itemType := spec.itemType
	template := spec.template
	if itemType == "" {
		var ok bool
		itemType, template, ok = c.resolveItemType(spec)
		if !ok {
			c.logger.Warn("no item type claims delivered file",
				logging.String("path", spec.path),
				logging.Bool("is_sequence", spec.isSequence))
			return nil, nil
		}
	}

	name := spec.name
	if name == "" {
		name = filepath.Base(spec.path)
	}
	description := spec.description
	if description == "" && spec.fromManifest() {
		description = defaultDescription(time.Now())
	}

	item := &queue.Item{
		DeliveryID:           spec.deliveryID,
		Name:                 name,
		ItemType:             itemType,
		SourcePath:           spec.path,
		IsSequence:           spec.isSequence,
		Status:               queue.StatusPending,
		Description:          description,
		WorkPathTemplate:     template,
		ContextChangeAllowed: !spec.fromManifest(),
	}
	item.InitProgress("Collecting", "Queued for resolution")

	if err := item.SetSequencePaths(spec.frames); err != nil {
		return nil, err
	}
	if err := item.SetManifestFields(spec.manifestFields); err != nil {
		return nil, err
	}
	if err := item.SetTags(spec.tags); err != nil {
		return nil, err
	}
	if err := item.SetAttachments(spec.attachments); err != nil {
		return nil, err
	}

	fields := c.ResolveFields(item, "")
	if err := item.SetFields(fields); err != nil {
		return nil, err
	}

	existing, err := c.store.FindBySource(ctx, spec.deliveryID, spec.path)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		c.logger.Debug("delivered path already queued",
			logging.Int64("item_id", existing.ID),
			logging.String("path", spec.path))
		return existing, nil
	}

	inserted, err := c.store.Insert(ctx, item)
	if err != nil {
		return nil, err
	}
	c.logger.Info("collected delivery item",
		logging.Int64("item_id", inserted.ID),
		logging.String("item_type", itemType),
		logging.String("path", spec.path),
		logging.Bool("is_sequence", spec.isSequence),
		logging.Bool("from_manifest", spec.fromManifest()))
	return inserted, nil
}

// shouldIgnore applies the configured extension and filename ignore lists.
// Sequences log once for the whole frame run.
func (c *Collector) shouldIgnore(spec fileSpec) bool {
	base := filepath.Base(spec.path)
	ext := fileutil.Extension(spec.path)

	matched := ""
	if c.ignoreExtensions[ext] {
		matched = "extension " + ext
	} else {
		for _, re := range c.ignoreFilenames {
			if re.MatchString(base) {
				matched = "pattern " + re.String()
				break
			}
		}
	}
	if matched == "" {
		return false
	}

	attrs := []logging.Attr{
		logging.String("path", spec.path),
		logging.String("rule", matched),
	}
	if spec.isSequence {
		attrs = append(attrs, logging.Int("frame_count", len(spec.frames)))
		if len(spec.frames) > 0 {
			attrs = append(attrs,
				logging.String("first_frame", spec.frames[0]),
				logging.String("last_frame", spec.frames[len(spec.frames)-1]))
		}
	}
	c.logger.Warn("ignoring delivered file", logging.Args(attrs...)...)
	return true
}

// resolveItemType ranks the configured item types for the path and picks the
// first candidate whose work path template matches, falling back to the
// best-ranked candidate without a template.
func (c *Collector) resolveItemType(spec fileSpec) (itemType, template string, ok bool) {
	base := c.registry.CandidatesForPath(spec.path)
	candidates := c.registry.FilterCandidates(base, spec.manifestFields)

	fallback := ""
	for _, cand := range candidates {
		if cand.WorkPathTemplate == "" {
			if fallback == "" {
				fallback = cand.ItemType
			}
			continue
		}
		tmpl, found := c.templates.Get(cand.WorkPathTemplate)
		if !found {
			continue
		}
		if _, err := tmpl.Fields(c.matchPath(tmpl, spec.deliveryID, spec.path)); err == nil {
			return cand.ItemType, cand.WorkPathTemplate, true
		}
	}
	if fallback != "" {
		return fallback, "", true
	}
	return "", "", false
}

// matchPath is the form of path a template matches against: the base name
// for string templates, the delivery-relative path otherwise.
func (c *Collector) matchPath(tmpl pathtmpl.Template, deliveryID, path string) string {
	if tmpl.IsString() {
		return filepath.Base(path)
	}
	return fileutil.DeliveryRelative(deliveryID, path)
}

func defaultDescription(now time.Time) string {
	return "Created by intake on " + now.Format("2006-01-02")
}
