package collector

import (
	"context"
	"os"
	"sort"

	"intake/internal/logging"
	"intake/internal/manifest"
	"intake/internal/queue"
	"intake/internal/tracking"
)

// collectManifest expands a vendor manifest into queue items. Parse failures
// log and yield an empty batch; per-snapshot and per-note problems log and
// skip so one bad entry never sinks the delivery.
func (c *Collector) collectManifest(ctx context.Context, deliveryID, path string) ([]*queue.Item, error) {
	doc, err := c.parser.Parse(path)
	if err != nil {
		c.logger.Error("manifest unreadable",
			logging.String("path", path),
			logging.Error(err))
		return nil, nil
	}

	var items []*queue.Item
	for _, snapshot := range doc.Snapshots {
		collected, err := c.collectSnapshot(ctx, deliveryID, snapshot)
		if err != nil {
			return items, err
		}
		items = append(items, collected...)
	}
	for _, note := range doc.Notes {
		item, err := c.addNoteItem(ctx, deliveryID, note)
		if err != nil {
			return items, err
		}
		if item != nil {
			items = append(items, item)
		}
	}

	c.logger.Info("manifest collected",
		logging.String("path", path),
		logging.Int("snapshots", len(doc.Snapshots)),
		logging.Int("notes", len(doc.Notes)),
		logging.Int("items", len(items)))
	return items, nil
}

// collectSnapshot turns one snapshot's file groups into items. Each group
// resolves its tag names first, then collects as a folder or single file
// with the snapshot's merged fields riding along as manifest fields.
func (c *Collector) collectSnapshot(ctx context.Context, deliveryID string, snapshot manifest.SnapshotRecord) ([]*queue.Item, error) {
	var items []*queue.Item
	for _, key := range snapshot.GroupKeys() {
		tags := c.resolveTags(ctx, snapshot.FileGroups[key])
		fields := cloneFields(snapshot.Fields)
		if len(tags) > 0 {
			fields["tags"] = tags
		}

		info, err := os.Stat(key)
		if err != nil {
			c.logger.Warn("manifest references missing path",
				logging.String("path", key),
				logging.Error(err))
			continue
		}
		if info.IsDir() {
			collected, err := c.collectFolder(ctx, deliveryID, key, fields, tags)
			if err != nil {
				return items, err
			}
			items = append(items, collected...)
			continue
		}
		item, err := c.collectFile(ctx, deliveryID, key, fields, tags)
		if err != nil {
			return items, err
		}
		if item != nil {
			items = append(items, item)
		}
	}
	return items, nil
}

// resolveTags finds or creates a Tag entity per name. A failed creation
// logs and drops that one tag.
func (c *Collector) resolveTags(ctx context.Context, names []string) []map[string]any {
	if len(names) == 0 {
		return nil
	}
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	var tags []map[string]any
	for _, name := range sorted {
		entity, err := c.tracker.FindOne(ctx, "Tag",
			[]tracking.Filter{tracking.Eq("name", name)},
			[]string{"name"})
		if err != nil {
			c.logger.Error("tag lookup failed",
				logging.String("tag", name),
				logging.Error(err))
			continue
		}
		if entity == nil {
			entity, err = c.tracker.Create(ctx, "Tag", map[string]any{"name": name})
			if err != nil {
				c.logger.Error("tag creation failed",
					logging.String("tag", name),
					logging.Error(err))
				continue
			}
		}
		ref := entity.Ref()
		if ref.Name == "" {
			ref.Name = name
		}
		tags = append(tags, ref.Map())
	}
	return tags
}

// addNoteItem builds the item for one delivered note. The manifest note
// type maps through configuration to an item type; the note's fields are
// probed with the configured access-fallback key paths until one yields a
// representative path the item type's template matches. Notes are valid
// with zero attachments.
func (c *Collector) addNoteItem(ctx context.Context, deliveryID string, note manifest.NoteRecord) (*queue.Item, error) {
	rawType, _ := note.Fields["note_type"].(string)
	mapped, known := c.cfg.NoteTypes[rawType]
	if !known {
		c.logger.Error("manifest note type not recognized",
			logging.String("note_type", rawType),
			logging.Any("valid_types", c.cfg.NoteTypes))
		return nil, nil
	}

	def, ok := c.registry.Definition(mapped)
	if !ok || def.WorkPathTemplate == "" {
		c.logger.Error("note item type has no work path template",
			logging.String("item_type", mapped))
		return nil, nil
	}
	tmpl, ok := c.templates.Get(def.WorkPathTemplate)
	if !ok {
		c.logger.Error("note item type references unknown template",
			logging.String("item_type", mapped),
			logging.String("template", def.WorkPathTemplate))
		return nil, nil
	}

	for _, keys := range c.cfg.NoteTypeFallbacks[mapped] {
		value, found := nestedString(note.Fields, keys)
		if !found {
			c.logger.Warn("note access keys resolved no path",
				logging.Any("keys", keys))
			continue
		}
		reprPath := value + "." + mapped
		if _, err := tmpl.Fields(c.matchPath(tmpl, deliveryID, reprPath)); err != nil {
			c.logger.Warn("no matching template for note path",
				logging.String("path", reprPath),
				logging.String("template", def.WorkPathTemplate))
			continue
		}

		description, _ := note.Fields["snapshot_name"].(string)
		return c.addFileItem(ctx, fileSpec{
			deliveryID:     deliveryID,
			path:           reprPath,
			name:           reprPath + ".notes",
			itemType:       mapped,
			template:       def.WorkPathTemplate,
			description:    description,
			attachments:    note.Attachments,
			manifestFields: note.Fields,
		})
	}
	return nil, nil
}

// nestedString walks a key path through nested maps to a string value.
func nestedString(fields map[string]any, keys []string) (string, bool) {
	var current any = fields
	for _, key := range keys {
		switch node := current.(type) {
		case map[string]any:
			value, ok := node[key]
			if !ok {
				return "", false
			}
			current = value
		case map[string]map[string]any:
			value, ok := node[key]
			if !ok {
				return "", false
			}
			current = value
		default:
			return "", false
		}
	}
	value, ok := current.(string)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

func cloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for key, value := range fields {
		out[key] = value
	}
	return out
}
