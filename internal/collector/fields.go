package collector

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"intake/internal/itemtype"
	"intake/internal/logging"
	"intake/internal/queue"
)

// itemAccessors is the closed registry of %name% attribute references
// allowed in item type default_fields values.
var itemAccessors = map[string]func(*queue.Item) any{
	"name":        func(i *queue.Item) any { return i.Name },
	"item_type":   func(i *queue.Item) any { return i.ItemType },
	"source_path": func(i *queue.Item) any { return i.SourcePath },
	"delivery_id": func(i *queue.Item) any { return i.DeliveryID },
	"description": func(i *queue.Item) any { return i.Description },
}

var accessorPattern = regexp.MustCompile(`^%(.+)%$`)

// frameToken strips the printf-style frame placeholder off sequence stems.
var frameToken = regexp.MustCompile(`\.?%0?\d*d$`)

func validateDefaultFieldAccessors(defs []itemtype.Definition) error {
	for _, def := range defs {
		for field, value := range def.DefaultFields {
			m := accessorPattern.FindStringSubmatch(value)
			if m == nil {
				continue
			}
			if _, ok := itemAccessors[m[1]]; !ok {
				return fmt.Errorf("item type %s: default field %s references unknown item attribute %q",
					def.Type, field, m[1])
			}
		}
	}
	return nil
}

// ResolveFields computes the item's fields from scratch: the work path
// template's extraction, then stored manifest fields (which always win),
// then a snapshot_type fallback and the item type's default fields for
// whatever is still missing. The resolve stage re-runs this on every pass,
// so field resolution must stay a pure function of the item's stored state.
//
// taskName, when known, guards against the item inheriting its display name
// from the vendor task; without the guard every manifest-less item would be
// named after the task it resolved to.
func (c *Collector) ResolveFields(item *queue.Item, taskName string) map[string]any {
	fields := map[string]any{
		"name": nameField(item),
	}

	if item.WorkPathTemplate != "" {
		if tmpl, ok := c.templates.Get(item.WorkPathTemplate); ok {
			matchPath := c.matchPath(tmpl, item.DeliveryID, item.SourcePath)
			extracted, err := tmpl.Fields(matchPath)
			if err != nil {
				c.logger.Debug("work path template no longer matches item path",
					logging.String("template", item.WorkPathTemplate),
					logging.String("path", matchPath))
			}
			for key, value := range extracted {
				fields[key] = value
			}
		}
	}

	if taskName != "" {
		if name, ok := fields["name"].(string); ok && name == sanitizeNameField(taskName) {
			delete(fields, "name")
		}
	}

	manifestFields, err := item.ManifestFields()
	if err != nil {
		c.logger.Warn("stored manifest fields are unreadable",
			logging.Int64("item_id", item.ID),
			logging.Error(err))
	}
	for key, value := range manifestFields {
		fields[key] = value
	}

	def, _ := c.registry.Definition(item.ItemType)
	if _, ok := fields["snapshot_type"]; !ok {
		snapshotType := def.DefaultSnapshotType
		if snapshotType == "" {
			snapshotType = itemtype.SnapshotTypeDefault
		}
		fields["snapshot_type"] = snapshotType
		c.logger.Debug("injected default snapshot_type",
			logging.String("item_type", item.ItemType),
			logging.String("snapshot_type", snapshotType))
	}
	for key, value := range def.DefaultFields {
		if _, ok := fields[key]; ok {
			continue
		}
		if m := accessorPattern.FindStringSubmatch(value); m != nil {
			if accessor, ok := itemAccessors[m[1]]; ok {
				fields[key] = accessor(item)
			}
			continue
		}
		fields[key] = value
	}
	return fields
}

// nameField derives the default name field from the item's path: the base
// name without extension, sequences additionally lose their frame token.
func nameField(item *queue.Item) string {
	base := filepath.Base(item.SourcePath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if item.IsSequence {
		base = frameToken.ReplaceAllString(base, "")
	}
	return sanitizeNameField(base)
}

func sanitizeNameField(value string) string {
	return url.QueryEscape(strings.ToLower(strings.ReplaceAll(strings.TrimSpace(value), " ", "_")))
}
