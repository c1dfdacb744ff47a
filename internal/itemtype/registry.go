package itemtype

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SnapshotTypeDefault is used when an item type definition does not name
// its own default snapshot type.
const SnapshotTypeDefault = "ingest"

// Definition describes one configured item type.
type Definition struct {
	Type                 string            `toml:"type"`
	TypeDisplay          string            `toml:"type_display"`
	Extensions           []string          `toml:"extensions"`
	WorkPathTemplate     string            `toml:"work_path_template"`
	ResolutionOrder      int               `toml:"resolution_order"`
	DefaultSnapshotType  string            `toml:"default_snapshot_type"`
	DefaultFields        map[string]string `toml:"default_fields"`
	ManifestFieldFilters map[string]string `toml:"manifest_field_filters"`
}

// Candidate pairs an item type with the resolution order and template used
// to rank it for a given path.
type Candidate struct {
	ResolutionOrder  int
	WorkPathTemplate string
	ItemType         string
}

// Registry holds the normalized item type definitions with their filters
// compiled. Build one per configuration load.
type Registry struct {
	defs    map[string]Definition
	order   []string
	filters map[string][]Filter
	logger  *slog.Logger
}

// NewRegistry normalizes and compiles the configured definitions. Duplicate
// type names, missing type names, and malformed filters are errors.
func NewRegistry(defs []Definition, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Registry{
		defs:    make(map[string]Definition, len(defs)),
		order:   make([]string, 0, len(defs)),
		filters: make(map[string][]Filter, len(defs)),
		logger:  logger,
	}
	for i, def := range defs {
		if strings.TrimSpace(def.Type) == "" {
			return nil, fmt.Errorf("item type %d: type name is required", i)
		}
		if _, exists := r.defs[def.Type]; exists {
			return nil, fmt.Errorf("item type %s: duplicate definition", def.Type)
		}
		if def.DefaultSnapshotType == "" {
			def.DefaultSnapshotType = SnapshotTypeDefault
		}
		if strings.TrimSpace(def.TypeDisplay) == "" {
			def.TypeDisplay = displayName(def.Type)
		}
		if def.DefaultFields == nil {
			def.DefaultFields = map[string]string{}
		}
		def.Extensions = normalizeExtensions(def.Extensions)

		filters, err := compileFilters(def.Type, def.ManifestFieldFilters)
		if err != nil {
			return nil, err
		}
		r.defs[def.Type] = def
		r.order = append(r.order, def.Type)
		r.filters[def.Type] = filters
	}
	return r, nil
}

func compileFilters(itemType string, raw map[string]string) ([]Filter, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	fields := make([]string, 0, len(raw))
	for field := range raw {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	filters := make([]Filter, 0, len(raw))
	for _, field := range fields {
		f, err := ParseFilter(field, raw[field])
		if err != nil {
			return nil, fmt.Errorf("item type %s: %w", itemType, err)
		}
		filters = append(filters, f)
	}
	return filters, nil
}

// displayName derives a human readable label from a type name, so
// "reference_movie" reads as "Reference Movie" in the tracking system.
func displayName(typeName string) string {
	label := strings.ReplaceAll(typeName, "_", " ")
	label = strings.ReplaceAll(label, "-", " ")
	return cases.Title(language.English).String(label)
}

func normalizeExtensions(extensions []string) []string {
	if len(extensions) == 0 {
		return nil
	}
	out := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			out = append(out, ext)
		}
	}
	return out
}

// Definition returns the normalized definition for an item type.
func (r *Registry) Definition(itemType string) (Definition, bool) {
	def, ok := r.defs[itemType]
	return def, ok
}

// Types returns the registered item type names in configuration order.
func (r *Registry) Types() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// CandidatesForPath builds the base candidate list for a delivery path:
// every definition whose extension list matches the path's extension, or
// that declares no extensions at all, ordered by resolution order.
func (r *Registry) CandidatesForPath(path string) []Candidate {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))

	var out []Candidate
	for _, name := range r.order {
		def := r.defs[name]
		if len(def.Extensions) > 0 && !extensionMatches(def.Extensions, ext) {
			continue
		}
		out = append(out, Candidate{
			ResolutionOrder:  def.ResolutionOrder,
			WorkPathTemplate: def.WorkPathTemplate,
			ItemType:         def.Type,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ResolutionOrder < out[j].ResolutionOrder
	})
	return out
}

func extensionMatches(extensions []string, ext string) bool {
	for _, candidate := range extensions {
		if candidate == ext {
			return true
		}
	}
	return false
}

// FilterCandidates re-ranks the base candidate list against manifest
// fields. A nil manifestFields map means the path was not collected from a
// manifest; in that mode any item type that declares filters is dropped.
//
// In manifest mode every candidate survives. Candidates carrying both a
// work path template and filters are scored: a full match lowers the
// resolution order by the match count, anything less pushes the candidate
// behind all others by adding the highest base resolution order. The final
// ordering is stable and prefers candidates with a template at equal order.
func (r *Registry) FilterCandidates(base []Candidate, manifestFields map[string]any) []Candidate {
	if len(base) == 0 {
		return nil
	}
	maxOrder := base[0].ResolutionOrder
	for _, cand := range base[1:] {
		if cand.ResolutionOrder > maxOrder {
			maxOrder = cand.ResolutionOrder
		}
	}

	out := make([]Candidate, 0, len(base))
	if manifestFields != nil {
		for _, cand := range base {
			filters := r.filters[cand.ItemType]
			if cand.WorkPathTemplate != "" && len(filters) > 0 {
				score := 0
				for _, f := range filters {
					value := manifestFields[f.Field]
					if f.Match(value) {
						score++
					}
					r.logger.Debug("manifest field filter evaluated",
						slog.String("item_type", cand.ItemType),
						slog.String("field", f.Field),
						slog.Any("value", value),
						slog.String("filter", f.Raw),
						slog.Int("match_score", score))
				}
				if score == len(filters) {
					cand.ResolutionOrder -= score
				} else {
					cand.ResolutionOrder += maxOrder
				}
			}
			out = append(out, cand)
		}
	} else {
		for _, cand := range base {
			if len(r.filters[cand.ItemType]) == 0 {
				out = append(out, cand)
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return sortKey(out[i], maxOrder) < sortKey(out[j], maxOrder)
	})
	return out
}

func sortKey(cand Candidate, maxOrder int) int {
	if cand.WorkPathTemplate == "" {
		return cand.ResolutionOrder
	}
	return cand.ResolutionOrder - maxOrder
}
