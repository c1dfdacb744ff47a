package tracking

import (
	"context"
	"reflect"
	"sort"
	"sync"

	"intake/internal/services"
)

// Memory is an in-memory Client used by tests and dry-run ingestion. Field
// selection is ignored: full records come back. Schema fields auto-vivify on
// first read so dry runs never trip over an unprovisioned schema.
type Memory struct {
	mu      sync.Mutex
	nextID  int64
	records map[string]map[int64]Entity
	schema  map[string]map[string]map[string]any
}

// NewMemory returns an empty in-memory tracking service.
func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]map[int64]Entity),
		schema:  make(map[string]map[string]map[string]any),
	}
}

// Seed inserts a record directly, bypassing Create's context plumbing. For
// test setup.
func (m *Memory) Seed(entityType string, data map[string]any) Entity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insert(entityType, data)
}

// All returns every record of a type ordered by ID. For test assertions.
func (m *Memory) All(entityType string) []Entity {
	m.mu.Lock()
	defer m.mu.Unlock()

	byID := m.records[entityType]
	out := make([]Entity, 0, len(byID))
	for _, e := range byID {
		out = append(out, copyEntity(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (m *Memory) insert(entityType string, data map[string]any) Entity {
	m.nextID++
	e := copyEntity(Entity(data))
	e["type"] = entityType
	e["id"] = m.nextID
	if m.records[entityType] == nil {
		m.records[entityType] = make(map[int64]Entity)
	}
	m.records[entityType][m.nextID] = e
	return copyEntity(e)
}

// FindOne returns the first match by ID order, or nil when nothing matches.
func (m *Memory) FindOne(ctx context.Context, entityType string, filters []Filter, fields []string) (Entity, error) {
	matches, err := m.Find(ctx, entityType, filters, fields)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return matches[0], nil
}

// Find returns every matching record ordered by ID.
func (m *Memory) Find(ctx context.Context, entityType string, filters []Filter, fields []string) ([]Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Entity
	for _, e := range m.records[entityType] {
		if matchesAll(e, filters) {
			out = append(out, copyEntity(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

// Create inserts a new record and returns it with type and id assigned.
func (m *Memory) Create(ctx context.Context, entityType string, data map[string]any) (Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insert(entityType, data), nil
}

// Update modifies an existing record. List-valued fields honor the add/set
// multi-entity modes; add merges without duplicating references.
func (m *Memory) Update(ctx context.Context, entityType string, id int64, data map[string]any, opts ...UpdateOption) (Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	options := buildUpdateOptions(opts)

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.records[entityType][id]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "tracking", "update "+entityType, "entity does not exist", nil)
	}
	for key, value := range data {
		if options.MultiEntityModes[key] == ModeAdd {
			e[key] = mergeAdd(e[key], value)
			continue
		}
		e[key] = value
	}
	return copyEntity(e), nil
}

// Delete removes a record.
func (m *Memory) Delete(ctx context.Context, entityType string, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[entityType][id]; !ok {
		return services.Wrap(services.ErrNotFound, "tracking", "delete "+entityType, "entity does not exist", nil)
	}
	delete(m.records[entityType], id)
	return nil
}

// SchemaFieldRead returns the stored schema properties for a field, creating
// an empty property set on first access.
func (m *Memory) SchemaFieldRead(ctx context.Context, entityType, fieldName string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.schema[entityType] == nil {
		m.schema[entityType] = make(map[string]map[string]any)
	}
	props, ok := m.schema[entityType][fieldName]
	if !ok {
		props = make(map[string]any)
		m.schema[entityType][fieldName] = props
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out, nil
}

// SchemaFieldUpdate replaces the stored schema properties for a field.
func (m *Memory) SchemaFieldUpdate(ctx context.Context, entityType, fieldName string, properties map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.schema[entityType] == nil {
		m.schema[entityType] = make(map[string]map[string]any)
	}
	stored := make(map[string]any, len(properties))
	for k, v := range properties {
		stored[k] = v
	}
	m.schema[entityType][fieldName] = stored
	return nil
}

func matchesAll(e Entity, filters []Filter) bool {
	for _, f := range filters {
		if !matches(e, f) {
			return false
		}
	}
	return true
}

func matches(e Entity, f Filter) bool {
	value := e[f.Field]
	switch f.Op {
	case OpIs, "":
		return valuesEqual(value, f.Value)
	case OpIn:
		for _, candidate := range toList(f.Value) {
			if valuesEqual(value, candidate) {
				return true
			}
		}
		return false
	case OpContains:
		for _, element := range toList(value) {
			if valuesEqual(element, f.Value) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// valuesEqual compares loosely: entity references by (type, id), numbers
// across Go numeric types, everything else by deep equality.
func valuesEqual(a, b any) bool {
	ra, rb := RefFromValue(a), RefFromValue(b)
	if !ra.IsZero() || !rb.IsZero() {
		return ra.Type == rb.Type && ra.ID == rb.ID
	}
	if na, ok := toFloat(a); ok {
		nb, ok := toFloat(b)
		return ok && na == nb
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

func toList(value any) []any {
	switch v := value.(type) {
	case nil:
		return nil
	case []any:
		return v
	case []Entity:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out
	case []EntityRef:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out
	case []map[string]any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out
	default:
		return []any{v}
	}
}

func mergeAdd(existing, addition any) []any {
	var out []any
	appendUnique := func(v any) {
		for _, cur := range out {
			if valuesEqual(cur, v) {
				return
			}
		}
		out = append(out, v)
	}
	for _, v := range toList(existing) {
		appendUnique(v)
	}
	for _, v := range toList(addition) {
		appendUnique(v)
	}
	return out
}

func copyEntity(e Entity) Entity {
	out := make(Entity, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}
