package tracking

import "strings"

// EntityRef is the compact reference form the tracking service uses to link
// entities to one another.
type EntityRef struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
}

// IsZero reports whether the reference points at nothing.
func (r EntityRef) IsZero() bool {
	return r.Type == "" && r.ID == 0
}

// Map renders the reference as the generic payload shape used in create and
// update bodies.
func (r EntityRef) Map() map[string]any {
	m := map[string]any{"type": r.Type, "id": r.ID}
	if r.Name != "" {
		m["name"] = r.Name
	}
	return m
}

// Entity is one tracking record as returned by the service.
type Entity map[string]any

// TypeName returns the entity's type field.
func (e Entity) TypeName() string {
	s, _ := e["type"].(string)
	return s
}

// ID returns the entity's integer identifier, 0 when absent.
func (e Entity) ID() int64 {
	return toInt64(e["id"])
}

// Name returns the entity's display name: the name field when present,
// otherwise code.
func (e Entity) Name() string {
	if s, ok := e["name"].(string); ok && s != "" {
		return s
	}
	s, _ := e["code"].(string)
	return s
}

// Ref builds the compact reference for this entity.
func (e Entity) Ref() EntityRef {
	return EntityRef{Type: e.TypeName(), ID: e.ID(), Name: e.Name()}
}

// RefFromValue coerces a generic payload value into an EntityRef. It accepts
// EntityRef, *EntityRef, Entity, and plain maps; anything else yields a zero
// reference.
func RefFromValue(value any) EntityRef {
	switch v := value.(type) {
	case EntityRef:
		return v
	case *EntityRef:
		if v == nil {
			return EntityRef{}
		}
		return *v
	case Entity:
		return v.Ref()
	case map[string]any:
		return Entity(v).Ref()
	default:
		return EntityRef{}
	}
}

func toInt64(value any) int64 {
	switch v := value.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case float32:
		return int64(v)
	default:
		return 0
	}
}

// Filter operators understood by the tracking service query API.
const (
	OpIs       = "is"
	OpIn       = "in"
	OpContains = "contains"
)

// Filter is one query condition.
type Filter struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	Value any    `json:"value"`
}

// Eq builds an equality filter.
func Eq(field string, value any) Filter {
	return Filter{Field: field, Op: OpIs, Value: value}
}

// In builds a membership filter.
func In(field string, values ...any) Filter {
	return Filter{Field: field, Op: OpIn, Value: values}
}

// Contains builds a containment filter: the list-valued field must include
// value.
func Contains(field string, value any) Filter {
	return Filter{Field: field, Op: OpContains, Value: value}
}

func normalizeMode(mode string) string {
	return strings.ToLower(strings.TrimSpace(mode))
}
