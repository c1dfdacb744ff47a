package tracking

import "context"

// Client is the production-tracking surface the ingest pipeline depends on.
// Calls are synchronous and carry no retry layer; timeouts come from the
// underlying transport. FindOne returns a nil entity when nothing matches.
type Client interface {
	FindOne(ctx context.Context, entityType string, filters []Filter, fields []string) (Entity, error)
	Find(ctx context.Context, entityType string, filters []Filter, fields []string) ([]Entity, error)
	Create(ctx context.Context, entityType string, data map[string]any) (Entity, error)
	Update(ctx context.Context, entityType string, id int64, data map[string]any, opts ...UpdateOption) (Entity, error)
	Delete(ctx context.Context, entityType string, id int64) error
	SchemaFieldRead(ctx context.Context, entityType, fieldName string) (map[string]any, error)
	SchemaFieldUpdate(ctx context.Context, entityType, fieldName string, properties map[string]any) error
}

// Multi-entity update modes for list-valued fields.
const (
	ModeAdd = "add"
	ModeSet = "set"
)

// UpdateOptions collects per-call update behavior.
type UpdateOptions struct {
	// MultiEntityModes maps a list-valued field name to "add" or "set".
	// Fields without a mode are replaced wholesale.
	MultiEntityModes map[string]string
}

// UpdateOption customizes one Update call.
type UpdateOption func(*UpdateOptions)

// WithMultiEntityMode sets the update mode for a list-valued field.
func WithMultiEntityMode(field, mode string) UpdateOption {
	return func(o *UpdateOptions) {
		if o.MultiEntityModes == nil {
			o.MultiEntityModes = make(map[string]string)
		}
		o.MultiEntityModes[field] = normalizeMode(mode)
	}
}

func buildUpdateOptions(opts []UpdateOption) UpdateOptions {
	var out UpdateOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&out)
		}
	}
	return out
}
