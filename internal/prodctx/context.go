package prodctx

import (
	"encoding/json"
	"fmt"

	"intake/internal/queue"
	"intake/internal/tracking"
)

// Context is the production context resolved for one ingest item: where the
// item lands in the project hierarchy and which task it publishes against.
type Context struct {
	Project    *tracking.EntityRef  `json:"project,omitempty"`
	Entity     *tracking.EntityRef  `json:"entity,omitempty"`
	Step       *tracking.EntityRef  `json:"step,omitempty"`
	Task       *tracking.EntityRef  `json:"task,omitempty"`
	Additional []tracking.EntityRef `json:"additional,omitempty"`
}

// Empty reports whether nothing was resolved.
func (c Context) Empty() bool {
	return c.Project == nil && c.Entity == nil && c.Step == nil && c.Task == nil && len(c.Additional) == 0
}

// ContextFields renders the display map stored alongside the item so queue
// listings can show where an item resolved without decoding the full context.
func (c Context) ContextFields() map[string]any {
	fields := make(map[string]any)
	if c.Project != nil {
		fields["project"] = c.Project.Name
	}
	if c.Entity != nil {
		fields["entity"] = c.Entity.Name
		fields["entity_type"] = c.Entity.Type
	}
	if c.Step != nil {
		fields["step"] = c.Step.Name
	}
	if c.Task != nil {
		fields["task"] = c.Task.Name
	}
	if len(c.Additional) > 0 {
		names := make([]string, 0, len(c.Additional))
		for _, ref := range c.Additional {
			names = append(names, ref.Name)
		}
		fields["additional"] = names
	}
	return fields
}

// Encode serializes the context for queue storage.
func (c Context) Encode() (string, error) {
	if c.Empty() {
		return "", nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode context: %w", err)
	}
	return string(data), nil
}

// Decode deserializes a stored context. An empty payload decodes to the zero
// context.
func Decode(raw string) (Context, error) {
	if raw == "" {
		return Context{}, nil
	}
	var c Context
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Context{}, fmt.Errorf("decode context: %w", err)
	}
	return c, nil
}

// FromItem decodes the context stored on a queue item.
func FromItem(item *queue.Item) (Context, error) {
	return Decode(item.ContextJSON)
}

// Store writes the context and its display fields onto a queue item.
func Store(item *queue.Item, c Context) error {
	encoded, err := c.Encode()
	if err != nil {
		return err
	}
	item.ContextJSON = encoded
	return item.SetContextFields(c.ContextFields())
}
