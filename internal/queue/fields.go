package queue

import (
	"encoding/json"
	"fmt"
)

// JSON column accessors. Empty columns decode to nil; setting a nil or empty
// value clears the column. Decode errors identify the column so a corrupt
// payload can be traced back to the item.

func decodeMap(column, raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", column, err)
	}
	return out, nil
}

func decodeStrings(column, raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", column, err)
	}
	return out, nil
}

func decodeMapList(column, raw string) ([]map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var out []map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", column, err)
	}
	return out, nil
}

func encodeColumn(column string, value any, empty bool) (string, error) {
	if empty {
		return "", nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", column, err)
	}
	return string(data), nil
}

// Fields returns the item's resolved field map.
func (i *Item) Fields() (map[string]any, error) {
	return decodeMap("fields_json", i.FieldsJSON)
}

// SetFields replaces the item's resolved field map.
func (i *Item) SetFields(fields map[string]any) error {
	encoded, err := encodeColumn("fields_json", fields, len(fields) == 0)
	if err != nil {
		return err
	}
	i.FieldsJSON = encoded
	return nil
}

// ManifestFields returns the immutable manifest field snapshot taken at
// collection time.
func (i *Item) ManifestFields() (map[string]any, error) {
	return decodeMap("manifest_fields_json", i.ManifestFieldsJSON)
}

// SetManifestFields stores the manifest field snapshot.
func (i *Item) SetManifestFields(fields map[string]any) error {
	encoded, err := encodeColumn("manifest_fields_json", fields, len(fields) == 0)
	if err != nil {
		return err
	}
	i.ManifestFieldsJSON = encoded
	return nil
}

// MissingFields returns template keys still unresolved for this item.
func (i *Item) MissingFields() ([]string, error) {
	return decodeStrings("missing_fields_json", i.MissingFieldsJSON)
}

// SetMissingFields stores the unresolved template keys.
func (i *Item) SetMissingFields(fields []string) error {
	encoded, err := encodeColumn("missing_fields_json", fields, len(fields) == 0)
	if err != nil {
		return err
	}
	i.MissingFieldsJSON = encoded
	return nil
}

// ContextFields returns the display map describing the resolved context.
func (i *Item) ContextFields() (map[string]any, error) {
	return decodeMap("context_fields_json", i.ContextFieldsJSON)
}

// SetContextFields stores the context display map.
func (i *Item) SetContextFields(fields map[string]any) error {
	encoded, err := encodeColumn("context_fields_json", fields, len(fields) == 0)
	if err != nil {
		return err
	}
	i.ContextFieldsJSON = encoded
	return nil
}

// Context returns the serialized production context as a generic map. The
// prodctx package decodes ContextJSON into its typed form.
func (i *Item) Context() (map[string]any, error) {
	return decodeMap("context_json", i.ContextJSON)
}

// Tags returns the tag entity references attached to the item.
func (i *Item) Tags() ([]map[string]any, error) {
	return decodeMapList("tags_json", i.TagsJSON)
}

// SetTags stores the tag entity references.
func (i *Item) SetTags(tags []map[string]any) error {
	encoded, err := encodeColumn("tags_json", tags, len(tags) == 0)
	if err != nil {
		return err
	}
	i.TagsJSON = encoded
	return nil
}

// Attachments returns the absolute attachment paths for note items.
func (i *Item) Attachments() ([]string, error) {
	return decodeStrings("attachments_json", i.AttachmentsJSON)
}

// SetAttachments stores the attachment path list.
func (i *Item) SetAttachments(paths []string) error {
	encoded, err := encodeColumn("attachments_json", paths, len(paths) == 0)
	if err != nil {
		return err
	}
	i.AttachmentsJSON = encoded
	return nil
}

// SequencePaths returns the ordered frame paths for sequence items.
func (i *Item) SequencePaths() ([]string, error) {
	return decodeStrings("sequence_paths_json", i.SequencePathsJSON)
}

// SetSequencePaths stores the ordered frame paths.
func (i *Item) SetSequencePaths(paths []string) error {
	encoded, err := encodeColumn("sequence_paths_json", paths, len(paths) == 0)
	if err != nil {
		return err
	}
	i.SequencePathsJSON = encoded
	return nil
}

// PublishData returns the stored publish bookkeeping (published file refs).
func (i *Item) PublishData() (map[string]any, error) {
	return decodeMap("publish_data_json", i.PublishDataJSON)
}

// SetPublishData stores publish bookkeeping.
func (i *Item) SetPublishData(data map[string]any) error {
	encoded, err := encodeColumn("publish_data_json", data, len(data) == 0)
	if err != nil {
		return err
	}
	i.PublishDataJSON = encoded
	return nil
}

// LinkedEntity returns the container entity linked during publish.
func (i *Item) LinkedEntity() (map[string]any, error) {
	return decodeMap("linked_entity_json", i.LinkedEntityJSON)
}

// SetLinkedEntity stores the linked container entity.
func (i *Item) SetLinkedEntity(entity map[string]any) error {
	encoded, err := encodeColumn("linked_entity_json", entity, len(entity) == 0)
	if err != nil {
		return err
	}
	i.LinkedEntityJSON = encoded
	return nil
}
