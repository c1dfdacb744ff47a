package stage

import (
	"intake/internal/queue"
	"intake/internal/services"
)

// DecodeFields decodes the item's resolved field map. On failure it returns
// a services.ErrValidation suitable for stage Execute methods, so corrupt
// payloads park the item for review instead of retrying forever.
func DecodeFields(stageName string, item *queue.Item) (map[string]any, error) {
	fields, err := item.Fields()
	if err != nil {
		return nil, services.Wrap(
			services.ErrValidation, stageName, "decode fields",
			"Stored item fields are corrupt; re-ingest the delivery", err)
	}
	return fields, nil
}

// DecodeManifestFields decodes the manifest field snapshot with the same
// validation classification as DecodeFields.
func DecodeManifestFields(stageName string, item *queue.Item) (map[string]any, error) {
	fields, err := item.ManifestFields()
	if err != nil {
		return nil, services.Wrap(
			services.ErrValidation, stageName, "decode manifest fields",
			"Stored manifest fields are corrupt; re-ingest the delivery", err)
	}
	return fields, nil
}

// DecodeTags decodes the item's tag references with the same validation
// classification as DecodeFields.
func DecodeTags(stageName string, item *queue.Item) ([]map[string]any, error) {
	tags, err := item.Tags()
	if err != nil {
		return nil, services.Wrap(
			services.ErrValidation, stageName, "decode tags",
			"Stored tag references are corrupt; re-ingest the delivery", err)
	}
	return tags, nil
}
