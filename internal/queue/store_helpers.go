package queue

import (
	"database/sql"
	"errors"
	"time"
)

const itemColumns = "id, delivery_id, name, item_type, source_path, is_sequence, sequence_paths_json, status, error_message, created_at, updated_at, progress_stage, progress_percent, progress_message, fields_json, manifest_fields_json, missing_fields_json, context_fields_json, context_json, tags_json, attachments_json, publish_data_json, linked_entity_json, context_change_allowed, description, work_path_template, last_heartbeat, needs_review, review_reason"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id                   int64
		deliveryID           sql.NullString
		name                 sql.NullString
		itemType             sql.NullString
		sourcePath           sql.NullString
		isSequence           sql.NullInt64
		sequencePaths        sql.NullString
		statusStr            string
		errorMessage         sql.NullString
		createdRaw           sql.NullString
		updatedRaw           sql.NullString
		progressStage        sql.NullString
		progressPercent      sql.NullFloat64
		progressMessage      sql.NullString
		fields               sql.NullString
		manifestFields       sql.NullString
		missingFields        sql.NullString
		contextFields        sql.NullString
		contextData          sql.NullString
		tags                 sql.NullString
		attachments          sql.NullString
		publishData          sql.NullString
		linkedEntity         sql.NullString
		contextChangeAllowed sql.NullInt64
		description          sql.NullString
		workPathTemplate     sql.NullString
		lastHeartbeatRaw     sql.NullString
		needsReview          sql.NullInt64
		reviewReason         sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&deliveryID,
		&name,
		&itemType,
		&sourcePath,
		&isSequence,
		&sequencePaths,
		&statusStr,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&fields,
		&manifestFields,
		&missingFields,
		&contextFields,
		&contextData,
		&tags,
		&attachments,
		&publishData,
		&linkedEntity,
		&contextChangeAllowed,
		&description,
		&workPathTemplate,
		&lastHeartbeatRaw,
		&needsReview,
		&reviewReason,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:                 id,
		DeliveryID:         deliveryID.String,
		Name:               name.String,
		ItemType:           itemType.String,
		SourcePath:         sourcePath.String,
		SequencePathsJSON:  sequencePaths.String,
		Status:             Status(statusStr),
		ErrorMessage:       errorMessage.String,
		ProgressStage:      progressStage.String,
		ProgressPercent:    progressPercent.Float64,
		ProgressMessage:    progressMessage.String,
		FieldsJSON:         fields.String,
		ManifestFieldsJSON: manifestFields.String,
		MissingFieldsJSON:  missingFields.String,
		ContextFieldsJSON:  contextFields.String,
		ContextJSON:        contextData.String,
		TagsJSON:           tags.String,
		AttachmentsJSON:    attachments.String,
		PublishDataJSON:    publishData.String,
		LinkedEntityJSON:   linkedEntity.String,
		Description:        description.String,
		WorkPathTemplate:   workPathTemplate.String,
	}
	if isSequence.Valid {
		item.IsSequence = isSequence.Int64 != 0
	}
	if contextChangeAllowed.Valid {
		item.ContextChangeAllowed = contextChangeAllowed.Int64 != 0
	}
	if needsReview.Valid {
		item.NeedsReview = needsReview.Int64 != 0
	}
	item.ReviewReason = reviewReason.String

	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			item.LastHeartbeat = &heartbeat
		}
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	v := value.UTC().Format(time.RFC3339Nano)
	return v
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
