package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueItem describes a queue entry in a transport-friendly format.
type QueueItem struct {
	ID             int64           `json:"id"`
	DeliveryID     string          `json:"deliveryId"`
	Name           string          `json:"name"`
	ItemType       string          `json:"itemType"`
	SourcePath     string          `json:"sourcePath"`
	IsSequence     bool            `json:"isSequence"`
	Status         string          `json:"status"`
	Progress       QueueProgress   `json:"progress"`
	ErrorMessage   string          `json:"errorMessage"`
	CreatedAt      string          `json:"createdAt,omitempty"`
	UpdatedAt      string          `json:"updatedAt,omitempty"`
	Description    string          `json:"description,omitempty"`
	NeedsReview    bool            `json:"needsReview"`
	ReviewReason   string          `json:"reviewReason,omitempty"`
	Fields         json.RawMessage `json:"fields,omitempty"`
	ManifestFields json.RawMessage `json:"manifestFields,omitempty"`
	MissingFields  []string        `json:"missingFields,omitempty"`
	Context        json.RawMessage `json:"context,omitempty"`
	Tags           []string        `json:"tags,omitempty"`
	LinkedEntity   json.RawMessage `json:"linkedEntity,omitempty"`
}

// QueueProgress captures stage progress information for a queue entry.
type QueueProgress struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	QueueStats  map[string]int `json:"queueStats"`
	LastError   string         `json:"lastError,omitempty"`
	LastItem    *QueueItem     `json:"lastItem,omitempty"`
	StageHealth []StageHealth  `json:"stageHealth"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// PreflightResult reports one readiness check for status output.
type PreflightResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// StatusSnapshot aggregates everything "intake status" renders.
type StatusSnapshot struct {
	QueueStats map[string]int    `json:"queueStats"`
	Preflight  []PreflightResult `json:"preflight"`
	QueueDB    string            `json:"queueDb"`
}

// IngestSummary reports the outcome of a manual delivery ingest.
type IngestSummary struct {
	DeliveryID string      `json:"deliveryId"`
	Items      []QueueItem `json:"items"`
}
