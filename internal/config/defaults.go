package config

import (
	"intake/internal/fieldmap"
)

const (
	defaultDeliveryDir               = "~/deliveries"
	defaultWorkRootDir               = "~/work"
	defaultDataDir                   = "~/.local/share/intake"
	defaultLogDir                    = "~/.local/share/intake/logs"
	defaultLogRetentionDays          = 60
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"
	defaultManifestFileName          = "contents.yaml"
	defaultTrackingRequestTimeout    = 30
	defaultNotifyRequestTimeout      = 10
	defaultWorkflowQueuePollInterval = 5
	defaultWorkflowErrorRetry        = 10
	defaultWorkflowHeartbeatInterval = 15
	defaultWorkflowHeartbeatTimeout  = 120
	defaultWorkflowWatchDebounce     = 5

	// UnlinkedEntityType disables container-entity linking for a
	// snapshot type when used as the mapped value.
	UnlinkedEntityType = "(UNLINKED)"
)

func defaultNoteTypes() map[string]string {
	return map[string]string{
		"kickoff":         "kickoff",
		"role supervisor": "annotation",
		"dailies":         "annotation",
	}
}

func defaultNoteTypeFallbacks() map[string][][]string {
	paths := [][]string{
		{"version", "original_name"},
		{"version", "name"},
		{"ingest_note_links", "Version", "original_name"},
		{"ingest_note_links", "Version", "name"},
	}
	return map[string][][]string{
		"kickoff":    clonePaths(paths),
		"annotation": clonePaths(paths),
	}
}

func clonePaths(paths [][]string) [][]string {
	out := make([][]string, len(paths))
	for i, path := range paths {
		out[i] = append([]string(nil), path...)
	}
	return out
}

func defaultPublish() Publish {
	return Publish{
		SnapshotTypes: map[string]string{
			"*": UnlinkedEntityType,
		},
		AdditionalFields: map[string]string{
			"name":          "element",
			"output":        "output",
			"tags":          "tags",
			"snapshot_id":   "snapshot_id",
			"snapshot_type": "snapshot_type",
		},
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DeliveryDir: defaultDeliveryDir,
			WorkRootDir: defaultWorkRootDir,
			DataDir:     defaultDataDir,
			LogDir:      defaultLogDir,
		},
		Tracking: Tracking{
			RequestTimeout: defaultTrackingRequestTimeout,
		},
		Ingest: Ingest{
			ManifestFileName: defaultManifestFileName,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultWorkflowQueuePollInterval,
			ErrorRetryInterval: defaultWorkflowErrorRetry,
			HeartbeatInterval:  defaultWorkflowHeartbeatInterval,
			HeartbeatTimeout:   defaultWorkflowHeartbeatTimeout,
			WatchDebounce:      defaultWorkflowWatchDebounce,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Delivery:       true,
			Ingest:         true,
			Publish:        true,
			Review:         true,
			Errors:         true,
		},
		Publish:           defaultPublish(),
		ManifestMappings:  fieldmap.DefaultMapping(),
		NoteTypes:         defaultNoteTypes(),
		NoteTypeFallbacks: defaultNoteTypeFallbacks(),
		Templates:         map[string]string{},
	}
}
