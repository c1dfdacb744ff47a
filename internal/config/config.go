package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"intake/internal/fieldmap"
	"intake/internal/itemtype"
	"intake/internal/pathtmpl"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DeliveryDir string `toml:"delivery_dir"`
	WorkRootDir string `toml:"work_root_dir"`
	DataDir     string `toml:"data_dir"`
	LogDir      string `toml:"log_dir"`
}

// Tracking contains connection settings for the production tracking service.
type Tracking struct {
	URL            string `toml:"url"`
	APIKey         string `toml:"api_key"`
	ProjectID      int64  `toml:"project_id"`
	ProjectName    string `toml:"project_name"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Ingest contains collection settings for delivered files.
type Ingest struct {
	ManifestFileName string   `toml:"manifest_file_name"`
	IgnoreExtensions []string `toml:"ignore_extensions"`
	IgnoreFilenames  []string `toml:"ignore_filenames"`
}

// Workflow contains daemon timing and intervals.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
	WatchDebounce      int `toml:"watch_debounce"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Delivery       bool   `toml:"delivery"`
	Ingest         bool   `toml:"ingest"`
	Publish        bool   `toml:"publish"`
	Review         bool   `toml:"review"`
	Errors         bool   `toml:"errors"`
}

// Publish contains settings for registering published files and their
// container entities on the tracking service.
type Publish struct {
	// SnapshotTypes maps a snapshot_type field value to the entity type
	// created per ingested item. The "*" key is the fallback; the
	// "(UNLINKED)" value skips container linking entirely.
	SnapshotTypes map[string]string `toml:"snapshot_types"`
	// AdditionalFields maps item field names to published-file field names.
	AdditionalFields map[string]string `toml:"additional_fields"`
	// LinkedEntityName is a {key} pattern applied to item fields to build
	// the container entity's code.
	LinkedEntityName string `toml:"linked_entity_name"`
}

// Config encapsulates all configuration values for intake.
//
// Configuration sections by subsystem:
//   - Paths: delivery drop root, work area root, data and log directories
//   - Tracking: production tracking service connection and project
//   - Ingest: manifest recognition and ignore lists
//   - Workflow: daemon polling intervals and timeouts
//   - Logging: log format, level, and retention
//   - Notifications: ntfy push notification settings
//   - Publish: published-file registration and entity linking
//   - ManifestMappings/NoteTypes/NoteTypeFallbacks: manifest vocabulary
//   - Templates/ItemTypes: work path templates and item type definitions
type Config struct {
	Paths             Paths                 `toml:"paths"`
	Tracking          Tracking              `toml:"tracking"`
	Ingest            Ingest                `toml:"ingest"`
	Workflow          Workflow              `toml:"workflow"`
	Logging           Logging               `toml:"logging"`
	Notifications     Notifications         `toml:"notifications"`
	Publish           Publish               `toml:"publish"`
	ManifestMappings  fieldmap.Mapping      `toml:"manifest_mappings"`
	NoteTypes         map[string]string     `toml:"note_types"`
	NoteTypeFallbacks map[string][][]string `toml:"note_type_fallbacks"`
	Templates         map[string]string     `toml:"templates"`
	ItemTypes         []itemtype.Definition `toml:"item_types"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/intake/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/intake/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("intake.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// DeliveryDir and WorkRootDir are created on a best-effort basis so the
// daemon can run when external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	for _, dir := range []string{c.Paths.DeliveryDir, c.Paths.WorkRootDir} {
		if strings.TrimSpace(dir) != "" {
			// Best-effort to avoid failing config load when storage is offline.
			_ = os.MkdirAll(dir, 0o755)
		}
	}
	return nil
}

// QueueDatabasePath returns the SQLite database location for the queue store.
func (c *Config) QueueDatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// TrackingTimeout returns the tracking request timeout as a duration.
func (c *Config) TrackingTimeout() time.Duration {
	return time.Duration(c.Tracking.RequestTimeout) * time.Second
}

// TemplateSet compiles the configured work path templates.
func (c *Config) TemplateSet() (*pathtmpl.Set, error) {
	return pathtmpl.NewSet(c.Templates)
}

// ItemTypeRegistry compiles the configured item type definitions.
func (c *Config) ItemTypeRegistry(logger *slog.Logger) (*itemtype.Registry, error) {
	return itemtype.NewRegistry(c.ItemTypes, logger)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
