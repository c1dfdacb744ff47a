package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"intake/internal/itemtype"
	"intake/internal/pathtmpl"
)

// Validate ensures the configuration is usable. Template patterns and item
// type filters are compiled here so a bad expression fails at load instead
// of surfacing mid-ingest.
func (c *Config) Validate() error {
	if err := c.validateTracking(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validatePublish(); err != nil {
		return err
	}
	return c.validateTemplatesAndItemTypes()
}

func (c *Config) validateTracking() error {
	if strings.TrimSpace(c.Tracking.URL) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/intake/config.toml"
		}
		return fmt.Errorf("tracking.url is required. Edit %s (create with 'intake config init')", defaultPath)
	}
	if c.Tracking.APIKey == "" {
		return errors.New("tracking.api_key is required. Set TRACKING_API_KEY env var or edit the config file")
	}
	if c.Tracking.ProjectID <= 0 && c.Tracking.ProjectName == "" {
		return errors.New("tracking.project_id or tracking.project_name must be set")
	}
	return nil
}

func (c *Config) validateIngest() error {
	if strings.ContainsAny(c.Ingest.ManifestFileName, "/\\") {
		return errors.New("ingest.manifest_file_name must be a bare file name")
	}
	for _, pattern := range c.Ingest.IgnoreFilenames {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("ingest.ignore_filenames pattern %q: %w", pattern, err)
		}
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"workflow.watch_debounce":       c.Workflow.WatchDebounce,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		return errors.New("workflow.heartbeat_timeout must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validatePublish() error {
	for snapshotType, entityType := range c.Publish.SnapshotTypes {
		if strings.TrimSpace(snapshotType) == "" {
			return errors.New("publish.snapshot_types keys must not be empty")
		}
		if strings.TrimSpace(entityType) == "" {
			return fmt.Errorf("publish.snapshot_types[%q] must name an entity type or %q", snapshotType, UnlinkedEntityType)
		}
	}
	for itemField, publishField := range c.Publish.AdditionalFields {
		if strings.TrimSpace(itemField) == "" || strings.TrimSpace(publishField) == "" {
			return errors.New("publish.additional_fields entries must not be empty")
		}
	}
	if c.Publish.LinkedEntityName != "" {
		if _, err := pathtmpl.Parse("publish.linked_entity_name", c.Publish.LinkedEntityName); err != nil {
			return fmt.Errorf("publish.linked_entity_name: %w", err)
		}
	}
	return nil
}

func (c *Config) validateTemplatesAndItemTypes() error {
	set, err := pathtmpl.NewSet(c.Templates)
	if err != nil {
		return fmt.Errorf("templates: %w", err)
	}
	if _, err := itemtype.NewRegistry(c.ItemTypes, nil); err != nil {
		return fmt.Errorf("item_types: %w", err)
	}
	if len(c.ItemTypes) == 0 {
		return errors.New("item_types must define at least one item type")
	}
	for _, def := range c.ItemTypes {
		if def.WorkPathTemplate == "" {
			continue
		}
		if _, ok := set.Get(def.WorkPathTemplate); !ok {
			return fmt.Errorf("item_types type %q references unknown template %q", def.Type, def.WorkPathTemplate)
		}
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
