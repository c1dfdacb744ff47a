package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTracking()
	c.normalizeIngest()
	c.normalizeLogging()
	c.normalizeNotifications()
	c.normalizePublish()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DeliveryDir, err = expandPath(c.Paths.DeliveryDir); err != nil {
		return fmt.Errorf("paths.delivery_dir: %w", err)
	}
	if c.Paths.WorkRootDir, err = expandPath(c.Paths.WorkRootDir); err != nil {
		return fmt.Errorf("paths.work_root_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTracking() {
	c.Tracking.URL = strings.TrimRight(strings.TrimSpace(c.Tracking.URL), "/")
	c.Tracking.APIKey = strings.TrimSpace(c.Tracking.APIKey)
	if c.Tracking.APIKey == "" {
		if value, ok := os.LookupEnv("TRACKING_API_KEY"); ok {
			c.Tracking.APIKey = strings.TrimSpace(value)
		}
	}
	c.Tracking.ProjectName = strings.TrimSpace(c.Tracking.ProjectName)
	if c.Tracking.RequestTimeout <= 0 {
		c.Tracking.RequestTimeout = defaultTrackingRequestTimeout
	}
}

func (c *Config) normalizeIngest() {
	c.Ingest.ManifestFileName = strings.TrimSpace(c.Ingest.ManifestFileName)
	if c.Ingest.ManifestFileName == "" {
		c.Ingest.ManifestFileName = defaultManifestFileName
	}
	c.Ingest.IgnoreExtensions = normalizeTokens(c.Ingest.IgnoreExtensions, func(token string) string {
		return strings.TrimPrefix(token, ".")
	})
	c.Ingest.IgnoreFilenames = normalizeTokens(c.Ingest.IgnoreFilenames, nil)
}

// normalizeTokens lowercases, trims, optionally rewrites, and deduplicates
// a string list while keeping first-seen order.
func normalizeTokens(values []string, rewrite func(string) string) []string {
	if len(values) == 0 {
		return values
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		token := strings.ToLower(strings.TrimSpace(value))
		if rewrite != nil {
			token = rewrite(token)
		}
		if token == "" {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	return out
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizePublish() {
	if len(c.Publish.SnapshotTypes) == 0 {
		c.Publish.SnapshotTypes = defaultPublish().SnapshotTypes
	}
	if len(c.Publish.AdditionalFields) == 0 {
		c.Publish.AdditionalFields = defaultPublish().AdditionalFields
	}
	c.Publish.LinkedEntityName = strings.TrimSpace(c.Publish.LinkedEntityName)
}
