package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"intake/internal/api"
	"intake/internal/collector"
	"intake/internal/config"
	"intake/internal/logging"
	"intake/internal/queue"
	"intake/internal/tracking"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withStore opens the queue store for one command invocation and closes it
// afterwards. Commands share the daemon's database file; SQLite handles the
// cross-process coordination.
func (c *commandContext) withStore(fn func(cfg *config.Config, store *queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(cfg, store)
}

// cliLogger keeps command output quiet: only warnings and errors from the
// collector and tracking layers reach the terminal.
func cliLogger() *slog.Logger {
	logger, err := logging.New(logging.Options{
		Level:            "warn",
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

// newIngestService wires the collector against the live tracking endpoint.
func newIngestService(cfg *config.Config, store *queue.Store) (*api.IngestService, error) {
	tracker := tracking.NewFromConfig(cfg)
	col, err := collector.New(cfg, store, tracker, cliLogger())
	if err != nil {
		return nil, err
	}
	return api.NewIngestService(cfg, col), nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
