package main

import (
	"context"
	"fmt"
	"log/slog"

	"intake/internal/collector"
	"intake/internal/config"
	"intake/internal/daemon"
	"intake/internal/logging"
	"intake/internal/notifications"
	"intake/internal/preflight"
	"intake/internal/publish"
	"intake/internal/queue"
	"intake/internal/tracking"
	"intake/internal/workflow"
)

// buildDaemon wires the full processing graph: tracking client, collector,
// resolve and publish stages, workflow manager, and the delivery watcher.
// Preflight failures abort startup; a daemon that cannot reach its delivery
// root or tracking service would only fail every item it touches.
func buildDaemon(ctx context.Context, cfg *config.Config, store *queue.Store, logger *slog.Logger) (*daemon.Daemon, error) {
	results := preflight.RunAll(ctx, cfg)
	for _, result := range results {
		if result.Passed {
			logger.Info("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail))
			continue
		}
		logger.Error("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail))
	}
	if preflight.Failed(results) {
		return nil, fmt.Errorf("preflight checks failed; fix the configuration and restart")
	}

	tracker := tracking.NewFromConfig(cfg)

	col, err := collector.New(cfg, store, tracker, logger)
	if err != nil {
		return nil, fmt.Errorf("build collector: %w", err)
	}

	publisher, err := publish.New(cfg, tracker, logger)
	if err != nil {
		return nil, fmt.Errorf("build publisher: %w", err)
	}

	notifier := notifications.NewService(cfg)
	manager := workflow.NewManagerWithNotifier(cfg, store, logger, notifier)
	manager.ConfigureStages(workflow.StageSet{
		Resolver:  collector.NewResolver(col, logger),
		Publisher: publisher,
	})

	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, logging.RetentionTarget{
		Dir:     cfg.Paths.LogDir,
		Pattern: "*.log",
	})

	return daemon.New(cfg, store, logger, manager, col, notifier)
}
