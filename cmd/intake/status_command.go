package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"intake/internal/api"
	"intake/internal/config"
	"intake/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show preflight checks and queue summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				snapshot := api.NewStatusService(cfg, store).Snapshot(cmd.Context())
				if asJSON {
					return writeJSON(cmd, snapshot)
				}
				renderStatusSnapshot(cmd, snapshot)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of text")
	return cmd
}

func renderStatusSnapshot(cmd *cobra.Command, snapshot api.StatusSnapshot) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader("Preflight", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, result := range snapshot.Preflight {
		kind := statusOK
		if !result.Passed {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
	}

	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Queue", colorize) {
		fmt.Fprintln(out, line)
	}
	if len(snapshot.QueueStats) == 0 {
		fmt.Fprintln(out, renderStatusLine("Queue", statusInfo, "empty", colorize))
	} else {
		for _, status := range queue.AllStatuses() {
			count := snapshot.QueueStats[string(status)]
			if count == 0 {
				continue
			}
			kind := statusInfo
			switch status {
			case queue.StatusCompleted:
				kind = statusOK
			case queue.StatusFailed:
				kind = statusError
			case queue.StatusReview:
				kind = statusWarn
			}
			fmt.Fprintln(out, renderStatusLine(string(status), kind, fmt.Sprintf("%d", count), colorize))
		}
	}
	fmt.Fprintln(out, renderStatusLine("Database", statusInfo, snapshot.QueueDB, colorize))
}
