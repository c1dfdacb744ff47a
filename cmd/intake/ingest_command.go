package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"intake/internal/config"
	"intake/internal/queue"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var deliveryID string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ingest <path>",
		Short: "Collect a delivered file or folder into the queue",
		Long: "Collect a delivery without waiting for the watcher. The path may be a\n" +
			"delivery folder, a manifest file, or a single delivered file. Items are\n" +
			"queued as pending; a running daemon picks them up, or they wait for one.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				svc, err := newIngestService(cfg, store)
				if err != nil {
					return err
				}
				summary, err := svc.Ingest(cmd.Context(), args[0], deliveryID)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, summary)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Delivery %s: queued %d item(s)\n", summary.DeliveryID, len(summary.Items))
				for _, item := range summary.Items {
					fmt.Fprintf(out, "  #%d %s [%s]\n", item.ID, item.Name, item.ItemType)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&deliveryID, "delivery", "", "Override the delivery ID (defaults to the path's base name)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of text")
	return cmd
}
