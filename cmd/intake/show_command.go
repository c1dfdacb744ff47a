package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"intake/internal/api"
	"intake/internal/config"
	"intake/internal/queue"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Display one queue item in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid item id %q", args[0])
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				item, err := api.NewQueueService(store).Describe(cmd.Context(), id)
				if err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("item %d not found", id)
				}
				if asJSON {
					return writeJSON(cmd, item)
				}
				printItemDetail(cmd, item)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of text")
	return cmd
}

func printItemDetail(cmd *cobra.Command, item *api.QueueItem) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Item #%d\n", item.ID)
	fmt.Fprintf(out, "  Delivery:    %s\n", item.DeliveryID)
	fmt.Fprintf(out, "  Name:        %s\n", item.Name)
	fmt.Fprintf(out, "  Type:        %s\n", item.ItemType)
	fmt.Fprintf(out, "  Source:      %s\n", item.SourcePath)
	fmt.Fprintf(out, "  Sequence:    %s\n", yesNo(item.IsSequence))
	fmt.Fprintf(out, "  Status:      %s\n", item.Status)
	if item.Progress.Stage != "" {
		fmt.Fprintf(out, "  Progress:    %s %.0f%% %s\n", item.Progress.Stage, item.Progress.Percent, item.Progress.Message)
	}
	if item.Description != "" {
		fmt.Fprintf(out, "  Description: %s\n", item.Description)
	}
	if len(item.Tags) > 0 {
		fmt.Fprintf(out, "  Tags:        %s\n", strings.Join(item.Tags, ", "))
	}
	if len(item.MissingFields) > 0 {
		fmt.Fprintf(out, "  Missing:     %s\n", strings.Join(item.MissingFields, ", "))
	}
	if item.NeedsReview {
		fmt.Fprintf(out, "  Review:      %s\n", item.ReviewReason)
	}
	if item.ErrorMessage != "" {
		fmt.Fprintf(out, "  Error:       %s\n", item.ErrorMessage)
	}
	if len(item.Fields) > 0 {
		fmt.Fprintf(out, "  Fields:      %s\n", string(item.Fields))
	}
	if len(item.Context) > 0 {
		fmt.Fprintf(out, "  Context:     %s\n", string(item.Context))
	}
	if len(item.LinkedEntity) > 0 {
		fmt.Fprintf(out, "  Linked:      %s\n", string(item.LinkedEntity))
	}
}
