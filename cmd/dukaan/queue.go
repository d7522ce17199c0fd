package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and manage the sync queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending sync queue items",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		stores, err := openStores(ctx)
		if err != nil {
			return err
		}
		defer stores.DB.Close()

		items, err := stores.DB.Queue().ListPending(ctx)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("Queue is empty")
			return nil
		}

		fmt.Printf("%-6s %-12s %-8s %-24s %-9s %s\n", "ID", "COLLECTION", "OP", "RECORD", "ATTEMPTS", "LAST ERROR")
		for _, it := range items {
			fmt.Printf("%-6d %-12s %-8s %-24s %-9d %s\n",
				it.ID, it.Collection, it.Op, it.RecordID, it.Attempts, it.LastError)
		}
		return nil
	},
}

var queueDiscardCmd = &cobra.Command{
	Use:   "discard <id>",
	Short: "Give up on a single queue item",
	Long: `Force-remove one queue item regardless of sync state.

This is the explicit "give up on this" action for items that keep failing;
the local record is untouched, it just stops being pushed to the remote.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid item id %q", args[0])
		}

		stores, err := openStores(ctx)
		if err != nil {
			return err
		}
		defer stores.DB.Close()

		if err := stores.DB.Queue().Discard(ctx, id); err != nil {
			return err
		}
		fmt.Printf("Discarded item %d\n", id)
		return nil
	},
}

var queuePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete already-synced queue items",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		stores, err := openStores(ctx)
		if err != nil {
			return err
		}
		defer stores.DB.Close()

		removed, err := stores.DB.Queue().PurgeSynced(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d synced items\n", removed)
		return nil
	},
}

func init() {
	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueDiscardCmd)
	queueCmd.AddCommand(queuePurgeCmd)
}
