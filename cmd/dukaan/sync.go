package main

import (
	"fmt"
	"time"

	"github.com/dukaanhq/dukaan-core/internal/syncer"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Drain the sync queue once",
	Long: `Run a single drain pass over the pending sync queue.

Items are pushed in enqueue order; anything the remote rejects stays pending
with an incremented attempt counter. The running daemon retries those on its
next trigger.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		stores, err := openStores(ctx)
		if err != nil {
			return err
		}
		defer stores.DB.Close()

		queue := stores.DB.Queue()
		before, err := queue.PendingCount(ctx)
		if err != nil {
			return err
		}
		if before == 0 {
			fmt.Println("Nothing to sync")
			return nil
		}

		runner := syncer.New(queue, syncer.NewLogPusher(newLogger("[push] ")), syncer.StaticSignal(true), &syncer.Config{
			Interval: time.Minute,
			Logger:   newLogger("[syncer] "),
		})

		fmt.Printf("Draining %d pending items...\n", before)
		start := time.Now()
		if err := runner.Drain(ctx); err != nil {
			return err
		}

		after, err := queue.PendingCount(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Done in %v: %d synced, %d still pending\n",
			time.Since(start).Round(time.Millisecond), before-after, after)
		return nil
	},
}
