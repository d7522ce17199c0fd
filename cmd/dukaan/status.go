package main

import (
	"fmt"

	"github.com/dukaanhq/dukaan-core/internal/store"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local store and sync queue status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		stores, err := openStores(ctx)
		if err != nil {
			return err
		}
		defer stores.DB.Close()

		profile, err := stores.Profile(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("\nStore: %s (%s)\n\n", profile.Name, stores.DB.Path())

		for _, collection := range []string{store.Products, store.Customers, store.Sales, store.Payments, store.JobCards} {
			count, err := stores.DB.Count(ctx, collection)
			if err != nil {
				return err
			}
			fmt.Printf("  %-12s %d\n", collection, count)
		}

		pending, err := stores.DB.Queue().PendingCount(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("\nPending sync items: %d\n", pending)
		return nil
	},
}
