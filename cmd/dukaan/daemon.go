package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukaanhq/dukaan-core/internal/connectivity"
	"github.com/dukaanhq/dukaan-core/internal/dashboard"
	"github.com/dukaanhq/dukaan-core/internal/syncer"
	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the sync daemon and status dashboard",
	Long: `Run the long-lived process: entity store, connectivity monitor, sync
runner, and the HTTP/WebSocket status dashboard.

The runner drains the sync queue on reconnect, on a polling interval, and on
manual trigger (POST /sync on the dashboard, or 'dukaan sync'). Local writes
are never blocked by sync activity.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		stores, err := openStores(ctx)
		if err != nil {
			return err
		}
		defer stores.DB.Close()

		monitor, err := connectivity.New(&connectivity.Config{
			ProbeURL:      cfg.ProbeURL,
			ProbeInterval: cfg.ProbeInterval,
			OverridePath:  cfg.OfflinePath(),
			Logger:        newLogger("[connectivity] "),
		})
		if err != nil {
			return fmt.Errorf("failed to create connectivity monitor: %w", err)
		}
		if err := monitor.Start(); err != nil {
			return fmt.Errorf("failed to start connectivity monitor: %w", err)
		}
		defer monitor.Stop()

		runner := syncer.New(stores.DB.Queue(), syncer.NewLogPusher(newLogger("[push] ")), monitor, &syncer.Config{
			Interval: cfg.SyncInterval,
			Logger:   newLogger("[syncer] "),
		})
		runner.Start()
		defer runner.Stop()

		server := dashboard.NewServer(runner, stores.DB.Queue(), &dashboard.Config{
			Port:   cfg.DashboardPort,
			Logger: newLogger("[dashboard] "),
		})
		if err := server.Start(); err != nil {
			return fmt.Errorf("failed to start dashboard: %w", err)
		}
		defer func() { _ = server.Stop() }()

		fmt.Printf("dukaan daemon running (db=%s, dashboard=%s)\n", cfg.DBPath(), server.GetAddr())

		<-ctx.Done()
		fmt.Println("Shutting down")
		return nil
	},
}
