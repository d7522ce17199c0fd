// Command dukaan runs the offline-first retail core: local entity store,
// durable sync queue, and the background runner that drains it.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/dukaanhq/dukaan-core/internal/config"
	"github.com/dukaanhq/dukaan-core/internal/store"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	configFile string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "dukaan",
	Short: "Offline-first retail operations core",
	Long: `dukaan is the offline-first core of a small-business retail app:
a local embedded database for products, customers, sales, payments, and job
cards, with every mutation queued for eventual sync to a remote backend.

All data lives locally and every operation works without connectivity; the
sync daemon drains the queue opportunistically when the network allows.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configFile)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: dukaan.yaml in data dir)")

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(queueCmd)
}

// newLogger builds a component logger, rotating through lumberjack when a
// log file is configured.
func newLogger(prefix string) *log.Logger {
	var out io.Writer = os.Stderr
	if cfg != nil && cfg.LogFile != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAgeDays,
		}
	}
	return log.New(out, prefix, log.LstdFlags)
}

// openStores opens the database, ensures the schema, and runs first-run
// bootstrap (legacy migration or seed defaults).
func openStores(ctx context.Context) (*store.Stores, error) {
	db, err := store.Open(cfg.DBPath(), newLogger("[store] "))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	if err := db.InitSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	stores := store.NewStores(db)
	if err := stores.Bootstrap(ctx, cfg.LegacyPath()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return stores, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
