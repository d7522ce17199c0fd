// Package config loads dukaan configuration from file and environment.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime settings.
type Config struct {
	// DataDir holds the database, offline marker, and legacy export.
	DataDir string

	// DBFile is the database filename inside DataDir.
	DBFile string

	// LegacyFile is the flat key-value export migrated on first run.
	LegacyFile string

	SyncInterval  time.Duration
	ProbeURL      string
	ProbeInterval time.Duration
	OfflineFile   string

	DashboardPort int

	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
}

// Load reads configuration from the given file (optional), the data
// directory, and DUKAAN_* environment variables, in increasing precedence of
// env over file over defaults.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("data_dir", ".dukaan")
	v.SetDefault("db_file", "dukaan.db")
	v.SetDefault("legacy_file", "legacy-store.json")
	v.SetDefault("sync.interval", "30s")
	v.SetDefault("sync.probe_url", "")
	v.SetDefault("sync.probe_interval", "15s")
	v.SetDefault("sync.offline_file", "offline")
	v.SetDefault("dashboard.port", 7315)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	v.SetEnvPrefix("DUKAAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("dukaan")
		v.AddConfigPath(v.GetString("data_dir"))
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			// Missing config is fine; defaults apply.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	cfg := &Config{
		DataDir:       v.GetString("data_dir"),
		DBFile:        v.GetString("db_file"),
		LegacyFile:    v.GetString("legacy_file"),
		SyncInterval:  v.GetDuration("sync.interval"),
		ProbeURL:      v.GetString("sync.probe_url"),
		ProbeInterval: v.GetDuration("sync.probe_interval"),
		OfflineFile:   v.GetString("sync.offline_file"),
		DashboardPort: v.GetInt("dashboard.port"),
		LogFile:       v.GetString("log.file"),
		LogMaxSizeMB:  v.GetInt("log.max_size_mb"),
		LogMaxBackups: v.GetInt("log.max_backups"),
		LogMaxAgeDays: v.GetInt("log.max_age_days"),
	}

	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = 30 * time.Second
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = 15 * time.Second
	}
	return cfg, nil
}

// DBPath returns the full path of the database file.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, c.DBFile)
}

// LegacyPath returns the full path of the legacy export, or empty when
// migration is disabled.
func (c *Config) LegacyPath() string {
	if c.LegacyFile == "" {
		return ""
	}
	return filepath.Join(c.DataDir, c.LegacyFile)
}

// OfflinePath returns the full path of the offline override marker, or empty
// when the override is disabled.
func (c *Config) OfflinePath() string {
	if c.OfflineFile == "" {
		return ""
	}
	return filepath.Join(c.DataDir, c.OfflineFile)
}
