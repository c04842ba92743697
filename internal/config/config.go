package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// UserConfig is the optional TOML configuration. Every field has a working
// default so a missing or partial file is fine.
type UserConfig struct {
	// HistorySize is the per-pane scrollback capacity in rows.
	HistorySize int `toml:"history_size"`
	// Shell overrides $SHELL for spawned panes when non-empty.
	Shell string `toml:"shell"`
	// StatusBar controls the status-bar colors (256-color palette indexes).
	StatusBar StatusBarConfig `toml:"status_bar"`
}

// StatusBarConfig holds the status-bar palette.
type StatusBarConfig struct {
	Foreground int `toml:"foreground"`
	Background int `toml:"background"`
}

// DefaultConfig returns the built-in configuration: 1000 rows of history
// and the white-on-blue status bar.
func DefaultConfig() *UserConfig {
	return &UserConfig{
		HistorySize: 1000,
		StatusBar: StatusBarConfig{
			Foreground: 15, // bright white
			Background: 4,  // blue
		},
	}
}

// LoadConfig reads the TOML config at path on top of the defaults. A
// missing file yields the defaults without error.
func LoadConfig(path string) (*UserConfig, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parse config: %w", err)
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 1000
	}
	return cfg, nil
}
