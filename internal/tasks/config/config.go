// Package config provides tasks CLI configuration management.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	appconfig "github.com/RobinCoderZhao/tasktrail/pkg/config"
	"github.com/RobinCoderZhao/tasktrail/pkg/storage"
)

// Output styles.
const (
	StyleAuto    = "auto"
	StyleANSI    = "ansi"
	StyleMarkers = "markers"
	StylePlain   = "plain"
)

// Config is the main configuration for the tasks CLI.
type Config struct {
	Database storage.Config `yaml:"database" toml:"database"`
	Style    string         `yaml:"style" toml:"style" env:"TASKS_STYLE"` // auto, ansi, markers or plain
	Diff     DiffConfig     `yaml:"diff" toml:"diff"`
	Store    StoreConfig    `yaml:"store" toml:"store"`
	LogLevel string         `yaml:"log_level" toml:"log_level" env:"TASKS_LOG_LEVEL"`
}

// DiffConfig holds the default window of the diff command.
type DiffConfig struct {
	Since string `yaml:"since" toml:"since" env:"TASKS_SINCE"`
	Until string `yaml:"until" toml:"until" env:"TASKS_UNTIL"`
}

// StoreConfig holds settings for update-and-store.
type StoreConfig struct {
	SkipUnchanged bool `yaml:"skip_unchanged" toml:"skip_unchanged" env:"TASKS_SKIP_UNCHANGED"`
	Resolve       bool `yaml:"resolve" toml:"resolve"` // also resolve task refs and legacy section ids
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	dsn := "tasks.db"
	if home, err := os.UserHomeDir(); err == nil {
		dsn = filepath.Join(home, ".local", "share", "tasks", "tasks.db")
	}
	return Config{
		Database: storage.Config{DSN: dsn},
		Style:    StyleAuto,
		Diff: DiffConfig{
			Since: "3 weeks ago",
			Until: "now",
		},
		LogLevel: "warn",
	}
}

// candidates lists the config files looked at, in order.
func candidates() []string {
	paths := []string{".tasks.yaml", ".tasks.yml", ".tasks.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		for _, name := range []string{".tasks.yaml", ".tasks.yml", ".tasks.toml"} {
			paths = append(paths, filepath.Join(home, name))
		}
	}
	return paths
}

// Load loads configuration from path, or when path is empty from the first
// existing project or home config file. Environment overrides always apply.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := appconfig.Load(path, &cfg); err != nil {
			return cfg, err
		}
		return cfg, cfg.Validate()
	}

	for _, p := range candidates() {
		if _, err := os.Stat(p); err == nil {
			if err := appconfig.Load(p, &cfg); err != nil {
				return cfg, err
			}
			return cfg, cfg.Validate()
		}
	}

	if err := appconfig.ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate checks enumerated settings.
func (c Config) Validate() error {
	switch c.Style {
	case StyleAuto, StyleANSI, StyleMarkers, StylePlain:
	default:
		return fmt.Errorf("invalid style %q: want auto, ansi, markers or plain", c.Style)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return l, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return l, nil
}
