// Package config loads rowboat settings from file, environment, and
// defaults.
//
// Sources are merged in viper's usual order: explicit file (or a
// rowboat.toml found in . or ~/.rowboat), then ROWBOAT_* environment
// variables, then built-in defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"github.com/rowboatdb/rowboat/internal/ident"
)

type Config struct {
	Source string `mapstructure:"source"`
	Target string `mapstructure:"target"`
	Alias  string `mapstructure:"alias"`
	Export string `mapstructure:"export"`

	Daemon    DaemonConfig    `mapstructure:"daemon"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

type DaemonConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
	Schedule string        `mapstructure:"schedule"`
	Oplog    string        `mapstructure:"oplog"`
	LogFile  string        `mapstructure:"log_file"`
	LockFile string        `mapstructure:"lock_file"`
}

type DashboardConfig struct {
	Port int `mapstructure:"port" toml:"port"`
}

// Load reads configuration. An empty explicit path searches the
// working directory and ~/.rowboat; a missing file there is fine, the
// defaults apply.
func Load(explicit string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ROWBOAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if explicit != "" {
		v.SetConfigFile(explicit)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		v.SetConfigName("rowboat")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".rowboat"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Every key needs a default so environment overrides surface in
	// Unmarshal.
	v.SetDefault("source", "")
	v.SetDefault("target", "")
	v.SetDefault("alias", "backup")
	v.SetDefault("export", "")

	v.SetDefault("daemon.debounce", "2s")
	v.SetDefault("daemon.schedule", "")
	v.SetDefault("daemon.oplog", filepath.Join(baseDir(), "oplog.jsonl"))
	v.SetDefault("daemon.log_file", filepath.Join(baseDir(), "daemon.log"))
	v.SetDefault("daemon.lock_file", filepath.Join(baseDir(), "daemon.lock"))

	v.SetDefault("dashboard.port", 8380)
}

func baseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rowboat"
	}
	return filepath.Join(home, ".rowboat")
}

// Validate rejects settings the sync engine cannot run with.
func (c *Config) Validate() error {
	if c.Alias != "" {
		if err := ident.Check(c.Alias); err != nil {
			return fmt.Errorf("alias %q: %w", c.Alias, err)
		}
	}
	if c.Daemon.Debounce <= 0 {
		return fmt.Errorf("daemon.debounce must be positive, got %s", c.Daemon.Debounce)
	}
	if c.Dashboard.Port < 1 || c.Dashboard.Port > 65535 {
		return fmt.Errorf("dashboard.port %d out of range", c.Dashboard.Port)
	}
	return nil
}

// fileConfig mirrors Config with string durations so the generated
// file stays readable.
type fileConfig struct {
	Source string     `toml:"source"`
	Target string     `toml:"target"`
	Alias  string     `toml:"alias"`
	Export string     `toml:"export,omitempty"`
	Daemon fileDaemon `toml:"daemon"`

	Dashboard DashboardConfig `toml:"dashboard"`
}

type fileDaemon struct {
	Debounce string `toml:"debounce"`
	Schedule string `toml:"schedule,omitempty"`
	Oplog    string `toml:"oplog"`
	LogFile  string `toml:"log_file"`
	LockFile string `toml:"lock_file"`
}

// Write serializes cfg as TOML at path. Refuses to replace an existing
// file.
func Write(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	out := fileConfig{
		Source: cfg.Source,
		Target: cfg.Target,
		Alias:  cfg.Alias,
		Export: cfg.Export,
		Daemon: fileDaemon{
			Debounce: cfg.Daemon.Debounce.String(),
			Schedule: cfg.Daemon.Schedule,
			Oplog:    cfg.Daemon.Oplog,
			LogFile:  cfg.Daemon.LogFile,
			LockFile: cfg.Daemon.LockFile,
		},
		Dashboard: cfg.Dashboard,
	}

	var buf bytes.Buffer
	buf.WriteString("# rowboat configuration\n")
	buf.WriteString("# environment variables with a ROWBOAT_ prefix override these values\n\n")
	if err := toml.NewEncoder(&buf).Encode(out); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Alias: "backup",
		Daemon: DaemonConfig{
			Debounce: 2 * time.Second,
			Oplog:    filepath.Join(baseDir(), "oplog.jsonl"),
			LogFile:  filepath.Join(baseDir(), "daemon.log"),
			LockFile: filepath.Join(baseDir(), "daemon.lock"),
		},
		Dashboard: DashboardConfig{Port: 8380},
	}
}
