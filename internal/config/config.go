// Package config loads the application configuration.
//
// Sources, highest precedence first:
//  1. Command-line flags bound with BindFlags
//  2. Environment variables (TASKBOARD_* prefix, "." replaced by "_")
//  3. taskboard.yaml in the working directory, else $HOME/.taskboard/taskboard.yaml
//  4. Built-in defaults
//
// Anchor rules live in a separate file (anchors.file) owned by the anchor
// loader, which can reload them while the server runs.
package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TASKBOARD"

// FileName is the config file name searched for, without extension.
const FileName = "taskboard"

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Anchors   AnchorsConfig   `mapstructure:"anchors"`
	Workspace WorkspaceConfig `mapstructure:"workspace"`
}

// ServerConfig configures the dashboard HTTP server.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig selects the store. DSN is a file path, a file: URI or a
// libsql:// URL.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// LogConfig configures logging. An empty File logs to stderr only.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// AnchorsConfig points at the anchor rules file.
type AnchorsConfig struct {
	File     string        `mapstructure:"file"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// WorkspaceConfig sets the base directory for relative anchor paths.
// Empty means the working directory.
type WorkspaceConfig struct {
	Root string `mapstructure:"root"`
}

// New returns a viper instance with defaults and environment overrides set.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", "5s")

	v.SetDefault("database.dsn", filepath.Join(".taskboard", "taskboard.db"))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	v.SetDefault("anchors.file", filepath.Join(".taskboard", "anchors.yaml"))
	v.SetDefault("anchors.debounce", "200ms")

	v.SetDefault("workspace.root", "")
}

// BindFlags binds command-line flags to config keys. Flags that are nil in
// the set are skipped.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) error {
	for key, name := range keys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// Load reads the config file into v and decodes the result. An explicit
// path must exist; otherwise a missing file is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".taskboard"))
		}
	}

	if err := v.ReadInConfig(); err != nil && !isConfigNotFound(err, path) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decoderOption()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func isConfigNotFound(err error, explicit string) bool {
	if explicit != "" {
		return false
	}
	var notFound viper.ConfigFileNotFoundError
	return stderrors.As(err, &notFound)
}

func decoderOption() viper.DecoderConfigOption {
	return viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	)
}

// Validate checks value ranges.
func Validate(cfg *Config) error {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535 (got %d)", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive (got %s)", cfg.Server.ShutdownTimeout)
	}
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return stderrors.New("database.dsn is required")
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level)); err != nil {
		return fmt.Errorf("log.level %q is not a valid level", cfg.Log.Level)
	}
	if cfg.Log.MaxSizeMB < 0 || cfg.Log.MaxBackups < 0 || cfg.Log.MaxAgeDays < 0 {
		return stderrors.New("log rotation limits must not be negative")
	}
	if cfg.Anchors.Debounce < 0 {
		return fmt.Errorf("anchors.debounce must not be negative (got %s)", cfg.Anchors.Debounce)
	}
	return nil
}

// Addr returns host:port for the dashboard server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
