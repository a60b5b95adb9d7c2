package anchor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// DefaultDebounce batches the burst of events an editor save produces.
const DefaultDebounce = 100 * time.Millisecond

// Loader reads the anchor config file and keeps an up-to-date snapshot.
//
// Readers call Current and get an immutable Config; Watch swaps in a new
// snapshot whenever the file changes. A reload that fails to parse keeps the
// previous snapshot.
type Loader struct {
	path     string
	debounce time.Duration
	logger   zerolog.Logger
	current  atomic.Pointer[Config]
	reloads  atomic.Int64
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithDebounce sets how long Watch waits for events to settle.
func WithDebounce(d time.Duration) LoaderOption {
	return func(l *Loader) {
		l.debounce = d
	}
}

// WithLogger sets the loader's logger.
func WithLogger(logger zerolog.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader reads path once. An empty path or a missing file yields the zero
// config; a malformed file is an error.
func NewLoader(path string, opts ...LoaderOption) (*Loader, error) {
	l := &Loader{debounce: DefaultDebounce, logger: zerolog.Nop()}
	if path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve anchor config path: %w", err)
		}
		l.path = abs
	}
	for _, opt := range opts {
		opt(l)
	}

	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Static returns a Loader that always serves cfg. Watch on it returns at once.
func Static(cfg Config) *Loader {
	l := &Loader{logger: zerolog.Nop()}
	cfg = normalizeConfig(cfg)
	l.current.Store(&cfg)
	return l
}

// Path returns the absolute config path, or "" for a static loader.
func (l *Loader) Path() string {
	return l.path
}

// Current returns the latest snapshot. Callers must not mutate its map.
func (l *Loader) Current() Config {
	if cfg := l.current.Load(); cfg != nil {
		return *cfg
	}
	return Config{}
}

// Reloads counts successful loads, including the initial one.
func (l *Loader) Reloads() int64 {
	return l.reloads.Load()
}

// Reload re-reads the file and publishes a new snapshot on success.
func (l *Loader) Reload() error {
	if l.path == "" {
		l.publish(Config{})
		return nil
	}

	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		l.publish(Config{})
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read anchor config: %w", err)
	}

	cfg, err := Parse(data, filepath.Ext(l.path))
	if err != nil {
		return fmt.Errorf("failed to parse anchor config %s: %w", l.path, err)
	}
	l.publish(cfg)
	return nil
}

func (l *Loader) publish(cfg Config) {
	cfg = normalizeConfig(cfg)
	l.current.Store(&cfg)
	l.reloads.Add(1)
	l.logger.Debug().
		Str("path", l.path).
		Int("categories", len(cfg.CategoryDefaults)).
		Bool("scratch", cfg.AllowScratchFallback).
		Msg("anchor config loaded")
}

// Parse decodes an anchor config by file extension: .toml uses TOML,
// anything else YAML.
func Parse(data []byte, ext string) (Config, error) {
	var cfg Config
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}
	switch strings.ToLower(ext) {
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return Config{}, err
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}
	return normalizeConfig(cfg), nil
}

func normalizeConfig(cfg Config) Config {
	if len(cfg.CategoryDefaults) == 0 {
		cfg.CategoryDefaults = nil
		return cfg
	}
	m := make(map[string]string, len(cfg.CategoryDefaults))
	for k, v := range cfg.CategoryDefaults {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "" {
			continue
		}
		m[key] = v
	}
	cfg.CategoryDefaults = m
	return cfg
}

// Watch reloads the config whenever its file changes, until ctx is done.
// The parent directory is watched so that editors replacing the file via
// rename are still observed.
func (l *Loader) Watch(ctx context.Context) error {
	if l.path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(l.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	l.logger.Info().Str("path", l.path).Msg("watching anchor config")

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != l.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(l.debounce)
			} else {
				timer.Reset(l.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if err := l.Reload(); err != nil {
				l.logger.Warn().Err(err).Msg("anchor config reload failed; keeping previous snapshot")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.Warn().Err(err).Msg("anchor config watcher error")
		}
	}
}
