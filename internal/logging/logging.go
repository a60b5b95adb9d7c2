// Package logging builds the process logger.
//
// Console output goes to stderr (stdout is reserved for command output and
// the MCP stdio transport). It is human-readable on a terminal and JSON
// otherwise. When a log file is configured, JSON entries are also written to
// it with size-based rotation.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	// Level is the configured level name; Verbose and Quiet override it.
	Level   string
	Verbose bool
	Quiet   bool

	// File enables rotated file output when non-empty.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// Console replaces the stderr writer, mainly for tests.
	Console io.Writer
}

// New builds a logger from opts. The returned closer releases the log file
// and is never nil.
func New(opts Options) (zerolog.Logger, io.Closer, error) {
	console := opts.Console
	if console == nil {
		console = consoleWriter()
	}

	var writer io.Writer = console
	var closer io.Closer = nopCloser{}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o750); err != nil {
			return zerolog.Nop(), closer, fmt.Errorf("failed to create log directory: %w", err)
		}
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		}
		writer = zerolog.MultiLevelWriter(console, lj)
		closer = lj
	}

	level := SelectLevel(opts.Level, opts.Verbose, opts.Quiet)
	logger := zerolog.New(writer).Level(level).With().Timestamp().Logger()
	return logger, closer, nil
}

// SelectLevel resolves the effective level. --verbose wins over --quiet,
// both win over the configured name, and an unknown name means info.
func SelectLevel(name string, verbose, quiet bool) zerolog.Level {
	switch {
	case verbose:
		return zerolog.DebugLevel
	case quiet:
		return zerolog.WarnLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func consoleWriter() io.Writer {
	if term.IsTerminal(int(os.Stderr.Fd())) && os.Getenv("NO_COLOR") == "" {
		return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	return os.Stderr
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
