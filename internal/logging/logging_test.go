package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectLevel(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		verbose bool
		quiet   bool
		want    zerolog.Level
	}{
		{"default", "", false, false, zerolog.InfoLevel},
		{"configured", "error", false, false, zerolog.ErrorLevel},
		{"configured mixed case", " Debug ", false, false, zerolog.DebugLevel},
		{"unknown name", "loud", false, false, zerolog.InfoLevel},
		{"verbose", "error", true, false, zerolog.DebugLevel},
		{"quiet", "debug", false, true, zerolog.WarnLevel},
		{"verbose wins", "", true, true, zerolog.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectLevel(tt.level, tt.verbose, tt.quiet))
		})
	}
}

func TestNew_ConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Options{Quiet: true, Console: &buf})
	require.NoError(t, err)
	defer closer.Close()

	logger.Info().Msg("hidden")
	logger.Warn().Str("component", "store").Msg("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "shown", entry["message"])
	assert.Equal(t, "store", entry["component"])
	assert.NotEmpty(t, entry["time"])
}

func TestNew_WritesRotatedFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "taskboard.log")

	logger, closer, err := New(Options{
		Level:      "debug",
		File:       path,
		MaxSizeMB:  1,
		MaxBackups: 1,
		Console:    &buf,
	})
	require.NoError(t, err)

	logger.Debug().Msg("to both")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to both")
	assert.Contains(t, buf.String(), "to both")
}
