package logging

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("INFO"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("bogus"))
}

func TestLogFilePath(t *testing.T) {
	start := time.Date(2026, 8, 1, 9, 30, 0, 0, time.UTC)
	path := LogFilePath("/var/log/carsim", "carsim-server", start)
	assert.Equal(t, filepath.Join("/var/log/carsim", "carsim-server.20260801_093000.log"), path)
}

func TestSetupConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	m := NewManager()
	require.NoError(t, m.Setup(Options{Level: "debug", Console: &buf}))
	t.Cleanup(func() { _ = m.Close() })

	logger := m.Logger()
	logger.Info().Str("component", "test").Msg("hello")
	assert.Contains(t, buf.String(), "hello")
}

func TestSetupFileSink(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	m := NewManager()
	require.NoError(t, m.Setup(Options{
		Level:     "info",
		Console:   &buf,
		LogToFile: true,
		LogsDir:   dir,
		AppName:   "carsim-test",
	}))
	logger := m.Logger()
	logger.Info().Msg("persisted")
	require.NoError(t, m.Close())

	files, err := filepath.Glob(filepath.Join(dir, "carsim-test.*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)
}

func TestLoggerBeforeSetupIsNop(t *testing.T) {
	m := NewManager()
	assert.Equal(t, zerolog.Disabled, m.Logger().GetLevel())
}
