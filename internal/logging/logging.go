package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
)

// Options configures the process logger sinks.
type Options struct {
	Level   string
	Console io.Writer // defaults to os.Stdout

	LogToFile bool
	LogsDir   string
	AppName   string

	GraylogEnabled bool
	GraylogAddress string
}

// Manager builds the process logger and owns the sinks that need closing.
type Manager struct {
	logger zerolog.Logger
	file   *os.File
}

func NewManager() *Manager {
	return &Manager{logger: zerolog.Nop()}
}

// Setup wires the configured sinks into a single logger. Failure to open
// the file or Graylog sink is an error; the console sink always works.
func (m *Manager) Setup(opts Options) error {
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	writers := []io.Writer{zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339}}

	if opts.LogToFile {
		if err := os.MkdirAll(opts.LogsDir, 0755); err != nil {
			return fmt.Errorf("create logs dir: %w", err)
		}
		f, err := os.OpenFile(
			LogFilePath(opts.LogsDir, opts.AppName, time.Now()),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644,
		)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		m.file = f
		writers = append(writers, f)
	}

	if opts.GraylogEnabled {
		gw, err := gelf.NewWriter(opts.GraylogAddress)
		if err != nil {
			return fmt.Errorf("connect graylog %s: %w", opts.GraylogAddress, err)
		}
		writers = append(writers, gw)
	}

	m.logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ParseLevel(opts.Level)).
		With().Timestamp().Logger()
	return nil
}

// Logger returns the configured logger. Before Setup it is a no-op logger.
func (m *Manager) Logger() zerolog.Logger {
	return m.logger
}

// Close releases the file sink if one was opened.
func (m *Manager) Close() error {
	if m.file != nil {
		return m.file.Close()
	}
	return nil
}

// ParseLevel converts a config string to a zerolog level, defaulting to
// info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// LogFilePath builds a log file path using OS-appropriate path separators.
func LogFilePath(logsDir, appName string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", appName, sessionStart.Format("20060102_150405")),
	)
}
