// Package logging provides structured logging with file and console
// output. The daemon's stdout carries the event protocol, so console
// logging always goes to stderr.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration.
type Config struct {
	Dir     string // Directory for log files (default: ~/.cortexvoice/logs)
	Level   string // Minimum log level (default: info)
	Console bool   // Also log human-readable to stderr
}

// Logger is a zerolog.Logger bound to its log file.
type Logger struct {
	zerolog.Logger
	file *os.File
	path string
}

// New creates a logger writing JSON to a date-named file under
// cfg.Dir, plus a console writer on stderr when enabled.
func New(cfg Config) (*Logger, error) {
	if cfg.Dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		cfg.Dir = filepath.Join(home, ".cortexvoice", "logs")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	path := filepath.Join(cfg.Dir, fmt.Sprintf("cortexvoice_%s.log", time.Now().Format("2006-01-02")))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	writers := []io.Writer{file}
	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
		})
	}

	SetLevel(cfg.Level)

	zlog := zerolog.New(io.MultiWriter(writers...)).With().
		Timestamp().
		Str("app", "cortexvoice").
		Logger()

	return &Logger{Logger: zlog, file: file, path: path}, nil
}

// Path returns the active log file path.
func (l *Logger) Path() string {
	return l.path
}

// Close closes the log file.
func (l *Logger) Close() error {
	return l.file.Close()
}

// SetLevel applies a named level globally. Unknown names fall back to
// info.
func SetLevel(level string) {
	zerolog.SetGlobalLevel(ParseLevel(level))
}

// ParseLevel maps a config level name onto a zerolog level.
func ParseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
