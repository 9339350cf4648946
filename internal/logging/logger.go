// Package logging configures the process-wide slog logger: JSON or text
// records on stderr, optionally mirrored to a size-rotated log file.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ErrUnknownFormat is returned for a log format other than json or text
var ErrUnknownFormat = errors.New("unknown log format")

// Log formats
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Config represents the logging configuration
type Config struct {
	Level      slog.Level
	Format     string
	FilePath   string
	MaxSize    int64 // MB
	MaxBackups int
	// Console receives records in addition to the file. Nil disables it.
	Console io.Writer
}

// DefaultConfig returns the default logging configuration
func DefaultConfig() Config {
	return Config{
		Level:      slog.LevelInfo,
		Format:     FormatJSON,
		MaxSize:    100,
		MaxBackups: 5,
		Console:    os.Stderr,
	}
}

// ParseLevel converts a level name to slog.Level. Besides the slog names it
// accepts "warning" and offsets such as "debug+2". Empty means info.
func ParseLevel(level string) (slog.Level, error) {
	level = strings.TrimSpace(level)
	switch strings.ToLower(level) {
	case "":
		return slog.LevelInfo, nil
	case "warning":
		return slog.LevelWarn, nil
	}

	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return l, nil
}

// NewLogger creates a logger for config. The returned closer releases the
// log file and must be called once logging is done.
func NewLogger(config Config) (*slog.Logger, io.Closer, error) {
	var writers []io.Writer
	var closer io.Closer = nopCloser{}

	if config.Console != nil {
		writers = append(writers, config.Console)
	}

	if config.FilePath != "" {
		fileWriter, err := NewRotatingFileWriter(
			config.FilePath,
			config.MaxSize*1024*1024,
			config.MaxBackups,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, fileWriter)
		closer = fileWriter
	}

	if len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	writer := writers[0]
	if len(writers) > 1 {
		writer = io.MultiWriter(writers...)
	}

	opts := &slog.HandlerOptions{Level: config.Level}

	var handler slog.Handler
	switch strings.ToLower(config.Format) {
	case "", FormatJSON:
		handler = slog.NewJSONHandler(writer, opts)
	case FormatText:
		handler = slog.NewTextHandler(writer, opts)
	default:
		_ = closer.Close()
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownFormat, config.Format)
	}

	return slog.New(handler), closer, nil
}

// SetDefault creates a logger and installs it as the slog default.
func SetDefault(config Config) (io.Closer, error) {
	logger, closer, err := NewLogger(config)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
