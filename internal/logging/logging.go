// Package logging configures zerolog for this tool. The terminal belongs to
// bubbletea while a session runs, so diagnostics go to a file or nowhere.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger writing to path, or a nop logger when path is empty.
// The closer is non-nil whenever a file was opened.
func New(path, level string) (zerolog.Logger, io.Closer, error) {
	if path == "" {
		return zerolog.Nop(), nil, nil
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("open log file %s: %w", path, err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	logger := zerolog.New(file).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Logger()
	return logger, file, nil
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
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
