// Package logger configures the zerolog logger used across sbom-assembler.
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/StinkyLord/sbom-assembler/internal/config"
)

// LevelFromString maps a configured level name to a zerolog level.
// Unknown names fall back to info.
func LevelFromString(level string) zerolog.Level {
	switch level {
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

// FromConfig returns a logger writing to stderr (stdout may carry the
// result) and, when configured, to a log file. The returned closer releases
// the log file.
func FromConfig(cfg config.LoggingConfig) (zerolog.Logger, func() error) {
	return New(cfg, os.Stderr)
}

// New is FromConfig with an explicit console writer.
func New(cfg config.LoggingConfig, console io.Writer) (zerolog.Logger, func() error) {
	closer := func() error { return nil }
	writers := []io.Writer{}

	if cfg.Format == config.LogJSON {
		writers = append(writers, console)
	} else {
		writers = append(writers, zerolog.ConsoleWriter{Out: console, TimeFormat: "15:04:05"})
	}

	var fileErr error
	if cfg.LogFile != "" {
		file, err := os.OpenFile(filepath.Clean(cfg.LogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			fileErr = err
		} else {
			writers = append(writers, file)
			closer = file.Close
		}
	}

	l := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(LevelFromString(cfg.Level)).
		With().Timestamp().Logger()
	if fileErr != nil {
		l.Warn().Err(fileErr).Str("file", cfg.LogFile).Msg("failed to open log file, logging to the console only")
	}
	return l, closer
}
