// Package logging configures the zerolog logger shared by the trace
// commands.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// LogFilePath builds a log file path using OS-appropriate path separators.
func LogFilePath(logsDir, toolName string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", toolName, sessionStart.Format("20060102_150405")),
	)
}

// Setup builds the logger from viper config: console output on stderr,
// plus an optional log file (logsDir) and an optional GELF sink
// (graylog.enabled / graylog.address). The reference tooling's debug flag
// maps to logLevel=debug.
func Setup(toolName string) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(viper.GetString("logLevel"))
	if err != nil {
		level = zerolog.InfoLevel
	}

	writers := []io.Writer{
		zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339},
	}

	if dir := viper.GetString("logsDir"); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return zerolog.Nop(), fmt.Errorf("creating logs dir: %w", err)
		}
		f, err := os.OpenFile(
			LogFilePath(dir, toolName, time.Now()),
			os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644,
		)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("opening log file: %w", err)
		}
		writers = append(writers, f)
	}

	if viper.GetBool("graylog.enabled") {
		gw, err := gelf.NewWriter(viper.GetString("graylog.address"))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("connecting to graylog: %w", err)
		}
		writers = append(writers, gw)
	}

	log := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().Timestamp().Str("tool", toolName).
		Logger()
	return log, nil
}
