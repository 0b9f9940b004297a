package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// logMaxSizeMB, logMaxBackups, and logMaxAgeDays bound the rotated
	// log file the daemon writes when a log file is configured.
	logMaxSizeMB   = 10
	logMaxBackups  = 3
	logMaxAgeDays  = 28
)

// NewLogger creates a structured logger appropriate for the environment.
// Production uses JSON format, development uses human-readable text.
// When logFile is non-empty, output is mirrored to a size-rotated file so
// autonomous passes leave a trail.
func NewLogger(env, logFile string) *slog.Logger {
	var out io.Writer = os.Stdout

	if logFile != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    logMaxSizeMB,
			MaxBackups: logMaxBackups,
			MaxAge:     logMaxAgeDays,
		})
	}

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	var handler slog.Handler

	if env == "production" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler)
}
