// Package logger builds the process slog.Logger, optionally teeing output into a
// rotated log file.
package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ParseLevel maps debug, warn and error to their slog levels. Anything else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New returns a JSON logger, or a text logger when format is "text". With a
// file path the output also goes to a rotated file; the returned close func
// releases it.
func New(level, format, file string) (*slog.Logger, func() error) {
	return newWithStdout(os.Stdout, level, format, file)
}

func newWithStdout(stdout io.Writer, level, format, file string) (*slog.Logger, func() error) {
	var (
		out     = stdout
		closeFn = func() error { return nil }
	)

	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to create log directory", "path", file, "error", err)
		} else {
			rotator := &lumberjack.Logger{
				Filename:   file,
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     14,
				Compress:   true,
			}
			out = io.MultiWriter(stdout, rotator)
			closeFn = rotator.Close
		}
	}

	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().Format(time.RFC3339Nano))
			}
			return a
		},
	}

	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	return slog.New(handler), closeFn
}
