// Package logging sets up the daemon's structured logger.
//
// Adapted from the teacher's inline slog setup in its main (file
// handler writing to a fixed path so a foreground TUI isn't
// corrupted by interleaved log lines) combined with the pack's
// logger.Init multi-writer/ReplaceAttr shape (cross-pack
// enrichment): stdout plus an optional log file, a short time
// format, and an env-gated level instead of the teacher's env-gated
// boolean debug switch.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// LevelEnvVar is the environment variable that sets the log level.
// Accepted values: debug, info, warn, error. Unset or unrecognized
// falls back to info.
const LevelEnvVar = "TERMCORE_LOG_LEVEL"

// Options configures Setup.
type Options struct {
	// LogFilePath, if non-empty, additionally writes log lines to
	// this path (created if missing, appended if present).
	LogFilePath string

	// Level overrides LevelEnvVar when non-empty.
	Level string
}

// Setup builds a *slog.Logger writing to stdout (and opt.LogFilePath,
// if set), installs it as the process default, and returns it along
// with a closer for any opened log file.
func Setup(opt Options) (*slog.Logger, func() error, error) {
	level := opt.Level
	if level == "" {
		level = os.Getenv(LevelEnvVar)
	}

	writers := []io.Writer{os.Stdout}
	closer := func() error { return nil }

	if opt.LogFilePath != "" {
		f, err := os.OpenFile(opt.LogFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, nil, err
		}
		writers = append(writers, f)
		closer = f.Close
	}

	handler := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: parseLevel(level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String("time", a.Value.Time().Format("15:04:05.000"))
			}
			return a
		},
	})

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger, closer, nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SessionLogger returns a logger scoped to a single session id, so
// every log line from that session's pump/ptyproc goroutines carries
// the id without callers repeating it.
func SessionLogger(base *slog.Logger, sessionID string) *slog.Logger {
	return base.With("session_id", sessionID)
}
