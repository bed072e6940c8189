// Package gwlog builds the gateway's structured logger from SystemConfig's
// log level and rotation policy.
package gwlog

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Level is the gateway's six-value log level enum (spec §3 SystemConfig).
// slog only has four levels, so Trace and Critical are mapped onto slog's
// offset scale rather than dropped.
type Level string

const (
	LevelTrace    Level = "trace"
	LevelDebug    Level = "debug"
	LevelInfo     Level = "info"
	LevelWarn     Level = "warn"
	LevelError    Level = "error"
	LevelCritical Level = "critical"
)

const (
	slogLevelTrace    = slog.LevelDebug - 4
	slogLevelCritical = slog.LevelError + 4
)

// ParseLevel converts a SystemConfig log level string into an slog.Level.
func ParseLevel(level Level) slog.Level {
	switch Level(strings.ToLower(strings.TrimSpace(string(level)))) {
	case LevelTrace:
		return slogLevelTrace
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	case LevelCritical:
		return slogLevelCritical
	case LevelInfo, "":
		return slog.LevelInfo
	default:
		return slog.LevelInfo
	}
}

// RotationPolicy mirrors SystemConfig's log_rotation section.
type RotationPolicy struct {
	MaxSizeMB int
	MaxFiles  int
}

// Config configures New.
type Config struct {
	Level    Level
	Rotation RotationPolicy
	// Filename is the rotating log file path. Empty means stdout.
	Filename string
	// JSON selects slog.NewJSONHandler over slog.NewTextHandler.
	JSON bool
}

// New builds a logger per Config, using a lumberjack rotating writer when a
// Filename is configured.
func New(cfg Config) *slog.Logger {
	level := ParseLevel(cfg.Level)
	writer := writerFor(cfg)

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lv, ok := a.Value.Any().(slog.Level); ok {
					a.Value = slog.StringValue(levelString(lv))
				}
			}
			return a
		},
	}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}
	return slog.New(handler)
}

func writerFor(cfg Config) io.Writer {
	if cfg.Filename == "" {
		return os.Stdout
	}
	return &lumberjack.Logger{
		Filename: cfg.Filename,
		MaxSize:  cfg.Rotation.MaxSizeMB,
		MaxAge:   0,
		// MaxFiles has no direct lumberjack field; lumberjack calls this
		// MaxBackups (retained old files, not counting the current one).
		MaxBackups: cfg.Rotation.MaxFiles,
		Compress:   true,
	}
}

func levelString(lv slog.Level) string {
	switch {
	case lv <= slogLevelTrace:
		return "TRACE"
	case lv < slog.LevelInfo:
		return "DEBUG"
	case lv < slog.LevelWarn:
		return "INFO"
	case lv < slog.LevelError:
		return "WARN"
	case lv < slogLevelCritical:
		return "ERROR"
	default:
		return "CRITICAL"
	}
}
