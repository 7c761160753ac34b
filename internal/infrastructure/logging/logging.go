// Package logging configures the process-wide structured logger.
package logging

import (
	"log/slog"
	"os"
	"time"
)

// Config holds logger configuration.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// New builds a slog.Logger for the given configuration and installs it as
// the process default.
func New(cfg Config) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// Common attribute keys for consistent logging across the application.

func UserID(id string) slog.Attr {
	return slog.String("user_id", id)
}

func Role(name string) slog.Attr {
	return slog.String("role", name)
}

func Domain(domain string) slog.Attr {
	return slog.String("domain", domain)
}

func Service(service string) slog.Attr {
	return slog.String("service", service)
}

func Reason(reason string) slog.Attr {
	return slog.String("reason", reason)
}

func ConfigVersion(version string) slog.Attr {
	return slog.String("config_version", version)
}

func Err(err error) slog.Attr {
	return slog.Any("error", err)
}
