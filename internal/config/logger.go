package config

import (
	"errors"
	"log/slog"
	"os"
	"strings"
)

var (
	errMissingBrokers   = errors.New("bus.brokers is required when bus.driver is kafka")
	errMissingRabbitURL = errors.New("bus.rabbit_url is required when bus.driver is rabbitmq")

	errReconcileGraceTooShort = errors.New("worker.reconcile_grace must be longer than processor.charge_timeout")
)

type LoggerConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// NewLogger builds the process logger. Unknown levels fall back to info.
func (c LoggerConfig) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.level()}

	var handler slog.Handler
	if strings.EqualFold(c.Format, "json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func (c LoggerConfig) level() slog.Level {
	switch strings.ToLower(c.Level) {
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
