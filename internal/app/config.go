package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/vk/tickflow/internal/executor"
)

// Config holds all the necessary configuration for an App instance to run.
// Zero values of the run settings defer to the graph description.
type Config struct {
	GraphPath string // .hcl/.yaml file or a directory of them

	Ticks    int
	Interval time.Duration
	Strategy string
	Culling  *bool
	Workers  int

	LogFormat       string
	LogLevel        string
	HealthcheckPort int

	PublishURL   string
	PublishEvent string
	Trace        bool
}

// NewConfig validates cfg and returns a copy of it.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.GraphPath == "" {
		return nil, errors.New("GraphPath is a required configuration field and cannot be empty")
	}
	if cfg.Strategy != "" {
		if _, err := executor.ParseStrategy(cfg.Strategy); err != nil {
			return nil, err
		}
	}
	switch cfg.LogFormat {
	case "", "text", "json", "auto":
	default:
		return nil, fmt.Errorf("invalid log format %q: must be 'text', 'json' or 'auto'", cfg.LogFormat)
	}
	switch cfg.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log level %q: must be 'debug', 'info', 'warn' or 'error'", cfg.LogLevel)
	}
	if cfg.Ticks < 0 {
		return nil, fmt.Errorf("ticks cannot be negative, got %d", cfg.Ticks)
	}
	if cfg.Interval < 0 {
		return nil, fmt.Errorf("interval cannot be negative, got %s", cfg.Interval)
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("workers cannot be negative, got %d", cfg.Workers)
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, fmt.Errorf("healthcheck port %d is out of range", cfg.HealthcheckPort)
	}
	return &cfg, nil
}
