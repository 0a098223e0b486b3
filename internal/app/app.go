package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/vk/tickflow/internal/config"
	"github.com/vk/tickflow/internal/ctxlog"
	"github.com/vk/tickflow/internal/graph"
	"github.com/vk/tickflow/internal/metrics"
	"github.com/vk/tickflow/internal/publish"
	"github.com/vk/tickflow/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	traceW io.Writer
	logger *slog.Logger
	cfg    *Config

	registry   *registry.Registry
	model      *config.Model
	metrics    *metrics.Registry
	publisher  *publish.Publisher
	httpServer *http.Server
	graph      *graph.Manager
}

// NewApp is the constructor for the main application. It loads the graph
// description and registers modules (the core set when none are given), but
// builds nothing yet.
func NewApp(outW io.Writer, cfg *Config, modules ...registry.Module) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, err := loadModel(ctx, cfg.GraphPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Debug("Configuration loaded and translated into unified model.")

	a := &App{
		outW:     outW,
		traceW:   os.Stderr,
		logger:   logger,
		cfg:      cfg,
		registry: registry.New(),
		model:    model,
		metrics:  metrics.NewRegistry(),
	}
	if len(modules) == 0 {
		modules = a.coreModules()
	}
	a.registry.RegisterModules(ctx, modules...)
	logger.Debug("All Go modules registered.", "count", len(modules), "types", a.registry.Types())
	return a, nil
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Model returns the loaded graph description.
func (a *App) Model() *config.Model {
	return a.model
}

func (a *App) runID() string {
	if a.graph == nil {
		return ""
	}
	return a.graph.RunID()
}
