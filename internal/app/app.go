package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/specialistvlad/tensorgrid/internal/ctxlog"
	"github.com/specialistvlad/tensorgrid/internal/layers"
	"github.com/specialistvlad/tensorgrid/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW       io.Writer
	ctx        context.Context
	logger     *slog.Logger
	logCloser  io.Closer
	config     *Config
	registry   *registry.Registry
	httpServer *http.Server
}

// NewApp is the constructor for the main application. It returns an App
// with its own isolated logger and a validated layer registry. A registry
// that does not match the compiled-in kinds is a programmer error and
// panics.
func NewApp(outW io.Writer, cfg *Config, modules ...registry.Module) *App {
	logger, closer := newLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogFile, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	reg, err := layers.NewRegistry(ctx, cfg.ManifestDir, modules...)
	if err != nil {
		closer.Close()
		panic(fmt.Errorf("failed to build layer registry: %w", err))
	}
	logger.Debug("Layer registry ready.", "layers", len(reg.DisplayNames()))

	return &App{
		outW:      outW,
		ctx:       ctx,
		logger:    logger,
		logCloser: closer,
		config:    cfg,
		registry:  reg,
	}
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Close releases the log file, if any.
func (a *App) Close() error {
	return a.logCloser.Close()
}
