package app

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/chemrig/internal/device"
	"github.com/vk/chemrig/internal/registry"
	"github.com/vk/chemrig/internal/vlog"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW     io.Writer
	stdin    *bufio.Reader
	logger   *slog.Logger
	config   *Config
	registry *registry.Registry
	pool     *device.Pool

	forwarder *vlog.Forwarder
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and
// registry. inR feeds breakpoint prompts; nil disables them. When no
// modules are passed the built-in set matching cfg.Simulation is used.
func NewApp(outW io.Writer, inR io.Reader, cfg *Config, modules ...registry.Module) (*App, error) {
	var forwarder *vlog.Forwarder
	if cfg.VideoEndpoint != "" {
		f, err := vlog.NewForwarder(cfg.VideoEndpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to video logger: %w", err)
		}
		forwarder = f
	}

	var sink vlog.Sink
	if forwarder != nil {
		sink = forwarder
	}
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW, sink)
	logger.Debug("Logger configured successfully.")

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
		if cfg.Simulation {
			modules = simModules
		}
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All driver modules registered.", "count", len(modules), "models", reg.Models())

	a := &App{
		outW:      outW,
		logger:    logger,
		config:    cfg,
		registry:  reg,
		pool:      device.NewPool(),
		forwarder: forwarder,
	}
	if inR != nil {
		a.stdin = bufio.NewReader(inR)
	}
	return a, nil
}

// Registry returns the application's registry. This is primarily for
// testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Close releases every connection the app holds.
func (a *App) Close() {
	a.pool.CloseAll()
	if a.forwarder != nil {
		a.forwarder.Close()
	}
}
