// Package registry provides the central "glue" for the driver module
// system.
//
// The Registry stores mappings between the model names used in rig files
// (e.g., "chempump") and the compiled Go constructors that build the
// matching driver on top of a device actor. During application startup
// every core module registers itself, then each device named in the rig
// file is built through its constructor.
package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vk/chemrig/internal/device"
	"github.com/vk/chemrig/internal/driver"
	"github.com/vk/chemrig/internal/rig"
	"github.com/vk/chemrig/internal/rigfile"
)

// Module is the interface that all core modules must implement to be
// registered.
type Module interface {
	Register(r *Registry)
}

// BuildParams carries everything a constructor needs to bring one device
// up and hook it into the driver set.
type BuildParams struct {
	Spec    rigfile.DeviceSpec
	Rig     *rig.Graph
	Drivers *driver.Set
	Pool    *device.Pool

	// Dial opens the transport for one device. The app layer binds it to
	// a real TCP dial; modules supply the port their protocol uses.
	Dial func(address string, port int) (device.Transport, error)

	Logger *slog.Logger
}

// Constructor builds the driver for one rig node.
type Constructor func(ctx context.Context, p *BuildParams) error

// Registry holds all registered driver constructors for a single
// application instance.
type Registry struct {
	constructors map[string]Constructor
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// RegisterDriver registers a constructor under a rig file model name.
func (r *Registry) RegisterDriver(model string, fn Constructor) {
	if _, exists := r.constructors[model]; exists {
		panic(fmt.Sprintf("driver constructor for model '%s' already registered", model))
	}
	slog.Debug("Registering driver constructor.", "model", model)
	r.constructors[model] = fn
}

// Build runs the constructor matching p.Spec.Model.
func (r *Registry) Build(ctx context.Context, p *BuildParams) error {
	fn, ok := r.constructors[p.Spec.Model]
	if !ok {
		return fmt.Errorf("no driver registered for model %q (device %q)", p.Spec.Model, p.Spec.ID)
	}
	if err := fn(ctx, p); err != nil {
		return fmt.Errorf("failed to build device %q: %w", p.Spec.ID, err)
	}
	return nil
}

// Models returns the registered model names, for diagnostics.
func (r *Registry) Models() []string {
	models := make([]string, 0, len(r.constructors))
	for model := range r.constructors {
		models = append(models, model)
	}
	return models
}
