package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vk/chemrig/internal/chasm"
	"github.com/vk/chemrig/internal/ctxlog"
	"github.com/vk/chemrig/internal/device"
	"github.com/vk/chemrig/internal/dispatch"
	"github.com/vk/chemrig/internal/driver"
	"github.com/vk/chemrig/internal/registry"
	"github.com/vk/chemrig/internal/rigfile"
	"github.com/vk/chemrig/internal/router"
	"github.com/vk/chemrig/internal/snapshot"
)

// Run executes one script against the configured rig: load the topology,
// bring up every device, compile the script and dispatch it.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.HealthcheckPort > 0 {
		a.startHealthcheckServer(a.config.HealthcheckPort)
	}

	g, specs, err := rigfile.Load(ctx, a.config.RigPath)
	if err != nil {
		return fmt.Errorf("failed to load rig: %w", err)
	}
	a.logger.Info("Rig loaded.", "nodes", len(g.Nodes()), "devices", len(specs))

	if a.config.Resume {
		if err := snapshot.Restore(g, a.config.SnapshotPath); err != nil {
			return fmt.Errorf("failed to resume from snapshot: %w", err)
		}
		a.logger.Info("Vessel volumes restored from snapshot.", "path", a.config.SnapshotPath)
	}

	program, err := chasm.CompileFile(a.config.ScriptPath)
	if err != nil {
		return fmt.Errorf("failed to compile script: %w", err)
	}
	a.logger.Info("Script compiled.", "path", a.config.ScriptPath, "instructions", len(program))

	drivers := driver.NewSet()
	defer a.pool.CloseAll()
	for _, spec := range specs {
		err := a.registry.Build(ctx, &registry.BuildParams{
			Spec:    spec,
			Rig:     g,
			Drivers: drivers,
			Pool:    a.pool,
			Dial: func(address string, port int) (device.Transport, error) {
				return device.DialTCP(address, port, a.config.DialTimeout)
			},
			Logger: a.logger,
		})
		if err != nil {
			return err
		}
	}
	a.logger.Debug("All devices built.")

	rt := router.New(g, drivers, a.config.Simulation)
	disp := dispatch.New(rt, g, drivers, a.config.Simulation)
	if a.config.SnapshotPath != "" {
		disp.AfterInstruction = func(ctx context.Context, _ chasm.Instruction) error {
			return snapshot.Dump(g, a.config.SnapshotPath)
		}
	}
	if a.stdin != nil {
		disp.Breakpoint = a.promptBreakpoint
	}

	a.logger.Info("🚀 Starting run.", "simulation", a.config.Simulation)
	if err := disp.Run(ctx, program); err != nil {
		return fmt.Errorf("run failed: %w", err)
	}
	a.logger.Info("🏁 Run finished.")
	return nil
}

// promptBreakpoint blocks until the operator acknowledges the breakpoint
// on stdin. Typing "abort" stops the run instead.
func (a *App) promptBreakpoint(ctx context.Context) error {
	fmt.Fprintln(a.outW, "Paused at breakpoint. Press enter to continue, or type 'abort' to stop.")
	line, err := a.stdin.ReadString('\n')
	if err != nil {
		return fmt.Errorf("breakpoint prompt: %w", err)
	}
	if strings.TrimSpace(line) == "abort" {
		return errors.New("operator aborted")
	}
	return nil
}
