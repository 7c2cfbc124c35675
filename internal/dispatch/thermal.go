package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/vk/chemrig/internal/chasm"
	"github.com/vk/chemrig/internal/ctxlog"
)

const setpointTolerance = 0.5 // °C

// setpointPollInterval is a variable so tests can tighten the loop.
var setpointPollInterval = 5 * time.Second

func (d *Dispatcher) handleSetTemp(ctx context.Context, in chasm.Instruction) error {
	st, _, err := d.stirrerFor(in)
	if err != nil {
		return err
	}
	celsius, err := numArg(in, 1)
	if err != nil {
		return err
	}
	return st.SetTemperature(ctx, celsius)
}

func (d *Dispatcher) handleSetStirRPM(ctx context.Context, in chasm.Instruction) error {
	st, _, err := d.stirrerFor(in)
	if err != nil {
		return err
	}
	rpm, err := intArg(in, 1)
	if err != nil {
		return err
	}
	return st.SetStirRate(ctx, float64(rpm))
}

func (d *Dispatcher) handleStirrerWaitForTemp(ctx context.Context, in chasm.Instruction) error {
	st, name, err := d.stirrerFor(in)
	if err != nil {
		return err
	}
	logger := ctxlog.FromContext(ctx)
	if d.simulation {
		logger.Info("Waiting for temperature... Done.", "stirrer", name)
		return nil
	}
	setpoint, err := st.TemperatureSetpoint(ctx)
	if err != nil {
		return err
	}
	return waitForSetpoint(ctx, logger, name, setpoint, st.Temperature)
}

func (d *Dispatcher) handleSetBathTemp(ctx context.Context, in chasm.Instruction) error {
	rv, _, err := d.rotavapFor(in)
	if err != nil {
		return err
	}
	celsius, err := numArg(in, 1)
	if err != nil {
		return err
	}
	return rv.SetBathTemperature(ctx, celsius)
}

func (d *Dispatcher) handleSetRotation(ctx context.Context, in chasm.Instruction) error {
	rv, _, err := d.rotavapFor(in)
	if err != nil {
		return err
	}
	rpm, err := intArg(in, 1)
	if err != nil {
		return err
	}
	return rv.SetRotationSpeed(ctx, float64(rpm))
}

func (d *Dispatcher) handleSetInterval(ctx context.Context, in chasm.Instruction) error {
	rv, _, err := d.rotavapFor(in)
	if err != nil {
		return err
	}
	seconds, err := intArg(in, 1)
	if err != nil {
		return err
	}
	return rv.SetInterval(ctx, seconds)
}

func (d *Dispatcher) handleRotavapWaitForTemp(ctx context.Context, in chasm.Instruction) error {
	rv, name, err := d.rotavapFor(in)
	if err != nil {
		return err
	}
	logger := ctxlog.FromContext(ctx)
	if d.simulation {
		logger.Info("Waiting for bath temperature... Done.", "rotavap", name)
		return nil
	}
	setpoint, err := rv.BathTemperatureSetpoint(ctx)
	if err != nil {
		return err
	}
	return waitForSetpoint(ctx, logger, name, setpoint, rv.BathTemperature)
}

// waitForSetpoint polls the probe until the temperature crosses the
// setpoint from whichever side it started on. There is no timeout; a
// reaction waits as long as the thermodynamics demand, and the context
// is the only way out.
func waitForSetpoint(ctx context.Context, logger *slog.Logger, device string, setpoint float64, read func(context.Context) (float64, error)) error {
	current, err := read(ctx)
	if err != nil {
		return err
	}
	heating := current < setpoint

	for {
		if heating && current >= setpoint-setpointTolerance {
			break
		}
		if !heating && current <= setpoint+setpointTolerance {
			break
		}
		logger.Info("Waiting for temperature.",
			"device", device, "currentC", current, "setpointC", setpoint)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(setpointPollInterval):
		}
		if current, err = read(ctx); err != nil {
			return err
		}
	}
	logger.Info("Temperature reached.", "device", device, "setpointC", setpoint)
	return nil
}
