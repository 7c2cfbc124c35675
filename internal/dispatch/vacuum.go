package dispatch

import (
	"context"
	"fmt"

	"github.com/vk/chemrig/internal/chasm"
	"github.com/vk/chemrig/internal/ctxlog"
)

func (d *Dispatcher) handleGetVacSetpoint(ctx context.Context, in chasm.Instruction) error {
	vac, name, err := d.vacuumFor(in)
	if err != nil {
		return err
	}
	setpoint, err := vac.Setpoint(ctx)
	if err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Info("Vacuum setpoint.", "vacuum", name, "mbar", setpoint)
	return nil
}

func (d *Dispatcher) handleSetVacSetpoint(ctx context.Context, in chasm.Instruction) error {
	vac, _, err := d.vacuumFor(in)
	if err != nil {
		return err
	}
	mbar, err := intArg(in, 1)
	if err != nil {
		return err
	}
	return vac.SetSetpoint(ctx, float64(mbar))
}

func (d *Dispatcher) handleGetVacStatus(ctx context.Context, in chasm.Instruction) error {
	vac, name, err := d.vacuumFor(in)
	if err != nil {
		return err
	}
	status, err := vac.Status(ctx)
	if err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Info("Vacuum status.", "vacuum", name, "status", status)
	return nil
}

func (d *Dispatcher) handleGetEndVacSetpoint(ctx context.Context, in chasm.Instruction) error {
	vac, name, err := d.vacuumFor(in)
	if err != nil {
		return err
	}
	setpoint, err := vac.EndSetpoint(ctx)
	if err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Info("Vacuum switch-off setpoint.", "vacuum", name, "mbar", setpoint)
	return nil
}

func (d *Dispatcher) handleSetEndVacSetpoint(ctx context.Context, in chasm.Instruction) error {
	vac, _, err := d.vacuumFor(in)
	if err != nil {
		return err
	}
	mbar, err := intArg(in, 1)
	if err != nil {
		return err
	}
	return vac.SetEndSetpoint(ctx, float64(mbar))
}

func (d *Dispatcher) handleGetRuntime(ctx context.Context, in chasm.Instruction) error {
	vac, name, err := d.vacuumFor(in)
	if err != nil {
		return err
	}
	runtime, err := vac.Runtime(ctx)
	if err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Info("Vacuum runtime setpoint.", "vacuum", name, "runtime", runtime)
	return nil
}

// handleSetRuntime takes the runtime in minutes and converts it to the
// hh:mm form the controller wire format wants.
func (d *Dispatcher) handleSetRuntime(ctx context.Context, in chasm.Instruction) error {
	vac, _, err := d.vacuumFor(in)
	if err != nil {
		return err
	}
	minutes, err := intArg(in, 1)
	if err != nil {
		return err
	}
	if minutes < 0 {
		return fmt.Errorf("runtime must not be negative, got %d", minutes)
	}
	return vac.SetRuntime(ctx, fmt.Sprintf("%02d:%02d", minutes/60, minutes%60))
}

func (d *Dispatcher) handleSetVacSpeed(ctx context.Context, in chasm.Instruction) error {
	vac, _, err := d.vacuumFor(in)
	if err != nil {
		return err
	}
	percent, err := intArg(in, 1)
	if err != nil {
		return err
	}
	return vac.SetSpeed(ctx, float64(percent))
}
