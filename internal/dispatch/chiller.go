package dispatch

import (
	"context"
	"fmt"

	"github.com/vk/chemrig/internal/chasm"
	"github.com/vk/chemrig/internal/ctxlog"
)

func (d *Dispatcher) handleSetChiller(ctx context.Context, in chasm.Instruction) error {
	ch, _, err := d.chillerFor(in)
	if err != nil {
		return err
	}
	celsius, err := numArg(in, 1)
	if err != nil {
		return err
	}
	return ch.SetTemperature(ctx, celsius)
}

func (d *Dispatcher) handleSetCoolingPower(ctx context.Context, in chasm.Instruction) error {
	ch, _, err := d.chillerFor(in)
	if err != nil {
		return err
	}
	percent, err := intArg(in, 1)
	if err != nil {
		return err
	}
	return ch.SetCoolingPower(ctx, float64(percent))
}

func (d *Dispatcher) handleChillerWaitForTemp(ctx context.Context, in chasm.Instruction) error {
	ch, name, err := d.chillerFor(in)
	if err != nil {
		return err
	}
	logger := ctxlog.FromContext(ctx)
	if d.simulation {
		logger.Info("Waiting for chiller temperature... Done.", "chiller", name)
		return nil
	}
	setpoint, err := ch.Setpoint(ctx)
	if err != nil {
		return err
	}
	return waitForSetpoint(ctx, logger, name, setpoint, ch.Temperature)
}

// handleRampChiller programs a temperature ramp: RAMP_CHILLER name
// durationSeconds targetCelsius.
func (d *Dispatcher) handleRampChiller(ctx context.Context, in chasm.Instruction) error {
	ch, _, err := d.chillerFor(in)
	if err != nil {
		return err
	}
	seconds, err := intArg(in, 1)
	if err != nil {
		return err
	}
	celsius, err := numArg(in, 2)
	if err != nil {
		return err
	}
	if err := ch.SetRampDuration(ctx, seconds); err != nil {
		return err
	}
	return ch.StartRamp(ctx, celsius)
}

// handleSwitchChiller toggles the relay that moves a vessel between two
// chiller circuits. The relay hangs off the vessel, not the chiller.
func (d *Dispatcher) handleSwitchChiller(ctx context.Context, in chasm.Instruction) error {
	vessel, err := strArg(in, 0)
	if err != nil {
		return err
	}
	on, err := onOffArg(in, 1)
	if err != nil {
		return err
	}

	node, ok := d.rig.Node(vessel)
	if !ok || node.ChillerSwitch == "" {
		return fmt.Errorf("no chiller switch on %q", vessel)
	}
	sw, ok := d.drivers.Switches[node.ChillerSwitch]
	if !ok {
		return fmt.Errorf("no driver for switch %q", node.ChillerSwitch)
	}

	ctxlog.FromContext(ctx).Info("Switching chiller circuit.", "vessel", vessel, "on", on)
	return sw.Set(ctx, on)
}

func onOffArg(in chasm.Instruction, i int) (bool, error) {
	switch v := argAt(in, i).(type) {
	case chasm.Number:
		return v != 0, nil
	case chasm.Str:
		switch string(v) {
		case "1", "on":
			return true, nil
		case "0", "off":
			return false, nil
		}
	}
	return false, fmt.Errorf("%s argument %d must be an on/off state", in.Op, i+1)
}
