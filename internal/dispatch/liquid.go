package dispatch

import (
	"context"
	"fmt"

	"github.com/vk/chemrig/internal/chasm"
	"github.com/vk/chemrig/internal/router"
)

// Default separator vessels used by SEPARATE when a rig follows the
// standard naming scheme.
const (
	separatorTop    = "flask_separator_top"
	separatorBottom = "flask_separator_bottom"
)

// handleMove runs MOVE src dst volume [moveSpeed [aspirationSpeed
// [dispenseSpeed]]]. The volume "all" transfers the source's entire
// current contents.
func (d *Dispatcher) handleMove(ctx context.Context, in chasm.Instruction) error {
	src, err := strArg(in, 0)
	if err != nil {
		return err
	}
	dst, err := strArg(in, 1)
	if err != nil {
		return err
	}

	var volume float64
	switch v := argAt(in, 2).(type) {
	case chasm.Number:
		volume = float64(v)
	case chasm.Str:
		if string(v) != "all" {
			return fmt.Errorf("MOVE volume must be a number or \"all\", got %q", string(v))
		}
		current, ok := d.rig.CurrentVolume(src)
		if !ok {
			return fmt.Errorf("MOVE \"all\" from %q, which has no volume tracking", src)
		}
		volume = current
	default:
		return fmt.Errorf("MOVE needs at least 3 argument(s), got %d", len(in.Args))
	}

	var speeds router.Speeds
	if speeds.Move, err = optNumArg(in, 3, 0); err != nil {
		return err
	}
	if speeds.Aspirate, err = optNumArg(in, 4, 0); err != nil {
		return err
	}
	if speeds.Dispense, err = optNumArg(in, 5, 0); err != nil {
		return err
	}

	return d.router.Move(ctx, src, dst, volume, speeds)
}

func (d *Dispatcher) handleHome(ctx context.Context, in chasm.Instruction) error {
	pump, err := strArg(in, 0)
	if err != nil {
		return err
	}
	speed, err := optNumArg(in, 1, 0)
	if err != nil {
		return err
	}
	return d.router.Home(ctx, pump, speed)
}

func (d *Dispatcher) handleSeparate(ctx context.Context, in chasm.Instruction) error {
	lowerTarget, err := strArg(in, 0)
	if err != nil {
		return err
	}
	upperTarget, err := strArg(in, 1)
	if err != nil {
		return err
	}
	return d.router.SeparatePhases(ctx, separatorTop, separatorBottom, lowerTarget, upperTarget)
}

func (d *Dispatcher) handlePrime(ctx context.Context, in chasm.Instruction) error {
	aspirationSpeed, err := numArg(in, 0)
	if err != nil {
		return err
	}
	return d.router.PrimeTubes(ctx, aspirationSpeed)
}

func (d *Dispatcher) handleClean(ctx context.Context, in chasm.Instruction) error {
	source, err := strArg(in, 0)
	if err != nil {
		return err
	}
	volume, err := numArg(in, 1)
	if err != nil {
		return err
	}
	return d.router.CleanAll(ctx, source, volume)
}

func (d *Dispatcher) handleSwitchVacuum(ctx context.Context, in chasm.Instruction) error {
	flask, err := strArg(in, 0)
	if err != nil {
		return err
	}
	destination, err := strArg(in, 1)
	if err != nil {
		return err
	}
	return d.router.SwitchVacuum(ctx, flask, destination)
}

func (d *Dispatcher) handleSwitchCartridge(ctx context.Context, in chasm.Instruction) error {
	flask, err := strArg(in, 0)
	if err != nil {
		return err
	}
	cartridge, err := intArg(in, 1)
	if err != nil {
		return err
	}
	return d.router.SwitchCartridge(ctx, flask, cartridge)
}

func (d *Dispatcher) handleSwitchColumn(ctx context.Context, in chasm.Instruction) error {
	column, err := strArg(in, 0)
	if err != nil {
		return err
	}
	destination, err := strArg(in, 1)
	if err != nil {
		return err
	}
	return d.router.SwitchColumn(ctx, column, destination)
}

// argAt returns the i-th argument or nil when the instruction is too
// short, letting callers type-switch without a bounds check.
func argAt(in chasm.Instruction, i int) chasm.Arg {
	if i >= len(in.Args) {
		return nil
	}
	return in.Args[i]
}
