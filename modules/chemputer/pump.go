package chemputer

import (
	"context"
	"math"
	"strconv"

	"github.com/vk/chemrig/internal/device"
)

// hardHomeMinSpeed is the slowest speed at which the plunger reliably
// stalls against the base, in microliters per minute.
const hardHomeMinSpeed = 35000

// Pump is one syringe pump board.
type Pump struct {
	name  string
	actor *device.Actor
}

// MoveAbsolute drives the plunger to an absolute fill volume in
// millilitres at the given speed in millilitres per minute.
func (p *Pump) MoveAbsolute(ctx context.Context, volume, speed float64) error {
	return command(ctx, p.actor, cmdMoveAbsolute, microliters(volume), microliters(speed))
}

// MoveRelative moves the plunger by volume millilitres relative to its
// current position.
func (p *Pump) MoveRelative(ctx context.Context, volume, speed float64) error {
	return command(ctx, p.actor, cmdMoveRelative, microliters(volume), microliters(speed))
}

// MoveToHome drives the plunger to the zero position.
func (p *Pump) MoveToHome(ctx context.Context, speed float64) error {
	return command(ctx, p.actor, cmdMovePumpHome, microliters(speed))
}

// HardHome finds the zero position by stalling the plunger against the
// base. Speeds below the stall threshold are rejected because the board
// cannot detect the stall.
func (p *Pump) HardHome(ctx context.Context, speed float64) error {
	ul, err := strconv.Atoi(microliters(speed))
	if err != nil || ul < hardHomeMinSpeed {
		return device.Errorf(p.name, device.InvalidParameter,
			"hard home needs at least %d uL/min, got %s", hardHomeMinSpeed, microliters(speed))
	}
	return command(ctx, p.actor, cmdHardHome, microliters(speed))
}

// ClearErrors resets the board's error flags.
func (p *Pump) ClearErrors(ctx context.Context) error {
	return command(ctx, p.actor, cmdClearErrors)
}

// WaitUntilReady blocks until the board signals DONE for the last move.
func (p *Pump) WaitUntilReady(ctx context.Context) error {
	return waitReady(ctx, p.actor, p.name)
}

// microliters converts a millilitre quantity to the integer microliter
// string the wire format wants.
func microliters(ml float64) string {
	return strconv.Itoa(int(math.Round(ml * 1000)))
}
