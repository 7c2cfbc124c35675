package chemputer

import (
	"context"
	"strconv"

	"github.com/vk/chemrig/internal/device"
)

// Valve is one distribution valve board.
type Valve struct {
	name  string
	actor *device.Actor
}

// MoveToPosition rotates the valve to the given port.
func (v *Valve) MoveToPosition(ctx context.Context, position int) error {
	return command(ctx, v.actor, cmdMoveToPos, strconv.Itoa(position))
}

// MoveHome rotates the valve to its home position.
func (v *Valve) MoveHome(ctx context.Context) error {
	return command(ctx, v.actor, cmdMoveHome)
}

// ClearErrors resets the board's error flags.
func (v *Valve) ClearErrors(ctx context.Context) error {
	return command(ctx, v.actor, cmdClearErrors)
}

// WaitUntilReady blocks until the board signals DONE for the last move.
func (v *Valve) WaitUntilReady(ctx context.Context) error {
	return waitReady(ctx, v.actor, v.name)
}
