package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/chemrig/internal/chasm"
	"github.com/vk/chemrig/internal/ctxlog"
	"github.com/vk/chemrig/internal/vlog"
)

func (d *Dispatcher) handleSetRecordingSpeed(ctx context.Context, in chasm.Instruction) error {
	multiplier, err := intArg(in, 0)
	if err != nil {
		return err
	}
	vlog.SetSpeed(ctx, ctxlog.FromContext(ctx), multiplier)
	return nil
}

// handleWait pauses the run for a fixed number of seconds, logging
// progress as whole percents tick by. Simulation skips the wall-clock
// wait entirely.
func (d *Dispatcher) handleWait(ctx context.Context, in chasm.Instruction) error {
	logger := ctxlog.FromContext(ctx)
	if len(in.Args) != 1 {
		return fmt.Errorf("WAIT takes exactly one argument, got %d", len(in.Args))
	}
	seconds, err := numArg(in, 0)
	if err != nil {
		return err
	}
	if seconds < 0 {
		return fmt.Errorf("wait time must not be negative, got %v", seconds)
	}

	duration := time.Duration(seconds * float64(time.Second))
	if d.simulation {
		logger.Info("Simulated wait.", "seconds", seconds)
		return nil
	}

	deadline := time.Now().Add(duration)
	logger.Info("Waiting.", "seconds", seconds, "until", deadline.Format(time.DateTime))

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	lastPercent := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			remaining := deadline.Sub(now)
			if remaining <= 0 {
				logger.Info("Waiting done.")
				return nil
			}
			percent := int(100 * float64(duration-remaining) / float64(duration))
			if percent > lastPercent {
				lastPercent = percent
				logger.Info("Still waiting.",
					"percentDone", percent, "remaining", remaining.Round(time.Second).String())
			}
		}
	}
}

func (d *Dispatcher) handleBreakpoint(ctx context.Context, in chasm.Instruction) error {
	logger := ctxlog.FromContext(ctx)
	if d.Breakpoint == nil {
		logger.Warn("Breakpoint reached with no handler attached, continuing.", "line", in.Line)
		return nil
	}
	logger.Info("Breakpoint reached, run paused.", "line", in.Line)
	if err := d.Breakpoint(ctx); err != nil {
		return fmt.Errorf("run aborted at breakpoint: %w", err)
	}
	logger.Info("Run resumed.")
	return nil
}
