// Package dispatch executes compiled instruction streams against the
// router and the device drivers. Parallel instructions run on their own
// goroutines; a sequential instruction first joins every outstanding
// parallel task, so scripts get a barrier between phases for free.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vk/chemrig/internal/chasm"
	"github.com/vk/chemrig/internal/ctxlog"
	"github.com/vk/chemrig/internal/driver"
	"github.com/vk/chemrig/internal/rig"
	"github.com/vk/chemrig/internal/router"
)

type handlerFunc func(ctx context.Context, in chasm.Instruction) error

// Dispatcher walks a compiled program and hands each instruction to its
// opcode handler. The handler table is closed: every opcode the compiler
// can emit has an entry.
type Dispatcher struct {
	router     *router.Router
	rig        *rig.Graph
	drivers    *driver.Set
	simulation bool

	// Breakpoint runs for BREAKPOINT instructions. The run resumes when
	// it returns nil and aborts on error. A nil hook logs and continues.
	Breakpoint func(ctx context.Context) error

	// AfterInstruction runs once an instruction finished, before the next
	// one starts. The run controller snapshots vessel volumes here.
	AfterInstruction func(ctx context.Context, in chasm.Instruction) error

	handlers map[chasm.Opcode]handlerFunc

	wg       sync.WaitGroup
	mu       sync.Mutex
	firstErr error
}

func New(rt *router.Router, g *rig.Graph, drivers *driver.Set, simulation bool) *Dispatcher {
	d := &Dispatcher{router: rt, rig: g, drivers: drivers, simulation: simulation}
	d.handlers = map[chasm.Opcode]handlerFunc{
		chasm.OpMove:            d.handleMove,
		chasm.OpHome:            d.handleHome,
		chasm.OpSeparate:        d.handleSeparate,
		chasm.OpPrime:           d.handlePrime,
		chasm.OpClean:           d.handleClean,
		chasm.OpSwitchVacuum:    d.handleSwitchVacuum,
		chasm.OpSwitchCartridge: d.handleSwitchCartridge,
		chasm.OpSwitchColumn:    d.handleSwitchColumn,

		chasm.OpStartStir:          d.stirrerOp(driver.Stirrer.StartStirring),
		chasm.OpStopStir:           d.stirrerOp(driver.Stirrer.StopStirring),
		chasm.OpStartHeat:          d.stirrerOp(driver.Stirrer.StartHeating),
		chasm.OpStopHeat:           d.stirrerOp(driver.Stirrer.StopHeating),
		chasm.OpSetTemp:            d.handleSetTemp,
		chasm.OpSetStirRPM:         d.handleSetStirRPM,
		chasm.OpStirrerWaitForTemp: d.handleStirrerWaitForTemp,

		chasm.OpStartHeaterBath: d.rotavapOp(driver.Rotavap.StartHeaterBath),
		chasm.OpStopHeaterBath:  d.rotavapOp(driver.Rotavap.StopHeaterBath),
		chasm.OpStartRotation:   d.rotavapOp(driver.Rotavap.StartRotation),
		chasm.OpStopRotation:    d.rotavapOp(driver.Rotavap.StopRotation),
		chasm.OpLiftArmUp:       d.rotavapOp(driver.Rotavap.LiftUp),
		chasm.OpLiftArmDown:     d.rotavapOp(driver.Rotavap.LiftDown),
		chasm.OpResetRotavap:    d.rotavapOp(driver.Rotavap.Reset),
		chasm.OpSetBathTemp:     d.handleSetBathTemp,
		chasm.OpSetRotation:     d.handleSetRotation,
		chasm.OpSetInterval:     d.handleSetInterval,
		chasm.OpRVWaitForTemp:   d.handleRotavapWaitForTemp,

		chasm.OpInitVacPump:  d.vacuumOp(driver.Vacuum.Initialise),
		chasm.OpStartVac:     d.vacuumOp(driver.Vacuum.Start),
		chasm.OpStopVac:      d.vacuumOp(driver.Vacuum.Stop),
		chasm.OpVentVac:      d.vacuumOp(driver.Vacuum.Vent),
		chasm.OpGetVacSP:     d.handleGetVacSetpoint,
		chasm.OpSetVacSP:     d.handleSetVacSetpoint,
		chasm.OpGetVacStatus: d.handleGetVacStatus,
		chasm.OpGetEndVacSP:  d.handleGetEndVacSetpoint,
		chasm.OpSetEndVacSP:  d.handleSetEndVacSetpoint,
		chasm.OpGetRuntimeSP: d.handleGetRuntime,
		chasm.OpSetRuntimeSP: d.handleSetRuntime,
		chasm.OpSetSpeedSP:   d.handleSetVacSpeed,

		chasm.OpStartChiller:       d.chillerOp(driver.Chiller.Start),
		chasm.OpStopChiller:        d.chillerOp(driver.Chiller.Stop),
		chasm.OpSetChiller:         d.handleSetChiller,
		chasm.OpChillerWaitForTemp: d.handleChillerWaitForTemp,
		chasm.OpRampChiller:        d.handleRampChiller,
		chasm.OpSwitchChiller:      d.handleSwitchChiller,
		chasm.OpSetCoolingPower:    d.handleSetCoolingPower,

		chasm.OpSetRecordingSpeed: d.handleSetRecordingSpeed,
		chasm.OpWait:              d.handleWait,
		chasm.OpBreakpoint:        d.handleBreakpoint,
	}
	return d
}

// Run executes the program in order. It returns on the first sequential
// failure or the first parallel failure observed at a barrier; parallel
// siblings already in flight run to completion before the error surfaces.
func (d *Dispatcher) Run(ctx context.Context, program []chasm.Instruction) error {
	for _, in := range program {
		if in.Mode == chasm.Sequential {
			if err := d.barrier(); err != nil {
				return err
			}
			if err := d.exec(ctx, in); err != nil {
				return err
			}
			continue
		}

		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := d.exec(ctx, in); err != nil {
				d.record(err)
			}
		}()
	}
	return d.barrier()
}

func (d *Dispatcher) exec(ctx context.Context, in chasm.Instruction) error {
	logger := ctxlog.FromContext(ctx)

	handle, ok := d.handlers[in.Op]
	if !ok {
		return fmt.Errorf("line %d: no handler for %s", in.Line, in.Op)
	}
	logger.Debug("Executing instruction.", "mode", in.Mode.String(), "opcode", in.Op.String(), "line", in.Line)

	if err := handle(ctx, in); err != nil {
		var rerr *rig.RoutingError
		if errors.As(err, &rerr) {
			logger.Warn("No route for transfer, instruction skipped.", "line", in.Line, "error", err)
		} else {
			return fmt.Errorf("line %d: %s: %w", in.Line, in.Op, err)
		}
	}

	if d.AfterInstruction != nil {
		return d.AfterInstruction(ctx, in)
	}
	return nil
}

// barrier joins all outstanding parallel tasks and reports the first
// error any of them recorded.
func (d *Dispatcher) barrier() error {
	d.wg.Wait()
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.firstErr
	d.firstErr = nil
	return err
}

func (d *Dispatcher) record(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.firstErr == nil {
		d.firstErr = err
	}
}

// stirrerOp adapts a no-argument stirrer method into a handler taking the
// stirrer name as the instruction's only argument.
func (d *Dispatcher) stirrerOp(fn func(driver.Stirrer, context.Context) error) handlerFunc {
	return func(ctx context.Context, in chasm.Instruction) error {
		st, _, err := d.stirrerFor(in)
		if err != nil {
			return err
		}
		return fn(st, ctx)
	}
}

func (d *Dispatcher) rotavapOp(fn func(driver.Rotavap, context.Context) error) handlerFunc {
	return func(ctx context.Context, in chasm.Instruction) error {
		rv, _, err := d.rotavapFor(in)
		if err != nil {
			return err
		}
		return fn(rv, ctx)
	}
}

func (d *Dispatcher) vacuumOp(fn func(driver.Vacuum, context.Context) error) handlerFunc {
	return func(ctx context.Context, in chasm.Instruction) error {
		vac, _, err := d.vacuumFor(in)
		if err != nil {
			return err
		}
		return fn(vac, ctx)
	}
}

func (d *Dispatcher) chillerOp(fn func(driver.Chiller, context.Context) error) handlerFunc {
	return func(ctx context.Context, in chasm.Instruction) error {
		ch, _, err := d.chillerFor(in)
		if err != nil {
			return err
		}
		return fn(ch, ctx)
	}
}

func (d *Dispatcher) stirrerFor(in chasm.Instruction) (driver.Stirrer, string, error) {
	name, err := strArg(in, 0)
	if err != nil {
		return nil, "", err
	}
	st, ok := d.drivers.Stirrers[name]
	if !ok {
		return nil, "", fmt.Errorf("no stirrer %q", name)
	}
	return st, name, nil
}

func (d *Dispatcher) rotavapFor(in chasm.Instruction) (driver.Rotavap, string, error) {
	name, err := strArg(in, 0)
	if err != nil {
		return nil, "", err
	}
	rv, ok := d.drivers.Rotavaps[name]
	if !ok {
		return nil, "", fmt.Errorf("no rotavap %q", name)
	}
	return rv, name, nil
}

func (d *Dispatcher) vacuumFor(in chasm.Instruction) (driver.Vacuum, string, error) {
	name, err := strArg(in, 0)
	if err != nil {
		return nil, "", err
	}
	vac, ok := d.drivers.Vacuums[name]
	if !ok {
		return nil, "", fmt.Errorf("no vacuum pump %q", name)
	}
	return vac, name, nil
}

func (d *Dispatcher) chillerFor(in chasm.Instruction) (driver.Chiller, string, error) {
	name, err := strArg(in, 0)
	if err != nil {
		return nil, "", err
	}
	ch, ok := d.drivers.Chillers[name]
	if !ok {
		return nil, "", fmt.Errorf("no chiller %q", name)
	}
	return ch, name, nil
}

func strArg(in chasm.Instruction, i int) (string, error) {
	if i >= len(in.Args) {
		return "", fmt.Errorf("%s needs at least %d argument(s), got %d", in.Op, i+1, len(in.Args))
	}
	s, ok := in.Args[i].(chasm.Str)
	if !ok {
		return "", fmt.Errorf("%s argument %d must be a name", in.Op, i+1)
	}
	return string(s), nil
}

func numArg(in chasm.Instruction, i int) (float64, error) {
	if i >= len(in.Args) {
		return 0, fmt.Errorf("%s needs at least %d argument(s), got %d", in.Op, i+1, len(in.Args))
	}
	n, ok := in.Args[i].(chasm.Number)
	if !ok {
		return 0, fmt.Errorf("%s argument %d must be a number", in.Op, i+1)
	}
	return float64(n), nil
}

func intArg(in chasm.Instruction, i int) (int, error) {
	n, err := numArg(in, i)
	if err != nil {
		return 0, err
	}
	if n != float64(int(n)) {
		return 0, fmt.Errorf("%s argument %d must be an integer", in.Op, i+1)
	}
	return int(n), nil
}

// optNumArg reads an optional trailing numeric argument.
func optNumArg(in chasm.Instruction, i int, fallback float64) (float64, error) {
	if i >= len(in.Args) {
		return fallback, nil
	}
	return numArg(in, i)
}
