// Package router turns abstract liquid transfers into concrete pump and
// valve motion. A transfer follows a path of valves; one shared valve
// means a simple aspirate/dispense cycle, more valves mean a bucket
// brigade passing the liquid down the backbone one syringe at a time.
package router

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/chemrig/internal/ctxlog"
	"github.com/vk/chemrig/internal/driver"
	"github.com/vk/chemrig/internal/rig"
)

const (
	// DefaultSpeed applies wherever a script leaves a speed out.
	DefaultSpeed = 50.0 // mL/min

	// equilibrationTime lets pressure settle between aspirate and
	// dispense so syringe readings stay honest.
	equilibrationTime = time.Second
)

// Router owns the motion algorithms. Simulation mode skips the real-time
// equilibration pauses.
type Router struct {
	rig        *rig.Graph
	drivers    *driver.Set
	simulation bool
}

func New(g *rig.Graph, drivers *driver.Set, simulation bool) *Router {
	return &Router{rig: g, drivers: drivers, simulation: simulation}
}

// Speeds bundles the three pump speeds of one transfer, all in mL/min.
// Zero fields fall back to Move, and Move falls back to DefaultSpeed.
type Speeds struct {
	Move     float64
	Aspirate float64
	Dispense float64
}

func (s Speeds) normalized() Speeds {
	if s.Move == 0 {
		s.Move = DefaultSpeed
	}
	if s.Aspirate == 0 {
		s.Aspirate = s.Move
	}
	if s.Dispense == 0 {
		s.Dispense = s.Move
	}
	return s
}

// Move transfers volume millilitres from src to dst. Overdraw and
// overfill are warned about, never rejected: vessel volumes are running
// estimates, and compound operations legitimately move guessed amounts.
// Volume bookkeeping updates only after the physical motion finished.
func (r *Router) Move(ctx context.Context, src, dst string, volume float64, speeds Speeds) error {
	logger := ctxlog.FromContext(ctx)
	speeds = speeds.normalized()

	path, err := r.rig.FindPath(src, dst)
	if err != nil {
		return err
	}

	if srcVolume, ok := r.rig.CurrentVolume(src); ok && volume > srcVolume {
		logger.Warn("MOVE withdraws more than the current volume.",
			"requestedMl", volume, "currentMl", srcVolume, "source", src)
	}
	if dstVolume, ok := r.rig.CurrentVolume(dst); ok {
		if dstMax, ok := r.rig.MaxVolume(dst); ok && volume > dstMax-dstVolume {
			logger.Warn("MOVE overfills the target.",
				"requestedMl", volume, "headroomMl", dstMax-dstVolume, "target", dst)
		}
	}

	logger.Info("Moving liquid.",
		"volumeMl", volume, "from", src, "to", dst,
		"moveSpeed", speeds.Move, "aspirationSpeed", speeds.Aspirate, "dispenseSpeed", speeds.Dispense)

	valves := path[1 : len(path)-1]
	switch len(valves) {
	case 0:
		return fmt.Errorf("path from %q to %q contains no valves", src, dst)
	case 1:
		err = r.moveSingleValve(ctx, valves[0], src, dst, volume, speeds)
	default:
		err = r.moveBucketBrigade(ctx, valves, src, dst, volume, speeds)
	}
	if err != nil {
		return err
	}

	r.rig.AddVolume(src, -volume)
	r.rig.AddVolume(dst, volume)
	return nil
}

// Home drives one pump to its zero position.
func (r *Router) Home(ctx context.Context, pumpID string, speed float64) error {
	pump, ok := r.drivers.Pumps[pumpID]
	if !ok {
		return fmt.Errorf("unknown pump %q", pumpID)
	}
	if speed == 0 {
		speed = DefaultSpeed
	}
	if err := pump.MoveToHome(ctx, speed); err != nil {
		return err
	}
	return pump.WaitUntilReady(ctx)
}

// stage is one valve/pump pair of a transfer path with its resolved
// ports.
type stage struct {
	valveID string
	pumpID  string
	valve   driver.Valve
	pump    driver.Pump
	pumpMax float64
	inPort  int
	outPort int
}

// resolveStage looks up the hardware for one valve in a path. prev and
// next are the path nodes on either side.
func (r *Router) resolveStage(valveID, prev, next string) (stage, error) {
	st := stage{valveID: valveID}

	pumpNode, ok := r.rig.PumpForValve(valveID)
	if !ok {
		return st, fmt.Errorf("no pump attached to valve %q", valveID)
	}
	st.pumpID = pumpNode.ID
	st.pumpMax = pumpNode.Max

	st.valve, ok = r.drivers.Valves[valveID]
	if !ok {
		return st, fmt.Errorf("no driver for valve %q", valveID)
	}
	st.pump, ok = r.drivers.Pumps[pumpNode.ID]
	if !ok {
		return st, fmt.Errorf("no driver for pump %q", pumpNode.ID)
	}

	st.inPort, ok = r.rig.PortBetween(valveID, prev)
	if !ok {
		return st, fmt.Errorf("no port wiring valve %q to %q", valveID, prev)
	}
	st.outPort, ok = r.rig.PortBetween(valveID, next)
	if !ok {
		return st, fmt.Errorf("no port wiring valve %q to %q", valveID, next)
	}
	return st, nil
}

// moveSingleValve cycles one syringe: switch to the source port,
// aspirate up to a full syringe, switch to the destination port, empty.
func (r *Router) moveSingleValve(ctx context.Context, valveID, src, dst string, volume float64, speeds Speeds) error {
	logger := ctxlog.FromContext(ctx)

	st, err := r.resolveStage(valveID, src, dst)
	if err != nil {
		return err
	}

	remaining := volume
	for remaining > 0 {
		if err := switchAndWait(ctx, st.valve, st.inPort); err != nil {
			return err
		}

		chunk := remaining
		if chunk > st.pumpMax {
			chunk = st.pumpMax
		}
		if err := pumpAndWait(ctx, st.pump, chunk, speeds.Aspirate); err != nil {
			return err
		}
		r.equilibrate()

		if err := switchAndWait(ctx, st.valve, st.outPort); err != nil {
			return err
		}
		if err := pumpAndWait(ctx, st.pump, 0, speeds.Dispense); err != nil {
			return err
		}

		remaining -= chunk
		if remaining < 0 {
			remaining = 0
		}
		logger.Info("Transfer chunk complete.", "remainingMl", remaining)
	}
	return nil
}

// moveBucketBrigade passes liquid down a chain of syringes. Adjacent
// stages alternate between aspirating and dispensing each beat, so on
// every beat each interior syringe takes over exactly what its upstream
// neighbor pushes out. The first stage meters the intake, the last stage
// dispenses into the destination at dispense speed.
func (r *Router) moveBucketBrigade(ctx context.Context, valveIDs []string, src, dst string, volume float64, speeds Speeds) error {
	logger := ctxlog.FromContext(ctx)

	stages := make([]stage, len(valveIDs))
	chainCapacity := 0.0
	for i, valveID := range valveIDs {
		prev := src
		if i > 0 {
			prev = valveIDs[i-1]
		}
		next := dst
		if i < len(valveIDs)-1 {
			next = valveIDs[i+1]
		}
		st, err := r.resolveStage(valveID, prev, next)
		if err != nil {
			return err
		}
		stages[i] = st
		if i == 0 || st.pumpMax < chainCapacity {
			chainCapacity = st.pumpMax
		}
	}

	// held[j] is the volume sitting in stage j's syringe.
	held := make([]float64, len(stages))
	remaining := volume

	for beat := 0; ; beat++ {
		// Switch every valve to this beat's side. Dispensing stages face
		// their output, aspirating stages their input.
		for j, st := range stages {
			port := st.inPort
			if dispensing(beat, j) {
				port = st.outPort
			}
			if err := st.valve.MoveToPosition(ctx, port); err != nil {
				return err
			}
		}
		for _, st := range stages {
			if err := st.valve.WaitUntilReady(ctx); err != nil {
				return err
			}
		}

		// Drive the pumps back to front so each stage still sees its
		// upstream neighbor's pre-beat volume.
		preBeat := make([]float64, len(held))
		copy(preBeat, held)

		for j := len(stages) - 1; j >= 0; j-- {
			st := stages[j]
			switch {
			case j == 0 && !dispensing(beat, 0):
				intake := remaining
				if intake > chainCapacity {
					intake = chainCapacity
				}
				remaining -= intake
				if intake != 0 {
					logger.Info("Aspirating next portion.", "portionMl", intake, "remainingMl", remaining)
					if err := st.pump.MoveAbsolute(ctx, intake, speeds.Aspirate); err != nil {
						return err
					}
					held[0] = intake
				}
			case dispensing(beat, j):
				if held[j] != 0 {
					speed := speeds.Move
					if j == len(stages)-1 {
						speed = speeds.Dispense
					}
					if err := st.pump.MoveAbsolute(ctx, 0, speed); err != nil {
						return err
					}
					held[j] = 0
				}
			default:
				if takeover := preBeat[j-1]; takeover != 0 {
					if err := st.pump.MoveAbsolute(ctx, takeover, speeds.Move); err != nil {
						return err
					}
					held[j] = takeover
				}
			}
		}

		for _, st := range stages {
			if err := st.pump.WaitUntilReady(ctx); err != nil {
				return err
			}
		}

		busy := remaining > 0
		for _, h := range held {
			if h > 0 {
				busy = true
			}
		}
		if !busy {
			return nil
		}
	}
}

// dispensing implements the checkerboard: on even beats the even stages
// aspirate and the odd ones dispense, on odd beats the other way around.
func dispensing(beat, stageIndex int) bool {
	return (beat%2 == 1) != (stageIndex%2 == 1)
}

func (r *Router) equilibrate() {
	if !r.simulation {
		time.Sleep(equilibrationTime)
	}
}

func switchAndWait(ctx context.Context, v driver.Valve, position int) error {
	if err := v.MoveToPosition(ctx, position); err != nil {
		return err
	}
	return v.WaitUntilReady(ctx)
}

func pumpAndWait(ctx context.Context, p driver.Pump, volume, speed float64) error {
	if err := p.MoveAbsolute(ctx, volume, speed); err != nil {
		return err
	}
	return p.WaitUntilReady(ctx)
}
