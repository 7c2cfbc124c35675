package router

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/vk/chemrig/internal/ctxlog"
	"github.com/vk/chemrig/internal/rig"
)

// Separation and switching constants, all grown out of the physical rig:
// tube dead volumes, sensor behavior and fixed valve wiring.
const (
	SeparationDrawSpeed     = 35.0 // mL/min
	SeparationPrimingVolume = 2.0  // mL
	SeparationDeadVolume    = 2.5  // mL
	SeparationStepSize      = 1.0  // mL
	ConductivityThreshold   = 700.0

	VacuumPort     = 5
	BackbonePort   = 4
	CollectionPort = 0
	WastePort      = 3
)

// SeparatePhases drains the lower phase of a liquid/liquid separation
// into lowerTarget, detecting the phase boundary with the conductivity
// sensor mounted on the separator top. The sensor is primed first, then
// the lower phase leaves in steps until the reading crosses the
// threshold; a final dead volume chases the boundary out of the tubing
// before the upper phase moves to upperTarget.
func (r *Router) SeparatePhases(ctx context.Context, separatorTop, separatorBottom, lowerTarget, upperTarget string) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Starting separation.", "lowerTarget", lowerTarget, "upperTarget", upperTarget)

	sensor, hasSensor := r.drivers.Sensors[separatorTop]
	if !hasSensor && !r.simulation {
		return fmt.Errorf("no conductivity sensor on %q", separatorTop)
	}

	speeds := Speeds{Move: SeparationDrawSpeed}
	if err := r.Move(ctx, separatorBottom, lowerTarget, SeparationPrimingVolume, speeds); err != nil {
		return err
	}

	for {
		if err := r.Move(ctx, separatorBottom, lowerTarget, SeparationStepSize, speeds); err != nil {
			return err
		}
		if r.simulation {
			logger.Info("Simulated phase boundary reached.")
			break
		}
		reading, err := sensor.Reading(ctx)
		if err != nil {
			return err
		}
		logger.Info("Conductivity reading.", "value", reading)
		if reading >= ConductivityThreshold {
			logger.Info("Phase boundary detected.")
			break
		}
	}

	if upperTarget == separatorTop {
		logger.Info("Upper phase stays in the separator.")
		return nil
	}

	logger.Info("Withdrawing dead volume.")
	if err := r.Move(ctx, separatorBottom, lowerTarget, SeparationDeadVolume, speeds); err != nil {
		return err
	}

	upperVolume, _ := r.rig.CurrentVolume(separatorBottom)
	logger.Info("Transferring upper phase.", "volumeMl", upperVolume)
	return r.Move(ctx, separatorBottom, upperTarget, upperVolume, speeds)
}

// PrimeTubes fills every flask's supply tube by moving the tube's dead
// volume from the flask to a waste on the same valve.
func (r *Router) PrimeTubes(ctx context.Context, aspirationSpeed float64) error {
	logger := ctxlog.FromContext(ctx)

	for _, node := range r.rig.Nodes() {
		if node.Class != rig.Flask {
			continue
		}
		valveID, tubeVolume, found := r.supplyTube(node.ID)
		if !found {
			logger.Warn("Flask has no valve connection to prime.", "flask", node.ID)
			continue
		}
		wasteID, found := r.nearestWaste(node.ID, valveID)
		if !found {
			logger.Warn("No reachable waste, skipping tube priming.", "flask", node.ID, "valve", valveID)
			continue
		}
		err := r.Move(ctx, node.ID, wasteID, tubeVolume, Speeds{Move: DefaultSpeed, Aspirate: aspirationSpeed})
		if err != nil {
			return err
		}
	}
	return nil
}

// CleanAll flushes a cleaning solvent from source through the backbone to
// every reachable valve outlet.
func (r *Router) CleanAll(ctx context.Context, source string, volume float64) error {
	logger := ctxlog.FromContext(ctx)

	for _, node := range r.rig.Nodes() {
		if node.Class != rig.Valve {
			continue
		}
		for _, neighborID := range r.rig.Successors(node.ID) {
			neighbor, ok := r.rig.Node(neighborID)
			if !ok || neighborID == source {
				continue
			}
			if neighbor.Class == rig.Valve || neighbor.Class == rig.Pump {
				continue
			}
			if err := r.Move(ctx, source, neighborID, volume, Speeds{}); err != nil {
				var rerr *rig.RoutingError
				if errors.As(err, &rerr) {
					logger.Warn("Outlet unreachable during cleaning, skipping.", "outlet", neighborID)
					continue
				}
				return err
			}
		}
	}
	return nil
}

// SwitchVacuum toggles a vessel between its vacuum line and the backbone
// using the dedicated switching valve referenced by the vessel.
func (r *Router) SwitchVacuum(ctx context.Context, flaskID, destination string) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Switching vacuum valve.", "flask", flaskID, "destination", destination)

	node, ok := r.rig.Node(flaskID)
	if !ok || node.VacuumValve == "" {
		return fmt.Errorf("no vacuum valve on %q", flaskID)
	}
	valve, ok := r.drivers.Valves[node.VacuumValve]
	if !ok {
		return fmt.Errorf("no driver for valve %q", node.VacuumValve)
	}

	switch destination {
	case "vacuum":
		return switchAndWait(ctx, valve, VacuumPort)
	case "backbone":
		return switchAndWait(ctx, valve, BackbonePort)
	default:
		return fmt.Errorf("unknown vacuum destination %q", destination)
	}
}

// SwitchCartridge rotates a cartridge carousel made of two ganged valves
// with identical port wiring.
func (r *Router) SwitchCartridge(ctx context.Context, flaskID string, cartridge int) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Switching cartridge carousel.", "flask", flaskID, "cartridge", cartridge)

	node, ok := r.rig.Node(flaskID)
	if !ok || len(node.CartridgeValves) == 0 {
		return fmt.Errorf("no cartridge carousel on %q", flaskID)
	}
	for _, valveID := range node.CartridgeValves {
		valve, ok := r.drivers.Valves[valveID]
		if !ok {
			return fmt.Errorf("no driver for valve %q", valveID)
		}
		if err := switchAndWait(ctx, valve, cartridge); err != nil {
			return err
		}
	}
	return nil
}

// SwitchColumn points a flash column's fractionating valve at the
// collection flask or the waste, and re-associates the column so volume
// bookkeeping follows the liquid.
func (r *Router) SwitchColumn(ctx context.Context, columnID, destination string) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Switching column fraction.", "column", columnID, "destination", destination)

	column, ok := r.rig.Node(columnID)
	if !ok || column.SwitchingValve == "" {
		return fmt.Errorf("no switching valve on %q", columnID)
	}
	valve, ok := r.drivers.Valves[column.SwitchingValve]
	if !ok {
		return fmt.Errorf("no driver for valve %q", column.SwitchingValve)
	}

	// The collection flask and waste sit on the column's backbone valve.
	var backboneValve string
	for _, neighborID := range r.rig.Neighbors(columnID) {
		if n, ok := r.rig.Node(neighborID); ok && n.Class == rig.Valve {
			backboneValve = neighborID
			break
		}
	}
	if backboneValve == "" {
		return fmt.Errorf("no backbone valve on column %q", columnID)
	}

	var wasteID, collectionID string
	for _, neighborID := range r.rig.Neighbors(backboneValve) {
		n, ok := r.rig.Node(neighborID)
		if !ok {
			continue
		}
		switch n.Class {
		case rig.Waste:
			wasteID = neighborID
		case rig.CollectionFlask:
			collectionID = neighborID
		}
	}
	if wasteID == "" || collectionID == "" {
		return fmt.Errorf("column %q valve is missing waste or collection flask", columnID)
	}

	switch destination {
	case "collect":
		if err := switchAndWait(ctx, valve, CollectionPort); err != nil {
			return err
		}
		return r.rig.ReassociateFlask(columnID, collectionID)
	case "waste":
		if err := switchAndWait(ctx, valve, WastePort); err != nil {
			return err
		}
		return r.rig.ReassociateFlask(columnID, wasteID)
	default:
		return fmt.Errorf("unknown column destination %q", destination)
	}
}

// supplyTube finds the valve a flask hangs off and the connecting tube's
// dead volume.
func (r *Router) supplyTube(flaskID string) (valveID string, tubeVolume float64, found bool) {
	for _, neighborID := range r.rig.Neighbors(flaskID) {
		n, ok := r.rig.Node(neighborID)
		if !ok || n.Class != rig.Valve {
			continue
		}
		if e, ok := r.rig.EdgeBetween(neighborID, flaskID); ok {
			return neighborID, e.TubeVolume, true
		}
	}
	return "", 0, false
}

// nearestWaste prefers a waste on the flask's own valve and falls back to
// the closest one reachable over the backbone.
func (r *Router) nearestWaste(flaskID, valveID string) (string, bool) {
	for _, neighborID := range r.rig.Neighbors(valveID) {
		if n, ok := r.rig.Node(neighborID); ok && n.Class == rig.Waste {
			return neighborID, true
		}
	}

	var wastes []string
	for _, node := range r.rig.Nodes() {
		if node.Class == rig.Waste {
			wastes = append(wastes, node.ID)
		}
	}
	sort.Strings(wastes)

	best := ""
	bestLen := 0
	for _, wasteID := range wastes {
		path, err := r.rig.FindPath(flaskID, wasteID)
		if err != nil {
			continue
		}
		if best == "" || len(path) < bestLen {
			best = wasteID
			bestLen = len(path)
		}
	}
	return best, best != ""
}
