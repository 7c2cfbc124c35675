package router

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/chemrig/internal/driver"
	"github.com/vk/chemrig/internal/rig"
)

type pumpOp struct {
	volume float64
	speed  float64
}

type fakePump struct {
	mu  sync.Mutex
	ops []pumpOp
}

func (p *fakePump) MoveAbsolute(_ context.Context, volume, speed float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ops = append(p.ops, pumpOp{volume, speed})
	return nil
}

func (p *fakePump) MoveToHome(_ context.Context, speed float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ops = append(p.ops, pumpOp{0, speed})
	return nil
}

func (p *fakePump) WaitUntilReady(context.Context) error { return nil }

func (p *fakePump) aspirated() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	var total float64
	for _, op := range p.ops {
		total += op.volume
	}
	return total
}

type fakeValve struct {
	mu        sync.Mutex
	positions []int
}

func (v *fakeValve) MoveToPosition(_ context.Context, position int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.positions = append(v.positions, position)
	return nil
}

func (v *fakeValve) WaitUntilReady(context.Context) error { return nil }

type fakeSensor struct {
	readings []float64
	calls    int
}

func (s *fakeSensor) Reading(context.Context) (float64, error) {
	i := s.calls
	if i >= len(s.readings) {
		i = len(s.readings) - 1
	}
	s.calls++
	return s.readings[i], nil
}

// testRig wires a two-valve backbone:
//
//	flask_a -1- valve_1 =2|1= valve_2 -3- flask_b
//	flask_c -4-   |                |
//	            pump_1(10mL)   pump_2(5mL)
type testRig struct {
	graph   *rig.Graph
	drivers *driver.Set
	pump1   *fakePump
	pump2   *fakePump
	valve1  *fakeValve
	valve2  *fakeValve
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	g := rig.NewGraph()
	nodes := []rig.Node{
		{ID: "flask_a", Class: rig.Flask, Current: 100, Max: 250},
		{ID: "flask_b", Class: rig.Flask, Max: 250},
		{ID: "flask_c", Class: rig.Flask, Current: 50, Max: 100},
		{ID: "waste_1", Class: rig.Waste, Max: 2000},
		{ID: "valve_1", Class: rig.Valve},
		{ID: "valve_2", Class: rig.Valve},
		{ID: "pump_1", Class: rig.Pump, Max: 10},
		{ID: "pump_2", Class: rig.Pump, Max: 5},
	}
	for _, n := range nodes {
		require.NoError(t, g.AddNode(n))
	}
	edges := []rig.Edge{
		{From: "flask_a", To: "valve_1", Port: 1, TubeVolume: 2},
		{From: "flask_c", To: "valve_1", Port: 4, TubeVolume: 1.5},
		{From: "valve_1", To: "valve_2", Port: 2},
		{From: "valve_2", To: "valve_1", Port: 1},
		{From: "valve_2", To: "flask_b", Port: 3},
		{From: "valve_2", To: "waste_1", Port: 5},
		{From: "pump_1", To: "valve_1", Port: 0},
		{From: "pump_2", To: "valve_2", Port: 0},
	}
	for _, e := range edges {
		require.NoError(t, g.AddEdge(e))
	}

	tr := &testRig{
		graph:   g,
		drivers: driver.NewSet(),
		pump1:   &fakePump{},
		pump2:   &fakePump{},
		valve1:  &fakeValve{},
		valve2:  &fakeValve{},
	}
	tr.drivers.Pumps["pump_1"] = tr.pump1
	tr.drivers.Pumps["pump_2"] = tr.pump2
	tr.drivers.Valves["valve_1"] = tr.valve1
	tr.drivers.Valves["valve_2"] = tr.valve2
	return tr
}

func TestMoveSingleValveCyclesBySyringeCapacity(t *testing.T) {
	tr := newTestRig(t)
	r := New(tr.graph, tr.drivers, true)

	// 25mL through a 10mL syringe takes three cycles: 10, 10, 5.
	err := r.Move(context.Background(), "flask_a", "flask_c", 25, Speeds{Move: 50})
	require.NoError(t, err)

	var aspirates []float64
	for _, op := range tr.pump1.ops {
		if op.volume > 0 {
			aspirates = append(aspirates, op.volume)
		}
	}
	assert.Equal(t, []float64{10, 10, 5}, aspirates)

	// Valve alternates source port 1, dest port 4 each cycle.
	assert.Equal(t, []int{1, 4, 1, 4, 1, 4}, tr.valve1.positions)
}

func TestMoveUpdatesVolumesAfterMotion(t *testing.T) {
	tr := newTestRig(t)
	r := New(tr.graph, tr.drivers, true)

	require.NoError(t, r.Move(context.Background(), "flask_a", "flask_c", 20, Speeds{}))

	srcVol, _ := tr.graph.CurrentVolume("flask_a")
	dstVol, _ := tr.graph.CurrentVolume("flask_c")
	assert.Equal(t, 80.0, srcVol)
	assert.Equal(t, 70.0, dstVol)
}

func TestMoveOverdrawWarnsButExecutes(t *testing.T) {
	tr := newTestRig(t)
	r := New(tr.graph, tr.drivers, true)

	// flask_c holds 50mL; moving 60 must still run and clamp at zero.
	require.NoError(t, r.Move(context.Background(), "flask_c", "flask_a", 60, Speeds{}))
	vol, _ := tr.graph.CurrentVolume("flask_c")
	assert.Equal(t, 0.0, vol)
}

func TestMoveBucketBrigadeDeliversFullVolume(t *testing.T) {
	tr := newTestRig(t)
	r := New(tr.graph, tr.drivers, true)

	err := r.Move(context.Background(), "flask_a", "flask_b", 12, Speeds{Move: 50, Dispense: 20})
	require.NoError(t, err)

	// Chain capacity is the smallest syringe (5mL), so the first stage
	// meters 5+5+2 into the chain.
	assert.InDelta(t, 12.0, tr.pump1.aspirated(), 1e-9)

	// The second stage takes over exactly what the first stage held, so
	// everything metered in arrives at the destination.
	assert.InDelta(t, 12.0, tr.pump2.aspirated(), 1e-9)

	dstVol, _ := tr.graph.CurrentVolume("flask_b")
	assert.Equal(t, 12.0, dstVol)

	// The delivering pump dispenses at dispense speed.
	var sawDispense bool
	for _, op := range tr.pump2.ops {
		if op.volume == 0 && op.speed == 20 {
			sawDispense = true
		}
	}
	assert.True(t, sawDispense, "last pump must dispense at the dispense speed")
}

func TestMoveBucketBrigadeCheckerboard(t *testing.T) {
	tr := newTestRig(t)
	r := New(tr.graph, tr.drivers, true)

	require.NoError(t, r.Move(context.Background(), "flask_a", "flask_b", 5, Speeds{}))

	// Adjacent stages face opposite sides on every beat. Stage 0 starts
	// on its input (port 1 toward flask_a), stage 1 on its output (port 3
	// toward flask_b).
	require.NotEmpty(t, tr.valve1.positions)
	require.Equal(t, len(tr.valve1.positions), len(tr.valve2.positions))
	for beat := range tr.valve1.positions {
		v1In := tr.valve1.positions[beat] == 1
		v2In := tr.valve2.positions[beat] == 1
		assert.NotEqual(t, v1In, v2In, "beat %d: adjacent valves must face opposite sides", beat)
	}
}

func TestMoveBucketBrigadeTerminates(t *testing.T) {
	tr := newTestRig(t)
	r := New(tr.graph, tr.drivers, true)

	// An odd volume leaves a partial last portion; the brigade must still
	// drain completely.
	require.NoError(t, r.Move(context.Background(), "flask_a", "flask_b", 7, Speeds{}))
	dstVol, _ := tr.graph.CurrentVolume("flask_b")
	assert.Equal(t, 7.0, dstVol)
}

func TestMoveNoRouteReturnsRoutingError(t *testing.T) {
	tr := newTestRig(t)
	require.NoError(t, tr.graph.AddNode(rig.Node{ID: "island", Class: rig.Flask}))
	r := New(tr.graph, tr.drivers, true)

	err := r.Move(context.Background(), "flask_a", "island", 5, Speeds{})
	var rerr *rig.RoutingError
	require.ErrorAs(t, err, &rerr)
}

func TestHome(t *testing.T) {
	tr := newTestRig(t)
	r := New(tr.graph, tr.drivers, true)

	require.NoError(t, r.Home(context.Background(), "pump_1", 0))
	require.Len(t, tr.pump1.ops, 1)
	assert.Equal(t, DefaultSpeed, tr.pump1.ops[0].speed)
}

func TestSeparatePhases(t *testing.T) {
	tr := newTestRig(t)
	require.NoError(t, tr.graph.AddNode(rig.Node{ID: "sep_top", Class: rig.Separator}))
	require.NoError(t, tr.graph.AddNode(rig.Node{ID: "sep_bottom", Class: rig.Flask, Current: 30, Max: 500}))
	require.NoError(t, tr.graph.AddEdge(rig.Edge{From: "sep_bottom", To: "valve_1", Port: 5}))
	sensor := &fakeSensor{readings: []float64{100, 200, 800}}
	tr.drivers.Sensors["sep_top"] = sensor

	r := New(tr.graph, tr.drivers, false)
	err := r.SeparatePhases(context.Background(), "sep_top", "sep_bottom", "waste_1", "flask_b")
	require.NoError(t, err)

	// Prime (2mL) + three 1mL steps until the reading crossed 700, then
	// the 2.5mL dead volume, then the remaining upper phase.
	assert.Equal(t, 3, sensor.calls)
	upperLeft, _ := tr.graph.CurrentVolume("sep_bottom")
	assert.Equal(t, 0.0, upperLeft)
}

func TestPrimeTubes(t *testing.T) {
	tr := newTestRig(t)
	r := New(tr.graph, tr.drivers, true)

	require.NoError(t, r.PrimeTubes(context.Background(), 30))

	// flask_a's tube holds 2mL, flask_c's 1.5mL; both end up in waste_1.
	wasteVol, _ := tr.graph.CurrentVolume("waste_1")
	assert.InDelta(t, 3.5, wasteVol, 1e-9)
}

func TestSwitchVacuum(t *testing.T) {
	tr := newTestRig(t)
	vacValve := &fakeValve{}
	tr.drivers.Valves["vac_valve"] = vacValve
	require.NoError(t, tr.graph.AddNode(rig.Node{ID: "filter_flask", Class: rig.Flask, Max: 500, VacuumValve: "vac_valve"}))
	r := New(tr.graph, tr.drivers, true)

	require.NoError(t, r.SwitchVacuum(context.Background(), "filter_flask", "vacuum"))
	require.NoError(t, r.SwitchVacuum(context.Background(), "filter_flask", "backbone"))
	assert.Equal(t, []int{VacuumPort, BackbonePort}, vacValve.positions)

	assert.Error(t, r.SwitchVacuum(context.Background(), "filter_flask", "sideways"))
}

func TestSwitchCartridge(t *testing.T) {
	tr := newTestRig(t)
	cv1, cv2 := &fakeValve{}, &fakeValve{}
	tr.drivers.Valves["cart_1"] = cv1
	tr.drivers.Valves["cart_2"] = cv2
	require.NoError(t, tr.graph.AddNode(rig.Node{
		ID: "drying_flask", Class: rig.Flask, Max: 100,
		CartridgeValves: []string{"cart_1", "cart_2"},
	}))
	r := New(tr.graph, tr.drivers, true)

	require.NoError(t, r.SwitchCartridge(context.Background(), "drying_flask", 2))
	assert.Equal(t, []int{2}, cv1.positions)
	assert.Equal(t, []int{2}, cv2.positions)
}

func TestSwitchColumn(t *testing.T) {
	tr := newTestRig(t)
	switchValve := &fakeValve{}
	tr.drivers.Valves["col_valve"] = switchValve
	require.NoError(t, tr.graph.AddNode(rig.Node{ID: "column_1", Class: rig.Column, SwitchingValve: "col_valve"}))
	require.NoError(t, tr.graph.AddNode(rig.Node{ID: "collect_1", Class: rig.CollectionFlask, Max: 100}))
	require.NoError(t, tr.graph.AddEdge(rig.Edge{From: "valve_2", To: "column_1", Port: 6}))
	require.NoError(t, tr.graph.AddEdge(rig.Edge{From: "valve_2", To: "collect_1", Port: 7}))
	r := New(tr.graph, tr.drivers, true)

	require.NoError(t, r.SwitchColumn(context.Background(), "column_1", "collect"))
	node, _ := tr.graph.Node("column_1")
	assert.Equal(t, "collect_1", node.AssociatedFlask)

	require.NoError(t, r.SwitchColumn(context.Background(), "column_1", "waste"))
	node, _ = tr.graph.Node("column_1")
	assert.Equal(t, "waste_1", node.AssociatedFlask)
	assert.Equal(t, []int{CollectionPort, WastePort}, switchValve.positions)
}
