package rig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backboneGraph builds a two-valve backbone:
//
//	flask_a - valve_1 - valve_2 - flask_b
//	            |          |
//	          pump_1     pump_2
func backboneGraph(t *testing.T) *Graph {
	t.Helper()
	g := NewGraph()
	nodes := []Node{
		{ID: "flask_a", Class: Flask, Current: 100, Max: 250},
		{ID: "flask_b", Class: Flask, Max: 250},
		{ID: "valve_1", Class: Valve, Address: "192.168.1.10"},
		{ID: "valve_2", Class: Valve, Address: "192.168.1.11"},
		{ID: "pump_1", Class: Pump, Address: "192.168.1.20", Max: 10},
		{ID: "pump_2", Class: Pump, Address: "192.168.1.21", Max: 10},
	}
	for _, n := range nodes {
		require.NoError(t, g.AddNode(n))
	}
	edges := []Edge{
		{From: "flask_a", To: "valve_1", Port: 1, TubeVolume: 2},
		{From: "valve_1", To: "valve_2", Port: 0, TubeVolume: 3},
		{From: "valve_2", To: "flask_b", Port: 2, TubeVolume: 2},
		{From: "pump_1", To: "valve_1", Port: 6},
		{From: "pump_2", To: "valve_2", Port: 6},
	}
	for _, e := range edges {
		require.NoError(t, g.AddEdge(e))
	}
	return g
}

func TestFindPathAcrossBackbone(t *testing.T) {
	g := backboneGraph(t)
	path, err := g.FindPath("flask_a", "flask_b")
	require.NoError(t, err)
	assert.Equal(t, []string{"flask_a", "valve_1", "valve_2", "flask_b"}, path)
}

func TestFindPathSharedValve(t *testing.T) {
	g := backboneGraph(t)
	require.NoError(t, g.AddNode(Node{ID: "flask_c", Class: Flask, Max: 100}))
	require.NoError(t, g.AddEdge(Edge{From: "flask_c", To: "valve_1", Port: 3}))

	path, err := g.FindPath("flask_a", "flask_c")
	require.NoError(t, err)
	assert.Equal(t, []string{"flask_a", "valve_1", "flask_c"}, path)
}

func TestFindPathSelfTransfer(t *testing.T) {
	g := backboneGraph(t)
	path, err := g.FindPath("flask_a", "flask_a")
	require.NoError(t, err)
	assert.Equal(t, []string{"flask_a", "valve_1", "flask_a"}, path)
}

func TestFindPathNoRoute(t *testing.T) {
	g := backboneGraph(t)
	require.NoError(t, g.AddNode(Node{ID: "orphan", Class: Flask}))

	_, err := g.FindPath("flask_a", "orphan")
	var rerr *RoutingError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "flask_a", rerr.From)
	assert.Equal(t, "orphan", rerr.To)
}

func TestFindPathNeverCrossesPumps(t *testing.T) {
	g := backboneGraph(t)
	path, err := g.FindPath("flask_a", "flask_b")
	require.NoError(t, err)
	assert.NotContains(t, path, "pump_1")
	assert.NotContains(t, path, "pump_2")
}

func TestVolumeBookkeepingClampsAtZero(t *testing.T) {
	g := backboneGraph(t)
	g.AddVolume("flask_a", -150)
	vol, ok := g.CurrentVolume("flask_a")
	require.True(t, ok)
	assert.Equal(t, 0.0, vol)
}

func TestAssociatedFlaskVolumeResolution(t *testing.T) {
	g := backboneGraph(t)
	require.NoError(t, g.AddNode(Node{ID: "sep_1", Class: Separator}))
	require.NoError(t, g.AddNode(Node{ID: "flask_sep", Class: Flask, Current: 40, Max: 500}))
	require.NoError(t, g.AddEdge(Edge{From: "sep_1", To: "flask_sep"}))
	require.NoError(t, g.AddEdge(Edge{From: "sep_1", To: "valve_2", Port: 4}))
	require.NoError(t, g.AssociateFlask("sep_1", "flask_sep"))

	// Volume reads and writes on the separator resolve to its flask.
	vol, ok := g.CurrentVolume("sep_1")
	require.True(t, ok)
	assert.Equal(t, 40.0, vol)

	g.AddVolume("sep_1", 10)
	vol, _ = g.CurrentVolume("flask_sep")
	assert.Equal(t, 50.0, vol)

	// The direct tube is gone, so routing goes through the backbone.
	path, err := g.FindPath("flask_a", "sep_1")
	require.NoError(t, err)
	assert.Equal(t, []string{"flask_a", "valve_1", "valve_2", "sep_1"}, path)
}

func TestReassociateFlask(t *testing.T) {
	g := backboneGraph(t)
	require.NoError(t, g.AddNode(Node{ID: "column_1", Class: Column}))
	require.NoError(t, g.AddNode(Node{ID: "collect", Class: Flask, Max: 100}))
	require.NoError(t, g.AddNode(Node{ID: "waste_c", Class: Waste, Max: 1000}))
	require.NoError(t, g.AssociateFlask("column_1", "collect"))
	require.NoError(t, g.ReassociateFlask("column_1", "waste_c"))

	n, ok := g.Node("column_1")
	require.True(t, ok)
	assert.Equal(t, "waste_c", n.AssociatedFlask)

	old, _ := g.Node("collect")
	assert.Empty(t, old.ParentFlask)
}

func TestPumpForValve(t *testing.T) {
	g := backboneGraph(t)
	pump, ok := g.PumpForValve("valve_1")
	require.True(t, ok)
	assert.Equal(t, "pump_1", pump.ID)
}

func TestPortBetween(t *testing.T) {
	g := backboneGraph(t)
	port, ok := g.PortBetween("valve_1", "flask_a")
	require.True(t, ok)
	assert.Equal(t, 1, port)
}

func TestDuplicateNodeRejected(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddNode(Node{ID: "x", Class: Flask}))
	assert.Error(t, g.AddNode(Node{ID: "x", Class: Flask}))
}
