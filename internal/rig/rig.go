// Package rig models the physical platform as a directed graph of vessels,
// valves, pumps and special devices connected by tubing. It owns the
// liquid volume bookkeeping and path finding used by the router.
package rig

import (
	"fmt"
	"sync"
)

// Class is the kind of a rig node. The set is closed; loaders reject
// anything else.
type Class int

const (
	Flask Class = iota
	Waste
	Valve
	Pump
	Filter
	Separator
	Rotavap
	Column
	CollectionFlask
)

var classNames = map[Class]string{
	Flask:           "flask",
	Waste:           "waste",
	Valve:           "valve",
	Pump:            "pump",
	Filter:          "filter",
	Separator:       "separator",
	Rotavap:         "rotavap",
	Column:          "column",
	CollectionFlask: "collection_flask",
}

func (c Class) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// IsSpecialDevice reports whether the class stores its liquid in an
// associated flask rather than in the node itself.
func (c Class) IsSpecialDevice() bool {
	switch c {
	case Filter, Separator, Rotavap, Column:
		return true
	}
	return false
}

// Node is one element of the rig. Only the fields relevant to the class
// are populated: vessels carry volumes, hardware nodes carry an address
// and model, special devices reference an associated flask.
type Node struct {
	ID    string
	Class Class

	// Hardware nodes only.
	Address string
	Model   string

	// Vessels and special devices.
	Current float64 // millilitres
	Max     float64

	// Special-device linkage, both directions.
	AssociatedFlask string
	ParentFlask     string

	// Auxiliary valve references. VacuumValve points at the switching
	// valve that toggles a vessel between vacuum and backbone,
	// CartridgeValves at the ganged pair forming a cartridge carousel,
	// SwitchingValve at a column's fractionating valve and ChillerSwitch
	// at the relay toggling the vessel between chiller circuits.
	VacuumValve     string
	CartridgeValves []string
	SwitchingValve  string
	ChillerSwitch   string
}

// Edge is a tube between two nodes. Port is the position on the valve end
// of the connection; TubeVolume is the tube's dead volume in millilitres.
type Edge struct {
	From       string
	To         string
	Port       int
	TubeVolume float64
}

// Graph is the rig topology plus its volume state. All methods are safe
// for concurrent use; parallel transfers share one graph.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	out   map[string]map[string]Edge
	in    map[string]map[string]Edge
}

func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[string]*Node),
		out:   make(map[string]map[string]Edge),
		in:    make(map[string]map[string]Edge),
	}
}

// AddNode inserts a node. Node IDs are unique.
func (g *Graph) AddNode(n Node) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, dup := g.nodes[n.ID]; dup {
		return fmt.Errorf("duplicate node %q", n.ID)
	}
	g.nodes[n.ID] = &n
	g.out[n.ID] = make(map[string]Edge)
	g.in[n.ID] = make(map[string]Edge)
	return nil
}

// AddEdge inserts a directed tube. Both endpoints must exist.
func (g *Graph) AddEdge(e Edge) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[e.From]; !ok {
		return fmt.Errorf("edge references unknown node %q", e.From)
	}
	if _, ok := g.nodes[e.To]; !ok {
		return fmt.Errorf("edge references unknown node %q", e.To)
	}
	g.out[e.From][e.To] = e
	g.in[e.To][e.From] = e
	return nil
}

// Node returns a copy of the named node.
func (g *Graph) Node(id string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Nodes returns copies of all nodes in unspecified order.
func (g *Graph) Nodes() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, *n)
	}
	return out
}

// Successors returns the IDs reachable over outgoing edges.
func (g *Graph) Successors(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var ids []string
	for to := range g.out[id] {
		ids = append(ids, to)
	}
	return ids
}

// Predecessors returns the IDs with an edge into id.
func (g *Graph) Predecessors(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var ids []string
	for from := range g.in[id] {
		ids = append(ids, from)
	}
	return ids
}

// EdgeBetween returns the edge from one node to another in either stored
// direction, preferring the requested one.
func (g *Graph) EdgeBetween(from, to string) (Edge, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if e, ok := g.out[from][to]; ok {
		return e, true
	}
	if e, ok := g.out[to][from]; ok {
		return e, true
	}
	return Edge{}, false
}

// AssociateFlask links a special device to the flask holding its liquid
// and removes the direct tube between the pair so routing never crosses
// the device body.
func (g *Graph) AssociateFlask(deviceID, flaskID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	device, ok := g.nodes[deviceID]
	if !ok {
		return fmt.Errorf("unknown device %q", deviceID)
	}
	flask, ok := g.nodes[flaskID]
	if !ok {
		return fmt.Errorf("unknown flask %q", flaskID)
	}
	device.AssociatedFlask = flaskID
	flask.ParentFlask = deviceID
	delete(g.out[deviceID], flaskID)
	delete(g.in[flaskID], deviceID)
	delete(g.out[flaskID], deviceID)
	delete(g.in[deviceID], flaskID)
	return nil
}

// ReassociateFlask re-points a device's associated flask, used when a
// column switches between collection and waste.
func (g *Graph) ReassociateFlask(deviceID, flaskID string) error {
	g.mu.Lock()
	device, ok := g.nodes[deviceID]
	if !ok {
		g.mu.Unlock()
		return fmt.Errorf("unknown device %q", deviceID)
	}
	if prev := device.AssociatedFlask; prev != "" {
		if prevFlask, ok := g.nodes[prev]; ok {
			prevFlask.ParentFlask = ""
		}
	}
	g.mu.Unlock()
	return g.AssociateFlask(deviceID, flaskID)
}

// volumeNode resolves the node actually storing liquid for id. Callers
// hold the lock.
func (g *Graph) volumeNode(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, false
	}
	if n.Class.IsSpecialDevice() && n.AssociatedFlask != "" {
		if flask, ok := g.nodes[n.AssociatedFlask]; ok {
			return flask, true
		}
	}
	return n, true
}

// CurrentVolume returns the liquid volume behind id, resolving special
// devices to their associated flask.
func (g *Graph) CurrentVolume(id string) (float64, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.volumeNode(id)
	if !ok {
		return 0, false
	}
	return n.Current, true
}

// MaxVolume returns the capacity behind id.
func (g *Graph) MaxVolume(id string) (float64, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.volumeNode(id)
	if !ok {
		return 0, false
	}
	return n.Max, true
}

// AddVolume adjusts the liquid volume behind id by delta millilitres,
// clamping at zero. Vessel counters are estimates; draining past empty is
// the caller's warning to issue, not an error here.
func (g *Graph) AddVolume(id string, delta float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.volumeNode(id)
	if !ok {
		return
	}
	n.Current += delta
	if n.Current < 0 {
		n.Current = 0
	}
}

// SetVolume overwrites the liquid volume behind id, used by snapshot
// restore.
func (g *Graph) SetVolume(id string, volume float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.volumeNode(id)
	if !ok {
		return
	}
	if volume < 0 {
		volume = 0
	}
	n.Current = volume
}
