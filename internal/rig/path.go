package rig

import "fmt"

// RoutingError means no tubing path exists for a requested transfer. The
// dispatcher treats it as recoverable: the instruction is skipped and the
// run continues.
type RoutingError struct {
	From string
	To   string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("no path from %q to %q", e.From, e.To)
}

// FindPath returns the node sequence [src, valve..., dst] for a liquid
// transfer. A transfer onto itself routes through the vessel's valve. If
// one valve connects both endpoints the path goes straight through it;
// otherwise the shortest path over the undirected tubing graph wins.
func (g *Graph) FindPath(src, dst string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[src]; !ok {
		return nil, &RoutingError{From: src, To: dst}
	}
	if _, ok := g.nodes[dst]; !ok {
		return nil, &RoutingError{From: src, To: dst}
	}

	if src == dst {
		for _, valve := range g.neighborsLocked(src) {
			if g.nodes[valve].Class == Valve {
				return []string{src, valve, dst}, nil
			}
		}
		return nil, &RoutingError{From: src, To: dst}
	}

	for _, valve := range g.neighborsLocked(src) {
		if g.nodes[valve].Class != Valve {
			continue
		}
		for _, other := range g.neighborsLocked(dst) {
			if other == valve {
				return []string{src, valve, dst}, nil
			}
		}
	}

	return g.shortestPathLocked(src, dst)
}

// Neighbors returns all nodes adjacent to id in either direction. Tubes
// are physically bidirectional; edge direction only fixes which end the
// port number belongs to.
func (g *Graph) Neighbors(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.neighborsLocked(id)
}

// neighborsLocked returns all nodes adjacent to id ignoring direction.
func (g *Graph) neighborsLocked(id string) []string {
	seen := make(map[string]bool)
	var ids []string
	for to := range g.out[id] {
		if !seen[to] {
			seen[to] = true
			ids = append(ids, to)
		}
	}
	for from := range g.in[id] {
		if !seen[from] {
			seen[from] = true
			ids = append(ids, from)
		}
	}
	return ids
}

// shortestPathLocked is a breadth-first search over the undirected view
// of the graph. Only valves may appear as intermediate hops; liquid never
// travels through pump heads or other vessels.
func (g *Graph) shortestPathLocked(src, dst string) ([]string, error) {
	prev := map[string]string{src: ""}
	queue := []string{src}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range g.neighborsLocked(current) {
			if _, visited := prev[next]; visited {
				continue
			}
			if next != dst && g.nodes[next].Class != Valve {
				continue
			}
			prev[next] = current
			if next == dst {
				var path []string
				for at := dst; at != ""; at = prev[at] {
					path = append([]string{at}, path...)
				}
				return path, nil
			}
			queue = append(queue, next)
		}
	}
	return nil, &RoutingError{From: src, To: dst}
}

// PumpForValve returns the pump node attached to a valve.
func (g *Graph) PumpForValve(valveID string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, id := range g.neighborsLocked(valveID) {
		if n := g.nodes[id]; n.Class == Pump {
			return *n, true
		}
	}
	return Node{}, false
}

// PortBetween returns the valve port number wired to the given neighbor.
func (g *Graph) PortBetween(valveID, neighborID string) (int, bool) {
	e, ok := g.EdgeBetween(valveID, neighborID)
	if !ok {
		return 0, false
	}
	return e.Port, true
}
