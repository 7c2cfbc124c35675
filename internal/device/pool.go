package device

import (
	"fmt"
	"sync"
)

// Pool de-duplicates actors by device address. Two rig nodes naming the
// same address share one actor, so their commands interleave safely.
type Pool struct {
	mu     sync.Mutex
	actors map[string]*Actor
}

func NewPool() *Pool {
	return &Pool{actors: make(map[string]*Actor)}
}

// GetOrDial returns the actor for address, dialing and starting it on
// first use.
func (p *Pool) GetOrDial(address string, cfg Config, dial func() (Transport, error)) (*Actor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if a, ok := p.actors[address]; ok {
		return a, nil
	}
	t, err := dial()
	if err != nil {
		return nil, fmt.Errorf("failed to open transport for %s: %w", address, err)
	}
	a := NewActor(t, cfg)
	p.actors[address] = a
	return a, nil
}

// CloseAll stops every actor in the pool.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for address, a := range p.actors {
		a.Close()
		delete(p.actors, address)
	}
}
