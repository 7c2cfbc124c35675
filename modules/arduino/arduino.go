// Package arduino drives the homebrew probe boards hanging off the rig:
// the conductivity sensor watching the separator and the relay that
// swaps a vessel between chiller circuits. Both speak a one-character
// protocol with a single line back.
package arduino

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/vk/chemrig/internal/device"
	"github.com/vk/chemrig/internal/registry"
)

// DefaultPort is the terminal server port used when the rig file does
// not pick one.
const DefaultPort = 4001

// cmdQuery asks the conductivity board for one reading.
const cmdQuery = "Q"

var integerReply = regexp.MustCompile(`-?\d+`)

// Module implements the registry.Module interface for this package.
type Module struct{}

func (m Module) Register(r *registry.Registry) {
	r.RegisterDriver("conductivity_sensor", buildSensor)
	r.RegisterDriver("chiller_switch", buildSwitch)
}

func buildSensor(ctx context.Context, p *registry.BuildParams) error {
	actor, err := connect(p)
	if err != nil {
		return err
	}
	p.Drivers.Sensors[p.Spec.ID] = &Sensor{name: p.Spec.ID, actor: actor}
	return nil
}

func buildSwitch(ctx context.Context, p *registry.BuildParams) error {
	actor, err := connect(p)
	if err != nil {
		return err
	}
	p.Drivers.Switches[p.Spec.ID] = &Switch{name: p.Spec.ID, actor: actor}
	return nil
}

func connect(p *registry.BuildParams) (*device.Actor, error) {
	port := p.Spec.IntOption("port", DefaultPort)
	return p.Pool.GetOrDial(fmt.Sprintf("%s:%d", p.Spec.Address, port), device.Config{
		Name:        p.Spec.ID,
		Delim:       '\n',
		ReadTimeout: 2 * time.Second,
		Logger:      p.Logger,
	}, func() (device.Transport, error) {
		return p.Dial(p.Spec.Address, port)
	})
}

// Sensor is the conductivity probe. Readings are unitless counts; the
// aqueous phase reads high, the organic phase low.
type Sensor struct {
	name  string
	actor *device.Actor
}

func (s *Sensor) Reading(ctx context.Context) (float64, error) {
	reply, err := s.actor.Do(ctx, func(sess *device.Session) (string, error) {
		return sess.SendAndReceive(cmdQuery, integerReply)
	})
	if err != nil {
		return 0, err
	}
	value, err := strconv.Atoi(reply)
	if err != nil {
		return 0, device.Errorf(s.name, device.Protocol, "malformed reading %q", reply)
	}
	return float64(value), nil
}

// Switch is the chiller circuit relay. Writing "1" or "0" flips it; the
// board answers with the state it settled in.
type Switch struct {
	name  string
	actor *device.Actor
}

func (s *Switch) Set(ctx context.Context, on bool) error {
	state := "0"
	if on {
		state = "1"
	}
	reply, err := s.actor.Do(ctx, func(sess *device.Session) (string, error) {
		return sess.SendAndReceive(state, nil)
	})
	if err != nil {
		return err
	}
	if reply != state {
		return device.Errorf(s.name, device.Protocol, "relay settled in %q, wanted %q", reply, state)
	}
	return nil
}
