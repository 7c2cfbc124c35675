// Package chemputer drives the platform's native syringe pumps and
// distribution valves. The boards speak a plain-text TCP protocol:
// space-separated commands terminated by a NUL byte, volumes and speeds
// in microliters, completion signalled by an asynchronous DONE frame. A
// UDP broadcast resets the boards' watchdogs while a run is active.
package chemputer

import (
	"context"
	"strings"

	"github.com/vk/chemrig/internal/device"
	"github.com/vk/chemrig/internal/registry"
)

// TCPPort is the fixed command port of every board.
const TCPPort = 5000

const (
	cmdMoveAbsolute = "move_abs"
	cmdMoveRelative = "move_rel"
	cmdMovePumpHome = "move_home"
	cmdHardHome     = "hard_home"
	cmdMoveToPos    = "pos"
	cmdMoveHome     = "home"
	cmdClearErrors  = "clear_errors"

	replyDone    = "DONE"
	replyFailure = "FAILURE"
	replyErrors  = "ERRORS:"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

func (m Module) Register(r *registry.Registry) {
	r.RegisterDriver("chempump", buildPump)
	r.RegisterDriver("chemvalve", buildValve)
}

func buildPump(ctx context.Context, p *registry.BuildParams) error {
	actor, err := connect(p)
	if err != nil {
		return err
	}
	pump := &Pump{name: p.Spec.ID, actor: actor}
	if err := pump.ClearErrors(ctx); err != nil {
		return err
	}
	p.Drivers.Pumps[p.Spec.ID] = pump
	return nil
}

func buildValve(ctx context.Context, p *registry.BuildParams) error {
	actor, err := connect(p)
	if err != nil {
		return err
	}
	valve := &Valve{name: p.Spec.ID, actor: actor}
	if err := valve.ClearErrors(ctx); err != nil {
		return err
	}
	p.Drivers.Valves[p.Spec.ID] = valve
	return nil
}

func connect(p *registry.BuildParams) (*device.Actor, error) {
	if err := device.ValidateIPv4(p.Spec.Address); err != nil {
		return nil, err
	}
	startKeepalive(p.Logger)
	return p.Pool.GetOrDial(p.Spec.Address, device.Config{
		Name:       p.Spec.ID,
		Terminator: "\x00",
		Delim:      '\x00',
		Logger:     p.Logger,
	}, func() (device.Transport, error) {
		return p.Dial(p.Spec.Address, TCPPort)
	})
}

// command sends one fire-and-forget board command. Completion arrives
// later as a DONE frame picked up by waitReady.
func command(ctx context.Context, actor *device.Actor, parts ...string) error {
	_, err := actor.Do(ctx, func(s *device.Session) (string, error) {
		return "", s.Send(strings.Join(parts, " "))
	})
	return err
}

// waitReady blocks until the board reports DONE. Fault frames abort the
// wait with a protocol error.
func waitReady(ctx context.Context, actor *device.Actor, name string) error {
	_, err := actor.Do(ctx, func(s *device.Session) (string, error) {
		for {
			reply, err := s.Receive()
			if err != nil {
				return "", err
			}
			if strings.Contains(reply, replyDone) {
				return reply, nil
			}
			if strings.Contains(reply, replyFailure) || strings.Contains(reply, replyErrors) {
				return "", device.Errorf(name, device.Protocol, "board reported fault: %s", reply)
			}
		}
	})
	return err
}
