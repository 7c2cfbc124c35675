// Package ikarv10 drives the IKA RV10 rotary evaporator. The protocol
// is the same NAMUR serial dialect as the hotplates, with two quirks:
// the instrument drops out of remote mode unless it is polled while
// heating, and the lift is driven through write-only pseudo registers.
package ikarv10

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/vk/chemrig/internal/device"
	"github.com/vk/chemrig/internal/registry"
)

// DefaultPort is the terminal server port used when the rig file does
// not pick one.
const DefaultPort = 4001

const (
	cmdReadRotation   = "IN_PV_4"
	cmdReadRotationSP = "IN_SP_4"
	cmdSetRotation    = "OUT_SP_4"
	cmdReadBathTemp   = "IN_PV_2"
	cmdReadBathTempSP = "IN_SP_2"
	cmdSetBathTemp    = "OUT_SP_2"
	cmdStartRotation  = "START_4"
	cmdStopRotation   = "STOP_4"
	cmdStartHeater    = "START_2"
	cmdStopHeater     = "STOP_2"
	cmdSetInterval    = "OUT_SP_60"
	cmdLiftUp         = "OUT_SP_62 1"
	cmdLiftDown       = "OUT_SP_63 1"
	cmdReset          = "RESET"

	minRotationRPM = 20
	maxRotationRPM = 280
)

var valueReply = regexp.MustCompile(`(\d+\.\d+) (\d+)`)

// Module implements the registry.Module interface for this package.
type Module struct{}

func (m Module) Register(r *registry.Registry) {
	r.RegisterDriver("ika_rv10", build)
}

func build(ctx context.Context, p *registry.BuildParams) error {
	port := p.Spec.IntOption("port", DefaultPort)
	rv := &Rotavap{name: p.Spec.ID}

	actor, err := p.Pool.GetOrDial(fmt.Sprintf("%s:%d", p.Spec.Address, port), device.Config{
		Name:        p.Spec.ID,
		Terminator:  "\r\n",
		Delim:       '\n',
		WriteDelay:  100 * time.Millisecond,
		ReadTimeout: 2 * time.Second,
		// Poll the bath temperature while heating so the instrument's
		// watchdog keeps us in remote mode.
		Keepalive:      rv.keepalive,
		KeepaliveEvery: 2 * time.Second,
		Logger:         p.Logger,
	}, func() (device.Transport, error) {
		return p.Dial(p.Spec.Address, port)
	})
	if err != nil {
		return err
	}
	rv.actor = actor

	if err := rv.initialise(ctx); err != nil {
		return err
	}
	p.Drivers.Rotavaps[p.Spec.ID] = rv
	return nil
}

// Rotavap is one RV10 rotary evaporator.
type Rotavap struct {
	name    string
	actor   *device.Actor
	heating atomic.Bool
}

// initialise pulses every channel once. The instrument only accepts
// commands in remote mode, and the pulses force it there.
func (r *Rotavap) initialise(ctx context.Context) error {
	for _, cmd := range []string{cmdStartHeater, cmdStopHeater, cmdStartRotation, cmdStopRotation} {
		if err := r.send(ctx, cmd); err != nil {
			return err
		}
	}
	return nil
}

func (r *Rotavap) StartHeaterBath(ctx context.Context) error {
	if err := r.send(ctx, cmdStartHeater); err != nil {
		return err
	}
	r.heating.Store(true)
	return nil
}

func (r *Rotavap) StopHeaterBath(ctx context.Context) error {
	if err := r.send(ctx, cmdStopHeater); err != nil {
		return err
	}
	r.heating.Store(false)
	return nil
}

func (r *Rotavap) StartRotation(ctx context.Context) error { return r.send(ctx, cmdStartRotation) }
func (r *Rotavap) StopRotation(ctx context.Context) error  { return r.send(ctx, cmdStopRotation) }
func (r *Rotavap) LiftUp(ctx context.Context) error        { return r.send(ctx, cmdLiftUp) }
func (r *Rotavap) LiftDown(ctx context.Context) error      { return r.send(ctx, cmdLiftDown) }

func (r *Rotavap) Reset(ctx context.Context) error {
	r.heating.Store(false)
	return r.send(ctx, cmdReset)
}

func (r *Rotavap) SetBathTemperature(ctx context.Context, celsius float64) error {
	return r.send(ctx, fmt.Sprintf("%s %.1f", cmdSetBathTemp, celsius))
}

func (r *Rotavap) SetRotationSpeed(ctx context.Context, rpm float64) error {
	if rpm < minRotationRPM || rpm > maxRotationRPM {
		return device.Errorf(r.name, device.InvalidParameter,
			"rotation speed %.0f RPM outside %d..%d", rpm, minRotationRPM, maxRotationRPM)
	}
	return r.send(ctx, fmt.Sprintf("%s %d", cmdSetRotation, int(rpm)))
}

func (r *Rotavap) SetInterval(ctx context.Context, seconds int) error {
	return r.send(ctx, fmt.Sprintf("%s %d", cmdSetInterval, seconds))
}

func (r *Rotavap) BathTemperature(ctx context.Context) (float64, error) {
	return r.readValue(ctx, cmdReadBathTemp)
}

func (r *Rotavap) BathTemperatureSetpoint(ctx context.Context) (float64, error) {
	return r.readValue(ctx, cmdReadBathTempSP)
}

// RotationSpeed reads the measured rotation speed in RPM.
func (r *Rotavap) RotationSpeed(ctx context.Context) (float64, error) {
	return r.readValue(ctx, cmdReadRotation)
}

// keepalive runs inside the actor worker while the actor is idle.
func (r *Rotavap) keepalive(s *device.Session) {
	if !r.heating.Load() {
		return
	}
	_, _ = s.SendAndReceive(cmdReadBathTemp, valueReply)
}

func (r *Rotavap) send(ctx context.Context, payload string) error {
	_, err := r.actor.Do(ctx, func(s *device.Session) (string, error) {
		return "", s.Send(payload)
	})
	return err
}

func (r *Rotavap) readValue(ctx context.Context, cmd string) (float64, error) {
	reply, err := r.actor.Do(ctx, func(s *device.Session) (string, error) {
		return s.SendAndReceive(cmd, valueReply)
	})
	if err != nil {
		return 0, err
	}
	value, _, found := strings.Cut(reply, " ")
	if !found {
		return 0, device.Errorf(r.name, device.Protocol, "malformed value reply %q", reply)
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, device.Errorf(r.name, device.Protocol, "malformed value reply %q", reply)
	}
	return parsed, nil
}
