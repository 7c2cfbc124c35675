// Package julabocf41 drives the JULABO CF41 recirculation chiller. Set
// commands are fire-and-forget; reads answer with a bare value. The
// CF41 has no ramp generator, so ramp requests are rejected rather than
// faked.
package julabocf41

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/vk/chemrig/internal/device"
	"github.com/vk/chemrig/internal/registry"
)

// DefaultPort is the terminal server port used when the rig file does
// not pick one.
const DefaultPort = 4001

const (
	cmdSetTemp       = "OUT_SP_00"
	cmdStartStop     = "OUT_MODE_05"
	cmdCoolingPower  = "OUT_HIL_00"
	cmdReadTemp      = "IN_PV_00"
	cmdReadSetpoint  = "IN_SP_00"
	cmdReadStatus    = "STATUS"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

func (m Module) Register(r *registry.Registry) {
	r.RegisterDriver("cf41", build)
}

func build(ctx context.Context, p *registry.BuildParams) error {
	port := p.Spec.IntOption("port", DefaultPort)
	actor, err := p.Pool.GetOrDial(fmt.Sprintf("%s:%d", p.Spec.Address, port), device.Config{
		Name:        p.Spec.ID,
		Terminator:  "\r\n",
		Delim:       '\n',
		WriteDelay:  250 * time.Millisecond,
		ReadTimeout: 2 * time.Second,
		Logger:      p.Logger,
	}, func() (device.Transport, error) {
		return p.Dial(p.Spec.Address, port)
	})
	if err != nil {
		return err
	}
	p.Drivers.Chillers[p.Spec.ID] = &Chiller{name: p.Spec.ID, actor: actor}
	return nil
}

// Chiller is one CF41 recirculation chiller.
type Chiller struct {
	name  string
	actor *device.Actor
}

func (c *Chiller) Start(ctx context.Context) error {
	return c.send(ctx, cmdStartStop+" 1")
}

func (c *Chiller) Stop(ctx context.Context) error {
	return c.send(ctx, cmdStartStop+" 0")
}

func (c *Chiller) SetTemperature(ctx context.Context, celsius float64) error {
	return c.send(ctx, fmt.Sprintf("%s %.2f", cmdSetTemp, celsius))
}

// SetCoolingPower limits the compressor, 0 to 100 percent.
func (c *Chiller) SetCoolingPower(ctx context.Context, percent float64) error {
	p := int(percent)
	if p < 0 || p > 100 {
		return device.Errorf(c.name, device.InvalidParameter, "cooling power %d%% outside 0..100", p)
	}
	return c.send(ctx, fmt.Sprintf("%s %d", cmdCoolingPower, p))
}

func (c *Chiller) SetRampDuration(ctx context.Context, seconds int) error {
	return device.Errorf(c.name, device.InvalidParameter, "the CF41 has no ramp generator")
}

func (c *Chiller) StartRamp(ctx context.Context, celsius float64) error {
	return device.Errorf(c.name, device.InvalidParameter, "the CF41 has no ramp generator")
}

func (c *Chiller) Temperature(ctx context.Context) (float64, error) {
	return c.readValue(ctx, cmdReadTemp)
}

func (c *Chiller) Setpoint(ctx context.Context) (float64, error) {
	return c.readValue(ctx, cmdReadSetpoint)
}

// Status reads the chiller's status line.
func (c *Chiller) Status(ctx context.Context) (string, error) {
	return c.actor.Do(ctx, func(s *device.Session) (string, error) {
		return s.SendAndReceive(cmdReadStatus, nil)
	})
}

func (c *Chiller) send(ctx context.Context, payload string) error {
	_, err := c.actor.Do(ctx, func(s *device.Session) (string, error) {
		return "", s.Send(payload)
	})
	return err
}

func (c *Chiller) readValue(ctx context.Context, cmd string) (float64, error) {
	reply, err := c.actor.Do(ctx, func(s *device.Session) (string, error) {
		return s.SendAndReceive(cmd, nil)
	})
	if err != nil {
		return 0, err
	}
	parsed, err := strconv.ParseFloat(reply, 64)
	if err != nil {
		return 0, device.Errorf(c.name, device.Protocol, "malformed value reply %q", reply)
	}
	return parsed, nil
}
