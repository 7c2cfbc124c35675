// Package huber drives Huber Petite Fleur class chillers over the PB
// protocol: "{M" followed by a two-digit register and a four-digit hex
// value in two's complement, 0.01°C per count. Reads send "****" as the
// value; the answer frame "{Sxxvvvv" echoes the register.
package huber

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

const (
	regSetpoint     = "00"
	regInternalTemp = "01"
	regTempControl  = "14"
	regCirculation  = "16"
	regRampDuration = "59"
	regStartRamp    = "5A"

	queryValue = "****"

	maxRampSeconds = 32767
)

var pbReply = regexp.MustCompile(`\{S([0-9A-F]{2})([0-9A-F]{4})`)

// Module implements the registry.Module interface for this package.
type Module struct{}

func (m Module) Register(r *registry.Registry) {
	r.RegisterDriver("huber", build)
}

func build(ctx context.Context, p *registry.BuildParams) error {
	port := p.Spec.IntOption("port", DefaultPort)
	actor, err := p.Pool.GetOrDial(fmt.Sprintf("%s:%d", p.Spec.Address, port), device.Config{
		Name:        p.Spec.ID,
		Terminator:  "\r\n",
		Delim:       '\n',
		WriteDelay:  200 * time.Millisecond,
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

// Chiller is one Petite Fleur.
type Chiller struct {
	name  string
	actor *device.Actor
}

// Start switches circulation on, then temperature control.
func (c *Chiller) Start(ctx context.Context) error {
	if _, err := c.writeRegister(ctx, regCirculation, 1); err != nil {
		return err
	}
	_, err := c.writeRegister(ctx, regTempControl, 1)
	return err
}

// Stop switches temperature control off, then circulation.
func (c *Chiller) Stop(ctx context.Context) error {
	if _, err := c.writeRegister(ctx, regTempControl, 0); err != nil {
		return err
	}
	_, err := c.writeRegister(ctx, regCirculation, 0)
	return err
}

func (c *Chiller) SetTemperature(ctx context.Context, celsius float64) error {
	if celsius < -151 || celsius > 327 {
		return device.Errorf(c.name, device.InvalidParameter, "setpoint %.2f°C outside -151..327", celsius)
	}
	_, err := c.writeRegister(ctx, regSetpoint, int(celsius*100))
	return err
}

// SetCoolingPower is accepted for interface parity; the Petite Fleur
// manages its compressor on its own.
func (c *Chiller) SetCoolingPower(ctx context.Context, percent float64) error {
	return nil
}

func (c *Chiller) SetRampDuration(ctx context.Context, seconds int) error {
	if seconds < -maxRampSeconds || seconds > maxRampSeconds {
		return device.Errorf(c.name, device.InvalidParameter, "ramp duration %ds outside ±%ds", seconds, maxRampSeconds)
	}
	_, err := c.writeRegister(ctx, regRampDuration, seconds)
	return err
}

// StartRamp sets the target temperature and starts ramping towards it
// over the previously programmed duration.
func (c *Chiller) StartRamp(ctx context.Context, celsius float64) error {
	if celsius < -151 || celsius > 327 {
		return device.Errorf(c.name, device.InvalidParameter, "ramp target %.2f°C outside -151..327", celsius)
	}
	_, err := c.writeRegister(ctx, regStartRamp, int(celsius*100))
	return err
}

func (c *Chiller) Temperature(ctx context.Context) (float64, error) {
	return c.readTemperature(ctx, regInternalTemp)
}

func (c *Chiller) Setpoint(ctx context.Context) (float64, error) {
	return c.readTemperature(ctx, regSetpoint)
}

func (c *Chiller) readTemperature(ctx context.Context, register string) (float64, error) {
	raw, err := c.exchange(ctx, register, queryValue)
	if err != nil {
		return 0, err
	}
	return float64(raw) / 100, nil
}

// writeRegister sends a signed value encoded as 16-bit two's complement
// hex and returns the echoed value.
func (c *Chiller) writeRegister(ctx context.Context, register string, value int) (int, error) {
	return c.exchange(ctx, register, fmt.Sprintf("%04X", uint16(value)))
}

func (c *Chiller) exchange(ctx context.Context, register, value string) (int, error) {
	reply, err := c.actor.Do(ctx, func(s *device.Session) (string, error) {
		return s.SendAndReceive("{M"+register+value, pbReply)
	})
	if err != nil {
		return 0, err
	}
	match := pbReply.FindStringSubmatch(reply)
	if match == nil || match[1] != register {
		return 0, device.Errorf(c.name, device.Protocol, "reply %q does not echo register %s", reply, register)
	}
	raw, err := strconv.ParseUint(match[2], 16, 16)
	if err != nil {
		return 0, device.Errorf(c.name, device.Protocol, "malformed reply %q", reply)
	}
	return int(int16(raw)), nil
}
