// Package ikaret drives the IKA RET control-visc hotplate stirrer. The
// instrument speaks a NAMUR-style serial protocol, reached here through
// a serial terminal server; set commands are fire-and-forget, reads
// answer with "<value> <channel>".
package ikaret

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/vk/chemrig/internal/device"
	"github.com/vk/chemrig/internal/registry"
)

// DefaultPort is the terminal server port used when the rig file does
// not pick one.
const DefaultPort = 4001

const (
	cmdReadStirRate    = "IN_PV_4"
	cmdReadStirRateSP  = "IN_SP_4"
	cmdSetStirRate     = "OUT_SP_4"
	cmdReadTemp        = "IN_PV_1"
	cmdReadTempSP      = "IN_SP_1"
	cmdSetTemp         = "OUT_SP_1"
	cmdStartHeater     = "START_1"
	cmdStopHeater      = "STOP_1"
	cmdStartStirrer    = "START_4"
	cmdStopStirrer     = "STOP_4"
	cmdReset           = "RESET"
)

var valueReply = regexp.MustCompile(`(\d+\.\d+) (\d)`)

// Module implements the registry.Module interface for this package.
type Module struct{}

func (m Module) Register(r *registry.Registry) {
	r.RegisterDriver("ika_ret", build)
}

func build(ctx context.Context, p *registry.BuildParams) error {
	port := p.Spec.IntOption("port", DefaultPort)
	actor, err := p.Pool.GetOrDial(fmt.Sprintf("%s:%d", p.Spec.Address, port), device.Config{
		Name:        p.Spec.ID,
		Terminator:  "\r\n",
		Delim:       '\n',
		WriteDelay:  100 * time.Millisecond,
		ReadTimeout: 2 * time.Second,
		Logger:      p.Logger,
	}, func() (device.Transport, error) {
		return p.Dial(p.Spec.Address, port)
	})
	if err != nil {
		return err
	}
	p.Drivers.Stirrers[p.Spec.ID] = &Stirrer{name: p.Spec.ID, actor: actor}
	return nil
}

// Stirrer is one RET control-visc hotplate.
type Stirrer struct {
	name  string
	actor *device.Actor
}

func (s *Stirrer) StartStirring(ctx context.Context) error { return s.send(ctx, cmdStartStirrer) }
func (s *Stirrer) StopStirring(ctx context.Context) error  { return s.send(ctx, cmdStopStirrer) }
func (s *Stirrer) StartHeating(ctx context.Context) error  { return s.send(ctx, cmdStartHeater) }
func (s *Stirrer) StopHeating(ctx context.Context) error   { return s.send(ctx, cmdStopHeater) }
func (s *Stirrer) Reset(ctx context.Context) error         { return s.send(ctx, cmdReset) }

func (s *Stirrer) SetTemperature(ctx context.Context, celsius float64) error {
	return s.send(ctx, fmt.Sprintf("%s %.1f", cmdSetTemp, celsius))
}

func (s *Stirrer) SetStirRate(ctx context.Context, rpm float64) error {
	return s.send(ctx, fmt.Sprintf("%s %d", cmdSetStirRate, int(rpm)))
}

func (s *Stirrer) Temperature(ctx context.Context) (float64, error) {
	return s.readValue(ctx, cmdReadTemp)
}

func (s *Stirrer) TemperatureSetpoint(ctx context.Context) (float64, error) {
	return s.readValue(ctx, cmdReadTempSP)
}

// StirRate reads the measured stirring speed in RPM.
func (s *Stirrer) StirRate(ctx context.Context) (float64, error) {
	return s.readValue(ctx, cmdReadStirRate)
}

// StirRateSetpoint reads the target stirring speed in RPM.
func (s *Stirrer) StirRateSetpoint(ctx context.Context) (float64, error) {
	return s.readValue(ctx, cmdReadStirRateSP)
}

func (s *Stirrer) send(ctx context.Context, payload string) error {
	_, err := s.actor.Do(ctx, func(sess *device.Session) (string, error) {
		return "", sess.Send(payload)
	})
	return err
}

func (s *Stirrer) readValue(ctx context.Context, cmd string) (float64, error) {
	reply, err := s.actor.Do(ctx, func(sess *device.Session) (string, error) {
		return sess.SendAndReceive(cmd, valueReply)
	})
	if err != nil {
		return 0, err
	}
	value, _, found := strings.Cut(reply, " ")
	if !found {
		return 0, device.Errorf(s.name, device.Protocol, "malformed value reply %q", reply)
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, device.Errorf(s.name, device.Protocol, "malformed value reply %q", reply)
	}
	return parsed, nil
}
