// Package cvc3000 drives the Vacuubrand CVC 3000 vacuum controller.
// Every command answers: reads echo the value with its unit, writes
// echo the accepted value, which doubles as verification.
package cvc3000

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
	cmdRemote        = "REMOTE"
	cmdEcho          = "ECHO"
	cmdVersion       = "CVC"
	cmdMode          = "OUT_MODE"
	cmdReadPressure  = "IN_PV_1"
	cmdReadSetpoint  = "IN_SP_1"
	cmdSetSetpoint   = "OUT_SP_1"
	cmdReadSpeed     = "IN_SP_2"
	cmdSetSpeed      = "OUT_SP_2"
	cmdReadEndVac    = "IN_SP_5"
	cmdSetEndVac     = "OUT_SP_5"
	cmdReadRuntime   = "IN_SP_6"
	cmdSetRuntime    = "OUT_SP_6"
	cmdStart         = "START"
	cmdStop          = "STOP"
	cmdVent          = "OUT_VENT"
	cmdReadStatus    = "IN_STAT"

	// Mode 2 is "vac control", the only mode the run controller uses.
	vacControlMode = 2
)

var (
	getReply  = regexp.MustCompile(`([0-9.]+) ([0-9A-z%]+)`)
	setReply  = regexp.MustCompile(`([0-9A-z%]+)`)
	timeReply = regexp.MustCompile(`(\d{2}:\d{2}) ([hms]:[hms])`)
)

// Module implements the registry.Module interface for this package.
type Module struct{}

func (m Module) Register(r *registry.Registry) {
	r.RegisterDriver("cvc3000", build)
}

func build(ctx context.Context, p *registry.BuildParams) error {
	port := p.Spec.IntOption("port", DefaultPort)
	actor, err := p.Pool.GetOrDial(fmt.Sprintf("%s:%d", p.Spec.Address, port), device.Config{
		Name:        p.Spec.ID,
		Terminator:  "\r\n",
		Delim:       '\n',
		WriteDelay:  50 * time.Millisecond,
		ReadTimeout: 2 * time.Second,
		Logger:      p.Logger,
	}, func() (device.Transport, error) {
		return p.Dial(p.Spec.Address, port)
	})
	if err != nil {
		return err
	}
	p.Drivers.Vacuums[p.Spec.ID] = &Vacuum{name: p.Spec.ID, actor: actor}
	return nil
}

// Vacuum is one CVC 3000 controller.
type Vacuum struct {
	name  string
	actor *device.Actor
}

// Initialise switches the controller to remote operation, turns command
// echo on, selects the CVC 3000 command set and enters vac control mode.
func (v *Vacuum) Initialise(ctx context.Context) error {
	steps := []struct {
		payload string
		pattern *regexp.Regexp
	}{
		{cmdRemote + " 1", nil},
		{cmdEcho + " 1", setReply},
		{cmdVersion + " 3", setReply},
		{cmdMode + " " + strconv.Itoa(vacControlMode), nil},
	}
	for _, step := range steps {
		if _, err := v.exchange(ctx, step.payload, step.pattern); err != nil {
			return err
		}
	}
	return nil
}

func (v *Vacuum) Start(ctx context.Context) error {
	_, err := v.exchange(ctx, cmdStart, setReply)
	return err
}

func (v *Vacuum) Stop(ctx context.Context) error {
	_, err := v.exchange(ctx, cmdStop, setReply)
	return err
}

func (v *Vacuum) Vent(ctx context.Context) error {
	_, err := v.exchange(ctx, cmdVent+" 1", setReply)
	return err
}

func (v *Vacuum) SetSetpoint(ctx context.Context, mbar float64) error {
	return v.setVerified(ctx, cmdSetSetpoint, int(mbar))
}

func (v *Vacuum) Setpoint(ctx context.Context) (float64, error) {
	return v.readValue(ctx, cmdReadSetpoint)
}

func (v *Vacuum) SetEndSetpoint(ctx context.Context, mbar float64) error {
	return v.setVerified(ctx, cmdSetEndVac, int(mbar))
}

func (v *Vacuum) EndSetpoint(ctx context.Context) (float64, error) {
	return v.readValue(ctx, cmdReadEndVac)
}

// SetRuntime programs the process runtime, duration in hh:mm form.
func (v *Vacuum) SetRuntime(ctx context.Context, duration string) error {
	reply, err := v.exchange(ctx, cmdSetRuntime+" "+duration, timeReply)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(reply, duration) {
		return device.Errorf(v.name, device.Protocol, "runtime not accepted, controller replied %q", reply)
	}
	return nil
}

func (v *Vacuum) Runtime(ctx context.Context) (string, error) {
	reply, err := v.exchange(ctx, cmdReadRuntime, timeReply)
	if err != nil {
		return "", err
	}
	runtime, _, _ := strings.Cut(reply, " ")
	return runtime, nil
}

// SetSpeed limits the pumping speed, 1 to 100 percent.
func (v *Vacuum) SetSpeed(ctx context.Context, percent float64) error {
	p := int(percent)
	if p < 1 || p > 100 {
		return device.Errorf(v.name, device.InvalidParameter, "speed %d%% outside 1..100", p)
	}
	return v.setVerified(ctx, cmdSetSpeed, p)
}

func (v *Vacuum) Status(ctx context.Context) (string, error) {
	return v.exchange(ctx, cmdReadStatus, nil)
}

func (v *Vacuum) Pressure(ctx context.Context) (float64, error) {
	return v.readValue(ctx, cmdReadPressure)
}

func (v *Vacuum) exchange(ctx context.Context, payload string, pattern *regexp.Regexp) (string, error) {
	return v.actor.Do(ctx, func(s *device.Session) (string, error) {
		return s.SendAndReceive(payload, pattern)
	})
}

// setVerified writes an integer register and checks the echoed value.
func (v *Vacuum) setVerified(ctx context.Context, cmd string, value int) error {
	reply, err := v.exchange(ctx, fmt.Sprintf("%s %d", cmd, value), setReply)
	if err != nil {
		return err
	}
	fields := strings.Fields(reply)
	if len(fields) == 0 {
		return device.Errorf(v.name, device.Protocol, "empty reply to register write")
	}
	echoed, err := strconv.Atoi(fields[0])
	if err != nil || echoed != value {
		return device.Errorf(v.name, device.Protocol,
			"register write not accepted, sent %d got %q", value, reply)
	}
	return nil
}

func (v *Vacuum) readValue(ctx context.Context, cmd string) (float64, error) {
	reply, err := v.exchange(ctx, cmd, getReply)
	if err != nil {
		return 0, err
	}
	value, _, _ := strings.Cut(reply, " ")
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, device.Errorf(v.name, device.Protocol, "malformed value reply %q", reply)
	}
	return parsed, nil
}
