// Package simrig registers simulated stand-ins for every hardware model
// so a full run can execute on a development machine. The fakes log what
// real hardware would do and answer reads with whatever was last
// written, which makes wait-for-setpoint loops return immediately.
package simrig

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vk/chemrig/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

func (m Module) Register(r *registry.Registry) {
	r.RegisterDriver("chempump", buildPump)
	r.RegisterDriver("chemvalve", buildValve)
	r.RegisterDriver("ika_ret", buildStirrer)
	r.RegisterDriver("ika_rv10", buildRotavap)
	r.RegisterDriver("cvc3000", buildVacuum)
	r.RegisterDriver("cf41", buildChiller)
	r.RegisterDriver("huber", buildChiller)
	r.RegisterDriver("conductivity_sensor", buildSensor)
	r.RegisterDriver("chiller_switch", buildSwitch)
}

func buildPump(ctx context.Context, p *registry.BuildParams) error {
	p.Drivers.Pumps[p.Spec.ID] = &Pump{name: p.Spec.ID, logger: p.Logger}
	return nil
}

func buildValve(ctx context.Context, p *registry.BuildParams) error {
	p.Drivers.Valves[p.Spec.ID] = &Valve{name: p.Spec.ID, logger: p.Logger}
	return nil
}

func buildStirrer(ctx context.Context, p *registry.BuildParams) error {
	p.Drivers.Stirrers[p.Spec.ID] = &Stirrer{name: p.Spec.ID, logger: p.Logger}
	return nil
}

func buildRotavap(ctx context.Context, p *registry.BuildParams) error {
	p.Drivers.Rotavaps[p.Spec.ID] = &Rotavap{name: p.Spec.ID, logger: p.Logger}
	return nil
}

func buildVacuum(ctx context.Context, p *registry.BuildParams) error {
	p.Drivers.Vacuums[p.Spec.ID] = &Vacuum{name: p.Spec.ID, logger: p.Logger}
	return nil
}

func buildChiller(ctx context.Context, p *registry.BuildParams) error {
	p.Drivers.Chillers[p.Spec.ID] = &Chiller{name: p.Spec.ID, logger: p.Logger}
	return nil
}

func buildSensor(ctx context.Context, p *registry.BuildParams) error {
	p.Drivers.Sensors[p.Spec.ID] = &Sensor{name: p.Spec.ID, logger: p.Logger}
	return nil
}

func buildSwitch(ctx context.Context, p *registry.BuildParams) error {
	p.Drivers.Switches[p.Spec.ID] = &Switch{name: p.Spec.ID, logger: p.Logger}
	return nil
}

// Pump pretends to be a syringe pump.
type Pump struct {
	name   string
	logger *slog.Logger
}

func (p *Pump) MoveAbsolute(ctx context.Context, volume, speed float64) error {
	p.logger.Info("SIM pump moving.", "pump", p.name, "volumeMl", volume, "speedMlMin", speed)
	return nil
}

func (p *Pump) MoveToHome(ctx context.Context, speed float64) error {
	p.logger.Info("SIM pump homing.", "pump", p.name, "speedMlMin", speed)
	return nil
}

func (p *Pump) WaitUntilReady(ctx context.Context) error { return nil }

// Valve pretends to be a distribution valve.
type Valve struct {
	name   string
	logger *slog.Logger
}

func (v *Valve) MoveToPosition(ctx context.Context, position int) error {
	v.logger.Info("SIM valve switching.", "valve", v.name, "position", position)
	return nil
}

func (v *Valve) WaitUntilReady(ctx context.Context) error { return nil }

// Stirrer pretends to be a hotplate stirrer.
type Stirrer struct {
	name   string
	logger *slog.Logger

	mu       sync.Mutex
	setpoint float64
}

func (s *Stirrer) StartStirring(ctx context.Context) error { return s.log("starting stirring") }
func (s *Stirrer) StopStirring(ctx context.Context) error  { return s.log("stopping stirring") }
func (s *Stirrer) StartHeating(ctx context.Context) error  { return s.log("starting heating") }
func (s *Stirrer) StopHeating(ctx context.Context) error   { return s.log("stopping heating") }

func (s *Stirrer) SetTemperature(ctx context.Context, celsius float64) error {
	s.mu.Lock()
	s.setpoint = celsius
	s.mu.Unlock()
	s.logger.Info("SIM stirrer setpoint.", "stirrer", s.name, "celsius", celsius)
	return nil
}

func (s *Stirrer) SetStirRate(ctx context.Context, rpm float64) error {
	s.logger.Info("SIM stirrer rate.", "stirrer", s.name, "rpm", rpm)
	return nil
}

func (s *Stirrer) Temperature(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setpoint, nil
}

func (s *Stirrer) TemperatureSetpoint(ctx context.Context) (float64, error) {
	return s.Temperature(ctx)
}

func (s *Stirrer) log(action string) error {
	s.logger.Info("SIM stirrer "+action+".", "stirrer", s.name)
	return nil
}

// Rotavap pretends to be a rotary evaporator.
type Rotavap struct {
	name   string
	logger *slog.Logger

	mu       sync.Mutex
	bathTemp float64
}

func (r *Rotavap) StartHeaterBath(ctx context.Context) error { return r.log("starting heater bath") }
func (r *Rotavap) StopHeaterBath(ctx context.Context) error  { return r.log("stopping heater bath") }
func (r *Rotavap) StartRotation(ctx context.Context) error   { return r.log("starting rotation") }
func (r *Rotavap) StopRotation(ctx context.Context) error    { return r.log("stopping rotation") }
func (r *Rotavap) LiftUp(ctx context.Context) error          { return r.log("lifting arm up") }
func (r *Rotavap) LiftDown(ctx context.Context) error        { return r.log("lifting arm down") }
func (r *Rotavap) Reset(ctx context.Context) error           { return r.log("resetting") }

func (r *Rotavap) SetBathTemperature(ctx context.Context, celsius float64) error {
	r.mu.Lock()
	r.bathTemp = celsius
	r.mu.Unlock()
	r.logger.Info("SIM rotavap bath setpoint.", "rotavap", r.name, "celsius", celsius)
	return nil
}

func (r *Rotavap) SetRotationSpeed(ctx context.Context, rpm float64) error {
	r.logger.Info("SIM rotavap rotation.", "rotavap", r.name, "rpm", rpm)
	return nil
}

func (r *Rotavap) SetInterval(ctx context.Context, seconds int) error {
	r.logger.Info("SIM rotavap interval.", "rotavap", r.name, "seconds", seconds)
	return nil
}

func (r *Rotavap) BathTemperature(ctx context.Context) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bathTemp, nil
}

func (r *Rotavap) BathTemperatureSetpoint(ctx context.Context) (float64, error) {
	return r.BathTemperature(ctx)
}

func (r *Rotavap) log(action string) error {
	r.logger.Info("SIM rotavap "+action+".", "rotavap", r.name)
	return nil
}

// Vacuum pretends to be a vacuum controller.
type Vacuum struct {
	name   string
	logger *slog.Logger

	mu          sync.Mutex
	setpoint    float64
	endSetpoint float64
	runtime     string
}

func (v *Vacuum) Initialise(ctx context.Context) error { return v.log("initialising") }
func (v *Vacuum) Start(ctx context.Context) error      { return v.log("starting") }
func (v *Vacuum) Stop(ctx context.Context) error       { return v.log("stopping") }
func (v *Vacuum) Vent(ctx context.Context) error       { return v.log("venting") }

func (v *Vacuum) SetSetpoint(ctx context.Context, mbar float64) error {
	v.mu.Lock()
	v.setpoint = mbar
	v.mu.Unlock()
	v.logger.Info("SIM vacuum setpoint.", "vacuum", v.name, "mbar", mbar)
	return nil
}

func (v *Vacuum) Setpoint(ctx context.Context) (float64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.setpoint, nil
}

func (v *Vacuum) SetEndSetpoint(ctx context.Context, mbar float64) error {
	v.mu.Lock()
	v.endSetpoint = mbar
	v.mu.Unlock()
	v.logger.Info("SIM vacuum switch-off setpoint.", "vacuum", v.name, "mbar", mbar)
	return nil
}

func (v *Vacuum) EndSetpoint(ctx context.Context) (float64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.endSetpoint, nil
}

func (v *Vacuum) SetRuntime(ctx context.Context, duration string) error {
	v.mu.Lock()
	v.runtime = duration
	v.mu.Unlock()
	v.logger.Info("SIM vacuum runtime.", "vacuum", v.name, "runtime", duration)
	return nil
}

func (v *Vacuum) Runtime(ctx context.Context) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.runtime, nil
}

func (v *Vacuum) SetSpeed(ctx context.Context, percent float64) error {
	v.logger.Info("SIM vacuum speed.", "vacuum", v.name, "percent", percent)
	return nil
}

func (v *Vacuum) Status(ctx context.Context) (string, error) { return "SIMULATION", nil }

func (v *Vacuum) Pressure(ctx context.Context) (float64, error) {
	return v.Setpoint(ctx)
}

func (v *Vacuum) log(action string) error {
	v.logger.Info("SIM vacuum "+action+".", "vacuum", v.name)
	return nil
}

// Chiller pretends to be a recirculation chiller.
type Chiller struct {
	name   string
	logger *slog.Logger

	mu       sync.Mutex
	setpoint float64
}

func (c *Chiller) Start(ctx context.Context) error { return c.log("starting") }
func (c *Chiller) Stop(ctx context.Context) error  { return c.log("stopping") }

func (c *Chiller) SetTemperature(ctx context.Context, celsius float64) error {
	c.mu.Lock()
	c.setpoint = celsius
	c.mu.Unlock()
	c.logger.Info("SIM chiller setpoint.", "chiller", c.name, "celsius", celsius)
	return nil
}

func (c *Chiller) SetCoolingPower(ctx context.Context, percent float64) error {
	c.logger.Info("SIM chiller cooling power.", "chiller", c.name, "percent", percent)
	return nil
}

func (c *Chiller) SetRampDuration(ctx context.Context, seconds int) error {
	c.logger.Info("SIM chiller ramp duration.", "chiller", c.name, "seconds", seconds)
	return nil
}

func (c *Chiller) StartRamp(ctx context.Context, celsius float64) error {
	c.mu.Lock()
	c.setpoint = celsius
	c.mu.Unlock()
	c.logger.Info("SIM chiller ramp.", "chiller", c.name, "celsius", celsius)
	return nil
}

func (c *Chiller) Temperature(ctx context.Context) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setpoint, nil
}

func (c *Chiller) Setpoint(ctx context.Context) (float64, error) {
	return c.Temperature(ctx)
}

func (c *Chiller) log(action string) error {
	c.logger.Info("SIM chiller "+action+".", "chiller", c.name)
	return nil
}

// Sensor pretends to be the conductivity probe and always reports the
// aqueous phase.
type Sensor struct {
	name   string
	logger *slog.Logger
}

func (s *Sensor) Reading(ctx context.Context) (float64, error) {
	s.logger.Info("SIM conductivity reading.", "sensor", s.name)
	return 1000, nil
}

// Switch pretends to be the chiller circuit relay.
type Switch struct {
	name   string
	logger *slog.Logger
}

func (s *Switch) Set(ctx context.Context, on bool) error {
	s.logger.Info("SIM relay switching.", "switch", s.name, "on", on)
	return nil
}
