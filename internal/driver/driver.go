// Package driver defines the typed interfaces the router and dispatcher
// use to talk to hardware. Vendor modules implement them on top of the
// device actor; tests substitute fakes.
package driver

import "context"

// Pump is a syringe pump. Volumes are millilitres, speeds are
// millilitres per minute.
type Pump interface {
	// MoveAbsolute drives the plunger to an absolute fill volume.
	MoveAbsolute(ctx context.Context, volume, speed float64) error
	// MoveToHome drives the plunger to the zero position.
	MoveToHome(ctx context.Context, speed float64) error
	// WaitUntilReady blocks until the last motion finished.
	WaitUntilReady(ctx context.Context) error
}

// Valve is a multi-position distribution valve.
type Valve interface {
	MoveToPosition(ctx context.Context, position int) error
	WaitUntilReady(ctx context.Context) error
}

// Stirrer is a hotplate stirrer with a temperature probe.
type Stirrer interface {
	StartStirring(ctx context.Context) error
	StopStirring(ctx context.Context) error
	StartHeating(ctx context.Context) error
	StopHeating(ctx context.Context) error
	SetTemperature(ctx context.Context, celsius float64) error
	SetStirRate(ctx context.Context, rpm float64) error
	Temperature(ctx context.Context) (float64, error)
	TemperatureSetpoint(ctx context.Context) (float64, error)
}

// Rotavap is a rotary evaporator.
type Rotavap interface {
	StartHeaterBath(ctx context.Context) error
	StopHeaterBath(ctx context.Context) error
	StartRotation(ctx context.Context) error
	StopRotation(ctx context.Context) error
	LiftUp(ctx context.Context) error
	LiftDown(ctx context.Context) error
	Reset(ctx context.Context) error
	SetBathTemperature(ctx context.Context, celsius float64) error
	SetRotationSpeed(ctx context.Context, rpm float64) error
	SetInterval(ctx context.Context, seconds int) error
	BathTemperature(ctx context.Context) (float64, error)
	BathTemperatureSetpoint(ctx context.Context) (float64, error)
}

// Vacuum is a vacuum pump controller.
type Vacuum interface {
	Initialise(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Vent(ctx context.Context) error
	SetSetpoint(ctx context.Context, mbar float64) error
	Setpoint(ctx context.Context) (float64, error)
	SetEndSetpoint(ctx context.Context, mbar float64) error
	EndSetpoint(ctx context.Context) (float64, error)
	SetRuntime(ctx context.Context, duration string) error
	Runtime(ctx context.Context) (string, error)
	SetSpeed(ctx context.Context, percent float64) error
	Status(ctx context.Context) (string, error)
	Pressure(ctx context.Context) (float64, error)
}

// Chiller is a recirculation chiller.
type Chiller interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	SetTemperature(ctx context.Context, celsius float64) error
	SetCoolingPower(ctx context.Context, percent float64) error
	SetRampDuration(ctx context.Context, seconds int) error
	StartRamp(ctx context.Context, celsius float64) error
	Temperature(ctx context.Context) (float64, error)
	Setpoint(ctx context.Context) (float64, error)
}

// Switch is a binary relay, such as the valve switching a vessel between
// two chiller circuits.
type Switch interface {
	Set(ctx context.Context, on bool) error
}

// Sensor is any analog probe read by compound operations, such as the
// conductivity sensor driving phase separation.
type Sensor interface {
	Reading(ctx context.Context) (float64, error)
}

// Set holds every driver instance keyed by rig node ID. The router and
// dispatcher look devices up here; missing entries mean the script names
// hardware the rig does not have.
type Set struct {
	Pumps    map[string]Pump
	Valves   map[string]Valve
	Stirrers map[string]Stirrer
	Rotavaps map[string]Rotavap
	Vacuums  map[string]Vacuum
	Chillers map[string]Chiller
	Sensors  map[string]Sensor
	Switches map[string]Switch
}

func NewSet() *Set {
	return &Set{
		Pumps:    make(map[string]Pump),
		Valves:   make(map[string]Valve),
		Stirrers: make(map[string]Stirrer),
		Rotavaps: make(map[string]Rotavap),
		Vacuums:  make(map[string]Vacuum),
		Chillers: make(map[string]Chiller),
		Sensors:  make(map[string]Sensor),
		Switches: make(map[string]Switch),
	}
}
