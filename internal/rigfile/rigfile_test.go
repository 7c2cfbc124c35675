package rigfile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/chemrig/internal/rig"
)

const testRig = `
vessel "flask_water" {
  max_volume     = 250
  current_volume = 100
}

vessel "waste_1" {
  role       = "waste"
  max_volume = 2000
}

valve "valve_1" {
  address = "192.168.1.10"
}

pump "pump_1" {
  address    = "192.168.1.20"
  max_volume = 10
}

device "separator_1" {
  class            = "separator"
  model            = "ikaret"
  address          = "/dev/ttyUSB0"
  associated_flask = "flask_water"
  baud_rate        = 9600
}

tube {
  from   = "flask_water"
  to     = "valve_1"
  port   = 1
  volume = 2.5
}

tube {
  from = "pump_1"
  to   = "valve_1"
  port = 6
}

tube {
  from = "valve_1"
  to   = "waste_1"
  port = 3
}

tube {
  from = "separator_1"
  to   = "flask_water"
}
`

func TestParseRig(t *testing.T) {
	g, specs, err := Parse(context.Background(), "test.rig.hcl", testRig)
	require.NoError(t, err)

	flask, ok := g.Node("flask_water")
	require.True(t, ok)
	assert.Equal(t, rig.Flask, flask.Class)
	assert.Equal(t, 100.0, flask.Current)
	assert.Equal(t, 250.0, flask.Max)

	waste, ok := g.Node("waste_1")
	require.True(t, ok)
	assert.Equal(t, rig.Waste, waste.Class)

	valve, ok := g.Node("valve_1")
	require.True(t, ok)
	assert.Equal(t, "chemvalve", valve.Model)

	port, ok := g.PortBetween("valve_1", "flask_water")
	require.True(t, ok)
	assert.Equal(t, 1, port)

	// Three devices to bring up: valve, pump and the separator.
	require.Len(t, specs, 3)
	byID := make(map[string]DeviceSpec, len(specs))
	for _, spec := range specs {
		byID[spec.ID] = spec
	}
	assert.Equal(t, "chempump", byID["pump_1"].Model)
	sep := byID["separator_1"]
	assert.Equal(t, "ikaret", sep.Model)
	require.Contains(t, sep.Options, "baud_rate")
	baud, _ := sep.Options["baud_rate"].AsBigFloat().Int64()
	assert.Equal(t, int64(9600), baud)
}

func TestParseRigAssociatesFlask(t *testing.T) {
	g, _, err := Parse(context.Background(), "test.rig.hcl", testRig)
	require.NoError(t, err)

	sep, ok := g.Node("separator_1")
	require.True(t, ok)
	assert.Equal(t, "flask_water", sep.AssociatedFlask)

	// The direct tube must be gone after association.
	_, connected := g.EdgeBetween("separator_1", "flask_water")
	assert.False(t, connected)
}

func TestParseRigRejectsUnknownRole(t *testing.T) {
	src := `
vessel "v" {
  role       = "cauldron"
  max_volume = 10
}
`
	_, _, err := Parse(context.Background(), "bad.hcl", src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown role")
}

func TestParseRigRejectsDanglingTube(t *testing.T) {
	src := `
tube {
  from = "nowhere"
  to   = "also_nowhere"
}
`
	_, _, err := Parse(context.Background(), "bad.hcl", src)
	require.Error(t, err)
}

func TestParseRigProbeRegistersUnderVessel(t *testing.T) {
	src := `
vessel "flask_separator_top" {
  max_volume = 250
}

probe "conductivity_1" {
  vessel  = "flask_separator_top"
  model   = "conductivity_sensor"
  address = "192.168.1.30"
  port    = 4002
}

probe "relay_1" {
  model   = "chiller_switch"
  address = "192.168.1.31"
}
`
	_, specs, err := Parse(context.Background(), "probe.hcl", src)
	require.NoError(t, err)
	require.Len(t, specs, 2)

	byModel := make(map[string]DeviceSpec, len(specs))
	for _, spec := range specs {
		byModel[spec.Model] = spec
	}
	// The sensor registers under the vessel so lookups by vessel ID find it.
	assert.Equal(t, "flask_separator_top", byModel["conductivity_sensor"].ID)
	assert.Equal(t, 4002, byModel["conductivity_sensor"].IntOption("port", 4001))
	// A probe without a vessel keeps its own name.
	assert.Equal(t, "relay_1", byModel["chiller_switch"].ID)
	assert.Equal(t, 4001, byModel["chiller_switch"].IntOption("port", 4001))
}

func TestParseRigProbeRejectsUnknownVessel(t *testing.T) {
	src := `
probe "conductivity_1" {
  vessel  = "no_such_flask"
  model   = "conductivity_sensor"
  address = "192.168.1.30"
}
`
	_, _, err := Parse(context.Background(), "probe.hcl", src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown vessel")
}

func TestParseRigVesselChillerSwitch(t *testing.T) {
	src := `
vessel "flask_jacketed" {
  max_volume     = 500
  chiller_switch = "relay_1"
}
`
	g, _, err := Parse(context.Background(), "switch.hcl", src)
	require.NoError(t, err)
	node, ok := g.Node("flask_jacketed")
	require.True(t, ok)
	assert.Equal(t, "relay_1", node.ChillerSwitch)
}

func TestParseRigOptionsExposeCtyValues(t *testing.T) {
	src := `
pump "p" {
  address    = "192.168.1.2"
  max_volume = 10
  write_delay_ms = 100
}
`
	_, specs, err := Parse(context.Background(), "opts.hcl", src)
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.True(t, cty.NumberIntVal(100).RawEquals(specs[0].Options["write_delay_ms"]))
}
