// Package rigfile loads rig topology descriptions written in HCL and
// builds the runtime graph plus the list of hardware devices to bring up.
package rigfile

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/chemrig/internal/ctxlog"
	"github.com/vk/chemrig/internal/fsutil"
	"github.com/vk/chemrig/internal/rig"
)

// DeviceSpec describes one hardware device named in the rig file. Options
// carries vendor-specific attributes the driver module decodes itself.
type DeviceSpec struct {
	ID      string
	Class   rig.Class
	Model   string
	Address string
	Options map[string]cty.Value
}

// IntOption reads a numeric device option, falling back when the rig
// file leaves it out.
func (s DeviceSpec) IntOption(name string, fallback int) int {
	v, ok := s.Options[name]
	if !ok || v.Type() != cty.Number {
		return fallback
	}
	i, _ := v.AsBigFloat().Int64()
	return int(i)
}

// StringOption reads a string device option with a fallback.
func (s DeviceSpec) StringOption(name, fallback string) string {
	v, ok := s.Options[name]
	if !ok || v.Type() != cty.String {
		return fallback
	}
	return v.AsString()
}

// fileRoot decodes all top-level blocks of a rig file.
type fileRoot struct {
	Vessels []*vesselBlock `hcl:"vessel,block"`
	Valves  []*valveBlock  `hcl:"valve,block"`
	Pumps   []*pumpBlock   `hcl:"pump,block"`
	Devices []*deviceBlock `hcl:"device,block"`
	Probes  []*probeBlock  `hcl:"probe,block"`
	Tubes   []*tubeBlock   `hcl:"tube,block"`
}

type vesselBlock struct {
	Name            string   `hcl:"name,label"`
	Role            string   `hcl:"role,optional"` // flask (default), waste or collection
	MaxVolume       float64  `hcl:"max_volume"`
	CurrentVolume   float64  `hcl:"current_volume,optional"`
	VacuumValve     string   `hcl:"vacuum_valve,optional"`
	CartridgeValves []string `hcl:"cartridge_valves,optional"`
	ChillerSwitch   string   `hcl:"chiller_switch,optional"`
}

type valveBlock struct {
	Name    string   `hcl:"name,label"`
	Address string   `hcl:"address"`
	Model   string   `hcl:"model,optional"`
	Remain  hcl.Body `hcl:",remain"`
}

type pumpBlock struct {
	Name      string   `hcl:"name,label"`
	Address   string   `hcl:"address"`
	Model     string   `hcl:"model,optional"`
	MaxVolume float64  `hcl:"max_volume"`
	Remain    hcl.Body `hcl:",remain"`
}

type deviceBlock struct {
	Name            string   `hcl:"name,label"`
	Class           string   `hcl:"class"`
	Model           string   `hcl:"model,optional"`
	Address         string   `hcl:"address,optional"`
	AssociatedFlask string   `hcl:"associated_flask,optional"`
	SwitchingValve  string   `hcl:"switching_valve,optional"`
	Remain          hcl.Body `hcl:",remain"`
}

// probeBlock attaches an auxiliary instrument that is not part of the
// tubing graph, such as the conductivity sensor on the separator or the
// chiller circuit relay. When vessel is set the driver registers under
// the vessel's ID so code looking at the vessel finds its probe.
type probeBlock struct {
	Name    string   `hcl:"name,label"`
	Vessel  string   `hcl:"vessel,optional"`
	Model   string   `hcl:"model"`
	Address string   `hcl:"address"`
	Remain  hcl.Body `hcl:",remain"`
}

type tubeBlock struct {
	From   string  `hcl:"from"`
	To     string  `hcl:"to"`
	Port   int     `hcl:"port,optional"`
	Volume float64 `hcl:"volume,optional"`
}

var deviceClasses = map[string]rig.Class{
	"filter":    rig.Filter,
	"separator": rig.Separator,
	"rotavap":   rig.Rotavap,
	"column":    rig.Column,
}

// Load reads the rig description at path, which may be a single .hcl file
// or a directory of them, and builds the graph and device list.
func Load(ctx context.Context, path string) (*rig.Graph, []DeviceSpec, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := findRigFiles(path)
	if err != nil {
		return nil, nil, err
	}
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("no rig files found at %s", path)
	}
	logger.Debug("Discovered rig files.", "count", len(files))

	parser := hclparse.NewParser()
	var root fileRoot
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, nil, fmt.Errorf("failed to parse rig file %s: %w", file, diags)
		}
		var part fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &part); diags.HasErrors() {
			return nil, nil, fmt.Errorf("failed to decode rig file %s: %w", file, diags)
		}
		root.Vessels = append(root.Vessels, part.Vessels...)
		root.Valves = append(root.Valves, part.Valves...)
		root.Pumps = append(root.Pumps, part.Pumps...)
		root.Devices = append(root.Devices, part.Devices...)
		root.Probes = append(root.Probes, part.Probes...)
		root.Tubes = append(root.Tubes, part.Tubes...)
	}

	return build(ctx, &root)
}

// Parse builds a rig from in-memory HCL source, used by tests.
func Parse(ctx context.Context, filename, src string) (*rig.Graph, []DeviceSpec, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL([]byte(src), filename)
	if diags.HasErrors() {
		return nil, nil, fmt.Errorf("failed to parse rig source: %w", diags)
	}
	var root fileRoot
	if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
		return nil, nil, fmt.Errorf("failed to decode rig source: %w", diags)
	}
	return build(ctx, &root)
}

func findRigFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing rig path %s: %w", path, err)
	}
	if info.IsDir() {
		return fsutil.FindFilesByExtension(path, ".hcl")
	}
	return []string{path}, nil
}

func build(ctx context.Context, root *fileRoot) (*rig.Graph, []DeviceSpec, error) {
	logger := ctxlog.FromContext(ctx)
	g := rig.NewGraph()
	var specs []DeviceSpec

	for _, v := range root.Vessels {
		class := rig.Flask
		switch v.Role {
		case "", "flask":
		case "waste":
			class = rig.Waste
		case "collection":
			class = rig.CollectionFlask
		default:
			return nil, nil, fmt.Errorf("vessel %q: unknown role %q", v.Name, v.Role)
		}
		if err := g.AddNode(rig.Node{
			ID:              v.Name,
			Class:           class,
			Current:         v.CurrentVolume,
			Max:             v.MaxVolume,
			VacuumValve:     v.VacuumValve,
			CartridgeValves: v.CartridgeValves,
			ChillerSwitch:   v.ChillerSwitch,
		}); err != nil {
			return nil, nil, err
		}
	}

	for _, v := range root.Valves {
		model := v.Model
		if model == "" {
			model = "chemvalve"
		}
		if err := g.AddNode(rig.Node{ID: v.Name, Class: rig.Valve, Address: v.Address, Model: model}); err != nil {
			return nil, nil, err
		}
		opts, err := remainAttrs(v.Remain)
		if err != nil {
			return nil, nil, fmt.Errorf("valve %q: %w", v.Name, err)
		}
		specs = append(specs, DeviceSpec{ID: v.Name, Class: rig.Valve, Model: model, Address: v.Address, Options: opts})
	}

	for _, p := range root.Pumps {
		model := p.Model
		if model == "" {
			model = "chempump"
		}
		if err := g.AddNode(rig.Node{ID: p.Name, Class: rig.Pump, Address: p.Address, Model: model, Max: p.MaxVolume}); err != nil {
			return nil, nil, err
		}
		opts, err := remainAttrs(p.Remain)
		if err != nil {
			return nil, nil, fmt.Errorf("pump %q: %w", p.Name, err)
		}
		specs = append(specs, DeviceSpec{ID: p.Name, Class: rig.Pump, Model: model, Address: p.Address, Options: opts})
	}

	for _, d := range root.Devices {
		class, ok := deviceClasses[d.Class]
		if !ok {
			return nil, nil, fmt.Errorf("device %q: unknown class %q", d.Name, d.Class)
		}
		if err := g.AddNode(rig.Node{ID: d.Name, Class: class, Address: d.Address, Model: d.Model, SwitchingValve: d.SwitchingValve}); err != nil {
			return nil, nil, err
		}
		if d.Model != "" {
			opts, err := remainAttrs(d.Remain)
			if err != nil {
				return nil, nil, fmt.Errorf("device %q: %w", d.Name, err)
			}
			specs = append(specs, DeviceSpec{ID: d.Name, Class: class, Model: d.Model, Address: d.Address, Options: opts})
		}
	}

	for _, pr := range root.Probes {
		id := pr.Name
		if pr.Vessel != "" {
			if _, ok := g.Node(pr.Vessel); !ok {
				return nil, nil, fmt.Errorf("probe %q: unknown vessel %q", pr.Name, pr.Vessel)
			}
			id = pr.Vessel
		}
		opts, err := remainAttrs(pr.Remain)
		if err != nil {
			return nil, nil, fmt.Errorf("probe %q: %w", pr.Name, err)
		}
		specs = append(specs, DeviceSpec{ID: id, Class: rig.Flask, Model: pr.Model, Address: pr.Address, Options: opts})
	}

	for _, t := range root.Tubes {
		if err := g.AddEdge(rig.Edge{From: t.From, To: t.To, Port: t.Port, TubeVolume: t.Volume}); err != nil {
			return nil, nil, err
		}
	}

	// Flask association runs after all edges exist so the direct tube
	// between a device and its flask can be removed.
	for _, d := range root.Devices {
		if d.AssociatedFlask == "" {
			continue
		}
		if err := g.AssociateFlask(d.Name, d.AssociatedFlask); err != nil {
			return nil, nil, fmt.Errorf("device %q: %w", d.Name, err)
		}
	}

	logger.Debug("Rig loading complete.",
		"nodes", len(g.Nodes()), "devices", len(specs))
	return g, specs, nil
}

// remainAttrs flattens leftover block attributes into cty values for the
// driver module to interpret.
func remainAttrs(body hcl.Body) (map[string]cty.Value, error) {
	if body == nil {
		return nil, nil
	}
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}
	if len(attrs) == 0 {
		return nil, nil
	}
	opts := make(map[string]cty.Value, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, diags
		}
		opts[name] = val
	}
	return opts, nil
}
