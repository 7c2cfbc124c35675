// Package snapshot persists vessel volumes to disk after every
// instruction, so an aborted run can resume with plausible bookkeeping
// instead of a rig full of phantom liquid.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/chemrig/internal/rig"
)

type vesselState struct {
	CurrentVolume float64 `json:"current_volume"`
}

// Dump writes the volume of every vessel to path. Pumps and valves hold
// no standing liquid, and special devices track their liquid through the
// associated flask, so only plain vessels are stored. The file is
// written via a uniquely named temp file and rename, so a crash
// mid-write never leaves a truncated snapshot behind and concurrent
// dumps from parallel instructions never clobber each other's temp file.
func Dump(g *rig.Graph, path string) error {
	states := make(map[string]vesselState)
	for _, node := range g.Nodes() {
		if node.Class == rig.Pump || node.Class == rig.Valve || node.Class.IsSpecialDevice() {
			continue
		}
		states[node.ID] = vesselState{CurrentVolume: node.Current}
	}

	data, err := json.MarshalIndent(states, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create snapshot temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// Restore loads a snapshot and applies the stored volumes to the graph.
// Vessels missing from the snapshot keep the rig file's starting volume;
// snapshot entries naming nodes the rig no longer has are reported so a
// stale snapshot does not silently resume against the wrong topology.
func Restore(g *rig.Graph, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	var states map[string]vesselState
	if err := json.Unmarshal(data, &states); err != nil {
		return fmt.Errorf("failed to decode snapshot %s: %w", path, err)
	}

	for id, state := range states {
		if _, ok := g.Node(id); !ok {
			return fmt.Errorf("snapshot names unknown vessel %q", id)
		}
		g.SetVolume(id, state.CurrentVolume)
	}
	return nil
}
