package snapshot

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/chemrig/internal/rig"
)

func testGraph(t *testing.T) *rig.Graph {
	t.Helper()
	g := rig.NewGraph()
	require.NoError(t, g.AddNode(rig.Node{ID: "flask_a", Class: rig.Flask, Current: 40, Max: 100}))
	require.NoError(t, g.AddNode(rig.Node{ID: "waste_1", Class: rig.Waste, Current: 3, Max: 500}))
	require.NoError(t, g.AddNode(rig.Node{ID: "valve_1", Class: rig.Valve}))
	require.NoError(t, g.AddNode(rig.Node{ID: "pump_1", Class: rig.Pump, Max: 10}))
	return g
}

func TestDumpRestoreRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volumes.json")
	g := testGraph(t)
	require.NoError(t, Dump(g, path))

	// A fresh graph starts from the rig file's defaults; restoring pulls
	// the snapshot volumes back in.
	fresh := testGraph(t)
	fresh.SetVolume("flask_a", 0)
	fresh.SetVolume("waste_1", 0)
	require.NoError(t, Restore(fresh, path))

	current, ok := fresh.CurrentVolume("flask_a")
	require.True(t, ok)
	assert.InDelta(t, 40, current, 1e-9)
	current, ok = fresh.CurrentVolume("waste_1")
	require.True(t, ok)
	assert.InDelta(t, 3, current, 1e-9)
}

func TestDumpSkipsHardwareNodes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volumes.json")
	require.NoError(t, Dump(testGraph(t), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "valve_1")
	assert.NotContains(t, string(data), "pump_1")
}

func TestRestoreRejectsUnknownVessel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volumes.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"flask_gone": {"current_volume": 1}}`), 0o644))

	err := Restore(testGraph(t), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flask_gone")
}

func TestRestoreMissingFileFails(t *testing.T) {
	err := Restore(testGraph(t), filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestDumpConcurrentWritersToOnePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "volumes.json")
	g := testGraph(t)

	// Parallel instructions each dump after finishing; every writer must
	// succeed and the final file must be a complete snapshot.
	var wg sync.WaitGroup
	errs := make([]error, 100)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = Dump(g, path)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	fresh := testGraph(t)
	fresh.SetVolume("flask_a", 0)
	require.NoError(t, Restore(fresh, path))
	current, ok := fresh.CurrentVolume("flask_a")
	require.True(t, ok)
	assert.InDelta(t, 40, current, 1e-9)
}

func TestDumpLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "volumes.json")
	require.NoError(t, Dump(testGraph(t), path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "volumes.json", entries[0].Name())
}
