package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/psyche/internal/graph"
	"github.com/talgya/psyche/internal/psyche"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), out.String())
	return out.String()
}

func TestRunResumeInspectExportImport(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PSYCHESIM_DB", filepath.Join(dir, "sim.db"))
	t.Setenv("PSYCHESIM_LOG_LEVEL", "error")

	out := execute(t, "run", "--steps", "5")
	assert.Contains(t, out, "Simulation stopped at t=5.")

	out = execute(t, "run", "--steps", "3")
	assert.Contains(t, out, "Simulation stopped at t=8.", "resumes from the saved clock")

	out = execute(t, "inspect")
	assert.Contains(t, out, "Saved at t=8")
	assert.Contains(t, out, "morden")
	assert.Contains(t, out, "simulation_stop")

	out = execute(t, "inspect", "aria")
	assert.Contains(t, out, "Aria (aria)")
	assert.Contains(t, out, "Archetype: hero")
	assert.Contains(t, out, "Courage")

	dump := filepath.Join(dir, "aria.json")
	execute(t, "export", "aria", dump)
	f, err := os.Open(dump)
	require.NoError(t, err)
	snap, err := psyche.ReadSnapshot(f)
	f.Close()
	require.NoError(t, err)
	assert.Equal(t, "aria", snap.CharacterID)
	assert.Equal(t, 8.0, snap.CurrentTime)

	snap.CharacterID = "aria2"
	snap.Graph.Edges = append(snap.Graph.Edges, graph.EdgeRecord{ID: "dangling", Type: graph.KindRule, Nodes: []string{"ghost"}})
	data, err := json.Marshal(snap)
	require.NoError(t, err)
	copyPath := filepath.Join(dir, "aria2.json")
	require.NoError(t, os.WriteFile(copyPath, data, 0o644))

	rootCmd.SetArgs([]string{"import", copyPath})
	assert.ErrorIs(t, rootCmd.Execute(), graph.ErrDanglingReference)

	out = execute(t, "import", "--prune", "--archetype", "hero", copyPath)
	assert.Contains(t, out, "Imported aria2")
	out = execute(t, "inspect", "aria2")
	assert.Contains(t, out, "Archetype: hero")

	worldDump := filepath.Join(dir, "world.json")
	execute(t, "export", "--world", worldDump)
	info, err := os.Stat(worldDump)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
