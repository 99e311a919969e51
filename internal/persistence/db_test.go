package persistence

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/psyche/internal/agents"
	"github.com/talgya/psyche/internal/engine"
	"github.com/talgya/psyche/internal/graph"
	"github.com/talgya/psyche/internal/psyche"
	"github.com/talgya/psyche/internal/world"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "psyche.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func heroCharacter(t *testing.T, id, name string) *agents.Character {
	t.Helper()
	c, err := agents.FromArchetype(id, name, psyche.DefaultLibrary()[psyche.ArchHero])
	require.NoError(t, err)
	c.Psyche.Update(4)
	trait := c.Psyche.PersonalityTraits()[0]
	_, err = c.Psyche.AddMemory(psyche.Memory{Nodes: []string{trait.ID()}, EmotionTag: "Fear", Intensity: 0.9, Salience: 0.9, Cornerstone: true, Description: "The fire"})
	require.NoError(t, err)
	_, err = c.Psyche.AddEmotion(psyche.Emotion{Nodes: []string{trait.ID()}, Emotion: "Resolve", Intensity: 0.6, DecayRate: 0.1})
	require.NoError(t, err)
	return c
}

func TestPsychesRoundTrip(t *testing.T) {
	db := openTestDB(t)

	has, err := db.HasState()
	require.NoError(t, err)
	assert.False(t, has)

	a := heroCharacter(t, "c2", "Aria")
	b := heroCharacter(t, "c1", "Bram")
	require.NoError(t, db.SavePsyches([]*agents.Character{a, b}))

	has, err = db.HasState()
	require.NoError(t, err)
	assert.True(t, has)

	loaded, err := db.LoadPsyches()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "c2", loaded[0].ID, "save order is preserved")
	assert.Equal(t, psyche.ArchHero, loaded[0].Archetype)
	assert.Equal(t, a.Psyche.Snapshot(), loaded[0].Psyche.Snapshot())
	assert.Equal(t, 4.0, loaded[1].Psyche.CurrentTime())

	// Full replace drops characters no longer present.
	require.NoError(t, db.SavePsyches([]*agents.Character{b}))
	loaded, err = db.LoadPsyches()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "c1", loaded[0].ID)
}

func TestSavePsycheUpserts(t *testing.T) {
	db := openTestDB(t)
	a := heroCharacter(t, "a", "Aria")
	b := heroCharacter(t, "b", "Bram")
	require.NoError(t, db.SavePsyche(a))
	require.NoError(t, db.SavePsyche(b))

	_, err := a.Psyche.AddBelief("Dawn follows night", 0.99)
	require.NoError(t, err)
	require.NoError(t, db.SavePsyche(a))

	list, err := db.ListPsyches()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].CharacterID)
	assert.Equal(t, a.Psyche.Graph().NodeCount(), list[0].NodeCount)
	assert.Equal(t, 2, list[0].EdgeCount)

	got, err := db.LoadPsyche("a")
	require.NoError(t, err)
	assert.Equal(t, a.Psyche.Snapshot(), got.Psyche.Snapshot())

	_, err = db.LoadPsyche("zzz")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadRejectsDanglingGraph(t *testing.T) {
	db := openTestDB(t)
	g, err := graph.ImportUnchecked(graph.Snapshot{
		ID:    "psyche_x",
		Nodes: []graph.NodeRecord{{ID: "n1", Type: graph.KindNeed}},
		Edges: []graph.EdgeRecord{{ID: "r1", Type: graph.KindRule, Nodes: []string{"n1", "gone"}}},
	})
	require.NoError(t, err)
	require.NoError(t, db.SavePsyche(agents.FromPsyche(psyche.FromGraph("x", "X", g, 0), "")))

	_, err = db.LoadPsyche("x")
	assert.ErrorIs(t, err, graph.ErrDanglingReference)
}

func TestWorldRoundTrip(t *testing.T) {
	db := openTestDB(t)
	_, err := db.LoadWorld()
	assert.ErrorIs(t, err, ErrNotFound)

	w := world.Generate(world.GenConfig{Radius: 1, Spacing: 10, Seed: 5, SeaLevel: 0.25, MountainLevel: 0.72})
	require.NoError(t, w.AddEntity(world.NewEntity("c1", "Character", "Ada", world.Vec3{X: 1})))
	require.NoError(t, w.Update(9))
	require.NoError(t, db.SaveWorld(w))

	got, err := db.LoadWorld()
	require.NoError(t, err)
	assert.Equal(t, 9.0, got.CurrentTime())
	assert.Len(t, got.Locations(), 9)
	l, ok := got.LocationOf("c1")
	require.True(t, ok)
	assert.Equal(t, "loc_0_0", l.ID)
}

func TestEventsAndMeta(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SaveEvents(nil))
	require.NoError(t, db.SaveEvents([]engine.Event{
		{Type: engine.EventStart, Time: 0, Data: map[string]any{"time": 0.0}},
		{Type: engine.EventTick, Time: 1, Data: map[string]any{"time": 1.0}},
		{Type: engine.EventTick, Time: 2},
	}))

	events, err := db.RecentEvents(2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 2.0, events[0].Time, "newest first")
	assert.Nil(t, events[0].Data)
	assert.Equal(t, 1.0, events[1].Data["time"])

	_, ok, err := db.CurrentTime()
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = db.GetMeta("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, db.SaveMeta(MetaWorldSeed, "42"))
	v, err := db.GetMeta(MetaWorldSeed)
	require.NoError(t, err)
	assert.Equal(t, "42", v)
}

func TestSaveState(t *testing.T) {
	db := openTestDB(t)
	c := heroCharacter(t, "c1", "Aria")
	w := world.New()
	require.NoError(t, w.AddEntity(world.NewEntity("c1", "Character", "Aria", world.Vec3{})))

	require.NoError(t, db.SaveState(State{
		Time:       12.5,
		Characters: []*agents.Character{c},
		World:      w,
		Events:     []engine.Event{{Type: engine.EventTick, Time: 12.5}},
	}))

	now, ok, err := db.CurrentTime()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 12.5, now)

	events, err := db.RecentEvents(10)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	restored, err := db.LoadWorld()
	require.NoError(t, err)
	_, ok = restored.Entity("c1")
	assert.True(t, ok)
}
