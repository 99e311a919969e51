package psyche

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/psyche/internal/graph"
)

func TestNewPsycheNamesGraph(t *testing.T) {
	p := New("c1", "Ada")
	assert.Equal(t, "psyche_c1", p.Graph().ID)
	assert.Equal(t, "Psyche of Ada", p.Graph().Name)
	assert.Equal(t, 0.0, p.CurrentTime())
	assert.Equal(t, 0, p.Graph().NodeCount())
}

func TestEmotionDecaysOnUpdate(t *testing.T) {
	p := New("c1", "Ada")
	n, err := p.AddNeed("Safety", 0.4)
	require.NoError(t, err)

	p.Update(1000)
	e, err := p.AddEmotion(Emotion{Nodes: []string{n.ID()}, Emotion: "Fear", Intensity: 0.7, DecayRate: 0.1})
	require.NoError(t, err)
	ts, ok := e.LastUpdate()
	require.True(t, ok)
	assert.Equal(t, 1000.0, ts)

	p.Update(1005)
	assert.InDelta(t, 0.4135, e.Intensity(), 1e-3)
	assert.InDelta(t, 0.7*math.Pow(0.9, 5), e.Intensity(), 1e-12)
	ts, _ = e.LastUpdate()
	assert.Equal(t, 1005.0, ts)
	assert.Equal(t, 1005.0, p.CurrentTime())
}

func TestMemoriesAreUntouchedByUpdate(t *testing.T) {
	p := New("c1", "Ada")
	v, _ := p.AddValue("Justice", 0.9)
	p.Update(3)
	m, err := p.AddMemory(Memory{Nodes: []string{v.ID()}, EmotionTag: "Pride", Intensity: 0.8, Salience: 0.9, Cornerstone: true})
	require.NoError(t, err)

	p.Update(500)
	assert.Equal(t, 0.8, m.Intensity())
	assert.Equal(t, 0.9, m.Salience())
	ts, ok := m.Timestamp()
	require.True(t, ok)
	assert.Equal(t, 3.0, ts)
	assert.Equal(t, []*graph.MemoryEdge{m}, p.CornerstoneMemories())
}

func TestAddEdgeWithMissingNodeFails(t *testing.T) {
	p := New("c1", "Ada")
	_, err := p.AddMemory(Memory{Nodes: []string{"ghost"}})
	assert.ErrorIs(t, err, graph.ErrDanglingReference)
	_, err = p.AddEmotion(Emotion{Nodes: []string{"ghost"}})
	assert.ErrorIs(t, err, graph.ErrDanglingReference)
	_, err = p.AddRule(Rule{Nodes: []string{"ghost"}})
	assert.ErrorIs(t, err, graph.ErrDanglingReference)
	assert.Equal(t, 0, p.Graph().EdgeCount())
}

func TestViewsAndCurrentEmotions(t *testing.T) {
	p := New("c1", "Ada")
	tr, _ := p.AddPersonalityTrait("Courage", 0.8)
	_, _ = p.AddValue("Justice", 0.9)
	nd, _ := p.AddNeed("Food", 0.2)
	_, _ = p.AddHabit("Prayer", 0.5)
	_, _ = p.AddBelief("Dragons exist", 0.3)

	strong, err := p.AddEmotion(Emotion{Nodes: []string{tr.ID()}, Emotion: "Joy", Intensity: 0.6, DecayRate: 0.1})
	require.NoError(t, err)
	_, err = p.AddEmotion(Emotion{Nodes: []string{nd.ID()}, Emotion: "Worry", Intensity: 0.1, DecayRate: 0.1})
	require.NoError(t, err)
	_, err = p.AddRule(Rule{Nodes: []string{nd.ID()}, Trigger: "hungry", Action: "eat", Confidence: 0.7})
	require.NoError(t, err)

	assert.Len(t, p.PersonalityTraits(), 1)
	assert.Len(t, p.Values(), 1)
	assert.Len(t, p.Needs(), 1)
	assert.Len(t, p.Habits(), 1)
	assert.Len(t, p.Beliefs(), 1)
	assert.Len(t, p.Emotions(), 2)
	assert.Len(t, p.Rules(), 1)
	assert.Empty(t, p.Memories())

	// 0.1 is not above the threshold.
	assert.Equal(t, []*graph.EmotionEdge{strong}, p.CurrentEmotions())
}

func TestForgetEvictsLeastSalientOldestFirst(t *testing.T) {
	p := New("c1", "Ada")
	n, _ := p.AddNeed("Belonging", 0.5)
	add := func(at, salience float64, cornerstone bool) string {
		p.Update(at)
		m, err := p.AddMemory(Memory{Nodes: []string{n.ID()}, Salience: salience, Cornerstone: cornerstone})
		require.NoError(t, err)
		return m.ID()
	}
	old := add(1, 0.2, false)
	keep := add(2, 0.9, false)
	newer := add(3, 0.2, false)
	core := add(4, 0.0, true)
	mid := add(5, 0.5, false)

	evicted := p.Forget(2)
	assert.Equal(t, []string{old, newer}, evicted)

	var left []string
	for _, m := range p.Memories() {
		left = append(left, m.ID())
	}
	assert.Equal(t, []string{keep, core, mid}, left)

	assert.Nil(t, p.Forget(2), "already within limit")
	assert.Equal(t, []string{mid, keep}, p.Forget(0))
	assert.Len(t, p.CornerstoneMemories(), 1)
}

func TestSnapshotRestore(t *testing.T) {
	p := New("c1", "Ada")
	require.NoError(t, p.ApplyArchetype(DefaultLibrary()[ArchHero]))
	p.Update(12)
	trait := p.PersonalityTraits()[0]
	_, err := p.AddEmotion(Emotion{Nodes: []string{trait.ID()}, Emotion: "Resolve", Intensity: 0.5, DecayRate: 0.2})
	require.NoError(t, err)

	restored, err := Restore(p.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, p.Snapshot(), restored.Snapshot())
	assert.Equal(t, 12.0, restored.CurrentTime())
	assert.Equal(t, "Ada", restored.Name)

	bad := p.Snapshot()
	bad.Graph.Edges[0].Nodes = []string{"ghost"}
	_, err = Restore(bad)
	assert.ErrorIs(t, err, graph.ErrDanglingReference)
}

func TestSnapshotJSONAndPrunedImport(t *testing.T) {
	p := New("c1", "Ada")
	n, err := p.AddNeed("Rest", 0.4)
	require.NoError(t, err)
	keep, err := p.AddEmotion(Emotion{Nodes: []string{n.ID()}, Emotion: "Fatigue", Intensity: 0.6})
	require.NoError(t, err)
	_, err = p.AddMemory(Memory{Nodes: []string{n.ID()}, Description: "Long night"})
	require.NoError(t, err)

	var buf strings.Builder
	require.NoError(t, p.WriteJSON(&buf))
	snap, err := ReadSnapshot(strings.NewReader(buf.String()))
	require.NoError(t, err)
	assert.Equal(t, p.Snapshot(), snap)

	snap.Graph.Edges[1].Nodes = append(snap.Graph.Edges[1].Nodes, "ghost")
	imported, pruned, err := ImportUnchecked(snap)
	require.NoError(t, err)
	assert.Equal(t, []string{snap.Graph.Edges[1].ID}, pruned)
	require.Len(t, imported.Emotions(), 1)
	assert.Equal(t, keep.ID(), imported.Emotions()[0].ID())
	assert.Empty(t, imported.Memories())
	assert.Empty(t, imported.Graph().Validate())

	_, err = ReadSnapshot(strings.NewReader("{"))
	assert.Error(t, err)
}

func TestApplyArchetypeOrder(t *testing.T) {
	p := New("v1", "Mordane")
	a, ok := DefaultLibrary().Lookup("VILLAIN")
	require.True(t, ok)
	require.NoError(t, p.ApplyArchetype(a))

	traits := p.PersonalityTraits()
	require.Len(t, traits, 2)
	assert.Equal(t, "Selfishness", traits[0].Trait)
	assert.Equal(t, 0.9, traits[0].Value())
	assert.Equal(t, "Power", p.Values()[0].ValueName)
	assert.Equal(t, graph.KindPersonality, p.Graph().Nodes()[0].Kind())
	assert.Equal(t, graph.KindBelief, p.Graph().Nodes()[p.Graph().NodeCount()-1].Kind())
}

func TestReadLibraryMergesOverBuiltins(t *testing.T) {
	src := `
archetypes:
  - name: Sage
    personality:
      - {name: Patience, level: 0.9}
    beliefs:
      - {name: Knowledge outlives kings, level: 0.8}
  - name: hero
    values:
      - {name: Glory, level: 1.4}
`
	lib, err := ReadLibrary(strings.NewReader(src))
	require.NoError(t, err)

	sage, ok := lib.Lookup("sage")
	require.True(t, ok)
	assert.Equal(t, "Patience", sage.Personality[0].Name)

	hero, _ := lib.Lookup(ArchHero)
	assert.Empty(t, hero.Personality, "file entry replaces the built-in")
	_, ok = lib.Lookup(ArchCommoner)
	assert.True(t, ok)

	p := New("h", "Hal")
	require.NoError(t, p.ApplyArchetype(hero))
	assert.Equal(t, 1.0, p.Values()[0].Priority())

	_, err = ReadLibrary(strings.NewReader("archetypes:\n  - personality: []\n"))
	assert.Error(t, err)

	empty, err := ReadLibrary(strings.NewReader(""))
	require.NoError(t, err)
	assert.Len(t, empty, 3)
}
