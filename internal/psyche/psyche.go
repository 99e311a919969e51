// Package psyche models one character's inner state: a typed hypergraph of
// traits, values, needs, habits and beliefs, related by memories, emotions and
// rules, plus the logical clock that drives emotional decay.
package psyche

import (
	"fmt"
	"sort"

	"github.com/talgya/psyche/internal/graph"
)

// SignificanceThreshold is the intensity above which an emotion counts as currently felt.
const SignificanceThreshold = 0.1

// Psyche is one character's hypergraph and logical time cursor.
// Single owner, single writer.
type Psyche struct {
	CharacterID string
	Name        string

	graph       *graph.Hypergraph
	currentTime float64
}

// New creates an empty psyche for a character.
func New(characterID, name string) *Psyche {
	return &Psyche{
		CharacterID: characterID,
		Name:        name,
		graph:       graph.New("psyche_"+characterID, "Psyche of "+name),
	}
}

// Graph exposes the underlying hypergraph for cognition to read and extend.
func (p *Psyche) Graph() *graph.Hypergraph { return p.graph }

// CurrentTime returns the logical time of the last update.
func (p *Psyche) CurrentTime() float64 { return p.currentTime }

// ── Node constructors ─────────────────────────────────────────────────

// AddPersonalityTrait adds a trait node with value clamped to [0, 1].
func (p *Psyche) AddPersonalityTrait(trait string, value float64) (*graph.PersonalityNode, error) {
	n := graph.NewPersonalityNode("", trait, value)
	if err := p.graph.AddNode(n); err != nil {
		return nil, err
	}
	return n, nil
}

// AddValue adds a value node with priority clamped to [0, 1].
func (p *Psyche) AddValue(valueName string, priority float64) (*graph.ValueNode, error) {
	n := graph.NewValueNode("", valueName, priority)
	if err := p.graph.AddNode(n); err != nil {
		return nil, err
	}
	return n, nil
}

// AddNeed adds a need node with satisfaction clamped to [0, 1].
func (p *Psyche) AddNeed(needName string, satisfaction float64) (*graph.NeedNode, error) {
	n := graph.NewNeedNode("", needName, satisfaction)
	if err := p.graph.AddNode(n); err != nil {
		return nil, err
	}
	return n, nil
}

// AddHabit adds a habit node with strength clamped to [0, 1].
func (p *Psyche) AddHabit(habitName string, strength float64) (*graph.HabitNode, error) {
	n := graph.NewHabitNode("", habitName, strength)
	if err := p.graph.AddNode(n); err != nil {
		return nil, err
	}
	return n, nil
}

// AddBelief adds a belief node with confidence clamped to [0, 1].
func (p *Psyche) AddBelief(content string, confidence float64) (*graph.BeliefNode, error) {
	n := graph.NewBeliefNode("", content, confidence)
	if err := p.graph.AddNode(n); err != nil {
		return nil, err
	}
	return n, nil
}

// ── Edge constructors ─────────────────────────────────────────────────

// Memory describes a memory to record.
type Memory struct {
	Nodes       []string
	EmotionTag  string
	Intensity   float64
	Salience    float64
	Cornerstone bool
	Description string
}

// AddMemory records a memory stamped with the current time.
// Fails with graph.ErrDanglingReference if any node is missing.
func (p *Psyche) AddMemory(m Memory) (*graph.MemoryEdge, error) {
	e := graph.NewMemoryEdge(graph.MemoryParams{
		Nodes:       m.Nodes,
		EmotionTag:  m.EmotionTag,
		Intensity:   m.Intensity,
		Salience:    m.Salience,
		Cornerstone: m.Cornerstone,
		Timestamp:   graph.TimePtr(p.currentTime),
		Description: m.Description,
	})
	if err := p.graph.AddEdge(e); err != nil {
		return nil, fmt.Errorf("add memory: %w", err)
	}
	return e, nil
}

// Emotion describes an emotion to feel.
type Emotion struct {
	Nodes     []string
	Emotion   string
	Target    string
	Intensity float64
	DecayRate float64
}

// AddEmotion records an emotion whose decay clock starts at the current time.
func (p *Psyche) AddEmotion(em Emotion) (*graph.EmotionEdge, error) {
	e := graph.NewEmotionEdge(graph.EmotionParams{
		Nodes:     em.Nodes,
		Emotion:   em.Emotion,
		Target:    em.Target,
		Intensity: em.Intensity,
		DecayRate: em.DecayRate,
		Timestamp: graph.TimePtr(p.currentTime),
	})
	if err := p.graph.AddEdge(e); err != nil {
		return nil, fmt.Errorf("add emotion: %w", err)
	}
	return e, nil
}

// Rule describes a rule to store.
type Rule struct {
	Nodes      []string
	Trigger    string
	Action     string
	Confidence float64
}

// AddRule stores a rule edge. Rules are data; nothing here executes them.
func (p *Psyche) AddRule(r Rule) (*graph.RuleEdge, error) {
	e := graph.NewRuleEdge(graph.RuleParams{
		Nodes:      r.Nodes,
		Trigger:    r.Trigger,
		Action:     r.Action,
		Confidence: r.Confidence,
	})
	if err := p.graph.AddEdge(e); err != nil {
		return nil, fmt.Errorf("add rule: %w", err)
	}
	return e, nil
}

// ── Views ─────────────────────────────────────────────────────────────
// Each view returns entities of one concrete kind in insertion order.

func (p *Psyche) PersonalityTraits() []*graph.PersonalityNode {
	return graph.NodesOf[*graph.PersonalityNode](p.graph)
}

func (p *Psyche) Values() []*graph.ValueNode {
	return graph.NodesOf[*graph.ValueNode](p.graph)
}

func (p *Psyche) Needs() []*graph.NeedNode {
	return graph.NodesOf[*graph.NeedNode](p.graph)
}

func (p *Psyche) Habits() []*graph.HabitNode {
	return graph.NodesOf[*graph.HabitNode](p.graph)
}

func (p *Psyche) Beliefs() []*graph.BeliefNode {
	return graph.NodesOf[*graph.BeliefNode](p.graph)
}

func (p *Psyche) Memories() []*graph.MemoryEdge {
	return graph.EdgesOf[*graph.MemoryEdge](p.graph)
}

func (p *Psyche) Emotions() []*graph.EmotionEdge {
	return graph.EdgesOf[*graph.EmotionEdge](p.graph)
}

func (p *Psyche) Rules() []*graph.RuleEdge {
	return graph.EdgesOf[*graph.RuleEdge](p.graph)
}

// CornerstoneMemories returns the memories flagged as foundational.
func (p *Psyche) CornerstoneMemories() []*graph.MemoryEdge {
	var out []*graph.MemoryEdge
	for _, m := range p.Memories() {
		if m.IsCornerstone() {
			out = append(out, m)
		}
	}
	return out
}

// CurrentEmotions returns emotions whose intensity exceeds SignificanceThreshold.
func (p *Psyche) CurrentEmotions() []*graph.EmotionEdge {
	var out []*graph.EmotionEdge
	for _, e := range p.Emotions() {
		if e.Intensity() > SignificanceThreshold {
			out = append(out, e)
		}
	}
	return out
}

// ── Time ──────────────────────────────────────────────────────────────

// Update moves the clock to now and decays every emotion in edge order.
// Memories are never touched.
func (p *Psyche) Update(now float64) {
	p.currentTime = now
	for _, e := range p.Emotions() {
		e.Decay(now)
	}
}

// Forget evicts ordinary memories until at most limit remain, dropping the
// least salient first and the oldest among equals. Cornerstone memories are
// never evicted and do not count toward the limit. Returns the evicted ids.
func (p *Psyche) Forget(limit int) []string {
	if limit < 0 {
		limit = 0
	}
	var ordinary []*graph.MemoryEdge
	for _, m := range p.Memories() {
		if !m.IsCornerstone() {
			ordinary = append(ordinary, m)
		}
	}
	excess := len(ordinary) - limit
	if excess <= 0 {
		return nil
	}

	// Stable so insertion order breaks ties when timestamps match.
	sort.SliceStable(ordinary, func(i, j int) bool {
		if ordinary[i].Salience() != ordinary[j].Salience() {
			return ordinary[i].Salience() < ordinary[j].Salience()
		}
		ti, _ := ordinary[i].Timestamp()
		tj, _ := ordinary[j].Timestamp()
		return ti < tj
	})

	evicted := make([]string, 0, excess)
	for _, m := range ordinary[:excess] {
		p.graph.RemoveEdge(m.ID())
		evicted = append(evicted, m.ID())
	}
	return evicted
}

// String summarises the psyche for logs.
func (p *Psyche) String() string {
	return fmt.Sprintf("Psyche(%s %q, t=%g, %s)", p.CharacterID, p.Name, p.currentTime, p.graph)
}
