package api

import (
	"github.com/talgya/psyche/internal/agents"
	"github.com/talgya/psyche/internal/graph"
	"github.com/talgya/psyche/internal/world"
)

// View is an immutable picture of the simulation taken between ticks.
// Handlers only ever read a published View, never live state.
type View struct {
	Time       float64
	Running    bool
	Characters []CharacterView
	World      *world.Snapshot

	byID map[string]int
}

// CharacterView is everything the API exposes about one character.
type CharacterView struct {
	Summary  CharacterSummary
	Detail   CharacterDetail
	Graph    graph.Snapshot
	Emotions []EmotionView
	Memories []MemoryView
}

// CharacterSummary is the list-endpoint form of a character.
type CharacterSummary struct {
	ID                  string  `json:"id"`
	Name                string  `json:"name"`
	Archetype           string  `json:"archetype,omitempty"`
	Time                float64 `json:"time"`
	NodeCount           int     `json:"node_count"`
	EdgeCount           int     `json:"edge_count"`
	OverallSatisfaction float64 `json:"overall_satisfaction"`
	UrgentNeed          string  `json:"urgent_need,omitempty"`
	Location            string  `json:"location,omitempty"`
}

// Facet is a labelled node scalar.
type Facet struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	Level float64 `json:"level"`
}

// CharacterDetail groups a character's nodes by kind.
type CharacterDetail struct {
	CharacterSummary
	Personality []Facet `json:"personality"`
	Values      []Facet `json:"values"`
	Needs       []Facet `json:"needs"`
	Habits      []Facet `json:"habits"`
	Beliefs     []Facet `json:"beliefs"`
}

// EmotionView is one emotion edge.
type EmotionView struct {
	ID        string   `json:"id"`
	Emotion   string   `json:"emotion"`
	Intensity float64  `json:"intensity"`
	DecayRate float64  `json:"decay_rate"`
	Target    string   `json:"target,omitempty"`
	Nodes     []string `json:"nodes"`
}

// MemoryView is one memory edge.
type MemoryView struct {
	ID          string   `json:"id"`
	Description string   `json:"description,omitempty"`
	EmotionTag  string   `json:"emotion_tag,omitempty"`
	Intensity   float64  `json:"intensity"`
	Salience    float64  `json:"salience"`
	Cornerstone bool     `json:"is_cornerstone"`
	Timestamp   *float64 `json:"timestamp,omitempty"`
	Nodes       []string `json:"nodes"`
}

// BuildView captures characters and world. It must run on the goroutine
// that mutates them, typically from a tick listener. w may be nil.
func BuildView(now float64, running bool, chars []*agents.Character, w *world.World) *View {
	v := &View{
		Time:       now,
		Running:    running,
		Characters: make([]CharacterView, 0, len(chars)),
		byID:       make(map[string]int, len(chars)),
	}
	if w != nil {
		snap := w.Snapshot()
		v.World = &snap
	}
	for _, c := range chars {
		v.byID[c.ID] = len(v.Characters)
		v.Characters = append(v.Characters, characterView(c, w))
	}
	return v
}

// Character looks up a character by id.
func (v *View) Character(id string) (*CharacterView, bool) {
	i, ok := v.byID[id]
	if !ok {
		return nil, false
	}
	return &v.Characters[i], true
}

func characterView(c *agents.Character, w *world.World) CharacterView {
	p := c.Psyche
	g := p.Graph()
	sum := CharacterSummary{
		ID:                  c.ID,
		Name:                c.Name,
		Archetype:           c.Archetype,
		Time:                p.CurrentTime(),
		NodeCount:           g.NodeCount(),
		EdgeCount:           g.EdgeCount(),
		OverallSatisfaction: agents.OverallSatisfaction(p),
	}
	if need, ok := agents.MostUrgentNeed(p, agents.UrgentNeedThreshold); ok {
		sum.UrgentNeed = need.NeedName
	}
	if w != nil {
		if l, ok := w.LocationOf(c.ID); ok {
			sum.Location = l.Name
		}
	}

	detail := CharacterDetail{CharacterSummary: sum}
	for _, n := range g.Nodes() {
		f := Facet{ID: n.ID(), Label: graph.Label(n), Level: graph.Scalar(n)}
		switch n.Kind() {
		case graph.KindPersonality:
			detail.Personality = append(detail.Personality, f)
		case graph.KindValue:
			detail.Values = append(detail.Values, f)
		case graph.KindNeed:
			detail.Needs = append(detail.Needs, f)
		case graph.KindHabit:
			detail.Habits = append(detail.Habits, f)
		case graph.KindBelief:
			detail.Beliefs = append(detail.Beliefs, f)
		}
	}

	cv := CharacterView{Summary: sum, Detail: detail, Graph: g.Snapshot()}
	for _, e := range p.Emotions() {
		cv.Emotions = append(cv.Emotions, EmotionView{
			ID:        e.ID(),
			Emotion:   e.Emotion,
			Intensity: e.Intensity(),
			DecayRate: e.DecayRate(),
			Target:    e.Target,
			Nodes:     e.Nodes(),
		})
	}
	for _, m := range p.Memories() {
		mv := MemoryView{
			ID:          m.ID(),
			Description: m.Description,
			EmotionTag:  m.EmotionTag,
			Intensity:   m.Intensity(),
			Salience:    m.Salience(),
			Cornerstone: m.IsCornerstone(),
			Nodes:       m.Nodes(),
		}
		if ts, ok := m.Timestamp(); ok {
			mv.Timestamp = graph.TimePtr(ts)
		}
		cv.Memories = append(cv.Memories, mv)
	}
	return cv
}
