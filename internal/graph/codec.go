package graph

import (
	"encoding/json"
	"fmt"
	"io"
)

// Snapshot is the serialized form of a Hypergraph.
type Snapshot struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Nodes []NodeRecord `json:"nodes"`
	Edges []EdgeRecord `json:"edges"`
}

// NodeRecord is the flat serialized form of any node kind.
// Only the fields of the record's type are populated.
type NodeRecord struct {
	ID   string   `json:"id"`
	Type NodeKind `json:"type"`

	Trait        string   `json:"trait,omitempty"`
	Value        *float64 `json:"value,omitempty"`
	ValueName    string   `json:"value_name,omitempty"`
	Priority     *float64 `json:"priority,omitempty"`
	NeedName     string   `json:"need_name,omitempty"`
	Satisfaction *float64 `json:"satisfaction,omitempty"`
	HabitName    string   `json:"habit_name,omitempty"`
	Strength     *float64 `json:"strength,omitempty"`
	Content      string   `json:"content,omitempty"`
	Confidence   *float64 `json:"confidence,omitempty"`
}

// EdgeRecord is the flat serialized form of any edge kind.
type EdgeRecord struct {
	ID    string   `json:"id"`
	Type  EdgeKind `json:"type"`
	Nodes []string `json:"nodes"`

	// Memory and Emotion
	Intensity *float64 `json:"intensity,omitempty"`
	Timestamp *float64 `json:"timestamp,omitempty"`

	// Memory
	EmotionTag    string   `json:"emotion_tag,omitempty"`
	Salience      *float64 `json:"salience,omitempty"`
	IsCornerstone bool     `json:"is_cornerstone,omitempty"`
	Description   string   `json:"description,omitempty"`

	// Emotion
	Emotion   string   `json:"emotion,omitempty"`
	Target    *string  `json:"target,omitempty"`
	DecayRate *float64 `json:"decay_rate,omitempty"`

	// Rule
	Trigger    string   `json:"trigger,omitempty"`
	Action     string   `json:"action,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Defaults applied when a record omits a scalar.
const (
	DefaultScalar    = 0.5
	DefaultDecayRate = 0.1
)

func f64(v float64) *float64 { return &v }

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// EncodeNode converts a node into its record form.
func EncodeNode(n Node) NodeRecord {
	rec := NodeRecord{ID: n.ID(), Type: n.Kind()}
	switch v := n.(type) {
	case *PersonalityNode:
		rec.Trait, rec.Value = v.Trait, f64(v.value)
	case *ValueNode:
		rec.ValueName, rec.Priority = v.ValueName, f64(v.priority)
	case *NeedNode:
		rec.NeedName, rec.Satisfaction = v.NeedName, f64(v.satisfaction)
	case *HabitNode:
		rec.HabitName, rec.Strength = v.HabitName, f64(v.strength)
	case *BeliefNode:
		rec.Content, rec.Confidence = v.Content, f64(v.confidence)
	}
	return rec
}

// DecodeNode rebuilds a node from its record. Missing scalars default to 0.5.
func DecodeNode(rec NodeRecord) (Node, error) {
	switch rec.Type {
	case KindPersonality:
		return NewPersonalityNode(rec.ID, rec.Trait, orDefault(rec.Value, DefaultScalar)), nil
	case KindValue:
		return NewValueNode(rec.ID, rec.ValueName, orDefault(rec.Priority, DefaultScalar)), nil
	case KindNeed:
		return NewNeedNode(rec.ID, rec.NeedName, orDefault(rec.Satisfaction, DefaultScalar)), nil
	case KindHabit:
		return NewHabitNode(rec.ID, rec.HabitName, orDefault(rec.Strength, DefaultScalar)), nil
	case KindBelief:
		return NewBeliefNode(rec.ID, rec.Content, orDefault(rec.Confidence, DefaultScalar)), nil
	}
	return nil, fmt.Errorf("node %s: %w %q", rec.ID, ErrUnknownKind, rec.Type)
}

// EncodeEdge converts an edge into its record form.
func EncodeEdge(e Hyperedge) EdgeRecord {
	rec := EdgeRecord{ID: e.ID(), Type: e.Kind(), Nodes: e.Nodes()}
	switch v := e.(type) {
	case *MemoryEdge:
		rec.EmotionTag = v.EmotionTag
		rec.Intensity = f64(v.intensity)
		rec.Salience = f64(v.salience)
		rec.IsCornerstone = v.cornerstone
		rec.Timestamp = copyTime(v.timestamp)
		rec.Description = v.Description
	case *EmotionEdge:
		rec.Emotion = v.Emotion
		if v.Target != "" {
			target := v.Target
			rec.Target = &target
		}
		rec.Intensity = f64(v.intensity)
		rec.DecayRate = f64(v.decayRate)
		rec.Timestamp = copyTime(v.lastUpdate)
	case *RuleEdge:
		rec.Trigger = v.Trigger
		rec.Action = v.Action
		rec.Confidence = f64(v.confidence)
	}
	return rec
}

// DecodeEdge rebuilds an edge from its record.
func DecodeEdge(rec EdgeRecord) (Hyperedge, error) {
	switch rec.Type {
	case KindMemory:
		return NewMemoryEdge(MemoryParams{
			ID:          rec.ID,
			Nodes:       rec.Nodes,
			EmotionTag:  rec.EmotionTag,
			Intensity:   orDefault(rec.Intensity, DefaultScalar),
			Salience:    orDefault(rec.Salience, DefaultScalar),
			Cornerstone: rec.IsCornerstone,
			Timestamp:   rec.Timestamp,
			Description: rec.Description,
		}), nil
	case KindEmotion:
		var target string
		if rec.Target != nil {
			target = *rec.Target
		}
		return NewEmotionEdge(EmotionParams{
			ID:        rec.ID,
			Nodes:     rec.Nodes,
			Emotion:   rec.Emotion,
			Target:    target,
			Intensity: orDefault(rec.Intensity, DefaultScalar),
			DecayRate: orDefault(rec.DecayRate, DefaultDecayRate),
			Timestamp: rec.Timestamp,
		}), nil
	case KindRule:
		return NewRuleEdge(RuleParams{
			ID:         rec.ID,
			Nodes:      rec.Nodes,
			Trigger:    rec.Trigger,
			Action:     rec.Action,
			Confidence: orDefault(rec.Confidence, DefaultScalar),
		}), nil
	}
	return nil, fmt.Errorf("edge %s: %w %q", rec.ID, ErrUnknownKind, rec.Type)
}

// Snapshot serializes the graph in insertion order.
func (g *Hypergraph) Snapshot() Snapshot {
	snap := Snapshot{
		ID:    g.ID,
		Name:  g.Name,
		Nodes: make([]NodeRecord, 0, len(g.nodeOrder)),
		Edges: make([]EdgeRecord, 0, len(g.edgeOrder)),
	}
	for _, id := range g.nodeOrder {
		snap.Nodes = append(snap.Nodes, EncodeNode(g.nodes[id]))
	}
	for _, id := range g.edgeOrder {
		snap.Edges = append(snap.Edges, EncodeEdge(g.edges[id]))
	}
	return snap
}

// FromSnapshot rebuilds a graph through the checked insert path.
// Dangling references and duplicate ids are errors.
func FromSnapshot(s Snapshot) (*Hypergraph, error) {
	g, err := loadNodes(s)
	if err != nil {
		return nil, err
	}
	for _, rec := range s.Edges {
		e, err := DecodeEdge(rec)
		if err != nil {
			return nil, err
		}
		if err := g.AddEdge(e); err != nil {
			return nil, fmt.Errorf("load edge: %w", err)
		}
	}
	return g, nil
}

// ImportUnchecked rebuilds a graph for bulk or offline import, accepting
// edges whose node references are absent. Callers should run Validate
// (and usually PruneDangling) before handing the graph to live code.
// Duplicate ids remain errors.
func ImportUnchecked(s Snapshot) (*Hypergraph, error) {
	g, err := loadNodes(s)
	if err != nil {
		return nil, err
	}
	for _, rec := range s.Edges {
		e, err := DecodeEdge(rec)
		if err != nil {
			return nil, err
		}
		if _, exists := g.edges[e.ID()]; exists {
			return nil, fmt.Errorf("load edge: %w", &DuplicateIDError{ID: e.ID()})
		}
		g.insertEdge(e)
	}
	return g, nil
}

func loadNodes(s Snapshot) (*Hypergraph, error) {
	g := New(s.ID, s.Name)
	for _, rec := range s.Nodes {
		n, err := DecodeNode(rec)
		if err != nil {
			return nil, err
		}
		if err := g.AddNode(n); err != nil {
			return nil, fmt.Errorf("load node: %w", err)
		}
	}
	return g, nil
}

// WriteJSON writes the graph snapshot as indented JSON.
func (g *Hypergraph) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(g.Snapshot())
}

// ReadSnapshot decodes a JSON snapshot without building a graph.
func ReadSnapshot(r io.Reader) (Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}
