package graph

import "math"

// MemoryParams configures a new MemoryEdge.
type MemoryParams struct {
	ID          string
	Nodes       []string
	EmotionTag  string
	Intensity   float64
	Salience    float64
	Cornerstone bool
	Timestamp   *float64 // Logical time of the remembered event; nil if unknown
	Description string
}

// MemoryEdge records an event that involved the connected nodes.
// Cornerstone memories are foundational: nothing automatic may decay or evict them.
type MemoryEdge struct {
	edgeBase
	EmotionTag  string
	Description string

	intensity   float64
	salience    float64
	cornerstone bool
	timestamp   *float64
}

// NewMemoryEdge builds a memory edge. Intensity and salience are clamped to [0, 1].
func NewMemoryEdge(p MemoryParams) *MemoryEdge {
	return &MemoryEdge{
		edgeBase:    newEdgeBase(p.ID, p.Nodes),
		EmotionTag:  p.EmotionTag,
		Description: p.Description,
		intensity:   Clamp01(p.Intensity),
		salience:    Clamp01(p.Salience),
		cornerstone: p.Cornerstone,
		timestamp:   copyTime(p.Timestamp),
	}
}

func (e *MemoryEdge) Kind() EdgeKind      { return KindMemory }
func (e *MemoryEdge) Intensity() float64  { return e.intensity }
func (e *MemoryEdge) Salience() float64   { return e.salience }
func (e *MemoryEdge) IsCornerstone() bool { return e.cornerstone }

// Timestamp returns the creation time and whether it is set.
func (e *MemoryEdge) Timestamp() (float64, bool) {
	if e.timestamp == nil {
		return 0, false
	}
	return *e.timestamp, true
}

// SetSalience adjusts how readily the memory comes to mind.
// Cornerstone memories are immutable and ignore the call.
func (e *MemoryEdge) SetSalience(v float64) {
	if e.cornerstone {
		return
	}
	e.salience = Clamp01(v)
}

// EmotionParams configures a new EmotionEdge.
type EmotionParams struct {
	ID        string
	Nodes     []string
	Emotion   string
	Target    string // Node id the emotion is directed at; empty for none
	Intensity float64
	DecayRate float64
	Timestamp *float64 // Last update time; nil leaves the emotion fresh
}

// EmotionEdge is a felt emotion linking its cause to the values and needs it touches.
// Intensity decays exponentially with elapsed logical time.
type EmotionEdge struct {
	edgeBase
	Emotion string
	Target  string

	intensity  float64
	decayRate  float64
	lastUpdate *float64
}

// NewEmotionEdge builds an emotion edge. Intensity and decay rate are clamped to [0, 1].
func NewEmotionEdge(p EmotionParams) *EmotionEdge {
	return &EmotionEdge{
		edgeBase:   newEdgeBase(p.ID, p.Nodes),
		Emotion:    p.Emotion,
		Target:     p.Target,
		intensity:  Clamp01(p.Intensity),
		decayRate:  Clamp01(p.DecayRate),
		lastUpdate: copyTime(p.Timestamp),
	}
}

func (e *EmotionEdge) Kind() EdgeKind     { return KindEmotion }
func (e *EmotionEdge) Intensity() float64 { return e.intensity }
func (e *EmotionEdge) DecayRate() float64 { return e.decayRate }

// LastUpdate returns the time of the last decay step and whether it is set.
func (e *EmotionEdge) LastUpdate() (float64, bool) {
	if e.lastUpdate == nil {
		return 0, false
	}
	return *e.lastUpdate, true
}

// Decay advances the emotion to time now:
//
//	intensity = intensity * (1 - decayRate)^(now - lastUpdate)
//
// A fresh emotion (no last update) is only stamped. Time moving backwards
// leaves the edge untouched.
func (e *EmotionEdge) Decay(now float64) {
	if e.lastUpdate == nil {
		e.lastUpdate = &now
		return
	}
	elapsed := now - *e.lastUpdate
	if elapsed < 0 {
		return
	}
	e.intensity = Clamp01(e.intensity * math.Pow(1-e.decayRate, elapsed))
	e.lastUpdate = &now
}

// Reinforce adds delta to the current intensity, clamped to [0, 1].
func (e *EmotionEdge) Reinforce(delta float64) {
	e.intensity = Clamp01(e.intensity + delta)
}

// RuleParams configures a new RuleEdge.
type RuleParams struct {
	ID         string
	Nodes      []string
	Trigger    string
	Action     string
	Confidence float64
}

// RuleEdge is a stored rewrite rule. Trigger and Action are opaque here;
// cognition interprets them.
type RuleEdge struct {
	edgeBase
	Trigger string
	Action  string

	confidence float64
}

// NewRuleEdge builds a rule edge with confidence clamped to [0, 1].
func NewRuleEdge(p RuleParams) *RuleEdge {
	return &RuleEdge{
		edgeBase:   newEdgeBase(p.ID, p.Nodes),
		Trigger:    p.Trigger,
		Action:     p.Action,
		confidence: Clamp01(p.Confidence),
	}
}

func (e *RuleEdge) Kind() EdgeKind          { return KindRule }
func (e *RuleEdge) Confidence() float64     { return e.confidence }
func (e *RuleEdge) SetConfidence(v float64) { e.confidence = Clamp01(v) }

// TimePtr returns a pointer to t, for optional timestamps.
func TimePtr(t float64) *float64 {
	return &t
}

func copyTime(t *float64) *float64 {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
