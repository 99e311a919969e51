package graph

// PersonalityNode is a trait from the FFM/HEXACO family (e.g. "Extraversion").
type PersonalityNode struct {
	nodeBase
	Trait string
	value float64
}

// NewPersonalityNode builds a personality node. An empty id is generated.
// value is clamped to [0, 1].
func NewPersonalityNode(id, trait string, value float64) *PersonalityNode {
	return &PersonalityNode{nodeBase: nodeBase{id: idOrNew(id)}, Trait: trait, value: Clamp01(value)}
}

func (n *PersonalityNode) Kind() NodeKind     { return KindPersonality }
func (n *PersonalityNode) Value() float64     { return n.value }
func (n *PersonalityNode) SetValue(v float64) { n.value = Clamp01(v) }

// ValueNode is something the character holds dear, weighted by priority.
type ValueNode struct {
	nodeBase
	ValueName string
	priority  float64
}

// NewValueNode builds a value node with priority clamped to [0, 1].
func NewValueNode(id, valueName string, priority float64) *ValueNode {
	return &ValueNode{nodeBase: nodeBase{id: idOrNew(id)}, ValueName: valueName, priority: Clamp01(priority)}
}

func (n *ValueNode) Kind() NodeKind        { return KindValue }
func (n *ValueNode) Priority() float64     { return n.priority }
func (n *ValueNode) SetPriority(v float64) { n.priority = Clamp01(v) }

// NeedNode tracks how satisfied a need currently is.
// 0 is completely unmet, 1 fully satisfied.
type NeedNode struct {
	nodeBase
	NeedName     string
	satisfaction float64
}

// NewNeedNode builds a need node with satisfaction clamped to [0, 1].
func NewNeedNode(id, needName string, satisfaction float64) *NeedNode {
	return &NeedNode{nodeBase: nodeBase{id: idOrNew(id)}, NeedName: needName, satisfaction: Clamp01(satisfaction)}
}

func (n *NeedNode) Kind() NodeKind            { return KindNeed }
func (n *NeedNode) Satisfaction() float64     { return n.satisfaction }
func (n *NeedNode) SetSatisfaction(v float64) { n.satisfaction = Clamp01(v) }

// HabitNode is an ingrained routine.
type HabitNode struct {
	nodeBase
	HabitName string
	strength  float64
}

// NewHabitNode builds a habit node with strength clamped to [0, 1].
func NewHabitNode(id, habitName string, strength float64) *HabitNode {
	return &HabitNode{nodeBase: nodeBase{id: idOrNew(id)}, HabitName: habitName, strength: Clamp01(strength)}
}

func (n *HabitNode) Kind() NodeKind        { return KindHabit }
func (n *HabitNode) Strength() float64     { return n.strength }
func (n *HabitNode) SetStrength(v float64) { n.strength = Clamp01(v) }

// BeliefNode is a proposition the character holds with some confidence.
type BeliefNode struct {
	nodeBase
	Content    string
	confidence float64
}

// NewBeliefNode builds a belief node with confidence clamped to [0, 1].
func NewBeliefNode(id, content string, confidence float64) *BeliefNode {
	return &BeliefNode{nodeBase: nodeBase{id: idOrNew(id)}, Content: content, confidence: Clamp01(confidence)}
}

func (n *BeliefNode) Kind() NodeKind          { return KindBelief }
func (n *BeliefNode) Confidence() float64     { return n.confidence }
func (n *BeliefNode) SetConfidence(v float64) { n.confidence = Clamp01(v) }

// Label returns the human-readable label of any node kind.
func Label(n Node) string {
	switch v := n.(type) {
	case *PersonalityNode:
		return v.Trait
	case *ValueNode:
		return v.ValueName
	case *NeedNode:
		return v.NeedName
	case *HabitNode:
		return v.HabitName
	case *BeliefNode:
		return v.Content
	}
	return ""
}

// Scalar returns the bounded scalar attribute of any node kind.
func Scalar(n Node) float64 {
	switch v := n.(type) {
	case *PersonalityNode:
		return v.value
	case *ValueNode:
		return v.priority
	case *NeedNode:
		return v.satisfaction
	case *HabitNode:
		return v.strength
	case *BeliefNode:
		return v.confidence
	}
	return 0
}
