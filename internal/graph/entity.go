// Package graph provides the typed hypergraph that holds a character's psyche.
// Nodes are atomic state elements (traits, values, needs, habits, beliefs);
// hyperedges relate any number of nodes (memories, emotions, rules).
package graph

import (
	"math"

	"github.com/google/uuid"
)

// NodeKind tags the concrete type of a Node.
type NodeKind string

const (
	KindPersonality NodeKind = "Personality"
	KindValue       NodeKind = "Value"
	KindNeed        NodeKind = "Need"
	KindHabit       NodeKind = "Habit"
	KindBelief      NodeKind = "Belief"
)

// EdgeKind tags the concrete type of a Hyperedge.
type EdgeKind string

const (
	KindMemory  EdgeKind = "Memory"
	KindEmotion EdgeKind = "Emotion"
	KindRule    EdgeKind = "Rule"
)

// Node is the capability shared by every node kind.
// The set of implementations is closed to this package.
type Node interface {
	ID() string
	Kind() NodeKind
	node()
}

// Hyperedge is the capability shared by every edge kind.
// Nodes returns the ordered, duplicate-free ids the edge connects.
type Hyperedge interface {
	ID() string
	Kind() EdgeKind
	Nodes() []string
	Contains(nodeID string) bool
	edge()
}

// NewID returns a fresh globally unique identifier.
func NewID() string {
	return uuid.NewString()
}

func idOrNew(id string) string {
	if id == "" {
		return NewID()
	}
	return id
}

// Clamp01 limits v to [0, 1]. NaN becomes 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

type nodeBase struct {
	id string
}

func (b nodeBase) ID() string { return b.id }
func (nodeBase) node()        {}

type edgeBase struct {
	id    string
	nodes []string
}

func newEdgeBase(id string, nodes []string) edgeBase {
	seen := make(map[string]struct{}, len(nodes))
	ordered := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		ordered = append(ordered, n)
	}
	return edgeBase{id: idOrNew(id), nodes: ordered}
}

func (b edgeBase) ID() string { return b.id }

// Nodes returns a copy of the connected node ids in insertion order.
func (b edgeBase) Nodes() []string {
	out := make([]string, len(b.nodes))
	copy(out, b.nodes)
	return out
}

// Contains reports whether nodeID participates in the edge.
func (b edgeBase) Contains(nodeID string) bool {
	for _, n := range b.nodes {
		if n == nodeID {
			return true
		}
	}
	return false
}

func (edgeBase) edge() {}
