// Package world provides the spatial environment characters live in:
// entities with 3-D positions, box-shaped locations, and the perceive/act
// entry points cognition uses to query and change it.
package world

import (
	"fmt"
	"maps"
	"math"

	"github.com/google/uuid"
)

// Entity type tags.
const (
	TypeLocation  = "Location"
	TypeCharacter = "Character"
)

// Vec3 is a point in world space.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b Vec3) float64 {
	dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Entity is anything with a position in the world.
type Entity struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Name       string         `json:"name"`
	Position   Vec3           `json:"position"`
	Properties map[string]any `json:"properties"`
}

// NewEntity creates an entity. An empty id is replaced with a UUID and an
// empty type defaults to "Entity".
func NewEntity(id, entityType, name string, pos Vec3) *Entity {
	if id == "" {
		id = uuid.NewString()
	}
	if entityType == "" {
		entityType = "Entity"
	}
	return &Entity{ID: id, Type: entityType, Name: name, Position: pos, Properties: map[string]any{}}
}

func (e *Entity) clone() Entity {
	c := *e
	c.Properties = maps.Clone(e.Properties)
	if c.Properties == nil {
		c.Properties = map[string]any{}
	}
	return c
}

func (e *Entity) String() string {
	return fmt.Sprintf("%s(id=%s, name=%s)", e.Type, e.ID, e.Name)
}

// Area is the full size of a location's box along each axis.
type Area struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Depth  float64 `json:"depth"`
}

// DefaultArea is used when a location is created without dimensions.
var DefaultArea = Area{Width: 10, Height: 10, Depth: 10}

// Location is an entity occupying an axis-aligned box centred on its
// position.
type Location struct {
	Entity
	Area Area `json:"area"`
}

// NewLocation creates a location. A zero area becomes DefaultArea.
func NewLocation(id, name string, pos Vec3, area Area) *Location {
	if area == (Area{}) {
		area = DefaultArea
	}
	return &Location{Entity: *NewEntity(id, TypeLocation, name, pos), Area: area}
}

// Contains reports whether p lies inside the box, boundaries included.
func (l *Location) Contains(p Vec3) bool {
	hw, hh, hd := l.Area.Width/2, l.Area.Height/2, l.Area.Depth/2
	return l.Position.X-hw <= p.X && p.X <= l.Position.X+hw &&
		l.Position.Y-hh <= p.Y && p.Y <= l.Position.Y+hh &&
		l.Position.Z-hd <= p.Z && p.Z <= l.Position.Z+hd
}

func (l *Location) clone() Location {
	return Location{Entity: l.Entity.clone(), Area: l.Area}
}
