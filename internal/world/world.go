package world

import (
	"errors"
	"fmt"
	"log/slog"
)

// DefaultPerceptionRadius is the sight radius used when Perceive is given no area.
const DefaultPerceptionRadius = 10.0

// DefaultInteractDistance is the reach used when an interact action sets none.
const DefaultInteractDistance = 2.0

// Action types understood by Act.
const (
	ActionMove     = "move"
	ActionInteract = "interact"
)

var (
	ErrEntityNotFound  = errors.New("entity not found")
	ErrDuplicateEntity = errors.New("duplicate entity id")
	ErrUnknownAction   = errors.New("unknown action type")
	ErrNoPosition      = errors.New("no position specified")
	ErrNoTarget        = errors.New("no target specified")
	ErrTargetTooFar    = errors.New("target too far away")
)

// World holds every entity and location. Entities and locations share one
// id space; a location is also an entity. Iteration follows insertion order.
type World struct {
	currentTime float64

	entities  map[string]*Entity
	order     []string
	locations map[string]*Location
	locOrder  []string

	logger *slog.Logger
}

// New creates an empty world.
func New() *World {
	return &World{
		entities:  make(map[string]*Entity),
		locations: make(map[string]*Location),
		logger:    slog.Default(),
	}
}

// SetLogger replaces the world's logger.
func (w *World) SetLogger(l *slog.Logger) { w.logger = l }

// CurrentTime returns the time of the last Update.
func (w *World) CurrentTime() float64 { return w.currentTime }

// AddEntity inserts a plain entity.
func (w *World) AddEntity(e *Entity) error {
	if e == nil {
		return fmt.Errorf("add entity: nil")
	}
	if _, exists := w.entities[e.ID]; exists {
		return fmt.Errorf("add entity %s: %w", e.ID, ErrDuplicateEntity)
	}
	if e.Properties == nil {
		e.Properties = map[string]any{}
	}
	w.entities[e.ID] = e
	w.order = append(w.order, e.ID)
	return nil
}

// AddLocation inserts a location, which is also visible as an entity.
func (w *World) AddLocation(l *Location) error {
	if l == nil {
		return fmt.Errorf("add location: nil")
	}
	l.Type = TypeLocation
	if err := w.AddEntity(&l.Entity); err != nil {
		return err
	}
	w.locations[l.ID] = l
	w.locOrder = append(w.locOrder, l.ID)
	return nil
}

// RemoveEntity deletes an entity or location. Unknown ids are ignored.
func (w *World) RemoveEntity(id string) {
	if _, ok := w.entities[id]; !ok {
		return
	}
	delete(w.entities, id)
	w.order = removeID(w.order, id)
	if _, ok := w.locations[id]; ok {
		delete(w.locations, id)
		w.locOrder = removeID(w.locOrder, id)
	}
}

// Entity looks up an entity by id.
func (w *World) Entity(id string) (*Entity, bool) {
	e, ok := w.entities[id]
	return e, ok
}

// Location looks up a location by id.
func (w *World) Location(id string) (*Location, bool) {
	l, ok := w.locations[id]
	return l, ok
}

// Entities returns every entity, locations included, in insertion order.
func (w *World) Entities() []*Entity {
	out := make([]*Entity, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, w.entities[id])
	}
	return out
}

// Locations returns every location in insertion order.
func (w *World) Locations() []*Location {
	out := make([]*Location, 0, len(w.locOrder))
	for _, id := range w.locOrder {
		out = append(out, w.locations[id])
	}
	return out
}

// EntitiesAt returns the entities whose position lies inside a location,
// including the location itself. Unknown locations yield nothing.
func (w *World) EntitiesAt(locationID string) []*Entity {
	l, ok := w.locations[locationID]
	if !ok {
		return nil
	}
	var out []*Entity
	for _, id := range w.order {
		if e := w.entities[id]; l.Contains(e.Position) {
			out = append(out, e)
		}
	}
	return out
}

// LocationOf returns the first location, in insertion order, containing the
// entity's position.
func (w *World) LocationOf(entityID string) (*Location, bool) {
	e, ok := w.entities[entityID]
	if !ok {
		return nil, false
	}
	for _, id := range w.locOrder {
		if l := w.locations[id]; l.Contains(e.Position) {
			return l, true
		}
	}
	return nil, false
}

// Sphere is a perception volume.
type Sphere struct {
	Center Vec3    `json:"center"`
	Radius float64 `json:"radius"`
}

// Perception is what an agent senses at one moment. Entities are copies.
type Perception struct {
	Time     float64   `json:"time"`
	Position Vec3      `json:"position"`
	Location *Location `json:"location"`
	Entities []Entity  `json:"entities"`
}

// Perceive lists the entities inside area, excluding the agent itself.
// A nil area is a sphere of DefaultPerceptionRadius around the agent.
func (w *World) Perceive(agentID string, area *Sphere) (Perception, error) {
	agent, ok := w.entities[agentID]
	if !ok {
		return Perception{}, fmt.Errorf("perceive %s: %w", agentID, ErrEntityNotFound)
	}
	sight := Sphere{Center: agent.Position, Radius: DefaultPerceptionRadius}
	if area != nil {
		sight = *area
	}

	p := Perception{Time: w.currentTime, Position: agent.Position, Entities: []Entity{}}
	for _, id := range w.order {
		if id == agentID {
			continue
		}
		e := w.entities[id]
		if Distance(e.Position, sight.Center) <= sight.Radius {
			p.Entities = append(p.Entities, e.clone())
		}
	}
	if l, ok := w.LocationOf(agentID); ok {
		c := l.clone()
		p.Location = &c
	}
	return p, nil
}

// Action is a request from an agent to change the world.
type Action struct {
	Type        string         `json:"type"`
	Position    *Vec3          `json:"position,omitempty"`
	Target      string         `json:"target,omitempty"`
	MaxDistance float64        `json:"max_distance,omitempty"`
	Interaction map[string]any `json:"interaction,omitempty"`
}

// ActionResult reports what a successful action did.
type ActionResult struct {
	Success     bool           `json:"success"`
	NewPosition *Vec3          `json:"new_position,omitempty"`
	Location    *Location      `json:"location,omitempty"`
	Target      *Entity        `json:"target,omitempty"`
	Interaction map[string]any `json:"interaction,omitempty"`
}

// Act executes an action for an agent. Move relocates the agent. Interact
// checks the target is within reach (DefaultInteractDistance unless the
// action sets MaxDistance) and echoes the interaction payload; what the
// interaction means is up to the caller.
func (w *World) Act(agentID string, a Action) (ActionResult, error) {
	agent, ok := w.entities[agentID]
	if !ok {
		return ActionResult{}, fmt.Errorf("act %s: %w", agentID, ErrEntityNotFound)
	}

	switch a.Type {
	case ActionMove:
		if a.Position == nil {
			return ActionResult{}, fmt.Errorf("act %s move: %w", agentID, ErrNoPosition)
		}
		agent.Position = *a.Position
		res := ActionResult{Success: true, NewPosition: &Vec3{a.Position.X, a.Position.Y, a.Position.Z}}
		if l, ok := w.LocationOf(agentID); ok {
			c := l.clone()
			res.Location = &c
		}
		w.logger.Debug("entity moved", "entity", agentID, "x", agent.Position.X, "y", agent.Position.Y, "z", agent.Position.Z)
		return res, nil

	case ActionInteract:
		if a.Target == "" {
			return ActionResult{}, fmt.Errorf("act %s interact: %w", agentID, ErrNoTarget)
		}
		target, ok := w.entities[a.Target]
		if !ok {
			return ActionResult{}, fmt.Errorf("act %s interact %s: %w", agentID, a.Target, ErrEntityNotFound)
		}
		reach := a.MaxDistance
		if reach == 0 {
			reach = DefaultInteractDistance
		}
		if d := Distance(agent.Position, target.Position); d > reach {
			return ActionResult{}, fmt.Errorf("act %s interact %s at %.2f: %w", agentID, a.Target, d, ErrTargetTooFar)
		}
		c := target.clone()
		interaction := a.Interaction
		if interaction == nil {
			interaction = map[string]any{}
		}
		return ActionResult{Success: true, Target: &c, Interaction: interaction}, nil

	default:
		return ActionResult{}, fmt.Errorf("act %s: %w: %q", agentID, ErrUnknownAction, a.Type)
	}
}

// Update advances the world clock.
func (w *World) Update(now float64) error {
	w.currentTime = now
	return nil
}

func (w *World) String() string {
	return fmt.Sprintf("World(t=%g, entities=%d, locations=%d)", w.currentTime, len(w.order), len(w.locOrder))
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
