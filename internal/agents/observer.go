package agents

import (
	"fmt"

	"github.com/talgya/psyche/internal/graph"
	"github.com/talgya/psyche/internal/psyche"
	"github.com/talgya/psyche/internal/world"
)

// Perceiver is the slice of the world an Observer needs.
type Perceiver interface {
	Entity(id string) (*world.Entity, bool)
	Perceive(agentID string, area *world.Sphere) (world.Perception, error)
}

// Observer is a cognition that remembers meeting other entities. Each time
// a non-location entity comes into view, the character gains or reinforces
// a belief that the entity is around and records a memory of the encounter.
// On the first perception, entities the character already believes are
// around count as already in view.
type Observer struct {
	World  Perceiver
	Radius float64 // zero uses the world's default sight radius

	nearby map[string]bool
	primed bool
}

// NewObserver creates an observer over w.
func NewObserver(w Perceiver, radius float64) *Observer {
	return &Observer{World: w, Radius: radius, nearby: make(map[string]bool)}
}

func (o *Observer) Think(c *Character, now, dt float64) error {
	self, ok := o.World.Entity(c.ID)
	if !ok {
		// Characters not placed in the world see nothing.
		o.nearby = nil
		return nil
	}
	var area *world.Sphere
	if o.Radius > 0 {
		area = &world.Sphere{Center: self.Position, Radius: o.Radius}
	}
	p, err := o.World.Perceive(c.ID, area)
	if err != nil {
		return err
	}
	if o.nearby == nil {
		o.nearby = make(map[string]bool)
	}
	if !o.primed {
		for _, e := range p.Entities {
			if e.Type != world.TypeLocation && findBelief(c.Psyche, aroundBelief(e)) != nil {
				o.nearby[e.ID] = true
			}
		}
		o.primed = true
	}

	current := make(map[string]bool)
	for _, e := range p.Entities {
		if e.Type == world.TypeLocation {
			continue
		}
		current[e.ID] = true
		if o.nearby[e.ID] {
			continue
		}
		if err := o.encounter(c, e, p.Location); err != nil {
			return err
		}
	}
	o.nearby = current
	return nil
}

func (o *Observer) encounter(c *Character, e world.Entity, where *world.Location) error {
	content := aroundBelief(e)
	belief := findBelief(c.Psyche, content)
	if belief == nil {
		b, err := c.Psyche.AddBelief(content, 0.5)
		if err != nil {
			return fmt.Errorf("observe %s: %w", e.ID, err)
		}
		belief = b
	} else {
		belief.SetConfidence(belief.Confidence() + 0.1)
	}

	desc := "Met " + e.Name
	if where != nil {
		desc += " at " + where.Name
	}
	if _, err := c.Psyche.AddMemory(psyche.Memory{
		Nodes:       []string{belief.ID()},
		EmotionTag:  "Curiosity",
		Intensity:   0.3,
		Salience:    0.2,
		Description: desc,
	}); err != nil {
		return fmt.Errorf("observe %s: %w", e.ID, err)
	}
	return nil
}

func aroundBelief(e world.Entity) string {
	return fmt.Sprintf("%s is around", e.Name)
}

func findBelief(p *psyche.Psyche, content string) *graph.BeliefNode {
	for _, b := range p.Beliefs() {
		if b.Content == content {
			return b
		}
	}
	return nil
}
