// Package agents provides Characters: schedulable agents that own a psyche
// and hand it to a cognition collaborator once per tick.
package agents

import (
	"fmt"
	"log/slog"

	"github.com/talgya/psyche/internal/psyche"
)

// Cognition reads and extends a character's psyche during its update.
// Implementations decide what the character notices, feels and remembers.
type Cognition interface {
	Think(c *Character, now, dt float64) error
}

// CognitionFunc adapts a plain function to Cognition.
type CognitionFunc func(c *Character, now, dt float64) error

func (f CognitionFunc) Think(c *Character, now, dt float64) error { return f(c, now, dt) }

// Chain runs several cognitions in order, stopping at the first error.
func Chain(cs ...Cognition) Cognition {
	return CognitionFunc(func(c *Character, now, dt float64) error {
		for _, cog := range cs {
			if err := cog.Think(c, now, dt); err != nil {
				return err
			}
		}
		return nil
	})
}

// Character is one simulated person.
type Character struct {
	ID        string
	Name      string
	Archetype string
	Psyche    *psyche.Psyche

	// Cognition runs after emotional decay each tick. Nil means none.
	Cognition Cognition
	// MemoryLimit caps ordinary memories after each update. Zero disables forgetting.
	MemoryLimit int

	Logger *slog.Logger
}

// New creates a character with an empty psyche.
func New(id, name string) *Character {
	return &Character{ID: id, Name: name, Psyche: psyche.New(id, name)}
}

// FromArchetype creates a character whose psyche is seeded from a template.
func FromArchetype(id, name string, a psyche.Archetype) (*Character, error) {
	c := New(id, name)
	c.Archetype = a.Name
	if err := c.Psyche.ApplyArchetype(a); err != nil {
		return nil, fmt.Errorf("character %s: %w", id, err)
	}
	return c, nil
}

// FromPsyche wraps a restored psyche.
func FromPsyche(p *psyche.Psyche, archetype string) *Character {
	return &Character{ID: p.CharacterID, Name: p.Name, Archetype: archetype, Psyche: p}
}

// Update decays emotions, runs cognition, then forgets excess memories.
// Cornerstone memories survive forgetting.
func (c *Character) Update(now, dt float64) error {
	c.Psyche.Update(now)

	if c.Cognition != nil {
		if err := c.Cognition.Think(c, now, dt); err != nil {
			return fmt.Errorf("character %s cognition: %w", c.ID, err)
		}
	}

	if c.MemoryLimit > 0 {
		if evicted := c.Psyche.Forget(c.MemoryLimit); len(evicted) > 0 {
			c.logger().Debug("memories forgotten", "character", c.ID, "count", len(evicted), "time", now)
		}
	}
	return nil
}

func (c *Character) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *Character) String() string {
	return fmt.Sprintf("Character(%s %q, archetype=%s)", c.ID, c.Name, c.Archetype)
}
