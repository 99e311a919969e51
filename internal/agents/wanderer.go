package agents

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/talgya/psyche/internal/world"
)

// Mover is the slice of the world a Wanderer needs.
type Mover interface {
	Entity(id string) (*world.Entity, bool)
	Locations() []*world.Location
	LocationOf(id string) (*world.Location, bool)
	Act(agentID string, a world.Action) (world.ActionResult, error)
}

// Wanderer is a cognition that occasionally walks the character to a
// neighbouring dry location. Chance is the probability per unit of logical
// time.
type Wanderer struct {
	World  Mover
	Chance float64

	rng *rand.Rand
}

// NewWanderer creates a wanderer with its own seeded random source.
func NewWanderer(w Mover, chance float64, seed int64) *Wanderer {
	return &Wanderer{World: w, Chance: chance, rng: rand.New(rand.NewSource(seed))}
}

func (w *Wanderer) Think(c *Character, now, dt float64) error {
	if w.rng == nil {
		w.rng = rand.New(rand.NewSource(1))
	}
	if w.rng.Float64() >= w.Chance*dt {
		return nil
	}
	here, ok := w.World.LocationOf(c.ID)
	if !ok {
		return nil
	}

	reach := 1.5 * math.Max(here.Area.Width, here.Area.Height)
	var options []*world.Location
	for _, l := range w.World.Locations() {
		if l.ID == here.ID || world.TerrainOf(l) == world.TerrainWater {
			continue
		}
		if world.Distance(l.Position, here.Position) <= reach {
			options = append(options, l)
		}
	}
	if len(options) == 0 {
		return nil
	}

	dest := options[w.rng.Intn(len(options))]
	pos := dest.Position
	if _, err := w.World.Act(c.ID, world.Action{Type: world.ActionMove, Position: &pos}); err != nil {
		return fmt.Errorf("wander to %s: %w", dest.ID, err)
	}
	return nil
}
