package agents

import (
	"fmt"

	"github.com/talgya/psyche/internal/graph"
	"github.com/talgya/psyche/internal/psyche"
)

// Need drift defaults.
const (
	DefaultNeedDriftRate = 0.0025 // satisfaction lost per unit of logical time
	UrgentNeedThreshold  = 0.3    // below this, a need is urgent
	distressDecayRate    = 0.05
)

// NeedDrift is a cognition that lets needs erode with time. Characters
// must continually act to keep their needs met. When a need first drops
// below the urgency threshold, the character feels distress aimed at it.
// Needs already below the threshold on the first Think count as urgent,
// so a restored character does not feel the same distress twice.
type NeedDrift struct {
	Rate      float64
	Threshold float64

	urgent map[string]bool
	primed bool
}

// NewNeedDrift creates a drift with the given rate; zero selects the default.
func NewNeedDrift(rate float64) *NeedDrift {
	if rate == 0 {
		rate = DefaultNeedDriftRate
	}
	return &NeedDrift{Rate: rate, Threshold: UrgentNeedThreshold, urgent: make(map[string]bool)}
}

func (d *NeedDrift) Think(c *Character, now, dt float64) error {
	if d.urgent == nil {
		d.urgent = make(map[string]bool)
	}
	if !d.primed {
		for _, n := range c.Psyche.Needs() {
			d.urgent[n.ID()] = n.Satisfaction() < d.Threshold
		}
		d.primed = true
	}
	for _, n := range c.Psyche.Needs() {
		n.SetSatisfaction(n.Satisfaction() - d.Rate*dt)

		urgent := n.Satisfaction() < d.Threshold
		if urgent && !d.urgent[n.ID()] {
			_, err := c.Psyche.AddEmotion(psyche.Emotion{
				Nodes:     []string{n.ID()},
				Emotion:   "Distress",
				Target:    n.ID(),
				Intensity: 1 - n.Satisfaction(),
				DecayRate: distressDecayRate,
			})
			if err != nil {
				return fmt.Errorf("need %s: %w", n.NeedName, err)
			}
		}
		d.urgent[n.ID()] = urgent
	}
	return nil
}

// MostUrgentNeed returns the least satisfied need below threshold.
// Ties go to the need added first.
func MostUrgentNeed(p *psyche.Psyche, threshold float64) (*graph.NeedNode, bool) {
	var best *graph.NeedNode
	for _, n := range p.Needs() {
		if n.Satisfaction() >= threshold {
			continue
		}
		if best == nil || n.Satisfaction() < best.Satisfaction() {
			best = n
		}
	}
	return best, best != nil
}

// OverallSatisfaction averages need satisfaction. An empty psyche is content.
func OverallSatisfaction(p *psyche.Psyche) float64 {
	needs := p.Needs()
	if len(needs) == 0 {
		return 1
	}
	total := 0.0
	for _, n := range needs {
		total += n.Satisfaction()
	}
	return total / float64(len(needs))
}
