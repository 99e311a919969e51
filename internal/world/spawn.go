// Spawn placement: ranks locations by desirability and spreads characters
// across the best ones.
package world

import (
	"math"
	"sort"
)

// SpawnPoints picks n locations for new characters. Land is ranked by
// terrain, fertility and neighbouring terrain diversity; picks keep a
// minimum spacing that relaxes when the map runs out of room. When n
// exceeds the candidates, picks wrap around. Water is used only when the
// map has no land.
func SpawnPoints(w *World, n int) []*Location {
	if n <= 0 {
		return nil
	}
	type scored struct {
		loc   *Location
		score float64
	}
	var candidates []scored
	for _, l := range w.Locations() {
		if s := spawnScore(w, l); s > 0 {
			candidates = append(candidates, scored{l, s})
		}
	}
	if len(candidates) == 0 {
		for _, l := range w.Locations() {
			candidates = append(candidates, scored{l, 0})
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	// Sort by score descending; ties keep grid order.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	var picked []*Location
	taken := make(map[string]bool)
	minDist := 2 * cellSize(candidates[0].loc)
	for minDist >= 0 && len(picked) < n && len(taken) < len(candidates) {
		for _, c := range candidates {
			if len(picked) >= n {
				break
			}
			if taken[c.loc.ID] || tooClose(c.loc, picked, minDist) {
				continue
			}
			taken[c.loc.ID] = true
			picked = append(picked, c.loc)
		}
		if minDist == 0 {
			break
		}
		minDist = math.Floor(minDist / 2)
	}

	for i := 0; len(picked) < n; i++ {
		picked = append(picked, picked[i])
	}
	return picked
}

// spawnScore evaluates how desirable a location is for a character to start in.
func spawnScore(w *World, l *Location) float64 {
	score := 0.0
	switch TerrainOf(l) {
	case TerrainPlains:
		score += 3.0
	case TerrainForest:
		score += 1.5
	case TerrainHeath:
		score += 0.5
	case TerrainMountain:
		score += 0.3
	case TerrainWater:
		return 0
	default:
		score += 1.0 // Hand-built locations
	}

	if f, ok := l.Properties["fertility"].(float64); ok {
		score += f
	}

	// Bonus for nearby terrain diversity.
	kinds := make(map[string]bool)
	reach := 1.5 * cellSize(l)
	for _, o := range w.Locations() {
		if o.ID == l.ID || Distance(o.Position, l.Position) > reach {
			continue
		}
		if t := TerrainOf(o); t != TerrainWater {
			kinds[t] = true
		}
	}
	score += float64(len(kinds)) * 0.3

	return score
}

func cellSize(l *Location) float64 {
	return math.Max(l.Area.Width, l.Area.Height)
}

func tooClose(l *Location, existing []*Location, minDist float64) bool {
	for _, e := range existing {
		if Distance(l.Position, e.Position) < minDist {
			return true
		}
	}
	return false
}
