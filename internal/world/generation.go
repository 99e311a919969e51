// World generation using layered simplex noise.
// Lays a square grid of locations and derives terrain from elevation and fertility.
package world

import (
	"fmt"
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// Terrain tags stored in each generated location's "terrain" property.
const (
	TerrainWater    = "water"
	TerrainPlains   = "plains"
	TerrainForest   = "forest"
	TerrainHeath    = "heath"
	TerrainMountain = "mountain"
)

// GenConfig holds world generation parameters.
type GenConfig struct {
	Radius        int     // Grid extends Radius cells each way from the origin
	Spacing       float64 // Distance between neighbouring location centres
	Seed          int64   // Random seed (0 = random)
	SeaLevel      float64 // Elevation threshold for water (0.0–1.0)
	MountainLevel float64 // Elevation threshold for mountains (0.0–1.0)
}

// DefaultGenConfig returns a small village-scale world.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Radius:        3,
		Spacing:       20,
		Seed:          0,
		SeaLevel:      0.25,
		MountainLevel: 0.72,
	}
}

// Generate creates a world of (2*Radius+1)^2 locations. Each location is a
// Spacing-wide box centred on its grid point, so neighbours share a face.
func Generate(cfg GenConfig) *World {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	if cfg.Spacing <= 0 {
		cfg.Spacing = DefaultGenConfig().Spacing
	}

	// Independent layers.
	elevNoise := opensimplex.NewNormalized(seed)
	fertNoise := opensimplex.NewNormalized(seed + 1)
	rng := rand.New(rand.NewSource(seed + 200))

	side := 2*cfg.Radius + 1
	names := generateNames(rng, side*side)

	w := New()
	i := 0
	for gy := -cfg.Radius; gy <= cfg.Radius; gy++ {
		for gx := -cfg.Radius; gx <= cfg.Radius; gx++ {
			x, y := float64(gx), float64(gy)

			// Multi-octave noise for natural-looking terrain.
			elev := octaveNoise(elevNoise, x, y, 4, 0.08, 0.5)
			fert := octaveNoise(fertNoise, x, y, 3, 0.06, 0.5)

			// Continental shaping: lower the edges so the map tends toward a shoreline.
			if cfg.Radius > 0 {
				dist := math.Sqrt(x*x+y*y) / (float64(cfg.Radius) * math.Sqrt2)
				elev *= math.Max(0, 1.0-math.Pow(dist, 3.5))
			}

			terrain := deriveTerrain(elev, fert, cfg)
			l := NewLocation(
				fmt.Sprintf("loc_%d_%d", gx, gy),
				names[i],
				Vec3{X: x * cfg.Spacing, Y: y * cfg.Spacing},
				Area{Width: cfg.Spacing, Height: cfg.Spacing, Depth: cfg.Spacing},
			)
			l.Properties["terrain"] = terrain
			l.Properties["elevation"] = elev
			l.Properties["fertility"] = fert
			// Grid ids are unique by construction.
			_ = w.AddLocation(l)
			i++
		}
	}
	return w
}

// deriveTerrain determines terrain type from environmental parameters.
func deriveTerrain(elev, fert float64, cfg GenConfig) string {
	if elev < cfg.SeaLevel {
		return TerrainWater
	}
	if elev > cfg.MountainLevel {
		return TerrainMountain
	}
	if fert > 0.6 {
		return TerrainForest
	}
	if fert < 0.3 {
		return TerrainHeath
	}
	return TerrainPlains
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

// generateNames produces procedural place names by combining syllables.
// Once every combination is used, names get a numeric suffix.
func generateNames(rng *rand.Rand, count int) []string {
	prefixes := []string{
		"Iron", "Green", "Ash", "Stone", "Mill", "Cross", "Black",
		"Silver", "Red", "White", "Dark", "Bright", "High", "Low",
		"Old", "New", "Far", "Deep", "Long", "Broad", "Gold", "Frost",
		"Storm", "Thorn", "Elm", "Oak", "Pine", "Copper", "River",
	}
	suffixes := []string{
		"haven", "ford", "hollow", "wick", "bridge", "gate", "keep",
		"stead", "wood", "field", "dale", "crest", "vale", "port",
		"town", "bury", "marsh", "well", "brook", "cliff", "moor",
		"ridge", "watch", "fall", "rest", "point", "reach", "helm",
	}
	combos := len(prefixes) * len(suffixes)

	used := make(map[string]bool)
	names := make([]string, 0, count)

	for len(names) < count {
		name := prefixes[rng.Intn(len(prefixes))] + suffixes[rng.Intn(len(suffixes))]
		if used[name] {
			if len(used) < combos {
				continue
			}
			name = fmt.Sprintf("%s %d", name, len(names))
		}
		used[name] = true
		names = append(names, name)
	}

	return names
}

// TerrainOf returns a location's terrain tag, or "" for hand-built locations.
func TerrainOf(l *Location) string {
	t, _ := l.Properties["terrain"].(string)
	return t
}

// TerrainCounts returns a summary of terrain distribution.
func TerrainCounts(w *World) map[string]int {
	counts := make(map[string]int)
	for _, l := range w.Locations() {
		counts[TerrainOf(l)]++
	}
	return counts
}
