package psyche

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Built-in archetype names.
const (
	ArchHero     = "hero"
	ArchVillain  = "villain"
	ArchCommoner = "commoner"
)

// Facet is one labelled scalar in an archetype template.
type Facet struct {
	Name  string  `yaml:"name"`
	Level float64 `yaml:"level"`
}

// Archetype is a starting template for a psyche. Lists are ordered so that
// applying an archetype always yields the same node order.
type Archetype struct {
	Name        string  `yaml:"name"`
	Personality []Facet `yaml:"personality"`
	Values      []Facet `yaml:"values"`
	Needs       []Facet `yaml:"needs"`
	Habits      []Facet `yaml:"habits"`
	Beliefs     []Facet `yaml:"beliefs"`
}

var builtinArchetypes = map[string]Archetype{
	ArchHero: {
		Name:        ArchHero,
		Personality: []Facet{{"Courage", 0.8}, {"Compassion", 0.7}},
		Values:      []Facet{{"Justice", 0.9}, {"Loyalty", 0.7}},
		Needs:       []Facet{{"Purpose", 0.6}, {"Belonging", 0.5}},
		Habits:      []Facet{{"Training at dawn", 0.6}},
		Beliefs:     []Facet{{"The weak deserve protection", 0.85}},
	},
	ArchVillain: {
		Name:        ArchVillain,
		Personality: []Facet{{"Selfishness", 0.9}, {"Cunning", 0.8}},
		Values:      []Facet{{"Power", 0.95}, {"Control", 0.8}},
		Needs:       []Facet{{"Esteem", 0.3}, {"Safety", 0.6}},
		Habits:      []Facet{{"Keeping secrets", 0.7}},
		Beliefs:     []Facet{{"Trust is a weakness", 0.8}},
	},
	ArchCommoner: {
		Name:        ArchCommoner,
		Personality: []Facet{{"Curiosity", 0.5}},
		Values:      []Facet{{"Survival", 0.7}, {"Family", 0.6}},
		Needs:       []Facet{{"Food", 0.6}, {"Rest", 0.5}},
		Habits:      []Facet{{"Market on feast days", 0.4}},
		Beliefs:     []Facet{{"Hard work is rewarded", 0.5}},
	},
}

// Library is a set of archetypes keyed by lowercase name.
type Library map[string]Archetype

// DefaultLibrary returns a fresh copy of the built-in archetypes.
func DefaultLibrary() Library {
	lib := make(Library, len(builtinArchetypes))
	for k, v := range builtinArchetypes {
		lib[k] = v
	}
	return lib
}

// Lookup finds an archetype by case-insensitive name.
func (l Library) Lookup(name string) (Archetype, bool) {
	a, ok := l[strings.ToLower(name)]
	return a, ok
}

type libraryFile struct {
	Archetypes []Archetype `yaml:"archetypes"`
}

// ReadLibrary decodes archetypes from YAML and merges them over the
// built-ins. A file entry with a built-in name replaces it.
func ReadLibrary(r io.Reader) (Library, error) {
	var f libraryFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode archetypes: %w", err)
	}
	lib := DefaultLibrary()
	for i, a := range f.Archetypes {
		if strings.TrimSpace(a.Name) == "" {
			return nil, fmt.Errorf("archetype %d: name is required", i)
		}
		a.Name = strings.ToLower(a.Name)
		lib[a.Name] = a
	}
	return lib, nil
}

// LoadLibrary reads an archetype file. An empty path yields the built-ins.
func LoadLibrary(path string) (Library, error) {
	if path == "" {
		return DefaultLibrary(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archetypes: %w", err)
	}
	defer f.Close()
	return ReadLibrary(f)
}

// ApplyArchetype adds the archetype's nodes to the psyche in list order:
// personality, values, needs, habits, then beliefs.
func (p *Psyche) ApplyArchetype(a Archetype) error {
	for _, f := range a.Personality {
		if _, err := p.AddPersonalityTrait(f.Name, f.Level); err != nil {
			return fmt.Errorf("archetype %s: %w", a.Name, err)
		}
	}
	for _, f := range a.Values {
		if _, err := p.AddValue(f.Name, f.Level); err != nil {
			return fmt.Errorf("archetype %s: %w", a.Name, err)
		}
	}
	for _, f := range a.Needs {
		if _, err := p.AddNeed(f.Name, f.Level); err != nil {
			return fmt.Errorf("archetype %s: %w", a.Name, err)
		}
	}
	for _, f := range a.Habits {
		if _, err := p.AddHabit(f.Name, f.Level); err != nil {
			return fmt.Errorf("archetype %s: %w", a.Name, err)
		}
	}
	for _, f := range a.Beliefs {
		if _, err := p.AddBelief(f.Name, f.Level); err != nil {
			return fmt.Errorf("archetype %s: %w", a.Name, err)
		}
	}
	return nil
}
