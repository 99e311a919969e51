package psyche

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/talgya/psyche/internal/graph"
)

// Snapshot is the persisted form of a Psyche.
type Snapshot struct {
	CharacterID string         `json:"character_id"`
	Name        string         `json:"name"`
	CurrentTime float64        `json:"current_time"`
	Graph       graph.Snapshot `json:"graph"`
}

// Snapshot captures the psyche's full state.
func (p *Psyche) Snapshot() Snapshot {
	return Snapshot{
		CharacterID: p.CharacterID,
		Name:        p.Name,
		CurrentTime: p.currentTime,
		Graph:       p.graph.Snapshot(),
	}
}

// Restore rebuilds a psyche through the checked graph load path.
func Restore(s Snapshot) (*Psyche, error) {
	g, err := graph.FromSnapshot(s.Graph)
	if err != nil {
		return nil, fmt.Errorf("restore psyche %s: %w", s.CharacterID, err)
	}
	return &Psyche{
		CharacterID: s.CharacterID,
		Name:        s.Name,
		graph:       g,
		currentTime: s.CurrentTime,
	}, nil
}

// FromGraph wraps an existing graph, for offline imports that have already
// been validated by the caller.
func FromGraph(characterID, name string, g *graph.Hypergraph, currentTime float64) *Psyche {
	return &Psyche{
		CharacterID: characterID,
		Name:        name,
		graph:       g,
		currentTime: currentTime,
	}
}

// ImportUnchecked rebuilds a psyche whose graph may hold dangling
// references, then prunes them. It returns the psyche and the ids of the
// edges that were dropped.
func ImportUnchecked(s Snapshot) (*Psyche, []string, error) {
	g, err := graph.ImportUnchecked(s.Graph)
	if err != nil {
		return nil, nil, fmt.Errorf("import psyche %s: %w", s.CharacterID, err)
	}
	pruned := g.PruneDangling()
	return FromGraph(s.CharacterID, s.Name, g, s.CurrentTime), pruned, nil
}

// WriteJSON writes the psyche snapshot as indented JSON.
func (p *Psyche) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(p.Snapshot())
}

// ReadSnapshot decodes a JSON psyche snapshot without restoring it.
func ReadSnapshot(r io.Reader) (Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("decode psyche snapshot: %w", err)
	}
	return s, nil
}
