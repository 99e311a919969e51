package world

import (
	"encoding/json"
	"fmt"
	"io"
)

// Record is the flat serialized form of an entity. Area is set only for
// locations.
type Record struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Name       string         `json:"name"`
	Position   Vec3           `json:"position"`
	Properties map[string]any `json:"properties"`
	Area       *Area          `json:"area,omitempty"`
}

// Snapshot is the serialized form of a World.
type Snapshot struct {
	Time     float64  `json:"time"`
	Entities []Record `json:"entities"`
}

// Snapshot captures every entity in insertion order.
func (w *World) Snapshot() Snapshot {
	s := Snapshot{Time: w.currentTime, Entities: make([]Record, 0, len(w.order))}
	for _, id := range w.order {
		e := w.entities[id].clone()
		r := Record{ID: e.ID, Type: e.Type, Name: e.Name, Position: e.Position, Properties: e.Properties}
		if l, ok := w.locations[id]; ok {
			area := l.Area
			r.Area = &area
		}
		s.Entities = append(s.Entities, r)
	}
	return s
}

// FromSnapshot rebuilds a world. Records typed "Location" become locations.
func FromSnapshot(s Snapshot) (*World, error) {
	w := New()
	w.currentTime = s.Time
	for _, r := range s.Entities {
		var err error
		if r.Type == TypeLocation {
			area := DefaultArea
			if r.Area != nil {
				area = *r.Area
			}
			l := NewLocation(r.ID, r.Name, r.Position, area)
			l.Properties = propsOrEmpty(r.Properties)
			err = w.AddLocation(l)
		} else {
			e := NewEntity(r.ID, r.Type, r.Name, r.Position)
			e.Properties = propsOrEmpty(r.Properties)
			err = w.AddEntity(e)
		}
		if err != nil {
			return nil, fmt.Errorf("load world: %w", err)
		}
	}
	return w, nil
}

// WriteJSON encodes the world snapshot.
func (w *World) WriteJSON(out io.Writer) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(w.Snapshot())
}

// ReadSnapshot decodes a world snapshot.
func ReadSnapshot(r io.Reader) (Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("decode world: %w", err)
	}
	return s, nil
}

func propsOrEmpty(p map[string]any) map[string]any {
	if p == nil {
		return map[string]any{}
	}
	return p
}
