// Package persistence provides SQLite-based storage for psyches, the world,
// recorded events and run metadata.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/psyche/internal/agents"
	"github.com/talgya/psyche/internal/engine"
	"github.com/talgya/psyche/internal/graph"
	"github.com/talgya/psyche/internal/psyche"
	"github.com/talgya/psyche/internal/world"
)

// Metadata keys.
const (
	MetaCurrentTime = "current_time"
	MetaWorldSeed   = "world_seed"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// DB wraps a SQLite connection for simulation state persistence.
type DB struct {
	conn   *sqlx.DB
	logger *slog.Logger
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn, logger: slog.Default()}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// SetLogger replaces the logger used for save reports.
func (db *DB) SetLogger(l *slog.Logger) { db.logger = l }

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS psyches (
		character_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		archetype TEXT NOT NULL DEFAULT '',
		clock REAL NOT NULL,
		node_count INTEGER NOT NULL,
		edge_count INTEGER NOT NULL,
		position INTEGER NOT NULL,
		graph_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		clock REAL NOT NULL,
		snapshot_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		time REAL NOT NULL,
		type TEXT NOT NULL,
		data_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_time ON events(time);
	CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type psycheRow struct {
	CharacterID string  `db:"character_id"`
	Name        string  `db:"name"`
	Archetype   string  `db:"archetype"`
	Clock       float64 `db:"clock"`
	GraphJSON   string  `db:"graph_json"`
}

// SavePsyches writes all characters' psyches to the database (full replace).
// Load order follows the slice order.
func (db *DB) SavePsyches(chars []*agents.Character) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM psyches"); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO psyches
		(character_id, name, archetype, clock, node_count, edge_count, position, graph_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, c := range chars {
		graphJSON, err := json.Marshal(c.Psyche.Graph().Snapshot())
		if err != nil {
			return fmt.Errorf("encode psyche %s: %w", c.ID, err)
		}
		g := c.Psyche.Graph()
		if _, err := stmt.Exec(
			c.ID, c.Name, c.Archetype, c.Psyche.CurrentTime(),
			g.NodeCount(), g.EdgeCount(), i, string(graphJSON),
		); err != nil {
			return fmt.Errorf("insert psyche %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// SavePsyche inserts or replaces one character's psyche, appending new
// characters after the existing ones.
func (db *DB) SavePsyche(c *agents.Character) error {
	graphJSON, err := json.Marshal(c.Psyche.Graph().Snapshot())
	if err != nil {
		return fmt.Errorf("encode psyche %s: %w", c.ID, err)
	}
	g := c.Psyche.Graph()
	_, err = db.conn.Exec(`INSERT INTO psyches
		(character_id, name, archetype, clock, node_count, edge_count, position, graph_json)
		VALUES (?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM psyches), ?)
		ON CONFLICT(character_id) DO UPDATE SET
			name = excluded.name,
			archetype = excluded.archetype,
			clock = excluded.clock,
			node_count = excluded.node_count,
			edge_count = excluded.edge_count,
			graph_json = excluded.graph_json`,
		c.ID, c.Name, c.Archetype, c.Psyche.CurrentTime(), g.NodeCount(), g.EdgeCount(), string(graphJSON),
	)
	if err != nil {
		return fmt.Errorf("upsert psyche %s: %w", c.ID, err)
	}
	return nil
}

// LoadPsyches restores every saved character in save order. Graphs go
// through the checked load path, so a stored dangling edge is an error.
func (db *DB) LoadPsyches() ([]*agents.Character, error) {
	var rows []psycheRow
	if err := db.conn.Select(&rows,
		"SELECT character_id, name, archetype, clock, graph_json FROM psyches ORDER BY position",
	); err != nil {
		return nil, fmt.Errorf("select psyches: %w", err)
	}

	chars := make([]*agents.Character, 0, len(rows))
	for _, r := range rows {
		c, err := r.character()
		if err != nil {
			return nil, err
		}
		chars = append(chars, c)
	}
	return chars, nil
}

// LoadPsyche restores one character by id.
func (db *DB) LoadPsyche(id string) (*agents.Character, error) {
	var r psycheRow
	err := db.conn.Get(&r,
		"SELECT character_id, name, archetype, clock, graph_json FROM psyches WHERE character_id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("psyche %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select psyche %s: %w", id, err)
	}
	return r.character()
}

// PsycheSummary is a listing row that avoids decoding graphs.
type PsycheSummary struct {
	CharacterID string  `db:"character_id" json:"character_id"`
	Name        string  `db:"name" json:"name"`
	Archetype   string  `db:"archetype" json:"archetype"`
	Clock       float64 `db:"clock" json:"current_time"`
	NodeCount   int     `db:"node_count" json:"node_count"`
	EdgeCount   int     `db:"edge_count" json:"edge_count"`
}

// ListPsyches returns summaries of every saved psyche in save order.
func (db *DB) ListPsyches() ([]PsycheSummary, error) {
	var out []PsycheSummary
	err := db.conn.Select(&out,
		"SELECT character_id, name, archetype, clock, node_count, edge_count FROM psyches ORDER BY position")
	return out, err
}

func (r psycheRow) character() (*agents.Character, error) {
	var snap graph.Snapshot
	if err := json.Unmarshal([]byte(r.GraphJSON), &snap); err != nil {
		return nil, fmt.Errorf("decode psyche %s: %w", r.CharacterID, err)
	}
	p, err := psyche.Restore(psyche.Snapshot{
		CharacterID: r.CharacterID,
		Name:        r.Name,
		CurrentTime: r.Clock,
		Graph:       snap,
	})
	if err != nil {
		return nil, err
	}
	return agents.FromPsyche(p, r.Archetype), nil
}

// SaveWorld replaces the stored world snapshot.
func (db *DB) SaveWorld(w *world.World) error {
	snapJSON, err := json.Marshal(w.Snapshot())
	if err != nil {
		return fmt.Errorf("encode world: %w", err)
	}
	_, err = db.conn.Exec(
		"INSERT OR REPLACE INTO world_state (id, clock, snapshot_json) VALUES (1, ?, ?)",
		w.CurrentTime(), string(snapJSON),
	)
	return err
}

// LoadWorld restores the stored world, or returns ErrNotFound.
func (db *DB) LoadWorld() (*world.World, error) {
	var snapJSON string
	err := db.conn.Get(&snapJSON, "SELECT snapshot_json FROM world_state WHERE id = 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("world: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select world: %w", err)
	}
	var snap world.Snapshot
	if err := json.Unmarshal([]byte(snapJSON), &snap); err != nil {
		return nil, fmt.Errorf("decode world: %w", err)
	}
	return world.FromSnapshot(snap)
}

// SaveEvents appends events to the database.
func (db *DB) SaveEvents(events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		dataJSON, err := json.Marshal(e.Data)
		if err != nil {
			return fmt.Errorf("encode event %s: %w", e.Type, err)
		}
		_, err = tx.Exec(
			"INSERT INTO events (time, type, data_json) VALUES (?, ?, ?)",
			e.Time, e.Type, string(dataJSON),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

type eventRow struct {
	Time     float64 `db:"time"`
	Type     string  `db:"type"`
	DataJSON string  `db:"data_json"`
}

// RecentEvents returns the most recent N events, newest first.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var rows []eventRow
	err := db.conn.Select(&rows,
		"SELECT time, type, data_json FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	events := make([]engine.Event, 0, len(rows))
	for _, r := range rows {
		e := engine.Event{Time: r.Time, Type: r.Type}
		if err := json.Unmarshal([]byte(r.DataJSON), &e.Data); err != nil {
			return nil, fmt.Errorf("decode event data: %w", err)
		}
		events = append(events, e)
	}
	return events, nil
}

// SaveMeta stores a key-value pair in metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("meta %s: %w", key, ErrNotFound)
	}
	return value, err
}

// CurrentTime returns the saved simulation clock, or ok=false when none is stored.
func (db *DB) CurrentTime() (t float64, ok bool, err error) {
	v, err := db.GetMeta(MetaCurrentTime)
	if errors.Is(err, ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	t, err = strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s: %w", MetaCurrentTime, err)
	}
	return t, true, nil
}

// HasState reports whether any psyche has been saved.
func (db *DB) HasState() (bool, error) {
	var n int
	if err := db.conn.Get(&n, "SELECT COUNT(*) FROM psyches"); err != nil {
		return false, err
	}
	return n > 0, nil
}

// State is everything a periodic save writes.
type State struct {
	Time       float64
	Characters []*agents.Character
	World      *world.World // optional
	Events     []engine.Event
}

// SaveState performs a full save of simulation state.
func (db *DB) SaveState(s State) error {
	db.logger.Info("saving simulation state", "characters", len(s.Characters), "events", len(s.Events), "time", s.Time)

	if err := db.SavePsyches(s.Characters); err != nil {
		return fmt.Errorf("save psyches: %w", err)
	}
	if s.World != nil {
		if err := db.SaveWorld(s.World); err != nil {
			return fmt.Errorf("save world: %w", err)
		}
	}
	if err := db.SaveEvents(s.Events); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	if err := db.SaveMeta(MetaCurrentTime, strconv.FormatFloat(s.Time, 'g', -1, 64)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	db.logger.Info("simulation state saved")
	return nil
}
