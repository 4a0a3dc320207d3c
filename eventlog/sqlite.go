package eventlog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists firing events to a SQLite database, one row per event
// keyed by run identifier.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) a SQLite event store at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open event store: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS firing_events (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id     TEXT NOT NULL,
		seq        INTEGER NOT NULL,
		transition TEXT NOT NULL,
		timestamp  TEXT NOT NULL,
		marking    TEXT NOT NULL,
		UNIQUE(run_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_firing_events_run ON firing_events(run_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("migrate event store: %w", err)
	}
	return nil
}

// SaveEvents inserts events in one transaction.
func (s *Store) SaveEvents(events []FiringEvent) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO firing_events (run_id, seq, transition, timestamp, marking)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("save events: %w", err)
	}
	defer stmt.Close()
	for _, ev := range events {
		marking, err := json.Marshal(ev.Marking)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("save event %d: %w", ev.Seq, err)
		}
		if _, err := stmt.Exec(ev.RunID, ev.Seq, ev.Transition,
			ev.Timestamp.Format(time.RFC3339Nano), string(marking)); err != nil {
			tx.Rollback()
			return fmt.Errorf("save event %d: %w", ev.Seq, err)
		}
	}
	return tx.Commit()
}

// LoadRun returns the events of one run in firing order.
func (s *Store) LoadRun(runID string) ([]FiringEvent, error) {
	rows, err := s.db.Query(`SELECT run_id, seq, transition, timestamp, marking
		FROM firing_events WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	defer rows.Close()

	var events []FiringEvent
	for rows.Next() {
		var ev FiringEvent
		var ts, marking string
		if err := rows.Scan(&ev.RunID, &ev.Seq, &ev.Transition, &ts, &marking); err != nil {
			return nil, fmt.Errorf("load run %s: %w", runID, err)
		}
		if ev.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("load run %s: timestamp: %w", runID, err)
		}
		if err := json.Unmarshal([]byte(marking), &ev.Marking); err != nil {
			return nil, fmt.Errorf("load run %s: marking: %w", runID, err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Runs returns the distinct run identifiers in the store, newest first.
func (s *Store) Runs() ([]string, error) {
	rows, err := s.db.Query(`SELECT run_id FROM firing_events GROUP BY run_id ORDER BY MAX(id) DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var runs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, id)
	}
	return runs, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
