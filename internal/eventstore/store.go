// Package eventstore is the durable, kind-indexed log of signed Nostr
// events (§4.1). It owns retry-with-backoff ingestion, deduplication, and
// a live subscription stream of newly persisted note identifiers; readers
// and writers each operate inside short-lived transactions, with one
// package-level lock reserved for bulk diagnostic scans.
package eventstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nbd-wtf/go-nostr"
	_ "github.com/mattn/go-sqlite3"
)

// Store wraps a sqlite-backed table of signed events, indexed by kind and
// by (pubkey, kind) for the query patterns the Application Data Store and
// control surfaces need.
type Store struct {
	db *sql.DB

	// scanLock protects bulk diagnostic scans (statistics, FFI
	// BulkScan) against concurrent writer transactions, per §4.1's
	// "process-wide transaction lock" and §9's FFI design note.
	scanLock sync.RWMutex

	subMu sync.Mutex
	subs  []*Subscription
}

// Open creates or opens the sqlite database at path, in WAL mode with a
// busy timeout, matching the teacher's `internal/memory.NewSQLiteStore`
// DSN convention.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("eventstore: open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("eventstore: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		pubkey TEXT NOT NULL,
		kind INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		content TEXT NOT NULL,
		tags_json TEXT NOT NULL,
		sig TEXT NOT NULL,
		origin TEXT NOT NULL DEFAULT '',
		first_seen_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_kind_created ON events(kind, created_at);
	CREATE INDEX IF NOT EXISTS idx_events_pubkey_kind ON events(pubkey, kind);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Stats returns simple diagnostic counts, taking the scan lock to exclude
// concurrent writer transactions per §4.1.
func (s *Store) Stats() (map[string]any, error) {
	s.scanLock.Lock() // exclusive: a bulk scan must not interleave with writers
	defer s.scanLock.Unlock()

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&total); err != nil {
		return nil, fmt.Errorf("eventstore: stats: %w", err)
	}
	return map[string]any{"events": total}, nil
}

// insertOne performs the single INSERT OR IGNORE write; returns whether a
// row was newly inserted (as opposed to an existing id, a no-op success
// per the Event uniqueness invariant).
func (s *Store) insertOne(ev nostr.Event, origin string) (inserted bool, err error) {
	s.scanLock.RLock()
	defer s.scanLock.RUnlock()

	tagsJSON, err := json.Marshal(ev.Tags)
	if err != nil {
		return false, fmt.Errorf("eventstore: marshal tags: %w", err)
	}

	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO events (id, pubkey, kind, created_at, content, tags_json, sig, origin, first_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, strftime('%s','now'))
	`, ev.ID, ev.PubKey, ev.Kind, ev.CreatedAt, ev.Content, string(tagsJSON), ev.Sig, origin)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// noteExists re-probes the store for an id, used between retry attempts
// to detect that another writer already won (§4.1).
func (s *Store) noteExists(id string) (bool, error) {
	var x int
	err := s.db.QueryRow(`SELECT 1 FROM events WHERE id = ?`, id).Scan(&x)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func scanRow(row interface{ Scan(...any) error }) (nostr.Event, error) {
	var ev nostr.Event
	var tagsJSON string
	if err := row.Scan(&ev.ID, &ev.PubKey, &ev.Kind, &ev.CreatedAt, &ev.Content, &tagsJSON, &ev.Sig); err != nil {
		return nostr.Event{}, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &ev.Tags); err != nil {
		return nostr.Event{}, fmt.Errorf("eventstore: unmarshal tags: %w", err)
	}
	return ev, nil
}

// LookupByID returns the event with the given id, if present.
func (s *Store) LookupByID(id string) (nostr.Event, bool, error) {
	row := s.db.QueryRow(`SELECT id, pubkey, kind, created_at, content, tags_json, sig FROM events WHERE id = ?`, id)
	ev, err := scanRow(row)
	if err == sql.ErrNoRows {
		return nostr.Event{}, false, nil
	}
	if err != nil {
		return nostr.Event{}, false, fmt.Errorf("eventstore: lookup %s: %w", id, err)
	}
	return ev, true, nil
}

// Filter narrows a Query/rebuild scan. A zero-value Filter matches every
// persisted (i.e. non-ephemeral) event.
type Filter struct {
	Kinds  []int
	Author string
}

// Query returns up to limit events (oldest first, by created_at) matching filter.
// limit<=0 means unbounded.
func (s *Store) Query(filter Filter, limit int) ([]nostr.Event, error) {
	query := `SELECT id, pubkey, kind, created_at, content, tags_json, sig FROM events WHERE 1=1`
	var args []any

	if len(filter.Kinds) > 0 {
		placeholders := ""
		for i, k := range filter.Kinds {
			if i > 0 {
				placeholders += ","
			}
			placeholders += "?"
			args = append(args, k)
		}
		query += " AND kind IN (" + placeholders + ")"
	}
	if filter.Author != "" {
		query += " AND pubkey = ?"
		args = append(args, filter.Author)
	}
	query += " ORDER BY created_at ASC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("eventstore: query: %w", err)
	}
	defer rows.Close()

	var events []nostr.Event
	for rows.Next() {
		ev, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// AllInCreationOrder returns every persisted event in creation order, for
// RebuildFromStore's full replay (§4.3). It takes the scan lock since a
// full table scan must not interleave with concurrent writes.
func (s *Store) AllInCreationOrder() ([]nostr.Event, error) {
	s.scanLock.Lock() // exclusive: see Stats
	defer s.scanLock.Unlock()
	return s.Query(Filter{}, 0)
}
