// Package store persists the event log and fired alerts in SQLite.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/theirongolddev/toolmeter/internal/model"

	_ "modernc.org/sqlite" // register sqlite driver
)

// ErrMissingID is returned when saving an event without an ID.
var ErrMissingID = errors.New("store: event has no id")

// Store provides SQLite-backed event and alert persistence.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for maintenance messages.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// Open opens or creates the database at the given path.
func Open(dbPath string, opts ...Option) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening store db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	s := &Store{db: db, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	s.log.Debug().Str("path", dbPath).Msg("store opened")
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

const insertEventSQL = `INSERT OR IGNORE INTO events
	(id, tool, ts_ns, duration_ns, success, cost, metadata)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

// SaveEvent stores one event. Saving an ID twice is a no-op.
func (s *Store) SaveEvent(ev model.Event) error {
	_, err := s.SaveEvents([]model.Event{ev})
	return err
}

// SaveEvents stores events in a single transaction and returns how many
// were new.
func (s *Store) SaveEvents(events []model.Event) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(insertEventSQL)
	if err != nil {
		return 0, err
	}
	defer func() { _ = stmt.Close() }()

	inserted := 0
	for _, ev := range events {
		if ev.ID == "" {
			return 0, ErrMissingID
		}
		meta, err := json.Marshal(ev.Metadata)
		if err != nil {
			return 0, fmt.Errorf("encoding metadata for %s: %w", ev.ID, err)
		}
		if ev.Metadata == nil {
			meta = []byte("{}")
		}
		res, err := stmt.Exec(ev.ID, ev.Key, ev.Timestamp.UTC().UnixNano(),
			int64(ev.Duration), boolInt(ev.Success), ev.Cost, string(meta))
		if err != nil {
			return 0, fmt.Errorf("inserting event %s: %w", ev.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// LoadEvents returns events at or after since in the order they were
// recorded. A zero since loads everything.
func (s *Store) LoadEvents(since time.Time) ([]model.Event, error) {
	var sinceNs int64
	if !since.IsZero() {
		sinceNs = since.UTC().UnixNano()
	}

	rows, err := s.db.Query(`SELECT id, tool, ts_ns, duration_ns, success, cost, metadata
		FROM events WHERE ts_ns >= ? ORDER BY ts_ns, seq`, sinceNs)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var events []model.Event
	for rows.Next() {
		var (
			ev      model.Event
			tsNs    int64
			durNs   int64
			success int
			meta    string
		)
		if err := rows.Scan(&ev.ID, &ev.Key, &tsNs, &durNs, &success, &ev.Cost, &meta); err != nil {
			return nil, err
		}
		ev.Timestamp = time.Unix(0, tsNs).UTC()
		ev.Duration = time.Duration(durNs)
		ev.Success = success != 0
		if err := json.Unmarshal([]byte(meta), &ev.Metadata); err != nil || ev.Metadata == nil {
			ev.Metadata = make(map[string]any)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// EventCount returns the number of stored events.
func (s *Store) EventCount() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM events").Scan(&count)
	return count, err
}

// SaveAlert appends a fired alert.
func (s *Store) SaveAlert(a model.Alert) error {
	_, err := s.db.Exec(`INSERT INTO alerts (rule, metric, value, threshold, triggered_ns)
		VALUES (?, ?, ?, ?, ?)`,
		a.Rule, a.Metric, a.Value, a.Threshold, a.TriggeredAt.UTC().UnixNano())
	return err
}

// LoadAlerts returns up to limit alerts, most recent first. limit <= 0
// returns all of them.
func (s *Store) LoadAlerts(limit int) ([]model.Alert, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`SELECT rule, metric, value, threshold, triggered_ns
		FROM alerts ORDER BY triggered_ns DESC, seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var alerts []model.Alert
	for rows.Next() {
		var (
			a      model.Alert
			metric sql.NullString
			ns     int64
		)
		if err := rows.Scan(&a.Rule, &metric, &a.Value, &a.Threshold, &ns); err != nil {
			return nil, err
		}
		a.Metric = metric.String
		a.TriggeredAt = time.Unix(0, ns).UTC()
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// DeleteBefore removes events and alerts older than cutoff and returns the
// number of events removed.
func (s *Store) DeleteBefore(cutoff time.Time) (int64, error) {
	ns := cutoff.UTC().UnixNano()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec("DELETE FROM events WHERE ts_ns < ?", ns)
	if err != nil {
		return 0, err
	}
	removed, _ := res.RowsAffected()

	if _, err := tx.Exec("DELETE FROM alerts WHERE triggered_ns < ?", ns); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	s.log.Info().Int64("events", removed).Time("cutoff", cutoff).Msg("pruned store")
	return removed, nil
}

// FileInfo holds the tracked mtime and size for an imported file.
type FileInfo struct {
	MtimeNs   int64
	SizeBytes int64
}

// GetTrackedFiles returns a map of file_path -> FileInfo for all imported files.
func (s *Store) GetTrackedFiles() (map[string]FileInfo, error) {
	rows, err := s.db.Query("SELECT file_path, mtime_ns, size_bytes FROM file_tracker")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	result := make(map[string]FileInfo)
	for rows.Next() {
		var path string
		var fi FileInfo
		if err := rows.Scan(&path, &fi.MtimeNs, &fi.SizeBytes); err != nil {
			return nil, err
		}
		result[path] = fi
	}
	return result, rows.Err()
}

// TrackFile records the state of an imported file.
func (s *Store) TrackFile(path string, fi FileInfo) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO file_tracker (file_path, mtime_ns, size_bytes)
		VALUES (?, ?, ?)`, path, fi.MtimeNs, fi.SizeBytes)
	return err
}

// DeleteFileTracker removes a file tracking entry so the next import
// re-reads it.
func (s *Store) DeleteFileTracker(path string) error {
	_, err := s.db.Exec("DELETE FROM file_tracker WHERE file_path = ?", path)
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
