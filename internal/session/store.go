// Package session records tracing sessions to SQLite and replays them.
// A session is the command that was traced plus its ordered event
// stream; recordings survive the process so past traces can be listed
// and inspected.
package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration

	"github.com/majorcontext/exectrace/internal/event"
)

// ErrNotFound is returned when a session doesn't exist.
var ErrNotFound = errors.New("session not found")

// Store is a SQLite-backed session archive.
type Store struct {
	db *sql.DB
}

// Session is one recorded trace.
type Session struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time // zero when the recording never finished
	Command    []string
	ExitCode   int // -1 when the recording never finished
	EventCount int
}

// Open opens or creates a session store at the given path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at  TEXT NOT NULL,
			finished_at TEXT,
			command     TEXT NOT NULL,
			exit_code   INTEGER
		);
		CREATE TABLE IF NOT EXISTS events (
			session_id INTEGER NOT NULL,
			seq        INTEGER NOT NULL,
			ts         TEXT NOT NULL,
			kind       TEXT NOT NULL,
			data       TEXT NOT NULL,
			PRIMARY KEY (session_id, seq)
		);
		CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id);
	`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Recording is an in-progress session. Record preserves the order of
// calls; replay returns events in exactly that order.
type Recording struct {
	store *Store
	id    int64

	mu  sync.Mutex
	seq int64
}

// Begin creates a session row for command and returns its recording.
func (s *Store) Begin(command []string) (*Recording, error) {
	cmdJSON, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("marshaling command: %w", err)
	}

	res, err := s.db.Exec(`
		INSERT INTO sessions (started_at, command) VALUES (?, ?)
	`, time.Now().Format(time.RFC3339Nano), string(cmdJSON))
	if err != nil {
		return nil, fmt.Errorf("inserting session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading session id: %w", err)
	}
	return &Recording{store: s, id: id}, nil
}

// ID returns the recorded session's id.
func (r *Recording) ID() int64 { return r.id }

// Record appends one event to the session.
func (r *Recording) Record(ev event.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	_, err = r.store.db.Exec(`
		INSERT INTO events (session_id, seq, ts, kind, data)
		VALUES (?, ?, ?, ?, ?)
	`, r.id, r.seq, time.Now().Format(time.RFC3339Nano), event.Kind(ev), string(data))
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// Finish marks the session complete with the root's exit code.
func (r *Recording) Finish(exitCode int) error {
	_, err := r.store.db.Exec(`
		UPDATE sessions SET finished_at = ?, exit_code = ? WHERE id = ?
	`, time.Now().Format(time.RFC3339Nano), exitCode, r.id)
	if err != nil {
		return fmt.Errorf("finishing session: %w", err)
	}
	return nil
}

// Sessions lists all recorded sessions, newest first.
func (s *Store) Sessions() ([]Session, error) {
	rows, err := s.db.Query(`
		SELECT s.id, s.started_at, s.finished_at, s.command, s.exit_code,
		       (SELECT COUNT(*) FROM events e WHERE e.session_id = s.id)
		FROM sessions s ORDER BY s.id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

// Get retrieves one session by id.
func (s *Store) Get(id int64) (*Session, error) {
	rows, err := s.db.Query(`
		SELECT s.id, s.started_at, s.finished_at, s.command, s.exit_code,
		       (SELECT COUNT(*) FROM events e WHERE e.session_id = s.id)
		FROM sessions s WHERE s.id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, ErrNotFound
	}
	return scanSession(rows)
}

func scanSession(rows *sql.Rows) (*Session, error) {
	var (
		sess       Session
		startedAt  string
		finishedAt sql.NullString
		cmdJSON    string
		exitCode   sql.NullInt64
	)
	if err := rows.Scan(&sess.ID, &startedAt, &finishedAt, &cmdJSON, &exitCode, &sess.EventCount); err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	sess.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	if finishedAt.Valid {
		sess.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedAt.String)
	}
	if err := json.Unmarshal([]byte(cmdJSON), &sess.Command); err != nil {
		return nil, fmt.Errorf("decoding command: %w", err)
	}
	sess.ExitCode = -1
	if exitCode.Valid {
		sess.ExitCode = int(exitCode.Int64)
	}
	return &sess, nil
}

// Events replays a session's event stream in recording order.
func (s *Store) Events(id int64) ([]event.Event, error) {
	if _, err := s.Get(id); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT kind, data FROM events WHERE session_id = ? ORDER BY seq
	`, id)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var kind, data string
		if err := rows.Scan(&kind, &data); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		ev, err := decodeEvent(kind, []byte(data))
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func decodeEvent(kind string, data []byte) (event.Event, error) {
	switch kind {
	case "root_spawned":
		var ev event.RootSpawned
		return ev, json.Unmarshal(data, &ev)
	case "exec":
		var ev event.Exec
		return ev, json.Unmarshal(data, &ev)
	case "exit":
		var ev event.Exit
		return ev, json.Unmarshal(data, &ev)
	case "root_exit":
		var ev event.RootExit
		return ev, json.Unmarshal(data, &ev)
	}
	return nil, fmt.Errorf("unknown event kind %q", kind)
}
