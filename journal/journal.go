// Package journal records session events to an in-memory SQLite journal.
//
// The journal is the queryable in-session log of a run: poll cycle outcomes,
// scheduler decisions, cart operations, state machine transitions and solver
// round-trips. It is deliberately non-durable — open it on :memory: and
// nothing survives the process.
//
// Writes are asynchronous and never block the caller: entries go through a
// buffered channel, a flush goroutine batches inserts, and entries are
// dropped (counted) when the buffer is full.
package journal

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Schema for the session_events table. Applied by NewRecorder.
const Schema = `
CREATE TABLE IF NOT EXISTS session_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	event TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT '',
	duration_us INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_session_events_sid ON session_events(session_id);
`

// Entry is one recorded event.
type Entry struct {
	SessionID string
	Event     string
	Detail    string
	Duration  time.Duration
	At        time.Time
}

// Recorder persists entries asynchronously. Safe for concurrent use.
type Recorder struct {
	db      *sql.DB
	ch      chan *Entry
	done    chan struct{}
	once    sync.Once
	dropped atomic.Int64
}

// Open creates a Recorder backed by a fresh in-memory database.
func Open() (*Recorder, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	// Single connection: :memory: databases are per-connection.
	db.SetMaxOpenConns(1)
	rec, err := NewRecorder(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return rec, nil
}

// NewRecorder creates a Recorder on an existing database connection and
// applies the schema. The caller keeps ownership of db.
func NewRecorder(db *sql.DB) (*Recorder, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, err
	}
	r := &Recorder{
		db:   db,
		ch:   make(chan *Entry, 1024),
		done: make(chan struct{}),
	}
	go r.flushLoop()
	return r, nil
}

// Record queues an event. Non-blocking; drops when the buffer is full.
func (r *Recorder) Record(sessionID, event, detail string, d time.Duration) {
	e := &Entry{SessionID: sessionID, Event: event, Detail: detail, Duration: d, At: time.Now()}
	select {
	case r.ch <- e:
	default:
		r.dropped.Add(1)
	}
}

// Dropped returns how many entries were discarded due to a full buffer.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Events returns all entries for a session in insertion order.
func (r *Recorder) Events(ctx context.Context, sessionID string) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT session_id, event, detail, duration_us, created_at
		FROM session_events WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var durUs, createdAt int64
		if err := rows.Scan(&e.SessionID, &e.Event, &e.Detail, &durUs, &createdAt); err != nil {
			return nil, err
		}
		e.Duration = time.Duration(durUs) * time.Microsecond
		e.At = time.Unix(createdAt, 0)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close drains the buffer and stops the flush goroutine. The database
// connection is left to its owner (Open-created connections included; the
// process is ending anyway when a :memory: journal closes).
func (r *Recorder) Close() error {
	r.once.Do(func() {
		close(r.ch)
		<-r.done
	})
	return nil
}

func (r *Recorder) flushLoop() {
	defer close(r.done)

	batch := make([]*Entry, 0, 64)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-r.ch:
			if !ok {
				r.flushBatch(batch)
				return
			}
			batch = append(batch, e)
			if len(batch) >= 64 {
				r.flushBatch(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				r.flushBatch(batch)
				batch = batch[:0]
			}
		}
	}
}

func (r *Recorder) flushBatch(batch []*Entry) {
	if len(batch) == 0 {
		return
	}

	tx, err := r.db.Begin()
	if err != nil {
		slog.Error("journal: begin tx", "error", err)
		return
	}

	stmt, err := tx.Prepare(`INSERT INTO session_events (session_id, event, detail, duration_us, created_at)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		slog.Error("journal: prepare", "error", err)
		return
	}
	defer stmt.Close()

	for _, e := range batch {
		if _, err := stmt.Exec(e.SessionID, e.Event, e.Detail, e.Duration.Microseconds(), e.At.Unix()); err != nil {
			slog.Error("journal: insert", "error", err)
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("journal: commit", "error", err)
	}
}
