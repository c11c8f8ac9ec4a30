// Package eventlog implements the Event Log: an append-only, ordered
// event stream feeding the learning pipeline. A dedicated SQLite table
// with an autoincrement primary key and a JSON payload column holds the
// events, plus a consumer-cursor table so multiple consumers can advance
// independently.
package eventlog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cortex-ai/cortex/internal/logging"
	"github.com/cortex-ai/cortex/internal/storage"
	"go.uber.org/zap"
)

// Log is the append-only event store for one process.
type Log struct {
	handle *storage.Handle
	log    *zap.Logger
}

// Open opens (and schema-initializes) the events database at path.
func Open(path string, maxRetries int) (*Log, error) {
	h, err := storage.Open(storage.TierEvents, path, maxRetries, ensureSchema)
	if err != nil {
		return nil, err
	}
	return &Log{handle: h, log: logging.For(logging.CategoryEventLog)}, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			event_id INTEGER PRIMARY KEY AUTOINCREMENT,
			emitted_at INTEGER NOT NULL,
			kind TEXT NOT NULL,
			payload BLOB NOT NULL,
			processed_at INTEGER,
			trace_id TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
		CREATE INDEX IF NOT EXISTS idx_events_processed ON events(processed_at);

		CREATE TABLE IF NOT EXISTS consumer_cursors (
			consumer TEXT PRIMARY KEY,
			last_event_id INTEGER NOT NULL DEFAULT 0
		);
	`)
	return err
}

// Emit durably persists a new event before returning its assigned event_id.
func (l *Log) Emit(kind string, payload any, traceID string) (int64, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal event payload: %w", err)
	}

	var id int64
	err = l.handle.Write(func(db *sql.DB) error {
		res, err := db.Exec(
			`INSERT INTO events (emitted_at, kind, payload, trace_id) VALUES (?, ?, ?, ?)`,
			time.Now().UnixNano(), kind, body, traceID,
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}

	l.log.Debug("event emitted", zap.Int64("event_id", id), zap.String("kind", kind))
	return id, nil
}

// ReadAfter returns up to limit events with event_id > cursor, in ascending
// order. Replay from any event_id is deterministic because
// ordering is solely by the autoincrement primary key.
func (l *Log) ReadAfter(cursor int64, limit int) ([]Event, error) {
	var out []Event
	err := l.handle.Read(func(db *sql.DB) error {
		rows, err := db.Query(
			`SELECT event_id, emitted_at, kind, payload, processed_at, trace_id
			 FROM events WHERE event_id > ? ORDER BY event_id ASC LIMIT ?`,
			cursor, limit,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var e Event
			var emittedAtNanos int64
			var processedAtNanos sql.NullInt64
			if err := rows.Scan(&e.ID, &emittedAtNanos, &e.Kind, &e.Payload, &processedAtNanos, &e.TraceID); err != nil {
				return err
			}
			e.EmittedAt = time.Unix(0, emittedAtNanos)
			if processedAtNanos.Valid {
				t := time.Unix(0, processedAtNanos.Int64)
				e.ProcessedAt = &t
			}
			out = append(out, e)
		}
		return rows.Err()
	})
	return out, err
}

// MarkProcessed stamps processed_at on the given event ids.
func (l *Log) MarkProcessed(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return l.handle.Write(func(db *sql.DB) error {
		now := time.Now().UnixNano()
		stmt, err := db.Prepare(`UPDATE events SET processed_at = ? WHERE event_id = ?`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, id := range ids {
			if _, err := stmt.Exec(now, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// Cursor returns the last event_id advance recorded for consumer (0 if never advanced).
func (l *Log) Cursor(consumer string) (int64, error) {
	var cursor int64
	err := l.handle.Read(func(db *sql.DB) error {
		row := db.QueryRow(`SELECT last_event_id FROM consumer_cursors WHERE consumer = ?`, consumer)
		err := row.Scan(&cursor)
		if err == sql.ErrNoRows {
			cursor = 0
			return nil
		}
		return err
	})
	return cursor, err
}

// Advance persists consumer's cursor. Callers must only advance after every
// processed event's resulting mutation committed atomically.
func (l *Log) Advance(consumer string, cursor int64) error {
	return l.handle.Write(func(db *sql.DB) error {
		_, err := db.Exec(
			`INSERT INTO consumer_cursors (consumer, last_event_id) VALUES (?, ?)
			 ON CONFLICT(consumer) DO UPDATE SET last_event_id = excluded.last_event_id`,
			consumer, cursor,
		)
		return err
	})
}

// PendingCount returns how many events are unprocessed past the consumer's cursor.
func (l *Log) PendingCount(consumer string) (int, error) {
	cursor, err := l.Cursor(consumer)
	if err != nil {
		return 0, err
	}
	var count int
	err = l.handle.Read(func(db *sql.DB) error {
		return db.QueryRow(`SELECT COUNT(*) FROM events WHERE event_id > ?`, cursor).Scan(&count)
	})
	return count, err
}

// OldestPendingAge returns the age of the oldest unprocessed event past the
// consumer's cursor, or false if there are none.
func (l *Log) OldestPendingAge(consumer string) (time.Duration, bool, error) {
	cursor, err := l.Cursor(consumer)
	if err != nil {
		return 0, false, err
	}
	var emittedAtNanos int64
	found := false
	err = l.handle.Read(func(db *sql.DB) error {
		scanErr := db.QueryRow(
			`SELECT emitted_at FROM events WHERE event_id > ? ORDER BY event_id ASC LIMIT 1`, cursor,
		).Scan(&emittedAtNanos)
		if scanErr == sql.ErrNoRows {
			return nil
		}
		if scanErr == nil {
			found = true
		}
		return scanErr
	})
	if err != nil || !found {
		return 0, false, err
	}
	return time.Since(time.Unix(0, emittedAtNanos)), true, nil
}

// Close closes the underlying database connection.
func (l *Log) Close() error { return l.handle.Close() }
