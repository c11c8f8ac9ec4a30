// Package storage implements the Storage Adapters: a thin facade over
// four embedded SQLite databases, one per tier, each with a single
// exclusive-write pool. Backed by modernc.org/sqlite, a pure-Go driver
// with no cgo toolchain requirement.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cortex-ai/cortex/internal/cortexerr"
	"github.com/cortex-ai/cortex/internal/logging"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Tier identifies one of the four owned databases.
type Tier string

const (
	TierWorkingMemory Tier = "tier1"
	TierKnowledge     Tier = "tier2"
	TierDevContext    Tier = "tier3"
	TierEvents        Tier = "events"
)

// Handle wraps a single tier's database connection with the
// single-exclusive-writer discipline: all writes take
// the write lock, reads may proceed concurrently.
type Handle struct {
	tier       Tier
	db         *sql.DB
	mu         sync.RWMutex
	path       string
	maxRetries int
	degraded   bool
	log        *zap.Logger
}

// Open opens (creating if necessary) the SQLite database for tier at path,
// running schemaFn to create/validate its schema. Returns StorageUnavailable
// if the path cannot be created or opened.
func Open(tier Tier, path string, maxRetries int, schemaFn func(*sql.DB) error) (*Handle, error) {
	log := logging.For(logging.CategoryStorage).With(zap.String("tier", string(tier)))

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, cortexerr.Wrap(cortexerr.StorageUnavail, fmt.Sprintf("create dir %s", dir), err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.StorageUnavail, fmt.Sprintf("open %s", path), err)
	}
	// A single writer per tier: cap write concurrency at the driver level too,
	// the RWMutex above is the authoritative gate for write ordering.
	db.SetMaxOpenConns(4)

	h := &Handle{tier: tier, db: db, path: path, maxRetries: maxRetries, log: log}

	if schemaFn != nil {
		if err := schemaFn(db); err != nil {
			db.Close()
			return nil, cortexerr.Wrap(cortexerr.ConfigurationErr, "schema init failed", err)
		}
	}

	log.Info("tier opened", zap.String("path", path))
	return h, nil
}

// DB exposes the raw connection for read queries, which may run concurrently.
func (h *Handle) DB() *sql.DB { return h.db }

// Degraded reports whether a persistent failure has taken this tier read-only.
func (h *Handle) Degraded() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.degraded
}

// Write serializes fn against the tier's single writer and retries transient
// I/O failures up to maxRetries with linear backoff. A
// persistent failure marks the tier degraded and returns StorageUnavailable.
func (h *Handle) Write(fn func(*sql.DB) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.degraded {
		return cortexerr.Wrap(cortexerr.StorageUnavail, string(h.tier)+" degraded", nil)
	}

	var lastErr error
	for attempt := 0; attempt <= h.maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * 20 * time.Millisecond)
		}
		if err := fn(h.db); err != nil {
			// A classified failure (e.g. AnomalyDetected) or a missing row is
			// not an I/O fault: it is returned as-is, without retrying or
			// degrading the tier.
			if cortexerr.KindOf(err) != "" || errors.Is(err, sql.ErrNoRows) {
				return err
			}
			lastErr = err
			h.log.Warn("write attempt failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		return nil
	}

	h.degraded = true
	h.log.Error("write permanently failed, tier degraded", zap.Error(lastErr))
	return cortexerr.Wrap(cortexerr.StorageUnavail, string(h.tier)+" write failed", lastErr)
}

// Read runs fn without taking the write lock; concurrent reads are allowed.
func (h *Handle) Read(fn func(*sql.DB) error) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if err := fn(h.db); err != nil {
		return cortexerr.Wrap(cortexerr.StorageUnavail, string(h.tier)+" read failed", err)
	}
	return nil
}

// Vacuum reclaims disk space. Takes the write lock for the duration.
func (h *Handle) Vacuum() error {
	return h.Write(func(db *sql.DB) error {
		_, err := db.Exec("VACUUM")
		return err
	})
}

// Close closes the underlying connection.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.db.Close()
}

// EnsureSchemaVersion creates the schema_version bookkeeping table and
// returns the currently recorded version (0 if none). Guarded migrations
//
// compare this against a component's expected version.
func EnsureSchemaVersion(db *sql.DB) (int, error) {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (id INTEGER PRIMARY KEY CHECK (id = 0), version INTEGER NOT NULL)`); err != nil {
		return 0, err
	}
	row := db.QueryRow(`SELECT version FROM schema_version WHERE id = 0`)
	var v int
	if err := row.Scan(&v); err != nil {
		if err == sql.ErrNoRows {
			if _, err := db.Exec(`INSERT INTO schema_version (id, version) VALUES (0, 0)`); err != nil {
				return 0, err
			}
			return 0, nil
		}
		return 0, err
	}
	return v, nil
}

// SetSchemaVersion records the schema version after a successful migration.
func SetSchemaVersion(db *sql.DB, version int) error {
	_, err := db.Exec(`UPDATE schema_version SET version = ? WHERE id = 0`, version)
	return err
}
