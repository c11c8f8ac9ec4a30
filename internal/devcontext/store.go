// Package devcontext implements Tier 3 — Development Context: per-workspace
// metrics, file churn hotspots, and a namespace-scoped cache with TTL
// expiry. Every operation is scoped to a namespace; there is no
// cross-namespace read path.
package devcontext

import (
	"database/sql"
	"time"

	"github.com/cortex-ai/cortex/internal/storage"
)

// DefaultCacheTTL is applied by PutCache when the caller passes a zero TTL.
const DefaultCacheTTL = 30 * 24 * time.Hour

// hotspotThreshold is the churn rate (modifications per day, smoothed) above
// which a file is flagged as a hotspot.
const hotspotThreshold = 0.5

// Store is the Tier 3 facade.
type Store struct {
	handle *storage.Handle
}

// Open opens (and schema-initializes) the tier3 database at path.
func Open(path string, maxRetries int) (*Store, error) {
	h, err := storage.Open(storage.TierDevContext, path, maxRetries, ensureSchema)
	if err != nil {
		return nil, err
	}
	return &Store{handle: h}, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS metrics (
			namespace TEXT NOT NULL,
			metric_name TEXT NOT NULL,
			metric_value REAL NOT NULL,
			collected_at INTEGER NOT NULL,
			PRIMARY KEY (namespace, metric_name, collected_at)
		);
		CREATE INDEX IF NOT EXISTS idx_metrics_lookup ON metrics(namespace, metric_name);

		CREATE TABLE IF NOT EXISTS file_hotspots (
			namespace TEXT NOT NULL,
			file_path TEXT NOT NULL,
			churn_rate REAL NOT NULL DEFAULT 0,
			is_hotspot INTEGER NOT NULL DEFAULT 0,
			last_seen_at INTEGER NOT NULL,
			PRIMARY KEY (namespace, file_path)
		);

		CREATE TABLE IF NOT EXISTS cache_entries (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value BLOB NOT NULL,
			expires_at INTEGER NOT NULL,
			PRIMARY KEY (namespace, key)
		);
		CREATE INDEX IF NOT EXISTS idx_cache_expiry ON cache_entries(expires_at);
	`)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.handle.Close() }
