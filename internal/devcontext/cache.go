package devcontext

import (
	"database/sql"
	"time"
)

// PutCache stores value under (namespace, key) with the given ttl. A zero
// ttl falls back to DefaultCacheTTL.
func (s *Store) PutCache(namespace, key string, value []byte, ttl time.Duration) (CacheEntry, error) {
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	expiresAt := time.Now().Add(ttl)

	err := s.handle.Write(func(db *sql.DB) error {
		_, err := db.Exec(
			`INSERT INTO cache_entries (namespace, key, value, expires_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT (namespace, key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
			namespace, key, value, expiresAt.UnixNano(),
		)
		return err
	})
	if err != nil {
		return CacheEntry{}, err
	}
	return CacheEntry{Namespace: namespace, Key: key, Value: value, ExpiresAt: expiresAt}, nil
}

// GetCache returns the cached value for (namespace, key), or found=false if
// absent or already expired. An expired-but-not-yet-purged row is treated as
// a miss rather than returned stale.
func (s *Store) GetCache(namespace, key string) (CacheEntry, bool, error) {
	var entry CacheEntry
	found := false

	err := s.handle.Read(func(db *sql.DB) error {
		row := db.QueryRow(
			`SELECT value, expires_at FROM cache_entries WHERE namespace = ? AND key = ?`, namespace, key,
		)
		var value []byte
		var expiresAt int64
		err := row.Scan(&value, &expiresAt)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		expiry := time.Unix(0, expiresAt)
		if expiry.Before(time.Now()) {
			return nil
		}
		entry = CacheEntry{Namespace: namespace, Key: key, Value: value, ExpiresAt: expiry}
		found = true
		return nil
	})
	if err != nil {
		return CacheEntry{}, false, err
	}
	return entry, found, nil
}

// PurgeExpired deletes every cache entry whose expires_at is at or before
// now, returning the count removed.
func (s *Store) PurgeExpired(now time.Time) (int, error) {
	var removed int64
	err := s.handle.Write(func(db *sql.DB) error {
		res, err := db.Exec(`DELETE FROM cache_entries WHERE expires_at <= ?`, now.UnixNano())
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return int(removed), nil
}
