package devcontext

import (
	"database/sql"
	"time"
)

// UpsertHotspot records a fresh churn observation for filePath within
// namespace and recomputes is_hotspot against hotspotThreshold.
func (s *Store) UpsertHotspot(namespace, filePath string, churnRate float64) (Hotspot, error) {
	now := time.Now()
	isHotspot := churnRate >= hotspotThreshold

	err := s.handle.Write(func(db *sql.DB) error {
		_, err := db.Exec(
			`INSERT INTO file_hotspots (namespace, file_path, churn_rate, is_hotspot, last_seen_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (namespace, file_path) DO UPDATE SET
				churn_rate = excluded.churn_rate,
				is_hotspot = excluded.is_hotspot,
				last_seen_at = excluded.last_seen_at`,
			namespace, filePath, churnRate, boolToInt(isHotspot), now.UnixNano(),
		)
		return err
	})
	if err != nil {
		return Hotspot{}, err
	}
	return Hotspot{Namespace: namespace, FilePath: filePath, ChurnRate: churnRate, IsHotspot: isHotspot, LastSeenAt: now}, nil
}

// Hotspots returns every file flagged is_hotspot within namespace.
func (s *Store) Hotspots(namespace string) ([]Hotspot, error) {
	var out []Hotspot
	err := s.handle.Read(func(db *sql.DB) error {
		rows, err := db.Query(
			`SELECT file_path, churn_rate, is_hotspot, last_seen_at FROM file_hotspots
			 WHERE namespace = ? AND is_hotspot = 1 ORDER BY churn_rate DESC`, namespace,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var h Hotspot
			var lastSeen int64
			var isHotspotInt int
			if err := rows.Scan(&h.FilePath, &h.ChurnRate, &isHotspotInt, &lastSeen); err != nil {
				return err
			}
			h.Namespace = namespace
			h.IsHotspot = isHotspotInt != 0
			h.LastSeenAt = time.Unix(0, lastSeen)
			out = append(out, h)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
