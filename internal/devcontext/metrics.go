package devcontext

import (
	"database/sql"
	"time"
)

// RecordMetric appends a namespaced measurement. Metrics are append-only: a
// repeated (namespace, name) pair accumulates a new row rather than
// overwriting, so get_metrics can return a time series.
func (s *Store) RecordMetric(namespace, name string, value float64) (Metric, error) {
	now := time.Now()
	err := s.handle.Write(func(db *sql.DB) error {
		_, err := db.Exec(
			`INSERT INTO metrics (namespace, metric_name, metric_value, collected_at) VALUES (?, ?, ?, ?)`,
			namespace, name, value, now.UnixNano(),
		)
		return err
	})
	if err != nil {
		return Metric{}, err
	}
	return Metric{Namespace: namespace, Name: name, Value: value, CollectedAt: now}, nil
}

// GetMetrics returns the most recent value of each requested metric name in
// namespace. Names not found are omitted from the result.
func (s *Store) GetMetrics(namespace string, names []string) ([]Metric, error) {
	if len(names) == 0 {
		return nil, nil
	}
	var out []Metric
	err := s.handle.Read(func(db *sql.DB) error {
		for _, name := range names {
			row := db.QueryRow(
				`SELECT metric_name, metric_value, collected_at FROM metrics
				 WHERE namespace = ? AND metric_name = ? ORDER BY collected_at DESC LIMIT 1`,
				namespace, name,
			)
			var m Metric
			var collectedAt int64
			err := row.Scan(&m.Name, &m.Value, &collectedAt)
			if err == sql.ErrNoRows {
				continue
			}
			if err != nil {
				return err
			}
			m.Namespace = namespace
			m.CollectedAt = time.Unix(0, collectedAt)
			out = append(out, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
