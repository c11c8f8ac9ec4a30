package devcontext

import "time"

// Metric is a single workspace-scoped measurement (e.g. lines_changed,
// build_duration_seconds) keyed by namespace and name.
type Metric struct {
	Namespace   string
	Name        string
	Value       float64
	CollectedAt time.Time
}

// Hotspot tracks a file's churn rate within a namespace.
type Hotspot struct {
	Namespace  string
	FilePath   string
	ChurnRate  float64
	IsHotspot  bool
	LastSeenAt time.Time
}

// CacheEntry is a namespace-scoped, TTL-bounded key/value pair.
type CacheEntry struct {
	Namespace string
	Key       string
	Value     []byte
	ExpiresAt time.Time
}
