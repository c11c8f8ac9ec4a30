package config

// StorageConfig controls the embedded SQLite-backed tier databases (C1).
type StorageConfig struct {
	// MaxRetries is how many times a transient I/O failure is retried
	// before the tier is marked degraded.
	MaxRetries int `yaml:"max_retries"`
	// MigrationMode controls whether schema migrations may run automatically
	// on a version mismatch ("auto") or must be applied manually ("manual").
	MigrationMode string `yaml:"migration_mode"`
}

// DefaultStorageConfig returns the baseline retry/backoff tunables.
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		MaxRetries:    3,
		MigrationMode: "auto",
	}
}
