// Package logging provides categorized, structured logging for CORTEX.
// Every subsystem logs through a named Category so operators can enable or
// silence a slice of the system (e.g. only "router" and "protection")
// without touching the others. The underlying engine is zap; this package
// is a thin facade that adds the category dimension and a package-level
// default logger so callers don't have to thread a logger through every
// constructor.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names a subsystem for log filtering and field tagging.
type Category string

const (
	CategoryBoot       Category = "boot"
	CategoryStorage    Category = "storage"
	CategoryTier0      Category = "tier0"
	CategoryTier1      Category = "tier1"
	CategoryTier2      Category = "tier2"
	CategoryTier3      Category = "tier3"
	CategoryEventLog   Category = "eventlog"
	CategoryProtection Category = "protection"
	CategoryRouter     Category = "router"
	CategoryDispatcher Category = "dispatcher"
	CategoryTemplates  Category = "templates"
	CategoryFormatter  Category = "formatter"
	CategoryLearning   Category = "learning"
	CategoryRegistry   Category = "registry"
)

// Config controls the shape of the underlying zap logger.
type Config struct {
	// Debug enables debug-level output; otherwise info and above.
	Debug bool
	// JSON selects the JSON encoder; otherwise a human-readable console encoder.
	JSON bool
	// Disabled routes all logging to a no-op core (used in tests).
	Disabled bool
}

var (
	mu      sync.RWMutex
	base    *zap.Logger = zap.NewNop()
	current Config
)

// Configure replaces the package-wide base logger. Safe to call once at
// process startup before any component logger is obtained.
func Configure(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	current = cfg
	if cfg.Disabled {
		base = zap.NewNop()
		return nil
	}

	level := zapcore.InfoLevel
	if cfg.Debug {
		level = zapcore.DebugLevel
	}

	zcfg := zap.NewProductionConfig()
	if !cfg.JSON {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	l, err := zcfg.Build()
	if err != nil {
		return err
	}
	base = l
	return nil
}

// For returns a logger scoped to the given category. Cheap enough to call
// per-request; callers typically hold the result in a struct field instead.
func For(cat Category) *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base.With(zap.String("category", string(cat)))
}

// Sync flushes buffered log entries. Call during graceful shutdown.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	return base.Sync()
}
