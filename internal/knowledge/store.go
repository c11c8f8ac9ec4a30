// Package knowledge implements Tier 2 — Knowledge Graph: patterns,
// triggers, file relationships, corrections, and validation insights, with
// confidence scoring, decay, and consolidation over a table-per-entity
// SQLite layout.
package knowledge

import (
	"database/sql"
	"sync"

	"github.com/cortex-ai/cortex/internal/cortexerr"
	"github.com/cortex-ai/cortex/internal/logging"
	"github.com/cortex-ai/cortex/internal/storage"
	"go.uber.org/zap"
)

// Emitter is the narrow event-emission interface (see memory.Emitter for the
// same import-cycle-avoidance rationale).
type Emitter interface {
	Emit(kind string, payload any, traceID string) (int64, error)
}

// Config bundles the tunables knowledge.Store needs from config.ProtectionConfig/LearningConfig.
type Config struct {
	ConfidenceSpikeLimit    float64
	MinSupportingEvents     int
	MinSupportingExamples   int
	ConsolidationSimilarity float64
	DecayDays               [4]int // 60/90/120/180-equivalent thresholds
}

// Store is the Tier 2 knowledge-graph facade.
type Store struct {
	handle  *storage.Handle
	emitter Emitter
	cfg     Config
	log     *zap.Logger

	// locks stripes reinforcement by pattern_id so concurrent reinforcement
	// of the same pattern serializes without serializing unrelated patterns.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	// barrier is held exclusively by decay/consolidation passes and for
	// reading by reinforcement, so passes run mutually exclusive with writes
	// but reads may still proceed.
	barrier sync.RWMutex
}

// Open opens (and schema-initializes) the tier2 database at path.
func Open(path string, maxRetries int, cfg Config, emitter Emitter) (*Store, error) {
	h, err := storage.Open(storage.TierKnowledge, path, maxRetries, ensureSchema)
	if err != nil {
		return nil, err
	}
	if cfg.MinSupportingEvents <= 0 {
		cfg.MinSupportingEvents = 5
	}
	if cfg.MinSupportingExamples <= 0 {
		cfg.MinSupportingExamples = 3
	}
	if cfg.ConsolidationSimilarity <= 0 {
		cfg.ConsolidationSimilarity = 0.80
	}
	if cfg.ConfidenceSpikeLimit <= 0 {
		cfg.ConfidenceSpikeLimit = 0.20
	}
	if cfg.DecayDays == ([4]int{}) {
		cfg.DecayDays = [4]int{60, 90, 120, 180}
	}
	return &Store{
		handle:  h,
		emitter: emitter,
		cfg:     cfg,
		log:     logging.For(logging.CategoryTier2),
		locks:   make(map[string]*sync.Mutex),
	}, nil
}

func (s *Store) lockFor(patternID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	m, ok := s.locks[patternID]
	if !ok {
		m = &sync.Mutex{}
		s.locks[patternID] = m
	}
	return m
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS patterns (
			pattern_id TEXT PRIMARY KEY,
			pattern_type TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			routes_to TEXT NOT NULL,
			action TEXT NOT NULL DEFAULT '',
			confidence REAL NOT NULL CHECK (confidence >= 0 AND confidence <= 1),
			successful_routes INTEGER NOT NULL DEFAULT 0,
			failed_routes INTEGER NOT NULL DEFAULT 0,
			access_count INTEGER NOT NULL DEFAULT 0,
			last_used_at INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			requires_context INTEGER NOT NULL DEFAULT 0,
			pinned INTEGER NOT NULL DEFAULT 0,
			last_decayed_date TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS triggers (
			trigger_id TEXT PRIMARY KEY,
			pattern_id TEXT NOT NULL REFERENCES patterns(pattern_id),
			phrase TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_triggers_pattern ON triggers(pattern_id);
		CREATE INDEX IF NOT EXISTS idx_triggers_phrase ON triggers(phrase);

		CREATE TABLE IF NOT EXISTS file_relationships (
			file_a TEXT NOT NULL,
			file_b TEXT NOT NULL,
			relationship_type TEXT NOT NULL,
			co_modification_rate REAL NOT NULL DEFAULT 0,
			modification_count INTEGER NOT NULL DEFAULT 0,
			confidence REAL NOT NULL DEFAULT 0,
			last_seen_at INTEGER NOT NULL,
			PRIMARY KEY (file_a, file_b)
		);

		CREATE TABLE IF NOT EXISTS corrections (
			correction_id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			incorrect_value TEXT NOT NULL,
			correct_value TEXT NOT NULL,
			frequency INTEGER NOT NULL DEFAULT 1,
			confidence REAL NOT NULL DEFAULT 0,
			prevention_strategy TEXT NOT NULL DEFAULT '',
			last_seen_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_corrections_type ON corrections(type);

		CREATE TABLE IF NOT EXISTS validation_insights (
			insight_id TEXT PRIMARY KEY,
			issue TEXT NOT NULL,
			symptom TEXT NOT NULL DEFAULT '',
			cause TEXT NOT NULL DEFAULT '',
			detection TEXT NOT NULL DEFAULT '',
			prevention TEXT NOT NULL DEFAULT '',
			impact TEXT NOT NULL,
			frequency INTEGER NOT NULL DEFAULT 1,
			confidence REAL NOT NULL DEFAULT 0,
			time_cost_minutes INTEGER NOT NULL DEFAULT 0,
			last_seen_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_insights_impact ON validation_insights(impact);
	`)
	return err
}

// epsilon keeps computeConfidence defined when a pattern has zero outcomes.
const epsilon = 1e-9

func computeConfidence(successful, failed int) float64 {
	return float64(successful) / (float64(successful) + float64(failed) + epsilon)
}

// anomalyErr wraps cortexerr.AnomalyDetected for Tier 2 write rejections.
func anomalyErr(reason string) error {
	return cortexerr.Wrap(cortexerr.AnomalyDetected, reason, nil)
}

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.handle.Close() }
