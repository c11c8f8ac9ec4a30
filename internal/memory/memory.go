// Package memory implements Tier 1 — Working Memory: a capped,
// insertion-ordered conversation store with per-turn text and FIFO eviction
// of the least-recently-touched conversation once capacity is exceeded.
package memory

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cortex-ai/cortex/internal/logging"
	"github.com/cortex-ai/cortex/internal/storage"
	"go.uber.org/zap"
)

// Emitter is the narrow interface memory needs from the event log, avoiding
// an import cycle (memory does not depend on package eventlog directly;
// eventlog.Log satisfies this interface structurally).
type Emitter interface {
	Emit(kind string, payload any, traceID string) (int64, error)
}

// Store is the Tier 1 working-memory facade.
type Store struct {
	handle       *storage.Handle
	emitter      Emitter
	capacity     int
	activeWindow time.Duration
	log          *zap.Logger
}

// Config bundles the tunables from config.MemoryConfig that Store needs.
type Config struct {
	Capacity            int
	ActiveWindowMinutes int
}

// Open opens (and schema-initializes) the tier1 database at path.
func Open(path string, maxRetries int, cfg Config, emitter Emitter) (*Store, error) {
	h, err := storage.Open(storage.TierWorkingMemory, path, maxRetries, ensureSchema)
	if err != nil {
		return nil, err
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 70
	}
	if cfg.ActiveWindowMinutes <= 0 {
		cfg.ActiveWindowMinutes = 30
	}
	return &Store{
		handle:       h,
		emitter:      emitter,
		capacity:     cfg.Capacity,
		activeWindow: time.Duration(cfg.ActiveWindowMinutes) * time.Minute,
		log:          logging.For(logging.CategoryTier1),
	}, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS conversations (
			conversation_id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			quality_score REAL NOT NULL DEFAULT 0 CHECK (quality_score >= 0 AND quality_score <= 10),
			message_count INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS turns (
			turn_id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(conversation_id),
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			token_estimate INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_turns_conversation ON turns(conversation_id, timestamp);
		CREATE INDEX IF NOT EXISTS idx_turns_timestamp ON turns(timestamp);
	`)
	return err
}

// estimateTokens counts whitespace-delimited atoms, the cheap stand-in for a
// real token count used throughout context-budget accounting.
func estimateTokens(content string) int {
	return len(strings.Fields(content))
}

// AppendTurn creates the conversation if absent, appends the turn, and
// updates message_count/updated_at. Ordering within a
// conversation is strictly monotonic by timestamp:
// the timestamp assigned here is always later than the conversation's
// current updated_at.
func (s *Store) AppendTurn(conversationID string, role Role, content string) (Turn, error) {
	now := time.Now()
	turn := Turn{
		TurnID:         uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Timestamp:      now,
		TokenEstimate:  estimateTokens(content),
	}

	err := s.handle.Write(func(db *sql.DB) error {
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		var exists bool
		if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM conversations WHERE conversation_id = ?)`, conversationID).Scan(&exists); err != nil {
			return err
		}

		if !exists {
			if _, err := tx.Exec(
				`INSERT INTO conversations (conversation_id, title, created_at, updated_at, quality_score, message_count)
				 VALUES (?, '', ?, ?, 0, 0)`,
				conversationID, now.UnixNano(), now.UnixNano(),
			); err != nil {
				return err
			}
		} else {
			// Ensure strict monotonic ordering even under clock skew: the new
			// turn's timestamp must exceed the conversation's last update.
			var lastUpdated int64
			if err := tx.QueryRow(`SELECT updated_at FROM conversations WHERE conversation_id = ?`, conversationID).Scan(&lastUpdated); err != nil {
				return err
			}
			if turn.Timestamp.UnixNano() <= lastUpdated {
				turn.Timestamp = time.Unix(0, lastUpdated+1)
			}
		}

		if _, err := tx.Exec(
			`INSERT INTO turns (turn_id, conversation_id, role, content, timestamp, token_estimate) VALUES (?, ?, ?, ?, ?, ?)`,
			turn.TurnID, turn.ConversationID, string(turn.Role), turn.Content, turn.Timestamp.UnixNano(), turn.TokenEstimate,
		); err != nil {
			return err
		}

		if _, err := tx.Exec(
			`UPDATE conversations SET updated_at = ?, message_count = message_count + 1 WHERE conversation_id = ?`,
			turn.Timestamp.UnixNano(), conversationID,
		); err != nil {
			return err
		}

		return tx.Commit()
	})
	if err != nil {
		return Turn{}, fmt.Errorf("append turn: %w", err)
	}

	if err := s.evictIfOverCapacity(); err != nil {
		s.log.Warn("eviction pass failed after append", zap.Error(err))
	}

	return turn, nil
}

// GetConversation returns the conversation header plus its ordered turns.
func (s *Store) GetConversation(id string) (ConversationDetail, bool, error) {
	var detail ConversationDetail
	found := false

	err := s.handle.Read(func(db *sql.DB) error {
		row := db.QueryRow(
			`SELECT conversation_id, title, created_at, updated_at, quality_score, message_count FROM conversations WHERE conversation_id = ?`,
			id,
		)
		c, err := scanConversation(row)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		detail.Conversation = c

		rows, err := db.Query(
			`SELECT turn_id, conversation_id, role, content, timestamp, token_estimate FROM turns WHERE conversation_id = ? ORDER BY timestamp ASC`,
			id,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			t, err := scanTurn(rows)
			if err != nil {
				return err
			}
			detail.Turns = append(detail.Turns, t)
		}
		return rows.Err()
	})
	if err != nil {
		return ConversationDetail{}, false, err
	}
	return detail, found, nil
}

// GetRecentTurns returns turns across all conversations in reverse
// chronological order.
func (s *Store) GetRecentTurns(limit int) ([]Turn, error) {
	var out []Turn
	err := s.handle.Read(func(db *sql.DB) error {
		rows, err := db.Query(
			`SELECT turn_id, conversation_id, role, content, timestamp, token_estimate FROM turns ORDER BY timestamp DESC LIMIT ?`,
			limit,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			t, err := scanTurn(rows)
			if err != nil {
				return err
			}
			out = append(out, t)
		}
		return rows.Err()
	})
	return out, err
}

// ActiveConversationID returns the conversation most recently appended to
// within the activity window, if any.
func (s *Store) ActiveConversationID() (string, bool, error) {
	var id string
	found := false
	cutoff := time.Now().Add(-s.activeWindow).UnixNano()
	err := s.handle.Read(func(db *sql.DB) error {
		row := db.QueryRow(
			`SELECT conversation_id FROM conversations WHERE updated_at >= ? ORDER BY updated_at DESC LIMIT 1`,
			cutoff,
		)
		err := row.Scan(&id)
		if err == sql.ErrNoRows {
			return nil
		}
		if err == nil {
			found = true
		}
		return err
	})
	return id, found, err
}

// AdjustQualityScore folds one request outcome observation into the
// conversation's quality score as an exponential moving average, clamped to
// the schema's [0,10] range, and returns the new score. The smoothing keeps
// a single noisy turn from swinging a long conversation's score.
func (s *Store) AdjustQualityScore(conversationID string, observation float64) (float64, error) {
	const alpha = 0.2
	if observation < 0 {
		observation = 0
	}
	if observation > 10 {
		observation = 10
	}

	var updated float64
	err := s.handle.Write(func(db *sql.DB) error {
		var current float64
		if err := db.QueryRow(
			`SELECT quality_score FROM conversations WHERE conversation_id = ?`, conversationID,
		).Scan(&current); err != nil {
			return err
		}
		updated = current*(1-alpha) + observation*alpha
		if updated < 0 {
			updated = 0
		}
		if updated > 10 {
			updated = 10
		}
		_, err := db.Exec(
			`UPDATE conversations SET quality_score = ? WHERE conversation_id = ?`,
			updated, conversationID,
		)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("adjust quality score for %s: %w", conversationID, err)
	}
	return updated, nil
}

// Count returns the authoritative conversation count: SELECT COUNT(*) FROM
// conversations. title is never null (it defaults to ”), so no null-title
// filtering is applied.
func (s *Store) Count() (int, error) {
	var count int
	err := s.handle.Read(func(db *sql.DB) error {
		return db.QueryRow(`SELECT COUNT(*) FROM conversations`).Scan(&count)
	})
	return count, err
}

// evictIfOverCapacity deletes the single oldest non-active conversation if
// the total exceeds capacity, atomically removing all of its turns together,
// and emits an "evicted" event.
func (s *Store) evictIfOverCapacity() error {
	activeID, hasActive, err := s.ActiveConversationID()
	if err != nil {
		return err
	}

	var victim *EvictedSummary
	err = s.handle.Write(func(db *sql.DB) error {
		var count int
		if err := db.QueryRow(`SELECT COUNT(*) FROM conversations`).Scan(&count); err != nil {
			return err
		}
		if count <= s.capacity {
			return nil
		}

		query := `SELECT conversation_id, title, message_count, created_at FROM conversations`
		args := []any{}
		if hasActive {
			query += ` WHERE conversation_id != ?`
			args = append(args, activeID)
		}
		query += ` ORDER BY updated_at ASC LIMIT 1`

		row := db.QueryRow(query, args...)
		var summary EvictedSummary
		var createdAtNanos int64
		if err := row.Scan(&summary.ConversationID, &summary.Title, &summary.MessageCount, &createdAtNanos); err != nil {
			if err == sql.ErrNoRows {
				return nil
			}
			return err
		}
		summary.CreatedAt = time.Unix(0, createdAtNanos)

		tx, err := db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`DELETE FROM turns WHERE conversation_id = ?`, summary.ConversationID); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM conversations WHERE conversation_id = ?`, summary.ConversationID); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}

		victim = &summary
		return nil
	})
	if err != nil {
		return err
	}

	if victim != nil && s.emitter != nil {
		if _, err := s.emitter.Emit(eventKindEvicted, victim, ""); err != nil {
			s.log.Warn("failed to emit eviction event", zap.Error(err))
		}
	}
	return nil
}

// eventKindEvicted mirrors eventlog.KindConversationEvicted without creating
// an import on package eventlog.
const eventKindEvicted = "conversation_evicted"

func scanConversation(row *sql.Row) (Conversation, error) {
	var c Conversation
	var createdAt, updatedAt int64
	err := row.Scan(&c.ConversationID, &c.Title, &createdAt, &updatedAt, &c.QualityScore, &c.MessageCount)
	if err != nil {
		return Conversation{}, err
	}
	c.CreatedAt = time.Unix(0, createdAt)
	c.UpdatedAt = time.Unix(0, updatedAt)
	return c, nil
}

func scanTurn(rows *sql.Rows) (Turn, error) {
	var t Turn
	var role string
	var ts int64
	if err := rows.Scan(&t.TurnID, &t.ConversationID, &role, &t.Content, &ts, &t.TokenEstimate); err != nil {
		return Turn{}, err
	}
	t.Role = Role(role)
	t.Timestamp = time.Unix(0, ts)
	return t, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.handle.Close() }
