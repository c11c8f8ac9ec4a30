package knowledge

import (
	"database/sql"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LearnPattern atomically inserts a Pattern + its Triggers. The candidate
// must carry >= MinSupportingExamples supporting events, or be marked
// operator-supplied.
func (s *Store) LearnPattern(candidate PatternCandidate) (Pattern, error) {
	if !candidate.OperatorSupplied && candidate.SupportingEvents < s.cfg.MinSupportingExamples {
		return Pattern{}, fmt.Errorf("candidate has %d supporting events, need >= %d or operator_supplied",
			candidate.SupportingEvents, s.cfg.MinSupportingExamples)
	}
	if len(candidate.Triggers) == 0 {
		return Pattern{}, fmt.Errorf("candidate must have at least one trigger phrase")
	}

	now := time.Now()
	pattern := Pattern{
		PatternID:        uuid.NewString(),
		PatternType:      candidate.PatternType,
		Title:            candidate.Title,
		Description:      candidate.Description,
		RoutesTo:         candidate.RoutesTo,
		Action:           candidate.Action,
		Confidence:       computeConfidence(candidate.SupportingEvents, 0),
		SuccessfulRoutes: candidate.SupportingEvents,
		FailedRoutes:     0,
		AccessCount:      0,
		LastUsedAt:       now,
		CreatedAt:        now,
		RequiresContext:  candidate.RequiresContext,
	}

	s.barrier.RLock()
	defer s.barrier.RUnlock()

	err := s.handle.Write(func(db *sql.DB) error {
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if err := insertPattern(tx, pattern); err != nil {
			return err
		}
		for _, phrase := range candidate.Triggers {
			if _, err := tx.Exec(
				`INSERT INTO triggers (trigger_id, pattern_id, phrase) VALUES (?, ?, ?)`,
				uuid.NewString(), pattern.PatternID, phrase,
			); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return Pattern{}, fmt.Errorf("learn pattern: %w", err)
	}
	return pattern, nil
}

func insertPattern(tx *sql.Tx, p Pattern) error {
	_, err := tx.Exec(
		`INSERT INTO patterns (pattern_id, pattern_type, title, description, routes_to, action, confidence,
			successful_routes, failed_routes, access_count, last_used_at, created_at, requires_context, pinned)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.PatternID, p.PatternType, p.Title, p.Description, p.RoutesTo, p.Action, p.Confidence,
		p.SuccessfulRoutes, p.FailedRoutes, p.AccessCount, p.LastUsedAt.UnixNano(), p.CreatedAt.UnixNano(),
		boolToInt(p.RequiresContext), boolToInt(p.Pinned),
	)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Reinforce applies a route outcome to pattern_id: updates counters,
// recomputes confidence, updates last_used_at. Reinforcing
// the same pattern concurrently serializes via a per-pattern lock. A reinforcement whose resulting confidence swing exceeds the
// configured spike limit without enough supporting outcomes is rejected as
// an anomaly and the write is not applied.
func (s *Store) Reinforce(patternID string, outcome Outcome) (Pattern, error) {
	lock := s.lockFor(patternID)
	lock.Lock()
	defer lock.Unlock()

	s.barrier.RLock()
	defer s.barrier.RUnlock()

	var updated Pattern
	err := s.handle.Write(func(db *sql.DB) error {
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		row := tx.QueryRow(
			`SELECT pattern_id, pattern_type, title, description, routes_to, action, confidence,
				successful_routes, failed_routes, access_count, last_used_at, created_at, requires_context, pinned
			 FROM patterns WHERE pattern_id = ?`, patternID,
		)
		current, err := scanPatternRow(row)
		if err != nil {
			if err == sql.ErrNoRows {
				return fmt.Errorf("pattern %s not found: %w", patternID, err)
			}
			return err
		}

		successful, failed := current.SuccessfulRoutes, current.FailedRoutes
		if outcome == OutcomeSuccess {
			successful++
		} else {
			failed++
		}
		newConfidence := computeConfidence(successful, failed)

		delta := math.Abs(newConfidence - current.Confidence)
		supportingOutcomes := 1 // this single reinforcement call
		if delta > s.cfg.ConfidenceSpikeLimit && supportingOutcomes < s.cfg.MinSupportingEvents {
			return anomalyErr(fmt.Sprintf("reinforcing %s would move confidence by %.3f in one update", patternID, delta))
		}

		now := time.Now()
		if _, err := tx.Exec(
			`UPDATE patterns SET successful_routes = ?, failed_routes = ?, confidence = ?, access_count = access_count + 1, last_used_at = ? WHERE pattern_id = ?`,
			successful, failed, newConfidence, now.UnixNano(), patternID,
		); err != nil {
			return err
		}

		current.SuccessfulRoutes = successful
		current.FailedRoutes = failed
		current.Confidence = newConfidence
		current.AccessCount++
		current.LastUsedAt = now
		updated = current

		return tx.Commit()
	})
	if err != nil {
		return Pattern{}, err
	}

	if s.emitter != nil {
		if _, emitErr := s.emitter.Emit(eventKindPatternReinforced, updated, ""); emitErr != nil {
			s.log.Warn("failed to emit pattern_reinforced event", zap.Error(emitErr))
		}
	}
	return updated, nil
}

const (
	eventKindPatternReinforced   = "pattern_reinforced"
	eventKindPatternConsolidated = "pattern_consolidated"
)

// FindPatternByTriggers performs case-insensitive fuzzy matching against
// phrases and returns patterns sorted by confidence * recency_weight
// . recency_weight decays linearly over 30 days since
// last_used_at, floored at 0.1, so an old-but-confident pattern is not
// discarded outright.
func (s *Store) FindPatternByTriggers(phrases []string) ([]ScoredPattern, error) {
	queryTokens := make(map[string]struct{})
	for _, p := range phrases {
		for t := range tokenize(p) {
			queryTokens[t] = struct{}{}
		}
	}

	type rowT struct {
		pattern Pattern
		best    float64
	}
	byPattern := make(map[string]*rowT)

	err := s.handle.Read(func(db *sql.DB) error {
		rows, err := db.Query(`SELECT pattern_id, phrase FROM triggers`)
		if err != nil {
			return err
		}
		defer rows.Close()

		overlaps := make(map[string]float64)
		for rows.Next() {
			var patternID, phrase string
			if err := rows.Scan(&patternID, &phrase); err != nil {
				return err
			}
			score := overlapScore(queryTokens, phrase)
			if score > overlaps[patternID] {
				overlaps[patternID] = score
			}
		}
		if err := rows.Err(); err != nil {
			return err
		}

		for patternID, score := range overlaps {
			if score <= 0 {
				continue
			}
			row := db.QueryRow(
				`SELECT pattern_id, pattern_type, title, description, routes_to, action, confidence,
					successful_routes, failed_routes, access_count, last_used_at, created_at, requires_context, pinned
				 FROM patterns WHERE pattern_id = ?`, patternID,
			)
			p, err := scanPatternRow(row)
			if err == sql.ErrNoRows {
				continue
			}
			if err != nil {
				return err
			}
			byPattern[patternID] = &rowT{pattern: p, best: score}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	out := make([]ScoredPattern, 0, len(byPattern))
	for _, r := range byPattern {
		age := now.Sub(r.pattern.LastUsedAt).Hours() / 24
		recency := 1.0 - age/30.0
		if recency < 0.1 {
			recency = 0.1
		}
		out = append(out, ScoredPattern{
			Pattern: r.pattern,
			Score:   r.pattern.Confidence * recency,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func scanPatternRow(row *sql.Row) (Pattern, error) {
	var p Pattern
	var lastUsed, created int64
	var requiresContext, pinned int
	err := row.Scan(
		&p.PatternID, &p.PatternType, &p.Title, &p.Description, &p.RoutesTo, &p.Action, &p.Confidence,
		&p.SuccessfulRoutes, &p.FailedRoutes, &p.AccessCount, &lastUsed, &created, &requiresContext, &pinned,
	)
	if err != nil {
		return Pattern{}, err
	}
	p.LastUsedAt = time.Unix(0, lastUsed)
	p.CreatedAt = time.Unix(0, created)
	p.RequiresContext = requiresContext != 0
	p.Pinned = pinned != 0
	return p, nil
}
