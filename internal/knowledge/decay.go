package knowledge

import (
	"database/sql"
	"time"

	"go.uber.org/zap"
)

// decayFactors pairs the first two DecayDays thresholds (60d, 90d) with the
// confidence multiplier applied once a pattern has gone unused that long.
// The third threshold (120d) deletes instead of scaling, but only if
// confidence has already fallen below 0.50; the fourth (180d) deletes
// unconditionally unless the pattern is pinned.
var decayFactors = [2]float64{0.90, 0.75}

const deleteCandidateConfidence = 0.50

// DecayResult summarizes one DecayPass invocation.
type DecayResult struct {
	Scanned int
	Decayed int
	Deleted int
	Skipped int
}

// DecayPass walks every pattern not yet decayed today and, based on days
// since last_used_at, scales confidence down a step or deletes the pattern
// (pinned patterns are never deleted). Running DecayPass more than once on
// the same calendar day is a no-op for patterns already marked decayed that
// day, and the whole pass runs in a transaction so a failure mid-walk leaves
// no partial effect.
func (s *Store) DecayPass(now time.Time) (DecayResult, error) {
	s.barrier.Lock()
	defer s.barrier.Unlock()

	today := now.UTC().Format("2006-01-02")
	var result DecayResult

	err := s.handle.Write(func(db *sql.DB) error {
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		rows, err := tx.Query(`SELECT pattern_id, confidence, last_used_at, pinned, last_decayed_date FROM patterns`)
		if err != nil {
			return err
		}
		type candidate struct {
			id          string
			confidence  float64
			lastUsed    int64
			pinned      bool
			lastDecayed string
		}
		var candidates []candidate
		for rows.Next() {
			var c candidate
			var pinnedInt int
			if err := rows.Scan(&c.id, &c.confidence, &c.lastUsed, &pinnedInt, &c.lastDecayed); err != nil {
				rows.Close()
				return err
			}
			c.pinned = pinnedInt != 0
			candidates = append(candidates, c)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		rows.Close()

		for _, c := range candidates {
			result.Scanned++
			if c.lastDecayed == today {
				result.Skipped++
				continue
			}
			ageDays := int(now.UTC().Sub(time.Unix(0, c.lastUsed).UTC()).Hours() / 24)

			bucket := -1
			for i, threshold := range s.cfg.DecayDays {
				if ageDays >= threshold {
					bucket = i
				}
			}
			if bucket < 0 {
				continue
			}

			// bucket 3 (180d): unconditional delete unless pinned.
			if bucket == len(s.cfg.DecayDays)-1 {
				if c.pinned {
					if _, err := tx.Exec(`UPDATE patterns SET last_decayed_date = ? WHERE pattern_id = ?`, today, c.id); err != nil {
						return err
					}
					continue
				}
				if _, err := tx.Exec(`DELETE FROM triggers WHERE pattern_id = ?`, c.id); err != nil {
					return err
				}
				if _, err := tx.Exec(`DELETE FROM patterns WHERE pattern_id = ?`, c.id); err != nil {
					return err
				}
				result.Deleted++
				continue
			}

			// bucket 2 (120d): a deletion candidate only once confidence has
			// already fallen below the threshold; otherwise just mark the day.
			if bucket == len(s.cfg.DecayDays)-2 {
				if !c.pinned && c.confidence < deleteCandidateConfidence {
					if _, err := tx.Exec(`DELETE FROM triggers WHERE pattern_id = ?`, c.id); err != nil {
						return err
					}
					if _, err := tx.Exec(`DELETE FROM patterns WHERE pattern_id = ?`, c.id); err != nil {
						return err
					}
					result.Deleted++
					continue
				}
				if _, err := tx.Exec(`UPDATE patterns SET last_decayed_date = ? WHERE pattern_id = ?`, today, c.id); err != nil {
					return err
				}
				continue
			}

			newConfidence := c.confidence * decayFactors[bucket]
			if _, err := tx.Exec(
				`UPDATE patterns SET confidence = ?, last_decayed_date = ? WHERE pattern_id = ?`,
				newConfidence, today, c.id,
			); err != nil {
				return err
			}
			result.Decayed++
		}

		return tx.Commit()
	})
	if err != nil {
		return DecayResult{}, err
	}

	s.log.Info("decay pass complete",
		zap.Int("scanned", result.Scanned), zap.Int("decayed", result.Decayed),
		zap.Int("deleted", result.Deleted), zap.Int("skipped", result.Skipped))
	return result, nil
}

// ConsolidateResult summarizes one ConsolidatePass invocation.
type ConsolidateResult struct {
	Scanned      int
	Consolidated int
}

// ConsolidatePass merges pattern pairs whose trigger-phrase token sets reach
// ConsolidationSimilarity Jaccard overlap: the lower-confidence pattern's
// triggers move onto the higher-confidence one, requires_context becomes the
// union of both, and the lower-confidence pattern is removed.
func (s *Store) ConsolidatePass() (ConsolidateResult, error) {
	s.barrier.Lock()
	defer s.barrier.Unlock()

	var result ConsolidateResult

	err := s.handle.Write(func(db *sql.DB) error {
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		rows, err := tx.Query(`SELECT pattern_id, confidence, requires_context FROM patterns`)
		if err != nil {
			return err
		}
		type patRow struct {
			id              string
			confidence      float64
			requiresContext bool
		}
		var patterns []patRow
		for rows.Next() {
			var p patRow
			var rc int
			if err := rows.Scan(&p.id, &p.confidence, &rc); err != nil {
				rows.Close()
				return err
			}
			p.requiresContext = rc != 0
			patterns = append(patterns, p)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		rows.Close()
		result.Scanned = len(patterns)

		tokensByPattern := make(map[string]map[string]struct{}, len(patterns))
		for _, p := range patterns {
			trigRows, err := tx.Query(`SELECT phrase FROM triggers WHERE pattern_id = ?`, p.id)
			if err != nil {
				return err
			}
			set := make(map[string]struct{})
			for trigRows.Next() {
				var phrase string
				if err := trigRows.Scan(&phrase); err != nil {
					trigRows.Close()
					return err
				}
				for t := range tokenize(phrase) {
					set[t] = struct{}{}
				}
			}
			if err := trigRows.Err(); err != nil {
				trigRows.Close()
				return err
			}
			trigRows.Close()
			tokensByPattern[p.id] = set
		}

		removed := make(map[string]bool)
		for i := 0; i < len(patterns); i++ {
			if removed[patterns[i].id] {
				continue
			}
			for j := i + 1; j < len(patterns); j++ {
				if removed[patterns[j].id] {
					continue
				}
				sim := jaccard(tokensByPattern[patterns[i].id], tokensByPattern[patterns[j].id])
				if sim < s.cfg.ConsolidationSimilarity {
					continue
				}

				winner, loser := patterns[i], patterns[j]
				if loser.confidence > winner.confidence {
					winner, loser = loser, winner
				}

				if _, err := tx.Exec(
					`UPDATE triggers SET pattern_id = ? WHERE pattern_id = ?`, winner.id, loser.id,
				); err != nil {
					return err
				}
				unionContext := winner.requiresContext || loser.requiresContext
				if _, err := tx.Exec(
					`UPDATE patterns SET requires_context = ? WHERE pattern_id = ?`, boolToInt(unionContext), winner.id,
				); err != nil {
					return err
				}
				if _, err := tx.Exec(`DELETE FROM patterns WHERE pattern_id = ?`, loser.id); err != nil {
					return err
				}
				removed[loser.id] = true
				result.Consolidated++

				if s.emitter != nil {
					_, _ = s.emitter.Emit(eventKindPatternConsolidated, map[string]string{"winner": winner.id, "loser": loser.id}, "")
				}
			}
		}

		return tx.Commit()
	})
	if err != nil {
		return ConsolidateResult{}, err
	}
	return result, nil
}
