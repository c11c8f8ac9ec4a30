package knowledge

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// RecordCorrection registers an occurrence of a recurring mistake. If a
// correction with the same type/incorrect/correct triple already exists its
// frequency is bumped and confidence recomputed; otherwise a new row is
// created with frequency 1.
func (s *Store) RecordCorrection(correctionType, incorrect, correct, prevention string) (Correction, error) {
	now := time.Now()
	var result Correction

	err := s.handle.Write(func(db *sql.DB) error {
		row := db.QueryRow(
			`SELECT correction_id, frequency FROM corrections WHERE type = ? AND incorrect_value = ? AND correct_value = ?`,
			correctionType, incorrect, correct,
		)
		var id string
		var frequency int
		err := row.Scan(&id, &frequency)
		switch err {
		case sql.ErrNoRows:
			id = uuid.NewString()
			frequency = 1
			confidence := computeConfidence(frequency, 0)
			_, err := db.Exec(
				`INSERT INTO corrections (correction_id, type, incorrect_value, correct_value, frequency, confidence, prevention_strategy, last_seen_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				id, correctionType, incorrect, correct, frequency, confidence, prevention, now.UnixNano(),
			)
			if err != nil {
				return err
			}
			result = Correction{
				CorrectionID: id, Type: correctionType, IncorrectValue: incorrect, CorrectValue: correct,
				Frequency: frequency, Confidence: confidence, PreventionStrategy: prevention, LastSeenAt: now,
			}
		case nil:
			frequency++
			confidence := computeConfidence(frequency, 0)
			_, err := db.Exec(
				`UPDATE corrections SET frequency = ?, confidence = ?, prevention_strategy = ?, last_seen_at = ? WHERE correction_id = ?`,
				frequency, confidence, prevention, now.UnixNano(), id,
			)
			if err != nil {
				return err
			}
			result = Correction{
				CorrectionID: id, Type: correctionType, IncorrectValue: incorrect, CorrectValue: correct,
				Frequency: frequency, Confidence: confidence, PreventionStrategy: prevention, LastSeenAt: now,
			}
		default:
			return err
		}
		return nil
	})
	if err != nil {
		return Correction{}, err
	}
	return result, nil
}

// CorrectionsByType returns every recorded correction of the given type,
// most frequent first.
func (s *Store) CorrectionsByType(correctionType string) ([]Correction, error) {
	var out []Correction
	err := s.handle.Read(func(db *sql.DB) error {
		rows, err := db.Query(
			`SELECT correction_id, type, incorrect_value, correct_value, frequency, confidence, prevention_strategy, last_seen_at
			 FROM corrections WHERE type = ? ORDER BY frequency DESC`, correctionType,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var c Correction
			var lastSeen int64
			if err := rows.Scan(&c.CorrectionID, &c.Type, &c.IncorrectValue, &c.CorrectValue,
				&c.Frequency, &c.Confidence, &c.PreventionStrategy, &lastSeen); err != nil {
				return err
			}
			c.LastSeenAt = time.Unix(0, lastSeen)
			out = append(out, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
