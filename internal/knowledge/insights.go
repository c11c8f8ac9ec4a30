package knowledge

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// RecordValidationInsight registers an occurrence of a class of issue found
// during validation. Matching on issue+symptom bumps frequency and
// recomputes confidence; otherwise a fresh insight is created.
func (s *Store) RecordValidationInsight(issue, symptom, cause, detection, prevention string, impact Impact, timeCostMinutes int) (ValidationInsight, error) {
	now := time.Now()
	var result ValidationInsight

	err := s.handle.Write(func(db *sql.DB) error {
		row := db.QueryRow(`SELECT insight_id, frequency FROM validation_insights WHERE issue = ? AND symptom = ?`, issue, symptom)
		var id string
		var frequency int
		err := row.Scan(&id, &frequency)
		switch err {
		case sql.ErrNoRows:
			id = uuid.NewString()
			frequency = 1
			confidence := computeConfidence(frequency, 0)
			_, err := db.Exec(
				`INSERT INTO validation_insights (insight_id, issue, symptom, cause, detection, prevention, impact, frequency, confidence, time_cost_minutes, last_seen_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				id, issue, symptom, cause, detection, prevention, impact, frequency, confidence, timeCostMinutes, now.UnixNano(),
			)
			if err != nil {
				return err
			}
			result = ValidationInsight{
				InsightID: id, Issue: issue, Symptom: symptom, Cause: cause, Detection: detection,
				Prevention: prevention, Impact: impact, Frequency: frequency, Confidence: confidence,
				TimeCostMinutes: timeCostMinutes, LastSeenAt: now,
			}
		case nil:
			frequency++
			confidence := computeConfidence(frequency, 0)
			_, err := db.Exec(
				`UPDATE validation_insights SET cause = ?, detection = ?, prevention = ?, impact = ?, frequency = ?, confidence = ?, time_cost_minutes = ?, last_seen_at = ?
				 WHERE insight_id = ?`,
				cause, detection, prevention, impact, frequency, confidence, timeCostMinutes, now.UnixNano(), id,
			)
			if err != nil {
				return err
			}
			result = ValidationInsight{
				InsightID: id, Issue: issue, Symptom: symptom, Cause: cause, Detection: detection,
				Prevention: prevention, Impact: impact, Frequency: frequency, Confidence: confidence,
				TimeCostMinutes: timeCostMinutes, LastSeenAt: now,
			}
		default:
			return err
		}
		return nil
	})
	if err != nil {
		return ValidationInsight{}, err
	}
	return result, nil
}

// impactRankSQL maps the impact column onto its severity rank inside a
// query, matching impactRank below.
const impactRankSQL = `CASE impact WHEN 'critical' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 WHEN 'low' THEN 1 ELSE 0 END`

// impactRank orders Impact values for at-or-above comparisons; higher is
// more severe.
func impactRank(i Impact) int {
	switch i {
	case ImpactCritical:
		return 4
	case ImpactHigh:
		return 3
	case ImpactMedium:
		return 2
	case ImpactLow:
		return 1
	default:
		return 0
	}
}

// InsightsByImpact returns every validation insight at exactly the given
// impact level, most frequent first.
func (s *Store) InsightsByImpact(impact Impact) ([]ValidationInsight, error) {
	return s.queryInsights(
		`SELECT insight_id, issue, symptom, cause, detection, prevention, impact, frequency, confidence, time_cost_minutes, last_seen_at
		 FROM validation_insights WHERE impact = ? ORDER BY frequency DESC`, impact)
}

// InsightsAtOrAbove returns every validation insight whose impact is at
// least min, prioritising higher impact then recency.
func (s *Store) InsightsAtOrAbove(min Impact) ([]ValidationInsight, error) {
	return s.queryInsights(
		`SELECT insight_id, issue, symptom, cause, detection, prevention, impact, frequency, confidence, time_cost_minutes, last_seen_at
		 FROM validation_insights WHERE `+impactRankSQL+` >= ?
		 ORDER BY `+impactRankSQL+` DESC, last_seen_at DESC`, impactRank(min))
}

func (s *Store) queryInsights(query string, args ...any) ([]ValidationInsight, error) {
	var out []ValidationInsight
	err := s.handle.Read(func(db *sql.DB) error {
		rows, err := db.Query(query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var v ValidationInsight
			var lastSeen int64
			if err := rows.Scan(&v.InsightID, &v.Issue, &v.Symptom, &v.Cause, &v.Detection, &v.Prevention,
				&v.Impact, &v.Frequency, &v.Confidence, &v.TimeCostMinutes, &lastSeen); err != nil {
				return err
			}
			v.LastSeenAt = time.Unix(0, lastSeen)
			out = append(out, v)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
