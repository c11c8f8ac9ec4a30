package knowledge

import (
	"database/sql"
	"time"
)

// orderFiles returns a and b in a stable order so (a,b) and (b,a) address the
// same composite-key row.
func orderFiles(a, b string) (string, string) {
	if a <= b {
		return a, b
	}
	return b, a
}

// RecordCoModification registers that fileA and fileB changed together,
// bumping modification_count and recomputing confidence for the pair.
// co_modification_rate is stored as 1.0 on every call; per-file
// modification counts are not tracked, so the rate is not derived from them.
func (s *Store) RecordCoModification(fileA, fileB string, relType RelationshipType) (FileRelationship, error) {
	a, b := orderFiles(fileA, fileB)
	now := time.Now()

	var result FileRelationship
	err := s.handle.Write(func(db *sql.DB) error {
		row := db.QueryRow(`SELECT modification_count, confidence FROM file_relationships WHERE file_a = ? AND file_b = ?`, a, b)
		var count int
		var confidence float64
		err := row.Scan(&count, &confidence)
		switch err {
		case sql.ErrNoRows:
			count = 1
			confidence = computeConfidence(1, 0)
			_, err := db.Exec(
				`INSERT INTO file_relationships (file_a, file_b, relationship_type, co_modification_rate, modification_count, confidence, last_seen_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				a, b, relType, 1.0, count, confidence, now.UnixNano(),
			)
			if err != nil {
				return err
			}
		case nil:
			count++
			confidence = computeConfidence(count, 0)
			_, err := db.Exec(
				`UPDATE file_relationships SET modification_count = ?, co_modification_rate = 1.0, confidence = ?, last_seen_at = ?, relationship_type = ?
				 WHERE file_a = ? AND file_b = ?`,
				count, confidence, now.UnixNano(), relType, a, b,
			)
			if err != nil {
				return err
			}
		default:
			return err
		}
		result = FileRelationship{
			FileA: a, FileB: b, RelationshipType: relType,
			CoModificationRate: 1.0, ModificationCount: count, Confidence: confidence, LastSeenAt: now,
		}
		return nil
	})
	if err != nil {
		return FileRelationship{}, err
	}
	return result, nil
}

// RelatedFiles returns every relationship recorded for file, in either
// column position.
func (s *Store) RelatedFiles(file string) ([]FileRelationship, error) {
	var out []FileRelationship
	err := s.handle.Read(func(db *sql.DB) error {
		rows, err := db.Query(
			`SELECT file_a, file_b, relationship_type, co_modification_rate, modification_count, confidence, last_seen_at
			 FROM file_relationships WHERE file_a = ? OR file_b = ?`, file, file,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var fr FileRelationship
			var lastSeen int64
			if err := rows.Scan(&fr.FileA, &fr.FileB, &fr.RelationshipType, &fr.CoModificationRate,
				&fr.ModificationCount, &fr.Confidence, &lastSeen); err != nil {
				return err
			}
			fr.LastSeenAt = time.Unix(0, lastSeen)
			out = append(out, fr)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
