package store

import (
	"fmt"
	"time"
)

// UpsertCounts persists the latest pending-count snapshot.
func (db *DB) UpsertCounts(counts map[string]int) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for source, count := range counts {
		if _, err := tx.Exec(`
			INSERT INTO pending_counts (source, count, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(source) DO UPDATE SET count = excluded.count, updated_at = excluded.updated_at`,
			source, count, now); err != nil {
			return fmt.Errorf("upsert count %s: %w", source, err)
		}
	}
	return tx.Commit()
}

// GetCounts returns the last persisted pending-count snapshot.
func (db *DB) GetCounts() (map[string]int, error) {
	rows, err := db.Query(`SELECT source, count FROM pending_counts`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var source string
		var count int
		if err := rows.Scan(&source, &count); err != nil {
			return nil, err
		}
		counts[source] = count
	}
	return counts, rows.Err()
}
