package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// NextID atomically increments and returns the named counter. Report
// and draft ids come from here so they stay small and human-readable.
func NextID(db *sqlx.DB, name string) (int64, error) {
	tx, err := db.Beginx()
	if err != nil {
		return 0, fmt.Errorf("failed to begin counter tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"INSERT INTO counters (name, value) VALUES (?, 0) ON CONFLICT(name) DO NOTHING", name,
	); err != nil {
		return 0, fmt.Errorf("failed to seed counter %s: %w", name, err)
	}
	if _, err := tx.Exec("UPDATE counters SET value = value + 1 WHERE name = ?", name); err != nil {
		return 0, fmt.Errorf("failed to bump counter %s: %w", name, err)
	}
	var value int64
	if err := tx.Get(&value, "SELECT value FROM counters WHERE name = ?", name); err != nil {
		return 0, fmt.Errorf("failed to read counter %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit counter %s: %w", name, err)
	}
	return value, nil
}
