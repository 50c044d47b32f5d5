package database

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// TimerRecord is a persisted one-shot timer. Rows survive restarts and
// are deleted only after their event has been dispatched.
type TimerRecord struct {
	ID      int64  `db:"id"`
	FireAt  int64  `db:"fire_at"`
	Event   string `db:"event"`
	Payload string `db:"payload"` // JSON, event-specific
}

// InsertTimer schedules a timer and returns its id.
func InsertTimer(db *sqlx.DB, fireAt time.Time, event, payload string) (int64, error) {
	result, err := db.Exec(
		"INSERT INTO timers (fire_at, event, payload) VALUES (?, ?, ?)",
		fireAt.Unix(), event, payload,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert timer for %s: %w", event, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read timer id: %w", err)
	}
	return id, nil
}

// DueTimers returns all timers whose fire time is at or before now.
func DueTimers(db *sqlx.DB, now time.Time) ([]TimerRecord, error) {
	var records []TimerRecord
	err := db.Select(&records, "SELECT * FROM timers WHERE fire_at <= ? ORDER BY fire_at ASC", now.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to list due timers: %w", err)
	}
	return records, nil
}

// DeleteTimer removes a dispatched or cancelled timer.
func DeleteTimer(db *sqlx.DB, id int64) error {
	if _, err := db.Exec("DELETE FROM timers WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete timer %d: %w", id, err)
	}
	return nil
}

// DeleteTimersByPayload removes every timer for an event carrying
// exactly the given payload. Used to cancel a draft expiry when the
// draft is submitted or deleted early.
func DeleteTimersByPayload(db *sqlx.DB, event, payload string) error {
	if _, err := db.Exec(
		"DELETE FROM timers WHERE event = ? AND payload = ?",
		event, payload,
	); err != nil {
		return fmt.Errorf("failed to delete %s timers: %w", event, err)
	}
	return nil
}
