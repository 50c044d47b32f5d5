package database

import (
	"database/sql"
	"errors"
	"fmt"

	"guardnet/model"

	"github.com/jmoiron/sqlx"
)

// InsertPolling stores a new polling row.
func InsertPolling(db *sqlx.DB, record *model.PollingRecord) error {
	query := `INSERT INTO pollings
	    (id, owner, category, subcategory, reported_users, associated_servers,
	     brief_description, long_description, attachments, is_anonymous,
	     type, stage, created_at, expires_at, stage1_vote, options)
	    VALUES (:id, :owner, :category, :subcategory, :reported_users, :associated_servers,
	     :brief_description, :long_description, :attachments, :is_anonymous,
	     :type, :stage, :created_at, :expires_at, :stage1_vote, :options)`
	if _, err := db.NamedExec(query, record); err != nil {
		return fmt.Errorf("failed to insert polling %d: %w", record.ID, err)
	}
	return nil
}

// GetPolling fetches a polling row by id, or nil when absent.
func GetPolling(db *sqlx.DB, id int64) (*model.PollingRecord, error) {
	var record model.PollingRecord
	err := db.Get(&record, "SELECT * FROM pollings WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get polling %d: %w", id, err)
	}
	return &record, nil
}

// UpdatePolling rewrites the mutable columns of a polling row.
func UpdatePolling(db *sqlx.DB, record *model.PollingRecord) error {
	query := `UPDATE pollings SET
	    type = :type, stage = :stage, expires_at = :expires_at,
	    stage1_vote = :stage1_vote, options = :options
	    WHERE id = :id`
	if _, err := db.NamedExec(query, record); err != nil {
		return fmt.Errorf("failed to update polling %d: %w", record.ID, err)
	}
	return nil
}

// DeletePolling removes a polling row.
func DeletePolling(db *sqlx.DB, id int64) error {
	if _, err := db.Exec("DELETE FROM pollings WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete polling %d: %w", id, err)
	}
	return nil
}

// ListQueuedPollings returns queued polls oldest first.
func ListQueuedPollings(db *sqlx.DB) ([]model.PollingRecord, error) {
	var records []model.PollingRecord
	err := db.Select(&records, "SELECT * FROM pollings WHERE type = ? ORDER BY created_at ASC", model.PollTypeQueued)
	if err != nil {
		return nil, fmt.Errorf("failed to list queued pollings: %w", err)
	}
	return records, nil
}

// FindOpenStage1ByOwner returns the owner's open verification-stage
// poll, or nil. Each reporter may only have one report in stage 1.
func FindOpenStage1ByOwner(db *sqlx.DB, owner string) (*model.PollingRecord, error) {
	var record model.PollingRecord
	err := db.Get(&record,
		"SELECT * FROM pollings WHERE owner = ? AND stage = 1 AND type != ? LIMIT 1",
		owner, model.PollTypeEnded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find stage-1 polling for %s: %w", owner, err)
	}
	return &record, nil
}

// FindActivePollingByTarget returns the first non-ended poll whose
// reported users include the given id, or nil. The reported_users
// column is a JSON array of quoted snowflakes, so a substring match on
// the quoted id is exact.
func FindActivePollingByTarget(db *sqlx.DB, userID string) (*model.PollingRecord, error) {
	var record model.PollingRecord
	pattern := `%"` + userID + `"%`
	err := db.Get(&record,
		"SELECT * FROM pollings WHERE type != ? AND reported_users LIKE ? LIMIT 1",
		model.PollTypeEnded, pattern)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find polling for target %s: %w", userID, err)
	}
	return &record, nil
}
