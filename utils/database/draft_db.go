package database

import (
	"database/sql"
	"errors"
	"fmt"

	"guardnet/model"

	"github.com/jmoiron/sqlx"
)

// InsertDraft stores a new report draft.
func InsertDraft(db *sqlx.DB, record *model.DraftRecord) error {
	query := `INSERT INTO drafts
	    (id, owner, category, subcategory, reported_users, associated_servers,
	     brief_description, long_description, attachments, is_anonymous)
	    VALUES (:id, :owner, :category, :subcategory, :reported_users, :associated_servers,
	     :brief_description, :long_description, :attachments, :is_anonymous)`
	if _, err := db.NamedExec(query, record); err != nil {
		return fmt.Errorf("failed to insert draft %d: %w", record.ID, err)
	}
	return nil
}

// GetDraft fetches a draft owned by the given user, or nil.
func GetDraft(db *sqlx.DB, id int64, owner string) (*model.DraftRecord, error) {
	var record model.DraftRecord
	err := db.Get(&record, "SELECT * FROM drafts WHERE id = ? AND owner = ?", id, owner)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draft %d: %w", id, err)
	}
	return &record, nil
}

// ListDraftsByOwner returns all drafts owned by a user.
func ListDraftsByOwner(db *sqlx.DB, owner string) ([]model.DraftRecord, error) {
	var records []model.DraftRecord
	err := db.Select(&records, "SELECT * FROM drafts WHERE owner = ?", owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts for %s: %w", owner, err)
	}
	return records, nil
}

// UpdateDraft rewrites an existing draft row.
func UpdateDraft(db *sqlx.DB, record *model.DraftRecord) error {
	query := `UPDATE drafts SET
	    category = :category, subcategory = :subcategory,
	    reported_users = :reported_users, associated_servers = :associated_servers,
	    brief_description = :brief_description, long_description = :long_description,
	    attachments = :attachments, is_anonymous = :is_anonymous
	    WHERE id = :id AND owner = :owner`
	if _, err := db.NamedExec(query, record); err != nil {
		return fmt.Errorf("failed to update draft %d: %w", record.ID, err)
	}
	return nil
}

// DeleteDraft removes a draft and reports whether a row existed. Owner
// is enforced when non-empty.
func DeleteDraft(db *sqlx.DB, id int64, owner string) (bool, error) {
	var result sql.Result
	var err error
	if owner != "" {
		result, err = db.Exec("DELETE FROM drafts WHERE id = ? AND owner = ?", id, owner)
	} else {
		result, err = db.Exec("DELETE FROM drafts WHERE id = ?", id)
	}
	if err != nil {
		return false, fmt.Errorf("failed to delete draft %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected for draft %d: %w", id, err)
	}
	return affected > 0, nil
}
