package database

import (
	"database/sql"
	"errors"
	"fmt"

	"guardnet/model"

	"github.com/jmoiron/sqlx"
)

// UpsertStrippedRoles saves a role snapshot, replacing any prior one
// for the same user.
func UpsertStrippedRoles(db *sqlx.DB, record *model.StrippedRoleSnapshot) error {
	query := `INSERT INTO stripped_roles (user_id, roles, captured_at)
	    VALUES (:user_id, :roles, :captured_at)
	    ON CONFLICT(user_id) DO UPDATE SET
	    roles = excluded.roles, captured_at = excluded.captured_at`
	if _, err := db.NamedExec(query, record); err != nil {
		return fmt.Errorf("failed to upsert stripped roles for %s: %w", record.UserID, err)
	}
	return nil
}

// GetStrippedRoles returns the snapshot for a user, or nil.
func GetStrippedRoles(db *sqlx.DB, userID string) (*model.StrippedRoleSnapshot, error) {
	var record model.StrippedRoleSnapshot
	err := db.Get(&record, "SELECT * FROM stripped_roles WHERE user_id = ?", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stripped roles for %s: %w", userID, err)
	}
	return &record, nil
}

// DeleteStrippedRoles discards a consumed snapshot.
func DeleteStrippedRoles(db *sqlx.DB, userID string) error {
	if _, err := db.Exec("DELETE FROM stripped_roles WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("failed to delete stripped roles for %s: %w", userID, err)
	}
	return nil
}
