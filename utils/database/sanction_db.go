package database

import (
	"fmt"

	"guardnet/model"

	"github.com/jmoiron/sqlx"
)

// InsertSanction stores one applied sanction record.
func InsertSanction(db *sqlx.DB, record *model.SanctionRecord) error {
	query := `INSERT INTO sanctions
	    (id, guild_id, target_id, category, subcategory, action, case_id, created_at, expires_at)
	    VALUES (:id, :guild_id, :target_id, :category, :subcategory, :action, :case_id, :created_at, :expires_at)`
	if _, err := db.NamedExec(query, record); err != nil {
		return fmt.Errorf("failed to insert sanction for %s in %s: %w", record.TargetID, record.GuildID, err)
	}
	return nil
}

// DeleteSanctionsByType removes every sanction of one action type for a
// target in a guild. Used before inserting a replacement so at most one
// active record of a given type exists per (guild, target).
func DeleteSanctionsByType(db *sqlx.DB, guildID, targetID string, action model.Action) error {
	query := "DELETE FROM sanctions WHERE guild_id = ? AND target_id = ? AND action = ?"
	if _, err := db.Exec(query, guildID, targetID, action); err != nil {
		return fmt.Errorf("failed to delete sanctions for %s in %s: %w", targetID, guildID, err)
	}
	return nil
}

// DeleteSanctionCase removes the record for one specific case.
func DeleteSanctionCase(db *sqlx.DB, guildID, targetID string, action model.Action, caseID int64) error {
	query := "DELETE FROM sanctions WHERE guild_id = ? AND target_id = ? AND action = ? AND case_id = ?"
	if _, err := db.Exec(query, guildID, targetID, action, caseID); err != nil {
		return fmt.Errorf("failed to delete sanction case %d for %s in %s: %w", caseID, targetID, guildID, err)
	}
	return nil
}

// ListSanctions returns every persisted sanction, used to rebuild the
// in-memory cache at startup.
func ListSanctions(db *sqlx.DB) ([]model.SanctionRecord, error) {
	var records []model.SanctionRecord
	if err := db.Select(&records, "SELECT * FROM sanctions"); err != nil {
		return nil, fmt.Errorf("failed to list sanctions: %w", err)
	}
	return records, nil
}

// ListGuildSanctions returns the persisted sanctions for one guild.
func ListGuildSanctions(db *sqlx.DB, guildID string) ([]model.SanctionRecord, error) {
	var records []model.SanctionRecord
	err := db.Select(&records, "SELECT * FROM sanctions WHERE guild_id = ?", guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sanctions for guild %s: %w", guildID, err)
	}
	return records, nil
}
