package database

import (
	"database/sql"
	"errors"
	"fmt"

	"guardnet/model"

	"github.com/jmoiron/sqlx"
)

// GetGuildConfig fetches one guild's config row, or nil when the guild
// has never registered.
func GetGuildConfig(db *sqlx.DB, guildID string) (*model.GuildConfigRecord, error) {
	var record model.GuildConfigRecord
	err := db.Get(&record, "SELECT * FROM guild_configs WHERE guild_id = ?", guildID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get guild config %s: %w", guildID, err)
	}
	return &record, nil
}

// ListGuildConfigs returns every registered guild's config row.
func ListGuildConfigs(db *sqlx.DB) ([]model.GuildConfigRecord, error) {
	var records []model.GuildConfigRecord
	if err := db.Select(&records, "SELECT * FROM guild_configs"); err != nil {
		return nil, fmt.Errorf("failed to list guild configs: %w", err)
	}
	return records, nil
}

// UpsertGuildConfig writes the full config row for a guild.
func UpsertGuildConfig(db *sqlx.DB, record *model.GuildConfigRecord) error {
	query := `INSERT INTO guild_configs
	    (guild_id, quarantine_role, opt_in, categories, modlog_channel, modlog_webhook_id, modlog_webhook_token)
	    VALUES (:guild_id, :quarantine_role, :opt_in, :categories, :modlog_channel, :modlog_webhook_id, :modlog_webhook_token)
	    ON CONFLICT(guild_id) DO UPDATE SET
	        quarantine_role = excluded.quarantine_role,
	        opt_in = excluded.opt_in,
	        categories = excluded.categories,
	        modlog_channel = excluded.modlog_channel,
	        modlog_webhook_id = excluded.modlog_webhook_id,
	        modlog_webhook_token = excluded.modlog_webhook_token`
	if _, err := db.NamedExec(query, record); err != nil {
		return fmt.Errorf("failed to upsert guild config %s: %w", record.GuildID, err)
	}
	return nil
}

// DeleteGuildConfig removes a guild's row on unregistration.
func DeleteGuildConfig(db *sqlx.DB, guildID string) error {
	if _, err := db.Exec("DELETE FROM guild_configs WHERE guild_id = ?", guildID); err != nil {
		return fmt.Errorf("failed to delete guild config %s: %w", guildID, err)
	}
	return nil
}
