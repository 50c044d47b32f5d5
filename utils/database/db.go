package database

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Init initializes the database and ensures all necessary tables are created.
func Init(dbPath string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if strings.Contains(dbPath, ":memory:") {
		// Each pooled connection would otherwise get its own empty
		// in-memory database.
		db.SetMaxOpenConns(1)
	}

	schemas := []string{
		`CREATE TABLE IF NOT EXISTS guild_configs (
		    guild_id TEXT PRIMARY KEY,
		    quarantine_role TEXT DEFAULT '',
		    opt_in INTEGER NOT NULL DEFAULT 1,
		    categories TEXT DEFAULT '{}',
		    modlog_channel TEXT DEFAULT '',
		    modlog_webhook_id TEXT DEFAULT '',
		    modlog_webhook_token TEXT DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS sanctions (
		    id TEXT PRIMARY KEY,
		    guild_id TEXT NOT NULL,
		    target_id TEXT NOT NULL,
		    category TEXT NOT NULL,
		    subcategory TEXT NOT NULL,
		    action INTEGER NOT NULL,
		    case_id INTEGER NOT NULL,
		    created_at INTEGER NOT NULL,
		    expires_at INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sanctions_guild ON sanctions (guild_id);`,
		`CREATE TABLE IF NOT EXISTS drafts (
		    id INTEGER PRIMARY KEY,
		    owner TEXT NOT NULL,
		    category TEXT NOT NULL,
		    subcategory TEXT NOT NULL,
		    reported_users TEXT DEFAULT '[]',
		    associated_servers TEXT DEFAULT '[]',
		    brief_description TEXT DEFAULT '',
		    long_description TEXT DEFAULT '',
		    attachments TEXT DEFAULT '[]',
		    is_anonymous INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS pollings (
		    id INTEGER PRIMARY KEY,
		    owner TEXT NOT NULL,
		    category TEXT NOT NULL,
		    subcategory TEXT NOT NULL,
		    reported_users TEXT DEFAULT '[]',
		    associated_servers TEXT DEFAULT '[]',
		    brief_description TEXT DEFAULT '',
		    long_description TEXT DEFAULT '',
		    attachments TEXT DEFAULT '[]',
		    is_anonymous INTEGER NOT NULL DEFAULT 0,
		    type TEXT NOT NULL DEFAULT 'polled',
		    stage INTEGER NOT NULL DEFAULT 1,
		    created_at INTEGER NOT NULL,
		    expires_at INTEGER NOT NULL,
		    stage1_vote TEXT DEFAULT '{}',
		    options TEXT DEFAULT '[]'
		);`,
		`CREATE TABLE IF NOT EXISTS reports (
		    id INTEGER PRIMARY KEY,
		    reported_users TEXT DEFAULT '[]',
		    associated_servers TEXT DEFAULT '[]',
		    category TEXT NOT NULL,
		    subcategory TEXT NOT NULL,
		    attachments TEXT DEFAULT '[]',
		    addressing_type TEXT DEFAULT '',
		    reported_by TEXT NOT NULL,
		    is_anonymous INTEGER NOT NULL DEFAULT 0,
		    sanctions TEXT DEFAULT '[]',
		    polling TEXT DEFAULT '{}',
		    created_at INTEGER NOT NULL,
		    pushed_at INTEGER NOT NULL,
		    stats TEXT DEFAULT '{}'
		);`,
		`CREATE TABLE IF NOT EXISTS stripped_roles (
		    user_id TEXT PRIMARY KEY,
		    roles TEXT DEFAULT '[]',
		    captured_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS counters (
		    name TEXT PRIMARY KEY,
		    value INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS timers (
		    id INTEGER PRIMARY KEY AUTOINCREMENT,
		    fire_at INTEGER NOT NULL,
		    event TEXT NOT NULL,
		    payload TEXT DEFAULT '{}'
		);`,
		`CREATE INDEX IF NOT EXISTS idx_timers_fire_at ON timers (fire_at);`,
	}

	for _, schema := range schemas {
		if _, err := db.Exec(schema); err != nil {
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
	}

	return db, nil
}
