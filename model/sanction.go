package model

import "time"

// SanctionRecord represents a single active sanction in the database.
// The database table is named 'sanctions'.
type SanctionRecord struct {
	ID          string `db:"id"` // time-ordered snowflake
	GuildID     string `db:"guild_id"`
	TargetID    string `db:"target_id"`
	Category    string `db:"category"`
	Subcategory string `db:"subcategory"`
	Action      Action `db:"action"`
	CaseID      int64  `db:"case_id"`
	CreatedAt   int64  `db:"created_at"` // unix seconds
	ExpiresAt   int64  `db:"expires_at"` // unix seconds, 0 = never
}

// Expired reports whether the record's expiry has passed at the given time.
func (r *SanctionRecord) Expired(now time.Time) bool {
	return r.ExpiresAt != 0 && r.ExpiresAt <= now.Unix()
}

// Expiry returns the expiry as a time, or nil for permanent records.
func (r *SanctionRecord) Expiry() *time.Time {
	if r.ExpiresAt == 0 {
		return nil
	}
	t := time.Unix(r.ExpiresAt, 0).UTC()
	return &t
}

// StrippedRoleSnapshot holds a member's role set captured before a
// destructive action so it can be restored later.
//
// Snapshots are keyed by user process-wide, not by (guild, user): a user
// sanctioned in two guilds at once has the second strip overwrite the
// first guild's restore data. Kept as-is for compatibility with existing
// rows; see DESIGN.md.
type StrippedRoleSnapshot struct {
	UserID     string `db:"user_id"`
	Roles      string `db:"roles"` // JSON array of role ids
	CapturedAt int64  `db:"captured_at"`
}

// SanctionStats aggregates the per-guild outcome of one fan-out.
type SanctionStats struct {
	Success  int
	Failure  int
	Total    int
	GuildIDs []string // guilds where the action succeeded, kept for appeals
}
