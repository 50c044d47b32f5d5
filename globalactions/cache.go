package globalactions

import (
	"fmt"
	"log"
	"sync"
	"time"

	"guardnet/model"
	"guardnet/utils"
	"guardnet/utils/database"

	"github.com/jmoiron/sqlx"
)

// SanctionCache mirrors the sanctions table in memory, keyed by
// guild then record id. It is an optimization for member-rejoin
// reconciliation; losing it costs a rebuild, never correctness.
type SanctionCache struct {
	db *sqlx.DB

	mu      sync.RWMutex
	byGuild map[string]map[string]model.SanctionRecord
}

func NewSanctionCache(db *sqlx.DB) *SanctionCache {
	return &SanctionCache{
		db:      db,
		byGuild: make(map[string]map[string]model.SanctionRecord),
	}
}

// Load rebuilds the cache with a full scan of persisted sanctions.
func (c *SanctionCache) Load() error {
	records, err := database.ListSanctions(c.db)
	if err != nil {
		return fmt.Errorf("failed to load sanctions: %w", err)
	}
	byGuild := make(map[string]map[string]model.SanctionRecord)
	for _, record := range records {
		if byGuild[record.GuildID] == nil {
			byGuild[record.GuildID] = make(map[string]model.SanctionRecord)
		}
		byGuild[record.GuildID][record.ID] = record
	}
	c.mu.Lock()
	c.byGuild = byGuild
	c.mu.Unlock()
	log.Printf("[SanctionCache] Loaded %d sanction records", len(records))
	return nil
}

// RecordActive inserts a new active sanction, superseding any prior
// sanction of the same type for the target in that guild. Returns the
// new record's id.
func (c *SanctionCache) RecordActive(guildID, targetID string, action model.Action, category, subcategory string, caseID int64, createdAt time.Time, expiresAt *time.Time) (string, error) {
	record := model.SanctionRecord{
		ID:          utils.GenerateSnowflake(),
		GuildID:     guildID,
		TargetID:    targetID,
		Category:    category,
		Subcategory: subcategory,
		Action:      action,
		CaseID:      caseID,
		CreatedAt:   createdAt.Unix(),
	}
	if expiresAt != nil {
		record.ExpiresAt = expiresAt.Unix()
	}

	// Delete-then-insert keeps at most one active sanction per
	// (guild, target, action).
	if err := database.DeleteSanctionsByType(c.db, guildID, targetID, action); err != nil {
		return "", err
	}
	if err := database.InsertSanction(c.db, &record); err != nil {
		return "", err
	}

	c.mu.Lock()
	if c.byGuild[guildID] == nil {
		c.byGuild[guildID] = make(map[string]model.SanctionRecord)
	}
	for id, prior := range c.byGuild[guildID] {
		if prior.TargetID == targetID && prior.Action == action {
			delete(c.byGuild[guildID], id)
		}
	}
	c.byGuild[guildID][record.ID] = record
	c.mu.Unlock()
	return record.ID, nil
}

// Forget drops the sanction for a specific case. Absent records are a
// no-op so expiry and appeal stay idempotent.
func (c *SanctionCache) Forget(guildID, targetID string, action model.Action, caseID int64) error {
	if err := database.DeleteSanctionCase(c.db, guildID, targetID, action, caseID); err != nil {
		return err
	}
	c.mu.Lock()
	for id, record := range c.byGuild[guildID] {
		if record.TargetID == targetID && record.Action == action && record.CaseID == caseID {
			delete(c.byGuild[guildID], id)
		}
	}
	c.mu.Unlock()
	return nil
}

// ListActive returns the guild's unexpired sanctions. Expired entries
// found along the way are dropped from memory lazily; their rows are
// the expiry timer's to delete.
func (c *SanctionCache) ListActive(guildID string, now time.Time) []model.SanctionRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []model.SanctionRecord
	for id, record := range c.byGuild[guildID] {
		if record.Expired(now) {
			delete(c.byGuild[guildID], id)
			continue
		}
		out = append(out, record)
	}
	return out
}

// ActiveFor returns the guild's unexpired sanctions against one user.
func (c *SanctionCache) ActiveFor(guildID, targetID string, now time.Time) []model.SanctionRecord {
	var out []model.SanctionRecord
	for _, record := range c.ListActive(guildID, now) {
		if record.TargetID == targetID {
			out = append(out, record)
		}
	}
	return out
}
