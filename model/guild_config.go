package model

import "encoding/json"

// GuildConfig is one guild's opt-in state for the sanction network.
type GuildConfig struct {
	GuildID        string
	QuarantineRole string // empty = not configured
	OptIn          bool
	// Categories maps category -> subcategory -> subscribed.
	Categories         map[string]map[string]bool
	ModlogChannel      string // empty = modlog disabled
	ModlogWebhookID    string
	ModlogWebhookToken string
}

// Subscribed reports whether the guild follows the given category pair.
func (c *GuildConfig) Subscribed(category, subcategory string) bool {
	if c.Categories == nil {
		return false
	}
	return c.Categories[category][subcategory]
}

// Clone returns a deep copy safe to read during fan-out while config
// commands mutate the original.
func (c *GuildConfig) Clone() *GuildConfig {
	out := *c
	out.Categories = make(map[string]map[string]bool, len(c.Categories))
	for cat, subs := range c.Categories {
		m := make(map[string]bool, len(subs))
		for sub, v := range subs {
			m[sub] = v
		}
		out.Categories[cat] = m
	}
	return &out
}

// GuildConfigRecord is the persisted form of GuildConfig.
// The database table is named 'guild_configs'.
type GuildConfigRecord struct {
	GuildID            string `db:"guild_id"`
	QuarantineRole     string `db:"quarantine_role"`
	OptIn              bool   `db:"opt_in"`
	Categories         string `db:"categories"` // JSON category map
	ModlogChannel      string `db:"modlog_channel"`
	ModlogWebhookID    string `db:"modlog_webhook_id"`
	ModlogWebhookToken string `db:"modlog_webhook_token"`
}

// Decode converts the persisted record into its in-memory form.
func (r *GuildConfigRecord) Decode() (*GuildConfig, error) {
	cfg := &GuildConfig{
		GuildID:            r.GuildID,
		QuarantineRole:     r.QuarantineRole,
		OptIn:              r.OptIn,
		Categories:         make(map[string]map[string]bool),
		ModlogChannel:      r.ModlogChannel,
		ModlogWebhookID:    r.ModlogWebhookID,
		ModlogWebhookToken: r.ModlogWebhookToken,
	}
	if r.Categories != "" {
		if err := json.Unmarshal([]byte(r.Categories), &cfg.Categories); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Encode converts the in-memory config into its persisted form.
func (c *GuildConfig) Encode() (*GuildConfigRecord, error) {
	categories, err := json.Marshal(c.Categories)
	if err != nil {
		return nil, err
	}
	return &GuildConfigRecord{
		GuildID:            c.GuildID,
		QuarantineRole:     c.QuarantineRole,
		OptIn:              c.OptIn,
		Categories:         string(categories),
		ModlogChannel:      c.ModlogChannel,
		ModlogWebhookID:    c.ModlogWebhookID,
		ModlogWebhookToken: c.ModlogWebhookToken,
	}, nil
}
