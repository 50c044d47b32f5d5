package globalactions

import (
	"fmt"
	"log"
	"sync"

	"guardnet/model"
	"guardnet/utils/database"

	"github.com/jmoiron/sqlx"
)

// GuildConfigStore holds every guild's opt-in configuration behind a
// mutex, with write-through persistence. Reads hand out clones so
// fan-out code can hold a point-in-time copy while config commands
// mutate the original.
type GuildConfigStore struct {
	db *sqlx.DB

	mu      sync.RWMutex
	configs map[string]*model.GuildConfig
}

func NewGuildConfigStore(db *sqlx.DB) *GuildConfigStore {
	return &GuildConfigStore{
		db:      db,
		configs: make(map[string]*model.GuildConfig),
	}
}

// Load rebuilds the in-memory map from the database. Called once at
// startup before anything reads the store.
func (s *GuildConfigStore) Load() error {
	records, err := database.ListGuildConfigs(s.db)
	if err != nil {
		return fmt.Errorf("failed to load guild configs: %w", err)
	}
	configs := make(map[string]*model.GuildConfig, len(records))
	for i := range records {
		cfg, err := records[i].Decode()
		if err != nil {
			return fmt.Errorf("failed to decode config for guild %s: %w", records[i].GuildID, err)
		}
		configs[cfg.GuildID] = cfg
	}
	s.mu.Lock()
	s.configs = configs
	s.mu.Unlock()
	log.Printf("[GuildConfig] Loaded %d guild configs", len(configs))
	return nil
}

// Get returns a copy of the guild's config, or nil when unregistered.
func (s *GuildConfigStore) Get(guildID string) *model.GuildConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[guildID]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

// All returns copies of every registered guild's config.
func (s *GuildConfigStore) All() []*model.GuildConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.GuildConfig, 0, len(s.configs))
	for _, cfg := range s.configs {
		out = append(out, cfg.Clone())
	}
	return out
}

// Set stores the config in memory and persists it.
func (s *GuildConfigStore) Set(cfg *model.GuildConfig) error {
	record, err := cfg.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode config for guild %s: %w", cfg.GuildID, err)
	}
	if err := database.UpsertGuildConfig(s.db, record); err != nil {
		return err
	}
	s.mu.Lock()
	s.configs[cfg.GuildID] = cfg.Clone()
	s.mu.Unlock()
	return nil
}

// mutate applies fn to the live config under the lock, then persists.
// fn returning false skips the write.
func (s *GuildConfigStore) mutate(guildID string, fn func(*model.GuildConfig) bool) error {
	s.mu.Lock()
	cfg, ok := s.configs[guildID]
	if !ok || !fn(cfg) {
		s.mu.Unlock()
		return nil
	}
	snapshot := cfg.Clone()
	s.mu.Unlock()

	record, err := snapshot.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode config for guild %s: %w", guildID, err)
	}
	return database.UpsertGuildConfig(s.db, record)
}

// DisableOptIn flips opt_in off and persists immediately. This is the
// universal degrade path: every component calls it when it hits a
// permission or configuration fault in a guild, so no guild is ever
// left retry-looping.
func (s *GuildConfigStore) DisableOptIn(guildID, reason string) error {
	log.Printf("[GuildConfig] Disabling opt-in for guild %s: %s", guildID, reason)
	return s.mutate(guildID, func(cfg *model.GuildConfig) bool {
		if !cfg.OptIn {
			return false
		}
		cfg.OptIn = false
		return true
	})
}

// SetOptIn toggles the opt-in flag from the config surface.
func (s *GuildConfigStore) SetOptIn(guildID string, optIn bool) error {
	return s.mutate(guildID, func(cfg *model.GuildConfig) bool {
		if cfg.OptIn == optIn {
			return false
		}
		cfg.OptIn = optIn
		return true
	})
}

// ClearQuarantineRole drops a dangling quarantine role pointer.
func (s *GuildConfigStore) ClearQuarantineRole(guildID string) error {
	return s.mutate(guildID, func(cfg *model.GuildConfig) bool {
		if cfg.QuarantineRole == "" {
			return false
		}
		cfg.QuarantineRole = ""
		return true
	})
}

// SetQuarantineRole points the guild at a new quarantine role.
func (s *GuildConfigStore) SetQuarantineRole(guildID, roleID string) error {
	return s.mutate(guildID, func(cfg *model.GuildConfig) bool {
		cfg.QuarantineRole = roleID
		return true
	})
}

// SetModlog rewires the guild's modlog destination. Webhook id and
// token may be empty; the notifier creates one lazily.
func (s *GuildConfigStore) SetModlog(guildID, channelID, webhookID, webhookToken string) error {
	return s.mutate(guildID, func(cfg *model.GuildConfig) bool {
		cfg.ModlogChannel = channelID
		cfg.ModlogWebhookID = webhookID
		cfg.ModlogWebhookToken = webhookToken
		return true
	})
}

// SetSubscription follows or unfollows one category/subcategory pair.
func (s *GuildConfigStore) SetSubscription(guildID, category, subcategory string, follow bool) error {
	return s.mutate(guildID, func(cfg *model.GuildConfig) bool {
		if cfg.Categories == nil {
			cfg.Categories = make(map[string]map[string]bool)
		}
		if cfg.Categories[category] == nil {
			cfg.Categories[category] = make(map[string]bool)
		}
		if cfg.Categories[category][subcategory] == follow {
			return false
		}
		cfg.Categories[category][subcategory] = follow
		return true
	})
}

// Register creates a default config for a new guild. Existing configs
// are left untouched.
func (s *GuildConfigStore) Register(guildID string, categories map[string][]string) error {
	s.mu.RLock()
	_, exists := s.configs[guildID]
	s.mu.RUnlock()
	if exists {
		return nil
	}
	subs := make(map[string]map[string]bool, len(categories))
	for cat, names := range categories {
		m := make(map[string]bool, len(names))
		for _, sub := range names {
			m[sub] = true
		}
		subs[cat] = m
	}
	return s.Set(&model.GuildConfig{
		GuildID:    guildID,
		OptIn:      true,
		Categories: subs,
	})
}
