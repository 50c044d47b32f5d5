package globalactions

import (
	"testing"
	"time"

	"guardnet/internal/discordfake"
	"guardnet/model"
	"guardnet/timer"

	"guardnet/utils/database"

	"github.com/bwmarrin/discordgo"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

const botID = "bot"

type env struct {
	db       *sqlx.DB
	fake     *discordfake.Fake
	cfg      *model.Config
	configs  *GuildConfigStore
	cache    *SanctionCache
	executor *Executor
	notifier *Notifier
	timers   *timer.Service
	coord    *Coordinator
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := database.Init(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &model.Config{
		Categories:   map[string][]string{"spam": {"phishing"}},
		AdminUserIDs: []string{"admin1", "admin2"},
		ModUserIDs:   []string{"mod1", "mod2", "mod3"},
	}
	fake := discordfake.New()
	configs := NewGuildConfigStore(db)
	cache := NewSanctionCache(db)
	timers := timer.NewService(db, time.Hour)
	executor := NewExecutor(fake, db, configs, botID)
	notifier := NewNotifier(fake, configs)
	coord := NewCoordinator(fake, db, cfg, configs, cache, executor, notifier, timers)
	return &env{
		db:       db,
		fake:     fake,
		cfg:      cfg,
		configs:  configs,
		cache:    cache,
		executor: executor,
		notifier: notifier,
		timers:   timers,
		coord:    coord,
	}
}

// addGuild sets up a subscribed, opted-in guild whose bot member
// outranks everyone the tests act on.
func (e *env) addGuild(t *testing.T, guildID string, extraRoles ...*discordgo.Role) {
	t.Helper()
	roles := append([]*discordgo.Role{{ID: "botrole-" + guildID, Position: 10}}, extraRoles...)
	e.fake.AddGuild(guildID, "owner-"+guildID, roles...)
	e.fake.AddMember(guildID, botID, "botrole-"+guildID)
	require.NoError(t, e.configs.Register(guildID, e.cfg.Categories))
}
