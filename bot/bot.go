package bot

import (
	"log"
	"time"

	"guardnet/globalactions"
	"guardnet/model"
	"guardnet/reports"
	"guardnet/timer"
	"guardnet/utils/database"

	"github.com/bwmarrin/discordgo"
	"github.com/jmoiron/sqlx"
)

// sweepInterval is how often the durable timer table is scanned.
const sweepInterval = 30 * time.Second

type Bot struct {
	Session      *discordgo.Session
	DB           *sqlx.DB
	Config       *model.Config
	GuildConfigs *globalactions.GuildConfigStore
	Sanctions    *globalactions.SanctionCache
	Coordinator  *globalactions.Coordinator
	Pipeline     *reports.Pipeline
	Timers       *timer.Service
}

func New(cfg *model.Config) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, err
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers
	dg.StateEnabled = false

	db, err := database.Init(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	guildConfigs := globalactions.NewGuildConfigStore(db)
	sanctions := globalactions.NewSanctionCache(db)
	timers := timer.NewService(db, sweepInterval)
	executor := globalactions.NewExecutor(dg, db, guildConfigs, cfg.AppID)
	notifier := globalactions.NewNotifier(dg, guildConfigs)
	coordinator := globalactions.NewCoordinator(dg, db, cfg, guildConfigs, sanctions, executor, notifier, timers)
	pipeline := reports.NewPipeline(db, cfg, coordinator, timers)

	b := &Bot{
		Session:      dg,
		DB:           db,
		Config:       cfg,
		GuildConfigs: guildConfigs,
		Sanctions:    sanctions,
		Coordinator:  coordinator,
		Pipeline:     pipeline,
		Timers:       timers,
	}

	b.Timers.Register(timer.EventSanction, coordinator.HandleSanctionExpiry)
	b.Timers.Register(timer.EventPoll, pipeline.HandlePollTimer)
	b.Timers.Register(timer.EventDraftExpire, pipeline.HandleDraftExpiry)
	return b, nil
}

func (b *Bot) Close() {
	log.Println("Gracefully shutting down.")
	b.Timers.Stop()
	b.Session.Close()
	b.DB.Close()
}
