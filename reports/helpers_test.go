package reports

import (
	"strings"
	"testing"
	"time"

	"guardnet/globalactions"
	"guardnet/internal/discordfake"
	"guardnet/model"
	"guardnet/timer"
	"guardnet/utils/database"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

var validBrief = strings.Repeat("this report needs fifty characters at least ", 2)

type env struct {
	db       *sqlx.DB
	fake     *discordfake.Fake
	cfg      *model.Config
	timers   *timer.Service
	pipeline *Pipeline
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := database.Init(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &model.Config{
		Categories:   map[string][]string{"spam": {"phishing", "scam"}},
		AdminUserIDs: []string{"admin1", "admin2"},
		ModUserIDs:   []string{"mod1", "mod2", "mod3"},
		Polling: model.PollingConfig{
			VerifyThreshold: 3,
			OptionThreshold: 5,
			Stage1Weights:   model.VoteWeights{Admin: 1.5, Moderator: 1.0},
			Stage2Weights:   model.VoteWeights{Admin: 2.0, Moderator: 1.0},
		},
	}
	fake := discordfake.New()
	configs := globalactions.NewGuildConfigStore(db)
	cache := globalactions.NewSanctionCache(db)
	timers := timer.NewService(db, time.Hour)
	executor := globalactions.NewExecutor(fake, db, configs, "bot")
	notifier := globalactions.NewNotifier(fake, configs)
	coord := globalactions.NewCoordinator(fake, db, cfg, configs, cache, executor, notifier, timers)
	pipeline := NewPipeline(db, cfg, coord, timers)
	return &env{
		db:       db,
		fake:     fake,
		cfg:      cfg,
		timers:   timers,
		pipeline: pipeline,
	}
}

// submitReport walks a fresh draft through submission.
func (e *env) submitReport(t *testing.T, owner, target string) *model.Polling {
	t.Helper()
	draft, err := e.pipeline.CreateDraft(owner, "spam", "phishing", []string{target}, nil, validBrief, "", false)
	require.NoError(t, err)
	poll, err := e.pipeline.Submit(owner, draft.ID)
	require.NoError(t, err)
	return poll
}

// advanceToStage2 pushes a stage-1 poll past the verify threshold.
func (e *env) advanceToStage2(t *testing.T, pollID int64) {
	t.Helper()
	for _, voter := range []string{"mod1", "mod2"} {
		outcome, err := e.pipeline.VoteVerify(pollID, voter, true)
		require.NoError(t, err)
		require.Equal(t, VerifyPending, outcome)
	}
	outcome, err := e.pipeline.VoteVerify(pollID, "mod3", true)
	require.NoError(t, err)
	require.Equal(t, VerifyAdvanced, outcome)
}

func (e *env) timerCount(t *testing.T, event string) int {
	t.Helper()
	var count int
	require.NoError(t, e.db.Get(&count, "SELECT COUNT(*) FROM timers WHERE event = ?", event))
	return count
}
