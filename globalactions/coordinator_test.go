package globalactions

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"guardnet/internal/discordfake"
	"guardnet/model"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobalBanFanOutStats(t *testing.T) {
	e := newEnv(t)
	e.fake.AddUser("tgt")
	for i := 1; i <= 10; i++ {
		guildID := fmt.Sprintf("g%d", i)
		e.addGuild(t, guildID)
		e.fake.AddMember(guildID, "tgt")
	}
	e.fake.Deny("g4", discordfake.OpBan)

	stats := e.coord.Sanction(SanctionRequest{
		Scope:       model.ScopeGlobal,
		Category:    "spam",
		Subcategory: "phishing",
		Action:      model.ActionBan,
		TargetID:    "tgt",
		CaseID:      1,
		Reason:      "phishing links",
	})

	assert.Equal(t, 9, stats.Success)
	assert.Equal(t, 1, stats.Failure)
	assert.Equal(t, 10, stats.Total)
	assert.Len(t, stats.GuildIDs, 9)
	assert.NotContains(t, stats.GuildIDs, "g4")

	// The failing guild is degraded, not retried; the rest are untouched.
	assert.False(t, e.configs.Get("g4").OptIn)
	assert.True(t, e.configs.Get("g1").OptIn)

	ban, err := e.fake.GuildBan("g1", "tgt")
	require.NoError(t, err)
	assert.Equal(t, BanReason(1, nil, time.Time{}), ban.Reason)

	var count int
	require.NoError(t, e.db.Get(&count, "SELECT COUNT(*) FROM sanctions"))
	assert.Equal(t, 9, count)

	// The target hears about it exactly once, after the fan-out.
	assert.Len(t, e.fake.ChannelMessages["dm-tgt"], 1)
}

func TestSanctionUnresolvableTarget(t *testing.T) {
	e := newEnv(t)
	e.addGuild(t, "g1")

	stats := e.coord.Sanction(SanctionRequest{
		Scope:    model.ScopeGlobal,
		Action:   model.ActionBan,
		TargetID: "ghost",
		CaseID:   2,
	})
	assert.Zero(t, stats.Total)
}

func TestMutualScopeProbesMembership(t *testing.T) {
	e := newEnv(t)
	e.fake.AddUser("tgt")
	e.addGuild(t, "g1")
	e.addGuild(t, "g2")
	e.fake.AddMember("g1", "tgt")
	// tgt is not a member of g2.

	stats := e.coord.Sanction(SanctionRequest{
		Scope:       model.ScopeMutual,
		Category:    "spam",
		Subcategory: "phishing",
		Action:      model.ActionKick,
		TargetID:    "tgt",
		CaseID:      3,
	})
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, []string{"g1"}, stats.GuildIDs)
}

func TestAtMostOneActivePerType(t *testing.T) {
	e := newEnv(t)
	first, err := e.cache.RecordActive("g1", "tgt", model.ActionBan, "spam", "phishing", 1, time.Now(), nil)
	require.NoError(t, err)
	second, err := e.cache.RecordActive("g1", "tgt", model.ActionBan, "spam", "phishing", 2, time.Now(), nil)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	active := e.cache.ListActive("g1", time.Now())
	require.Len(t, active, 1)
	assert.Equal(t, int64(2), active[0].CaseID)

	var count int
	require.NoError(t, e.db.Get(&count, "SELECT COUNT(*) FROM sanctions"))
	assert.Equal(t, 1, count)
}

func expiryPayload(t *testing.T, guildID, targetID string, action model.Action, caseID int64) string {
	t.Helper()
	payload, err := json.Marshal(sanctionPayload{
		GuildID:     guildID,
		TargetID:    targetID,
		Action:      action.String(),
		CaseID:      caseID,
		Category:    "spam",
		Subcategory: "phishing",
	})
	require.NoError(t, err)
	return string(payload)
}

func TestBanExpiryIsIdempotent(t *testing.T) {
	e := newEnv(t)
	e.fake.AddUser("tgt")
	e.addGuild(t, "g1")
	e.fake.AddMember("g1", "tgt")

	expires := time.Now().Add(time.Hour)
	stats := e.coord.Sanction(SanctionRequest{
		Scope:       model.ScopeGlobal,
		Category:    "spam",
		Subcategory: "phishing",
		Action:      model.ActionBan,
		TargetID:    "tgt",
		CaseID:      7,
		Expires:     &expires,
	})
	require.Equal(t, 1, stats.Success)

	payload := expiryPayload(t, "g1", "tgt", model.ActionBan, 7)
	e.coord.HandleSanctionExpiry(payload)

	_, err := e.fake.GuildBan("g1", "tgt")
	assert.Error(t, err, "ban should be lifted")
	var count int
	require.NoError(t, e.db.Get(&count, "SELECT COUNT(*) FROM sanctions"))
	assert.Zero(t, count)

	// Second delivery of the same event: record already gone, no error.
	e.coord.HandleSanctionExpiry(payload)
	require.NoError(t, e.db.Get(&count, "SELECT COUNT(*) FROM sanctions"))
	assert.Zero(t, count)
}

func TestBanExpiryLeavesUnrelatedBanAlone(t *testing.T) {
	e := newEnv(t)
	e.fake.AddUser("tgt")
	e.addGuild(t, "g1")
	require.NoError(t, e.fake.GuildBanCreateWithReason("g1", "tgt", "local ban by guild staff", 0))

	e.coord.HandleSanctionExpiry(expiryPayload(t, "g1", "tgt", model.ActionBan, 9))

	ban, err := e.fake.GuildBan("g1", "tgt")
	require.NoError(t, err)
	assert.Equal(t, "local ban by guild staff", ban.Reason)
}

func TestAppealDeletesRecordEvenOnFailure(t *testing.T) {
	e := newEnv(t)
	e.fake.AddUser("tgt")
	e.addGuild(t, "g1")
	e.fake.AddMember("g1", "tgt")

	stats := e.coord.Sanction(SanctionRequest{
		Scope:       model.ScopeGlobal,
		Category:    "spam",
		Subcategory: "phishing",
		Action:      model.ActionBan,
		TargetID:    "tgt",
		CaseID:      11,
	})
	require.Equal(t, 1, stats.Success)
	e.fake.Deny("g1", discordfake.OpUnban)

	appealStats := e.coord.Appeal(AppealRequest{
		TargetID:    "tgt",
		CaseID:      11,
		Action:      model.ActionBan,
		Category:    "spam",
		Subcategory: "phishing",
		GuildIDs:    stats.GuildIDs,
	})
	assert.Equal(t, 1, appealStats.Failure)

	// The record is gone regardless: no ghost sanctions after appeal.
	var count int
	require.NoError(t, e.db.Get(&count, "SELECT COUNT(*) FROM sanctions"))
	assert.Zero(t, count)
}

func TestRejoinReappliesQuarantine(t *testing.T) {
	e := newEnv(t)
	e.fake.AddUser("tgt")
	e.addGuild(t, "g1", &discordgo.Role{ID: "quarantine", Position: 1})
	require.NoError(t, e.configs.SetQuarantineRole("g1", "quarantine"))
	e.fake.AddMember("g1", "tgt")

	stats := e.coord.Sanction(SanctionRequest{
		Scope:       model.ScopeTargeted,
		Category:    "spam",
		Subcategory: "phishing",
		Action:      model.ActionQuarantine,
		TargetID:    "tgt",
		CaseID:      13,
		GuildIDs:    []string{"g1"},
	})
	require.Equal(t, 1, stats.Success)

	// Leave and rejoin without the role.
	rejoined := e.fake.AddMember("g1", "tgt")
	e.coord.HandleMemberJoin("g1", rejoined)

	member, err := e.fake.GuildMember("g1", "tgt")
	require.NoError(t, err)
	assert.Contains(t, member.Roles, "quarantine")
}

func TestQuarantineVanishedRoleDisablesGuild(t *testing.T) {
	e := newEnv(t)
	e.fake.AddUser("tgt")
	e.addGuild(t, "g1")
	require.NoError(t, e.configs.SetQuarantineRole("g1", "gone"))
	e.fake.AddMember("g1", "tgt")

	target, err := e.fake.User("tgt")
	require.NoError(t, err)
	result := e.executor.ApplySanction("g1", target, model.ActionQuarantine, "spam", "phishing", 15, nil)
	assert.Equal(t, Failed, result)

	cfg := e.configs.Get("g1")
	assert.False(t, cfg.OptIn)
	assert.Empty(t, cfg.QuarantineRole)
}

func TestMuteRefusesAdministrators(t *testing.T) {
	e := newEnv(t)
	e.fake.AddUser("tgt")
	e.addGuild(t, "g1", &discordgo.Role{ID: "staff", Position: 2, Permissions: discordgo.PermissionAdministrator})
	e.fake.AddMember("g1", "tgt", "staff")

	target, err := e.fake.User("tgt")
	require.NoError(t, err)
	expires := time.Now().Add(time.Hour)
	result := e.executor.ApplySanction("g1", target, model.ActionMute, "spam", "phishing", 17, &expires)
	assert.Equal(t, NotApplicable, result)
}

func TestHierarchyGuard(t *testing.T) {
	e := newEnv(t)
	e.fake.AddUser("tgt")
	e.addGuild(t, "g1", &discordgo.Role{ID: "above-bot", Position: 20})
	e.fake.AddMember("g1", "tgt", "above-bot")

	target, err := e.fake.User("tgt")
	require.NoError(t, err)
	result := e.executor.ApplySanction("g1", target, model.ActionKick, "spam", "phishing", 19, nil)
	assert.Equal(t, NotApplicable, result)

	_, err = e.fake.GuildMember("g1", "tgt")
	assert.NoError(t, err, "member must still be present")
}
