package globalactions

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripRestoreRoundTrip(t *testing.T) {
	e := newEnv(t)
	e.addGuild(t, "g1",
		&discordgo.Role{ID: "r1", Position: 1},
		&discordgo.Role{ID: "r2", Position: 2},
	)
	member := e.fake.AddMember("g1", "u1", "r1", "r2")

	require.NoError(t, e.executor.StripAndSave("g1", member, 1))
	stripped, err := e.fake.GuildMember("g1", "u1")
	require.NoError(t, err)
	assert.Empty(t, stripped.Roles)

	restored, err := e.executor.RestoreFromSave("g1", "u1", RestoreOptions{SkipHarmful: false, AuthorizedBy: "admin1", CaseID: 1})
	require.NoError(t, err)
	assert.True(t, restored)

	after, err := e.fake.GuildMember("g1", "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"r1", "r2"}, after.Roles)

	// The snapshot is consumed on restore.
	restored, err = e.executor.RestoreFromSave("g1", "u1", RestoreOptions{SkipHarmful: true})
	require.NoError(t, err)
	assert.False(t, restored)
}

func TestStripLeavesAuditReason(t *testing.T) {
	e := newEnv(t)
	e.addGuild(t, "g1", &discordgo.Role{ID: "r1", Position: 1})
	member := e.fake.AddMember("g1", "u1", "r1")

	require.NoError(t, e.executor.StripAndSave("g1", member, 42))
	reasons := e.fake.MemberEditReasons["g1/u1"]
	require.Len(t, reasons, 1)
	assert.Equal(t, "Role(s) Stripped to apply Report 42's Action! Run /config restore-roles [user] to undo this.", reasons[0])
}

func TestRestoreFiltersHarmfulRoles(t *testing.T) {
	e := newEnv(t)
	e.addGuild(t, "g1",
		&discordgo.Role{ID: "plain", Position: 1},
		&discordgo.Role{ID: "banhammer", Position: 2, Permissions: discordgo.PermissionBanMembers},
	)
	member := e.fake.AddMember("g1", "u1", "plain", "banhammer")

	require.NoError(t, e.executor.StripAndSave("g1", member, 2))
	restored, err := e.executor.RestoreFromSave("g1", "u1", RestoreOptions{SkipHarmful: true})
	require.NoError(t, err)
	assert.True(t, restored)

	after, err := e.fake.GuildMember("g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"plain"}, after.Roles)
}

func TestRestoreSkipsVanishedRoles(t *testing.T) {
	e := newEnv(t)
	e.addGuild(t, "g1", &discordgo.Role{ID: "r1", Position: 1})
	member := e.fake.AddMember("g1", "u1", "r1", "deleted-role")

	require.NoError(t, e.executor.StripAndSave("g1", member, 3))
	restored, err := e.executor.RestoreFromSave("g1", "u1", RestoreOptions{SkipHarmful: true})
	require.NoError(t, err)
	assert.True(t, restored)

	after, err := e.fake.GuildMember("g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, after.Roles)
}
