package globalactions

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"guardnet/model"
	"guardnet/utils/database"

	"github.com/bwmarrin/discordgo"
)

// HarmfulPermissions is the permission bitset filtered out of restored
// roles unless a human authorizer explicitly overrides the filter.
const HarmfulPermissions = discordgo.PermissionAdministrator |
	discordgo.PermissionManageServer |
	discordgo.PermissionBanMembers |
	discordgo.PermissionKickMembers |
	discordgo.PermissionModerateMembers |
	discordgo.PermissionManageChannels |
	discordgo.PermissionManageWebhooks |
	discordgo.PermissionManageRoles |
	discordgo.PermissionManageMessages |
	discordgo.PermissionMentionEveryone

// RestoreOptions control how a stripped-role snapshot is replayed.
type RestoreOptions struct {
	// SkipHarmful filters roles carrying HarmfulPermissions bits.
	// Only a named human authorizer may turn it off.
	SkipHarmful  bool
	AuthorizedBy string
	CaseID       int64
}

// stripReason is the audit log entry left on the role removal. Exact
// wording matters: it is the operator's only hint that the strip is
// reversible.
func stripReason(caseID int64) string {
	return fmt.Sprintf("Role(s) Stripped to apply Report %d's Action! Run /config restore-roles [user] to undo this.", caseID)
}

// StripAndSave snapshots the member's roles and removes them all,
// leaving only the implicit everyone role. The snapshot overwrites any
// prior one for the user.
func (e *Executor) StripAndSave(guildID string, member *discordgo.Member, caseID int64) error {
	roles, err := json.Marshal(member.Roles)
	if err != nil {
		return fmt.Errorf("failed to encode role snapshot for %s: %w", member.User.ID, err)
	}
	if err := database.UpsertStrippedRoles(e.db, &model.StrippedRoleSnapshot{
		UserID:     member.User.ID,
		Roles:      string(roles),
		CapturedAt: time.Now().Unix(),
	}); err != nil {
		return err
	}

	empty := []string{}
	_, err = e.session.GuildMemberEdit(guildID, member.User.ID, &discordgo.GuildMemberParams{Roles: &empty},
		discordgo.WithAuditLogReason(stripReason(caseID)))
	if err != nil {
		return fmt.Errorf("failed to strip roles from %s in guild %s: %w", member.User.ID, guildID, err)
	}
	return nil
}

// RestoreFromSave re-adds the user's snapshot roles and consumes the
// snapshot. Returns false when no snapshot exists. Roles that vanished
// from the guild are skipped silently.
func (e *Executor) RestoreFromSave(guildID, userID string, opts RestoreOptions) (bool, error) {
	snapshot, err := database.GetStrippedRoles(e.db, userID)
	if err != nil {
		return false, err
	}
	if snapshot == nil {
		return false, nil
	}
	var roleIDs []string
	if snapshot.Roles != "" {
		if err := json.Unmarshal([]byte(snapshot.Roles), &roleIDs); err != nil {
			return false, fmt.Errorf("failed to decode role snapshot for %s: %w", userID, err)
		}
	}

	guild, err := e.session.Guild(guildID)
	if err != nil {
		return false, fmt.Errorf("failed to fetch guild %s for restore: %w", guildID, err)
	}
	permissions := make(map[string]int64, len(guild.Roles))
	for _, role := range guild.Roles {
		permissions[role.ID] = role.Permissions
	}

	for _, roleID := range roleIDs {
		perms, exists := permissions[roleID]
		if !exists {
			continue
		}
		if opts.SkipHarmful && perms&HarmfulPermissions != 0 {
			log.Printf("[Executor] Skipping harmful role %s while restoring %s in guild %s", roleID, userID, guildID)
			continue
		}
		if err := e.session.GuildMemberRoleAdd(guildID, userID, roleID); err != nil {
			return false, fmt.Errorf("failed to restore role %s to %s in guild %s: %w", roleID, userID, guildID, err)
		}
	}

	if err := database.DeleteStrippedRoles(e.db, userID); err != nil {
		return false, err
	}
	if !opts.SkipHarmful {
		log.Printf("[Executor] Restored roles for %s in guild %s without the harmful filter, authorized by %s", userID, guildID, opts.AuthorizedBy)
	}
	return true, nil
}
