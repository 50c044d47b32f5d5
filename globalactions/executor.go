package globalactions

import (
	"fmt"
	"log"
	"strings"
	"time"

	"guardnet/model"

	"github.com/bwmarrin/discordgo"
	"github.com/jmoiron/sqlx"
)

// Executor applies a single sanction or appeal action to one
// guild/member pair. Every fault resolves to an ActionResult; a
// permission fault additionally disables the guild's opt-in.
type Executor struct {
	session model.Discord
	db      *sqlx.DB
	configs *GuildConfigStore
	botID   string
}

func NewExecutor(session model.Discord, db *sqlx.DB, configs *GuildConfigStore, botID string) *Executor {
	return &Executor{
		session: session,
		db:      db,
		configs: configs,
		botID:   botID,
	}
}

// BanReason is the exact reason attached to a case's ban entry. Appeal
// logic string-matches it before unbanning, so another actor's ban with
// an unrelated reason is never reversed by this engine.
func BanReason(caseID int64, expires *time.Time, now time.Time) string {
	if expires != nil {
		return fmt.Sprintf("User Banned for %s [Report %d's Action]!", expires.Sub(now).Round(time.Second), caseID)
	}
	return fmt.Sprintf("User Banned [Report %d's Action]!", caseID)
}

// BanReasonTag is the case marker embedded in every variant of the ban
// reason, used for substring ownership checks on expiry.
func BanReasonTag(caseID int64) string {
	return fmt.Sprintf("[Report %d's Action]", caseID)
}

func kickReason(caseID int64) string {
	return fmt.Sprintf("User Kicked [Report %d's Action!]", caseID)
}

// fail translates a platform error into Failed, disabling the guild's
// opt-in when the fault is a missing permission.
func (e *Executor) fail(guildID, operation string, err error) ActionResult {
	switch Classify(err) {
	case FaultPermission:
		if derr := e.configs.DisableOptIn(guildID, fmt.Sprintf("%s: %v", operation, err)); derr != nil {
			log.Printf("[Executor] Failed to disable opt-in for guild %s: %v", guildID, derr)
		}
	default:
		log.Printf("[Executor] %s failed in guild %s: %v", operation, guildID, err)
	}
	return Failed
}

// memberPermissions folds the member's role permissions together,
// including the implicit everyone role.
func memberPermissions(guild *discordgo.Guild, member *discordgo.Member) int64 {
	if member.User != nil && member.User.ID == guild.OwnerID {
		return discordgo.PermissionAll
	}
	var perms int64
	for _, role := range guild.Roles {
		if role.ID == guild.ID {
			perms |= role.Permissions
		}
		for _, id := range member.Roles {
			if role.ID == id {
				perms |= role.Permissions
			}
		}
	}
	if perms&discordgo.PermissionAdministrator != 0 {
		return discordgo.PermissionAll
	}
	return perms
}

func topRolePosition(guild *discordgo.Guild, roleIDs []string) int {
	top := -1
	for _, role := range guild.Roles {
		for _, id := range roleIDs {
			if role.ID == id && role.Position > top {
				top = role.Position
			}
		}
	}
	return top
}

// safeTarget reports whether the bot may act on the member: never the
// guild owner, never someone at or above the bot's top role.
func (e *Executor) safeTarget(guild *discordgo.Guild, member *discordgo.Member) bool {
	if member.User != nil && member.User.ID == guild.OwnerID {
		return false
	}
	bot, err := e.session.GuildMember(guild.ID, e.botID)
	if err != nil {
		log.Printf("[Executor] Failed to fetch own member in guild %s: %v", guild.ID, err)
		return false
	}
	return topRolePosition(guild, member.Roles) < topRolePosition(guild, bot.Roles)
}

// ApplySanction applies one action to one guild. See the ActionResult
// values for the outcome contract.
func (e *Executor) ApplySanction(guildID string, target *discordgo.User, action model.Action, category, subcategory string, caseID int64, expires *time.Time) ActionResult {
	cfg := e.configs.Get(guildID)
	if cfg == nil || !cfg.OptIn {
		return NotApplicable
	}
	if !cfg.Subscribed(category, subcategory) {
		return NotApplicable
	}

	switch action {
	case model.ActionNone, model.ActionWarn:
		// Nothing happens at guild level; the coordinator DMs the user.
		return Applied
	case model.ActionMute, model.ActionQuarantine, model.ActionKick, model.ActionBan:
	default:
		return NotApplicable
	}

	member, err := e.session.GuildMember(guildID, target.ID)
	if err != nil {
		switch Classify(err) {
		case FaultNotFound:
			member = nil
		case FaultPermission:
			return e.fail(guildID, "member lookup", err)
		default:
			return Failed
		}
	}
	if member == nil && action != model.ActionBan {
		// Only bans reach users who already left.
		return NotApplicable
	}

	guild, err := e.session.Guild(guildID)
	if err != nil {
		return e.fail(guildID, "guild lookup", err)
	}
	if member != nil && !e.safeTarget(guild, member) {
		return NotApplicable
	}

	switch action {
	case model.ActionBan:
		return e.applyBan(guild, target, member, caseID, expires)
	case model.ActionKick:
		return e.applyKick(guild, member, caseID)
	case model.ActionQuarantine:
		return e.applyQuarantine(guild, cfg, member, caseID)
	case model.ActionMute:
		return e.applyMute(guild, member, expires)
	}
	return NotApplicable
}

func (e *Executor) applyBan(guild *discordgo.Guild, target *discordgo.User, member *discordgo.Member, caseID int64, expires *time.Time) ActionResult {
	if member != nil {
		if err := e.StripAndSave(guild.ID, member, caseID); err != nil {
			return e.fail(guild.ID, "role strip", err)
		}
	}
	reason := BanReason(caseID, expires, time.Now())
	if err := e.session.GuildBanCreateWithReason(guild.ID, target.ID, reason, 0); err != nil {
		return e.fail(guild.ID, "ban", err)
	}
	return Applied
}

func (e *Executor) applyKick(guild *discordgo.Guild, member *discordgo.Member, caseID int64) ActionResult {
	if err := e.StripAndSave(guild.ID, member, caseID); err != nil {
		return e.fail(guild.ID, "role strip", err)
	}
	if err := e.session.GuildMemberDeleteWithReason(guild.ID, member.User.ID, kickReason(caseID)); err != nil {
		return e.fail(guild.ID, "kick", err)
	}
	return Applied
}

func (e *Executor) applyQuarantine(guild *discordgo.Guild, cfg *model.GuildConfig, member *discordgo.Member, caseID int64) ActionResult {
	if cfg.QuarantineRole == "" {
		return NotApplicable
	}
	var role *discordgo.Role
	for _, r := range guild.Roles {
		if r.ID == cfg.QuarantineRole {
			role = r
			break
		}
	}
	if role == nil {
		// The configured role vanished. Structural fault: clear the
		// pointer and take the guild out of the network until fixed.
		if err := e.configs.ClearQuarantineRole(guild.ID); err != nil {
			log.Printf("[Executor] Failed to clear quarantine role for guild %s: %v", guild.ID, err)
		}
		if err := e.configs.DisableOptIn(guild.ID, "quarantine role vanished"); err != nil {
			log.Printf("[Executor] Failed to disable opt-in for guild %s: %v", guild.ID, err)
		}
		return Failed
	}
	if err := e.StripAndSave(guild.ID, member, caseID); err != nil {
		return e.fail(guild.ID, "role strip", err)
	}
	if err := e.session.GuildMemberRoleAdd(guild.ID, member.User.ID, role.ID); err != nil {
		return e.fail(guild.ID, "quarantine", err)
	}
	return Applied
}

func (e *Executor) applyMute(guild *discordgo.Guild, member *discordgo.Member, expires *time.Time) ActionResult {
	if expires == nil {
		return NotApplicable
	}
	if memberPermissions(guild, member)&discordgo.PermissionAdministrator != 0 {
		// Timeouts do not bind administrators.
		return NotApplicable
	}
	// A mute leaves roles in place, but an earlier ban/kick/quarantine
	// for this user may have left a strip snapshot behind. Replay it so
	// the two states do not tangle.
	if _, err := e.RestoreFromSave(guild.ID, member.User.ID, RestoreOptions{SkipHarmful: true}); err != nil {
		log.Printf("[Executor] Failed to replay role snapshot for %s in guild %s: %v", member.User.ID, guild.ID, err)
	}
	if err := e.session.GuildMemberTimeout(guild.ID, member.User.ID, expires); err != nil {
		return e.fail(guild.ID, "mute", err)
	}
	return Applied
}

// ApplyAppeal reverses a previously applied action in one guild.
func (e *Executor) ApplyAppeal(guildID, targetID string, appeal model.AppealAction, caseID int64) ActionResult {
	switch appeal {
	case model.AppealUnban:
		return e.RemoveBan(guildID, targetID, caseID, true)
	case model.AppealUnmute:
		if err := e.session.GuildMemberTimeout(guildID, targetID, nil); err != nil {
			if Classify(err) == FaultNotFound {
				return NotApplicable
			}
			return e.fail(guildID, "unmute", err)
		}
		return Applied
	case model.AppealUnquarantine:
		return e.removeQuarantine(guildID, targetID)
	}
	return NotApplicable
}

// RemoveBan lifts a case's ban after verifying the ban entry still
// belongs to the case. Exact matching is used for appeals; expiry uses
// the looser tag match because timed bans embed their duration.
func (e *Executor) RemoveBan(guildID, targetID string, caseID int64, exact bool) ActionResult {
	ban, err := e.session.GuildBan(guildID, targetID)
	if err != nil {
		if Classify(err) == FaultNotFound {
			// Already unbanned, or never banned here.
			return NotApplicable
		}
		return e.fail(guildID, "ban lookup", err)
	}
	if exact {
		if ban.Reason != BanReason(caseID, nil, time.Time{}) {
			return NotApplicable
		}
	} else if !strings.Contains(ban.Reason, BanReasonTag(caseID)) {
		return NotApplicable
	}
	if err := e.session.GuildBanDelete(guildID, targetID); err != nil {
		return e.fail(guildID, "unban", err)
	}
	return Applied
}

func (e *Executor) removeQuarantine(guildID, targetID string) ActionResult {
	member, err := e.session.GuildMember(guildID, targetID)
	if err != nil {
		if Classify(err) == FaultNotFound {
			return NotApplicable
		}
		return e.fail(guildID, "member lookup", err)
	}
	cfg := e.configs.Get(guildID)
	if cfg != nil && cfg.QuarantineRole != "" {
		for _, roleID := range member.Roles {
			if roleID != cfg.QuarantineRole {
				continue
			}
			if err := e.session.GuildMemberRoleRemove(guildID, targetID, roleID); err != nil {
				return e.fail(guildID, "unquarantine", err)
			}
		}
	}
	if _, err := e.RestoreFromSave(guildID, targetID, RestoreOptions{SkipHarmful: true}); err != nil {
		log.Printf("[Executor] Failed to restore roles for %s in guild %s: %v", targetID, guildID, err)
	}
	return Applied
}
