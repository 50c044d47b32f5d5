package globalactions

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"guardnet/model"
	"guardnet/timer"
	"guardnet/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/jmoiron/sqlx"
)

// SanctionRequest describes one decided action to fan out.
type SanctionRequest struct {
	Scope       model.Scope
	Category    string
	Subcategory string
	Action      model.Action
	TargetID    string
	CaseID      int64
	Reason      string
	// GuildIDs is consulted only for ScopeTargeted.
	GuildIDs []string
	Expires  *time.Time
}

// AppealRequest describes one reversal to fan out across the guilds
// the original sanction landed in.
type AppealRequest struct {
	TargetID    string
	CaseID      int64
	Action      model.Action
	Category    string
	Subcategory string
	GuildIDs    []string
}

// Coordinator fans decided sanctions out across eligible guilds,
// records outcomes, schedules expiries, and notifies the target and
// the operators. One fault in one guild never touches another guild's
// processing.
type Coordinator struct {
	session  model.Discord
	db       *sqlx.DB
	cfg      *model.Config
	configs  *GuildConfigStore
	cache    *SanctionCache
	executor *Executor
	notifier *Notifier
	timers   *timer.Service
}

func NewCoordinator(session model.Discord, db *sqlx.DB, cfg *model.Config, configs *GuildConfigStore, cache *SanctionCache, executor *Executor, notifier *Notifier, timers *timer.Service) *Coordinator {
	return &Coordinator{
		session:  session,
		db:       db,
		cfg:      cfg,
		configs:  configs,
		cache:    cache,
		executor: executor,
		notifier: notifier,
		timers:   timers,
	}
}

// sanctionPayload is the durable timer payload for a sanction expiry.
type sanctionPayload struct {
	GuildID     string `json:"guild_id"`
	TargetID    string `json:"target_id"`
	Action      string `json:"action"`
	CaseID      int64  `json:"case_id"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
}

// eligibleGuilds resolves a scope to the list of guild ids to fan out
// to. Mutual scope probes each opted-in guild for the target's
// membership.
func (c *Coordinator) eligibleGuilds(scope model.Scope, targetID string, explicit []string) []string {
	if scope == model.ScopeTargeted {
		return explicit
	}
	var out []string
	for _, cfg := range c.configs.All() {
		if !cfg.OptIn {
			continue
		}
		if scope == model.ScopeMutual {
			if _, err := c.session.GuildMember(cfg.GuildID, targetID); err != nil {
				continue
			}
		}
		out = append(out, cfg.GuildID)
	}
	return out
}

// Sanction fans one decided action out to every eligible guild and
// returns the aggregated outcome.
func (c *Coordinator) Sanction(req SanctionRequest) model.SanctionStats {
	var stats model.SanctionStats

	target, err := c.session.User(req.TargetID)
	if err != nil {
		log.Printf("[Coordinator] Cannot resolve target %s for case %d: %v", req.TargetID, req.CaseID, err)
		return stats
	}

	for _, guildID := range c.eligibleGuilds(req.Scope, req.TargetID, req.GuildIDs) {
		result := c.executor.ApplySanction(guildID, target, req.Action, req.Category, req.Subcategory, req.CaseID, req.Expires)
		if result == NotApplicable {
			continue
		}
		stats.Total++
		if result == Applied {
			stats.Success++
			stats.GuildIDs = append(stats.GuildIDs, guildID)
			if req.Action.Durable() || req.Expires != nil {
				if _, err := c.cache.RecordActive(guildID, req.TargetID, req.Action, req.Category, req.Subcategory, req.CaseID, time.Now(), req.Expires); err != nil {
					log.Printf("[Coordinator] Failed to record sanction for case %d in guild %s: %v", req.CaseID, guildID, err)
				}
				if req.Expires != nil {
					c.scheduleExpiry(guildID, req, *req.Expires)
				}
			}
		} else {
			stats.Failure++
		}
		c.notifier.Notify(guildID, actionEmbed(req.Action, target, req.CaseID, result, req.Expires))
	}

	// Fan-out is done; the target hears about it exactly once.
	dmDelivered := c.sendDM(req.TargetID, dmText(req.Action, req.Category, req.Subcategory, req.Reason, req.CaseID, req.Expires))
	c.sendStats(fmt.Sprintf("Sanction fan-out: %s", req.Action), req.CaseID, stats, dmDelivered)
	return stats
}

func (c *Coordinator) scheduleExpiry(guildID string, req SanctionRequest, fireAt time.Time) {
	payload, err := json.Marshal(sanctionPayload{
		GuildID:     guildID,
		TargetID:    req.TargetID,
		Action:      req.Action.String(),
		CaseID:      req.CaseID,
		Category:    req.Category,
		Subcategory: req.Subcategory,
	})
	if err != nil {
		log.Printf("[Coordinator] Failed to encode expiry payload for case %d: %v", req.CaseID, err)
		return
	}
	if _, err := c.timers.Create(fireAt, timer.EventSanction, string(payload)); err != nil {
		log.Printf("[Coordinator] Failed to schedule expiry for case %d in guild %s: %v", req.CaseID, guildID, err)
	}
}

// Appeal reverses a sanction across the guilds it originally landed
// in. The matching SanctionRecord is deleted in every guild regardless
// of the reversal outcome, so a half-failed appeal never leaves ghost
// records behind.
func (c *Coordinator) Appeal(req AppealRequest) model.SanctionStats {
	var stats model.SanctionStats

	appeal, ok := model.AppealFor(req.Action)
	if !ok {
		log.Printf("[Coordinator] Action %s for case %d has nothing to reverse", req.Action, req.CaseID)
		return stats
	}

	for _, guildID := range req.GuildIDs {
		result := c.executor.ApplyAppeal(guildID, req.TargetID, appeal, req.CaseID)
		if err := c.cache.Forget(guildID, req.TargetID, req.Action, req.CaseID); err != nil {
			log.Printf("[Coordinator] Failed to forget sanction for case %d in guild %s: %v", req.CaseID, guildID, err)
		}
		if result == NotApplicable {
			continue
		}
		stats.Total++
		if result == Applied {
			stats.Success++
			stats.GuildIDs = append(stats.GuildIDs, guildID)
		} else {
			stats.Failure++
		}
		c.notifier.Notify(guildID, appealEmbed(appeal, req.TargetID, req.CaseID, result))
	}

	dmDelivered := c.sendDM(req.TargetID, fmt.Sprintf("Your appeal for case #%d was processed: the %s was lifted in %d of %d guilds.", req.CaseID, req.Action, stats.Success, stats.Total))
	c.sendStats(fmt.Sprintf("Appeal fan-out: %s", appeal), req.CaseID, stats, dmDelivered)
	return stats
}

// HandleSanctionExpiry is the timer handler for the sanction event.
// Delivery is at-least-once, so everything here treats an absent
// record or ban entry as success.
func (c *Coordinator) HandleSanctionExpiry(raw string) {
	var payload sanctionPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		log.Printf("[Coordinator] Bad sanction expiry payload: %v", err)
		return
	}
	action, err := model.ParseAction(payload.Action)
	if err != nil {
		log.Printf("[Coordinator] Bad sanction expiry payload: %v", err)
		return
	}

	var result ActionResult
	switch action {
	case model.ActionBan:
		// Tag match, not exact: timed ban reasons carry a duration
		// clause. An unrelated ban placed meanwhile is left alone.
		result = c.executor.RemoveBan(payload.GuildID, payload.TargetID, payload.CaseID, false)
	case model.ActionQuarantine:
		result = c.executor.ApplyAppeal(payload.GuildID, payload.TargetID, model.AppealUnquarantine, payload.CaseID)
	case model.ActionMute:
		// The platform lifts the timeout itself; only the snapshot
		// needs replaying.
		if _, err := c.executor.RestoreFromSave(payload.GuildID, payload.TargetID, RestoreOptions{SkipHarmful: true}); err != nil {
			log.Printf("[Coordinator] Failed to restore roles on mute expiry for %s: %v", payload.TargetID, err)
		}
		result = Applied
	case model.ActionNone, model.ActionWarn, model.ActionKick:
		result = NotApplicable
	}

	if err := c.cache.Forget(payload.GuildID, payload.TargetID, action, payload.CaseID); err != nil {
		log.Printf("[Coordinator] Failed to forget expired sanction for case %d: %v", payload.CaseID, err)
	}
	if result == Applied {
		c.notifier.Notify(payload.GuildID, expiryEmbed(action, payload.TargetID, payload.CaseID))
	}
}

// HandleMemberJoin reapplies any still-active sanction when a
// previously sanctioned member rejoins, so leaving and rejoining is
// not an evasion vector.
func (c *Coordinator) HandleMemberJoin(guildID string, member *discordgo.Member) {
	cfg := c.configs.Get(guildID)
	if cfg == nil || !cfg.OptIn || member.User == nil {
		return
	}
	now := time.Now()
	for _, record := range c.cache.ActiveFor(guildID, member.User.ID, now) {
		switch record.Action {
		case model.ActionMute:
			if member.CommunicationDisabledUntil != nil && member.CommunicationDisabledUntil.After(now) {
				continue
			}
		case model.ActionQuarantine:
			if cfg.QuarantineRole != "" && hasRole(member, cfg.QuarantineRole) {
				continue
			}
		case model.ActionNone, model.ActionWarn, model.ActionKick, model.ActionBan:
			// Nothing to reapply: bans are enforced by the platform
			// and the rest carry no standing restriction a rejoin
			// could shed.
			continue
		}
		result := c.executor.ApplySanction(guildID, member.User, record.Action, record.Category, record.Subcategory, record.CaseID, record.Expiry())
		if result == Applied {
			log.Printf("[Coordinator] Reapplied %s on rejoin for %s in guild %s (case %d)", record.Action, member.User.ID, guildID, record.CaseID)
			c.notifier.Notify(guildID, rejoinEmbed(record.Action, member.User.ID, record.CaseID))
		}
	}
}

func hasRole(member *discordgo.Member, roleID string) bool {
	for _, id := range member.Roles {
		if id == roleID {
			return true
		}
	}
	return false
}

// sendDM delivers the post-fan-out notice to the target. Best effort;
// a closed DM channel never fails the operation.
func (c *Coordinator) sendDM(targetID, text string) bool {
	channel, err := c.session.UserChannelCreate(targetID)
	if err != nil {
		log.Printf("[Coordinator] Cannot open DM channel with %s: %v", targetID, err)
		return false
	}
	if _, err := c.session.ChannelMessageSendComplex(channel.ID, &discordgo.MessageSend{Content: text}); err != nil {
		log.Printf("[Coordinator] Cannot DM %s: %v", targetID, err)
		return false
	}
	return true
}

// sendStats posts the administrative outcome notice. Best effort.
func (c *Coordinator) sendStats(title string, caseID int64, stats model.SanctionStats, dmDelivered bool) {
	if c.cfg.StatsChannel != "" {
		_, err := c.session.ChannelMessageSendComplex(c.cfg.StatsChannel, &discordgo.MessageSend{
			Embeds: []*discordgo.MessageEmbed{statsEmbed(title, caseID, stats, dmDelivered)},
		})
		if err != nil {
			log.Printf("[Coordinator] Cannot post stats notice: %v", err)
		}
	}
	if c.cfg.LogWebhookURL != "" {
		detail := fmt.Sprintf("case %d: %d applied, %d failed, %d total", caseID, stats.Success, stats.Failure, stats.Total)
		if err := utils.LogInfo(c.cfg.LogWebhookURL, "Coordinator", title, detail); err != nil {
			log.Printf("[Coordinator] Cannot send webhook log: %v", err)
		}
	}
}
