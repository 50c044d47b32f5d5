package globalactions

import (
	"fmt"
	"log"
	"sync"
	"time"

	"guardnet/model"

	"github.com/bwmarrin/discordgo"
)

const webhookName = "Guard logs"

// webhookLockWait bounds how long a notification waits for another
// caller's in-flight webhook creation before giving up on the webhook
// path for this delivery.
const webhookLockWait = 60 * time.Second

// Notifier delivers outcome embeds to each guild's configured modlog.
// Preference order: webhook, then plain channel send, then modlog
// shutdown with a one-time explainer.
type Notifier struct {
	session model.Discord
	configs *GuildConfigStore

	mu    sync.Mutex
	locks map[string]chan struct{}
}

func NewNotifier(session model.Discord, configs *GuildConfigStore) *Notifier {
	return &Notifier{
		session: session,
		configs: configs,
		locks:   make(map[string]chan struct{}),
	}
}

// acquire takes the guild's webhook-creation lock, waiting up to
// webhookLockWait for a holder to release it.
func (n *Notifier) acquire(guildID string) (release func(), ok bool) {
	n.mu.Lock()
	lock, exists := n.locks[guildID]
	if !exists {
		lock = make(chan struct{}, 1)
		n.locks[guildID] = lock
	}
	n.mu.Unlock()

	select {
	case lock <- struct{}{}:
		return func() { <-lock }, true
	case <-time.After(webhookLockWait):
		return nil, false
	}
}

// ensureWebhook returns the guild's modlog webhook ref, creating one
// under the per-guild lock when absent. Concurrent notifications never
// race-create two webhooks for the same guild.
func (n *Notifier) ensureWebhook(cfg *model.GuildConfig) (id, token string, err error) {
	if cfg.ModlogWebhookID != "" && cfg.ModlogWebhookToken != "" {
		return cfg.ModlogWebhookID, cfg.ModlogWebhookToken, nil
	}
	release, ok := n.acquire(cfg.GuildID)
	if !ok {
		return "", "", fmt.Errorf("timed out waiting for webhook creation in guild %s", cfg.GuildID)
	}
	defer release()

	// Another caller may have created it while we waited.
	if fresh := n.configs.Get(cfg.GuildID); fresh != nil && fresh.ModlogWebhookID != "" {
		return fresh.ModlogWebhookID, fresh.ModlogWebhookToken, nil
	}

	webhook, err := n.session.WebhookCreate(cfg.ModlogChannel, webhookName, "")
	if err != nil {
		return "", "", fmt.Errorf("failed to create modlog webhook in guild %s: %w", cfg.GuildID, err)
	}
	if err := n.configs.SetModlog(cfg.GuildID, cfg.ModlogChannel, webhook.ID, webhook.Token); err != nil {
		return "", "", err
	}
	return webhook.ID, webhook.Token, nil
}

// Notify sends the embed to the guild's modlog. Guilds without a modlog
// channel are skipped silently.
func (n *Notifier) Notify(guildID string, embed *discordgo.MessageEmbed) {
	cfg := n.configs.Get(guildID)
	if cfg == nil || cfg.ModlogChannel == "" {
		return
	}

	id, token, err := n.ensureWebhook(cfg)
	if err == nil {
		_, err = n.session.WebhookExecute(id, token, false, &discordgo.WebhookParams{
			Embeds: []*discordgo.MessageEmbed{embed},
		})
		if err == nil {
			return
		}
		log.Printf("[Modlog] Webhook send failed in guild %s, falling back to channel: %v", guildID, err)
	} else {
		log.Printf("[Modlog] %v", err)
	}

	_, err = n.session.ChannelMessageSendComplex(cfg.ModlogChannel, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
	})
	if err == nil {
		return
	}

	// Both paths are dead. Shut the modlog down and tell the guild
	// once, while a plain text send might still work.
	log.Printf("[Modlog] Channel send failed in guild %s, disabling modlog: %v", guildID, err)
	if derr := n.configs.SetModlog(guildID, "", "", ""); derr != nil {
		log.Printf("[Modlog] Failed to clear modlog config for guild %s: %v", guildID, derr)
	}
	if derr := n.configs.DisableOptIn(guildID, fmt.Sprintf("modlog delivery failed: %v", err)); derr != nil {
		log.Printf("[Modlog] Failed to disable opt-in for guild %s: %v", guildID, derr)
	}
	n.session.ChannelMessageSendComplex(cfg.ModlogChannel, &discordgo.MessageSend{
		Content: "Modlog delivery failed repeatedly, so cross-guild logging and opt-in were disabled here. Re-run the modlog setup to turn them back on.",
	})
}
