package handlers

import (
	"log"

	"guardnet/bot"

	"github.com/bwmarrin/discordgo"
)

// Register wires the gateway events the sanction engine listens to.
// The slash-command surface lives elsewhere; these are the events the
// engine itself needs to stay correct.
func Register(b *bot.Bot) {
	b.Session.AddHandler(func(s *discordgo.Session, e *discordgo.GuildCreate) {
		if err := b.GuildConfigs.Register(e.ID, b.Config.Categories); err != nil {
			log.Printf("[Handlers] Failed to register guild %s: %v", e.ID, err)
		}
	})

	b.Session.AddHandler(func(s *discordgo.Session, e *discordgo.GuildMemberAdd) {
		// Rejoin reconciliation: reapply any still-active sanction so
		// leave/rejoin does not shed it.
		b.Coordinator.HandleMemberJoin(e.GuildID, e.Member)
	})
}
