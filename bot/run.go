package bot

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"guardnet/utils"
)

func (b *Bot) Run() {
	if err := b.GuildConfigs.Load(); err != nil {
		log.Fatalf("Error loading guild configs: %v", err)
	}
	if err := b.Sanctions.Load(); err != nil {
		log.Fatalf("Error loading sanction cache: %v", err)
	}

	if err := b.Session.Open(); err != nil {
		log.Fatalf("Error opening connection: %v", err)
	}

	// The first sweep inside Start fires anything that came due while
	// the process was down.
	b.Timers.Start()

	fmt.Println("Bot is now running. Press CTRL-C to exit.")
	if b.Config.LogWebhookURL != "" {
		utils.LogInfo(b.Config.LogWebhookURL, "System", "Startup", "Bot has started successfully.")
	}
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc
}
