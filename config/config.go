package config

import (
	"errors"
	"log"
	"os"
	"strings"

	"guardnet/model"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads environment variables for credentials and wiring, and the
// YAML policy file for categories, thresholds and vote weights.
func Load() (*model.Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Info: .env file not found, relying on environment variables")
	}

	token := os.Getenv("BOT_TOKEN")
	if token == "" {
		log.Fatal("Error: BOT_TOKEN environment variable not set")
	}

	appID := os.Getenv("APP_ID")
	if appID == "" {
		log.Fatal("Error: APP_ID environment variable not set")
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "data/guardnet.db"
	}

	logWebhookURL := os.Getenv("LOG_WEBHOOK_URL")
	if logWebhookURL == "" {
		log.Println("Warning: LOG_WEBHOOK_URL not set, webhook logging will be disabled")
	}

	cfg := &model.Config{
		BotToken:      token,
		AppID:         appID,
		DatabasePath:  dbPath,
		LogWebhookURL: logWebhookURL,
		StatsChannel:  os.Getenv("STATS_CHANNEL_ID"),
		HomeGuildID:   os.Getenv("HOME_GUILD_ID"),
		AdminUserIDs:  splitIDs(os.Getenv("ADMIN_USER_IDS")),
		ModUserIDs:    splitIDs(os.Getenv("MOD_USER_IDS")),
	}

	if err := loadPolicy(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func splitIDs(raw string) []string {
	var out []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// loadPolicy reads data/policy.yaml: the category map and the voting
// thresholds. Missing file falls back to defaults so tests and fresh
// checkouts run without setup.
func loadPolicy(cfg *model.Config) error {
	v := viper.New()
	v.SetConfigName("policy")
	v.SetConfigType("yaml")
	v.AddConfigPath("data")

	v.SetDefault("polling.verify_threshold", 3.0)
	v.SetDefault("polling.option_threshold", 5.0)
	v.SetDefault("polling.stage1_weights.admin", 1.5)
	v.SetDefault("polling.stage1_weights.moderator", 1.0)
	v.SetDefault("polling.stage2_weights.admin", 2.0)
	v.SetDefault("polling.stage2_weights.moderator", 1.0)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
		log.Println("Warning: data/policy.yaml not found, using default thresholds and no categories")
	}

	if err := v.UnmarshalKey("polling", &cfg.Polling); err != nil {
		return err
	}
	if err := v.UnmarshalKey("categories", &cfg.Categories); err != nil {
		return err
	}
	if cfg.Polling.PollingChannel == "" {
		cfg.Polling.PollingChannel = os.Getenv("POLLING_CHANNEL_ID")
	}
	if cfg.Polling.NSFWChannel == "" {
		cfg.Polling.NSFWChannel = os.Getenv("NSFW_CHANNEL_ID")
	}
	return nil
}
