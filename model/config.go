package model

// VoteWeights is the point value of a single vote per staff role.
type VoteWeights struct {
	Admin     float64 `mapstructure:"admin"`
	Moderator float64 `mapstructure:"moderator"`
}

// PollingConfig holds the voting thresholds and channel wiring for the
// report pipeline.
type PollingConfig struct {
	VerifyThreshold float64     `mapstructure:"verify_threshold"`
	OptionThreshold float64     `mapstructure:"option_threshold"`
	Stage1Weights   VoteWeights `mapstructure:"stage1_weights"`
	Stage2Weights   VoteWeights `mapstructure:"stage2_weights"`
	PollingChannel  string      `mapstructure:"polling_channel"`
	NSFWChannel     string      `mapstructure:"nsfw_channel"`
}

// Config stores the application's configuration.
type Config struct {
	BotToken      string
	AppID         string
	DatabasePath  string
	LogWebhookURL string
	StatsChannel  string
	HomeGuildID   string
	AdminUserIDs  []string
	ModUserIDs    []string
	// Categories maps category -> valid subcategories.
	Categories map[string][]string
	Polling    PollingConfig
}

// IsAdmin reports whether the user carries admin vote weight.
func (c *Config) IsAdmin(userID string) bool {
	for _, id := range c.AdminUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsStaff reports whether the user may vote at all.
func (c *Config) IsStaff(userID string) bool {
	if c.IsAdmin(userID) {
		return true
	}
	for _, id := range c.ModUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}
