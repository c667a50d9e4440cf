package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default values for optional configuration parameters.
const (
	DefaultAIBaseURL     = "https://openrouter.ai/api/v1"
	DefaultAIModel       = "x-ai/grok-4.1-fast:free"
	DefaultAIMaxTokens   = 512
	DefaultAITemperature = 0.9
	DefaultAITimeout     = 30 * time.Second
	DefaultAITitle       = "Passion Bot"

	DefaultServerAddr = ":3000"
	// DefaultDevUserID stands in for a real Telegram user id when initData
	// verification is disabled for local development.
	DefaultDevUserID = 1

	DefaultDBPath = "storage.db"

	DefaultMaintenanceHour = 4

	DefaultLogLevel = "info"
)

func setDefaults() {
	viper.SetDefault("telegram_webhook_enabled", true)

	viper.SetDefault("ai_base_url", DefaultAIBaseURL)
	viper.SetDefault("ai_model", DefaultAIModel)
	viper.SetDefault("ai_max_tokens", DefaultAIMaxTokens)
	viper.SetDefault("ai_temperature", DefaultAITemperature)
	viper.SetDefault("ai_timeout", DefaultAITimeout)
	viper.SetDefault("ai_title", DefaultAITitle)

	viper.SetDefault("server_addr", DefaultServerAddr)
	viper.SetDefault("server_insecure_init_data", false)
	viper.SetDefault("server_dev_user_id", DefaultDevUserID)

	viper.SetDefault("db_path", DefaultDBPath)

	viper.SetDefault("maintenance_enabled", true)
	viper.SetDefault("maintenance_hour", DefaultMaintenanceHour)

	viper.SetDefault("log_level", DefaultLogLevel)
	viper.SetDefault("log_json", true)

	viper.SetDefault("msg_age_gate", "🔞 Welcome! This bot is for users 18 and older.\n\nAre you 18 or older?")
	viper.SetDefault("msg_age_confirmed", "✅ Great. Now pick your conversation partner:")
	viper.SetDefault("msg_age_denied", "❌ This bot is available to adults only.")
	viper.SetDefault("msg_confirm_age_first", "🔞 Please confirm your age first: /start")
	viper.SetDefault("msg_choose_persona", "Pick your conversation partner:")
	viper.SetDefault("msg_choose_persona_first", "Pick a persona first with /start")
	viper.SetDefault("msg_persona_selected", "✅ You picked %s.\n\nNow you can write me anything 😉")
	viper.SetDefault("msg_welcome_back", "🎉 Welcome back! Your partner: %s")
	viper.SetDefault("msg_rate_limited", "⏳ Too many requests right now. Please try again in a minute.")
	viper.SetDefault("msg_general_error", "😔 Something went wrong. Please try again.")
	viper.SetDefault("msg_history_cleared", "🗑️ History cleared!")
}
