// Package config manages application configuration from environment
// variables, config files, and default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config defines the application configuration. Values can be set via
// environment variables prefixed with BOT_ (e.g. BOT_AI_TOKEN) or through
// config.yaml.
type Config struct {
	// Telegram settings
	TelegramToken          string `mapstructure:"telegram_token"           validate:"required"`
	TelegramWebhookSecret  string `mapstructure:"telegram_webhook_secret"`
	TelegramWebhookEnabled bool   `mapstructure:"telegram_webhook_enabled"`

	// Completion provider settings
	AIToken       string        `mapstructure:"ai_token"       validate:"required"`
	AIBaseURL     string        `mapstructure:"ai_base_url"    validate:"required,url"`
	AIModel       string        `mapstructure:"ai_model"       validate:"required"`
	AIMaxTokens   int           `mapstructure:"ai_max_tokens"  validate:"required,min=1,max=32768"`
	AITemperature float64       `mapstructure:"ai_temperature" validate:"min=0,max=2"`
	AITimeout     time.Duration `mapstructure:"ai_timeout"     validate:"required,min=1s,max=10m"`
	AIReferer     string        `mapstructure:"ai_referer"`
	AITitle       string        `mapstructure:"ai_title"`

	// HTTP server (Mini App API + webhook) settings
	ServerAddr             string `mapstructure:"server_addr" validate:"required"`
	ServerInsecureInitData bool   `mapstructure:"server_insecure_init_data"`
	ServerDevUserID        int64  `mapstructure:"server_dev_user_id" validate:"required_if=ServerInsecureInitData true"`

	// Database settings
	DBPath string `mapstructure:"db_path" validate:"required"`

	// Maintenance scheduler settings
	MaintenanceEnabled bool `mapstructure:"maintenance_enabled"`
	MaintenanceHour    int  `mapstructure:"maintenance_hour" validate:"min=0,max=23"`

	// Logging settings
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	LogJSON  bool   `mapstructure:"log_json"`

	// User-visible messages
	MsgAgeGate            string `mapstructure:"msg_age_gate"             validate:"required"`
	MsgAgeConfirmed       string `mapstructure:"msg_age_confirmed"        validate:"required"`
	MsgAgeDenied          string `mapstructure:"msg_age_denied"           validate:"required"`
	MsgConfirmAgeFirst    string `mapstructure:"msg_confirm_age_first"    validate:"required"`
	MsgChoosePersona      string `mapstructure:"msg_choose_persona"       validate:"required"`
	MsgChoosePersonaFirst string `mapstructure:"msg_choose_persona_first" validate:"required"`
	MsgPersonaSelected    string `mapstructure:"msg_persona_selected"     validate:"required"`
	MsgWelcomeBack        string `mapstructure:"msg_welcome_back"         validate:"required"`
	MsgRateLimited        string `mapstructure:"msg_rate_limited"         validate:"required"`
	MsgGeneralError       string `mapstructure:"msg_general_error"        validate:"required"`
	MsgHistoryCleared     string `mapstructure:"msg_history_cleared"      validate:"required"`
}

// Load loads and validates configuration from:
// 1. Default values
// 2. config.yaml file
// 3. BOT_* environment variables
func Load(configPath string) (*Config, error) {
	setDefaults()

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("BOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Allow a missing config file; defaults plus environment are enough.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}
