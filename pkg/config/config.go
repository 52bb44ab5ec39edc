// Package config holds the application configuration loaded from
// environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config is the full duitbot configuration.
type Config struct {
	// TelegramToken is the bot token used for long polling.
	// Environment variable: TELEGRAM_TOKEN
	TelegramToken string `koanf:"TELEGRAM_TOKEN"`

	// WebhookSecret signs inbound transaction webhooks.
	// Environment variable: WEBHOOK_SECRET
	WebhookSecret string `koanf:"WEBHOOK_SECRET"`

	// ParserSecret derives per-user API keys for the protected
	// extraction endpoint.
	// Environment variable: EMAIL_PARSER_SECRET
	ParserSecret string `koanf:"EMAIL_PARSER_SECRET"`

	// AdminGASURL is the admin registry script endpoint (authorization,
	// user management, webhook registration).
	// Environment variable: ADMIN_GAS_URL
	AdminGASURL string `koanf:"ADMIN_GAS_URL"`

	// AdminUserIDs is a comma-separated list of Telegram user IDs with
	// access to the admin commands.
	// Environment variable: ADMIN_USER_IDS
	AdminUserIDs string `koanf:"ADMIN_USER_IDS"`

	// Port is the HTTP webhook server port.
	// Environment variable: PORT
	Port int `koanf:"PORT"`

	// Timezone is the IANA zone used for fallback timestamps.
	// Environment variable: TIMEZONE
	Timezone string `koanf:"TIMEZONE"`

	// Postgres configures the optional confirmed-save journal. The
	// journal is disabled when Host is empty.
	Postgres PostgresConfig `koanf:",squash"`
}

// PostgresConfig holds connection settings for the journal database.
type PostgresConfig struct {
	Host     string `koanf:"POSTGRES_HOST"`
	Port     int    `koanf:"POSTGRES_PORT"`
	Database string `koanf:"POSTGRES_DB"`
	User     string `koanf:"POSTGRES_USER"`
	Password string `koanf:"POSTGRES_PASSWORD"`
	SSLMode  string `koanf:"POSTGRES_SSLMODE"`
}

// Load reads configuration from the environment and applies defaults.
func Load() (Config, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return Config{}, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = 5000
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Asia/Jakarta"
	}

	return cfg, nil
}

// Validate checks that the settings required to run at all are present.
func (c Config) Validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	if c.WebhookSecret == "" {
		return fmt.Errorf("WEBHOOK_SECRET is required")
	}
	if c.ParserSecret == "" {
		return fmt.Errorf("EMAIL_PARSER_SECRET is required")
	}
	return nil
}

// AdminIDs returns the parsed admin user ID list.
func (c Config) AdminIDs() []string {
	var ids []string
	for _, id := range strings.Split(c.AdminUserIDs, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
