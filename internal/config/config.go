// Package config loads runtime configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"bot-loja/internal/money"
)

// Config is the full runtime configuration of the bot.
type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DatabaseURL string `env:"DATABASE_URL" envDefault:"file:data/loja.db"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisTLS      bool   `env:"REDIS_TLS" envDefault:"false"`

	HTTPListenAddr   string `env:"HTTP_LISTEN_ADDR" envDefault:":8080"`
	PublicBasePath   string `env:"PUBLIC_BASE_PATH"`
	MetricsNamespace string `env:"METRICS_NAMESPACE" envDefault:"botloja"`

	WAStorePath string `env:"WA_STORE_PATH" envDefault:"data/wa.db"`
	WALogLevel  string `env:"WA_LOG_LEVEL" envDefault:"INFO"`

	StripeAPIKey        string        `env:"STRIPE_API_KEY"`
	StripeWebhookSecret string        `env:"STRIPE_WEBHOOK_SECRET"`
	StripeTimeout       time.Duration `env:"STRIPE_TIMEOUT" envDefault:"15s"`
	Currency            string        `env:"CURRENCY" envDefault:"brl"`
	CheckoutSuccessURL  string        `env:"CHECKOUT_SUCCESS_URL" envDefault:"https://example.com/sucesso"`
	CheckoutCancelURL   string        `env:"CHECKOUT_CANCEL_URL" envDefault:"https://example.com/cancelado"`

	// MinDeposit is human notation ("4,00"); MinDepositCents is derived.
	MinDeposit      string        `env:"MIN_DEPOSIT" envDefault:"4,00"`
	MinDepositCents int64         `env:"-"`
	BonusPercent    float64       `env:"BONUS_PERCENTAGE" envDefault:"0"`
	DepositExpiry   time.Duration `env:"DEPOSIT_EXPIRY" envDefault:"24h"`
	SweepInterval   time.Duration `env:"SWEEP_INTERVAL" envDefault:"1h"`

	AdminToken string `env:"ADMIN_TOKEN"`
	AdminJID   string `env:"ADMIN_JID"`
	SupportURL string `env:"SUPPORT_URL"`
	GroupURL   string `env:"GROUP_URL"`
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	cents, err := money.Parse(cfg.MinDeposit)
	if err != nil || cents <= 0 {
		return nil, fmt.Errorf("invalid MIN_DEPOSIT %q", cfg.MinDeposit)
	}
	cfg.MinDepositCents = cents

	if cfg.StripeAPIKey == "" {
		return nil, errors.New("STRIPE_API_KEY is required")
	}
	if cfg.StripeWebhookSecret == "" {
		return nil, errors.New("STRIPE_WEBHOOK_SECRET is required")
	}

	return &cfg, nil
}

// IsProduction reports whether the app runs in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
