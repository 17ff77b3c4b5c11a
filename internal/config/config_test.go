package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("STRIPE_API_KEY", "sk_test_x")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_x")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, ":8080", cfg.HTTPListenAddr)
	assert.Equal(t, "brl", cfg.Currency)
	assert.Equal(t, int64(400), cfg.MinDepositCents)
	assert.Equal(t, 24*time.Hour, cfg.DepositExpiry)
	assert.Equal(t, time.Hour, cfg.SweepInterval)
}

func TestLoadParsesMinDeposit(t *testing.T) {
	setRequired(t)
	t.Setenv("MIN_DEPOSIT", "12,50")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(1250), cfg.MinDepositCents)
}

func TestLoadRejectsBadMinDeposit(t *testing.T) {
	setRequired(t)
	t.Setenv("MIN_DEPOSIT", "gratis")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRequiresStripeCredentials(t *testing.T) {
	t.Setenv("STRIPE_API_KEY", "")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_x")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("STRIPE_API_KEY", "sk_test_x")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "")
	_, err = Load()
	assert.Error(t, err)
}
