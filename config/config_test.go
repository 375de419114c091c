package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("PAYMENT_SANDBOX", "")
	t.Setenv("DEFAULT_COMMISSION_RATE", "")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.True(t, cfg.Payment.Sandbox)
	assert.Equal(t, 5*time.Minute, cfg.Payment.Tolerance)
	assert.True(t, cfg.Business.DefaultCommissionRate.Equal(decimal.NewFromInt(10)))
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("PAYMENT_WEBHOOK_TOLERANCE", "90s")
	t.Setenv("DEFAULT_COMMISSION_RATE", "12.5")
	t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 90*time.Second, cfg.Payment.Tolerance)
	assert.True(t, cfg.Business.DefaultCommissionRate.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
}

func TestValidate(t *testing.T) {
	cfg := &Config{Payment: PaymentConfig{Sandbox: false}}
	assert.ElementsMatch(t,
		[]string{"PAYMENT_WEBHOOK_SECRET", "JWT_SECRET", "PAYMENT_SECRET_KEY"},
		cfg.Validate())

	cfg = &Config{
		Payment: PaymentConfig{Sandbox: true, WebhookSecret: "whsec"},
		Auth:    AuthConfig{JWTSecret: "jwt"},
	}
	assert.Empty(t, cfg.Validate())
	assert.False(t, cfg.IsProduction())
}
