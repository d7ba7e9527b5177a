package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("X_BOOL", "Yes")
	t.Setenv("X_INT", "42")
	t.Setenv("X_BAD_INT", "4x")
	t.Setenv("X_DUR", "90s")

	assert.True(t, envBool("X_BOOL", false))
	assert.True(t, envBool("X_MISSING", true))
	assert.Equal(t, 42, envInt("X_INT", 1))
	assert.Equal(t, 1, envInt("X_BAD_INT", 1))
	assert.Equal(t, 90*time.Second, envDur("X_DUR", time.Second))
	assert.Equal(t, "d", envStr("X_MISSING", "d"))
}

func TestLoadMemoryDriverSkipsDatabase(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("ACCESS_TOKEN_TTL_MIN", "15")
	t.Setenv("REFRESH_TOKEN_TTL_DAYS", "7")
	t.Setenv("STORAGE_DRIVER", "Memory")
	t.Setenv("HOLD_EXPIRY", "15m")
	t.Setenv("SWEEP_INTERVAL", "-1s")

	c := Load()
	assert.Equal(t, StorageMemory, c.StorageDriver)
	assert.Empty(t, c.DBHost)
	assert.Equal(t, 15*time.Minute, c.HoldExpiry)
	assert.Equal(t, time.Minute, c.SweepInterval)
	assert.Equal(t, 10, c.BcryptCost)
	assert.False(t, c.IsProd())
}

func TestLoadRateLimitConfigClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	t.Setenv("RATE_LIMIT_EXEMPT", " /a , ,/b")

	c := LoadRateLimitConfig()
	assert.Equal(t, 1, c.Capacity)
	assert.Equal(t, 1, c.RefillTokens)
	assert.Equal(t, 2*time.Second, c.RefillInterval)
	assert.Equal(t, 10*time.Second, c.TTL)
	assert.Equal(t, []string{"/a", "/b"}, c.ExemptPaths)
}

func TestRedisAddrPrecedence(t *testing.T) {
	t.Setenv("REDIS_ADDR", "cache:6380")
	assert.Equal(t, "cache:6380", LoadRedisConfig().Addr)
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6379")
	assert.Equal(t, "redis:6379", LoadRedisConfig().Addr)
}

func TestIntegrations(t *testing.T) {
	t.Setenv("PAYMENT_CURRENCY", "EUR")
	assert.Equal(t, "eur", LoadPaymentConfig().Currency)
	assert.Equal(t, GatewayStripe, LoadPaymentConfig().Gateway)

	t.Setenv("AMQP_URL", "amqp://x/")
	assert.Equal(t, "amqp://x/", LoadQueueConfig().URL)
	t.Setenv("RABBITMQ_URL", "amqp://y/")
	assert.Equal(t, "amqp://y/", LoadQueueConfig().URL)

	assert.Equal(t, NotifyLog, NotifyDriver(MailConfig{}))
	assert.Equal(t, NotifyMail, NotifyDriver(MailConfig{Host: "smtp", From: "a@b"}))
	t.Setenv("NOTIFY_DRIVER", "queue")
	assert.Equal(t, NotifyQueue, NotifyDriver(MailConfig{}))
}

func TestCacheConfigDefaults(t *testing.T) {
	t.Setenv("CACHE_LIST_TTL", "0s")
	c := LoadCacheConfig()
	assert.True(t, c.Enabled)
	assert.Equal(t, 5*time.Minute, c.ListTTL)
	assert.Equal(t, 30*time.Second, c.SeatMapTTL)
}
