package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadBucketDefaultsAndClamps(t *testing.T) {
	t.Setenv("LOOKUP_RATE_LIMIT_CAPACITY", "0")
	t.Setenv("LOOKUP_RATE_LIMIT_TTL", "1s")

	c := LoadLookupRateLimitConfig()
	assert.Equal(t, 1, c.Capacity)
	assert.Equal(t, 30*time.Second, c.TTL)
	assert.Equal(t, "ip_route", c.KeyStrategy)
}

func TestLoadCacheConfig(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")
	t.Setenv("CACHE_ENABLED", "off")

	c := LoadCacheConfig()
	assert.False(t, c.Enabled)
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, c.Methods)
	assert.Equal(t, 30*time.Second, c.TTL)
}

func TestLoadOptionalDefaults(t *testing.T) {
	for k, v := range map[string]string{
		"APP_ENV": "test", "APP_PORT": "8080", "DB_USER": "root", "DB_HOST": "localhost",
		"DB_PORT": "3306", "DB_NAME": "admission", "JWT_SECRET": "x",
		"ACCESS_TOKEN_TTL_MIN": "15", "REFRESH_TOKEN_TTL_DAYS": "7", "BCRYPT_COST": "10",
	} {
		t.Setenv(k, v)
	}
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("AMQP_URL", "amqp://broker:5672/")

	c := Load()
	assert.Equal(t, 3, c.SelectionMaxRetries)
	assert.Equal(t, "amqp://broker:5672/", c.AMQPURL)
	assert.Equal(t, 15*time.Minute, c.AccessTTL())
	assert.Equal(t, 7*24*time.Hour, c.RefreshTTL())
	assert.True(t, c.AutoMigrate)
}
