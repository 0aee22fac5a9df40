package config

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "test")
	t.Setenv("APP_PORT", "5000")
	t.Setenv("DB_USER", "pos")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_NAME", "pos")
	t.Setenv("JWT_SECRET", "s3cret")
	for _, k := range []string{"JWT_EXPIRE", "BCRYPT_COST", "SWEEP_SCHEDULE", "CORS_ALLOW_ORIGINS"} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, 7*24*time.Hour, cfg.JWTExpire)
	assert.Equal(t, bcrypt.DefaultCost, cfg.BcryptCost)
	assert.Equal(t, "@every 10m", cfg.SweepSchedule)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoad_ReportsAllMissing(t *testing.T) {
	for _, k := range []string{"APP_ENV", "APP_PORT", "DB_USER", "DB_HOST", "DB_PORT", "DB_NAME", "JWT_SECRET"} {
		t.Setenv(k, "")
	}

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APP_ENV")
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "DB_NAME")
}

func TestLoad_DayLifetime(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_EXPIRE", "2d")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 48*time.Hour, cfg.JWTExpire)
}

func TestLoad_InvalidValues(t *testing.T) {
	setRequired(t)
	t.Setenv("BCRYPT_COST", "ten")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BCRYPT_COST")
}

func TestLoad_ClampsCost(t *testing.T) {
	setRequired(t)
	t.Setenv("BCRYPT_COST", "99")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MaxCost, cfg.BcryptCost)
}

func TestLoadRateLimitConfig_Normalizes(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "1m")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()
	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 5*time.Minute, cfg.TTL)
}

func TestLoadCacheConfig_Methods(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")

	cfg := LoadCacheConfig()
	assert.True(t, cfg.Methods["GET"])
	assert.True(t, cfg.Methods["HEAD"])
	assert.False(t, cfg.Methods["POST"])
}

func TestLoadRedisConfig_HostPortWinOverAddr(t *testing.T) {
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("REDIS_HOST", "redis.internal")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("REDIS_TLS", "1")

	cfg := LoadRedisConfig()
	assert.Equal(t, "redis.internal:6379", cfg.Addr)
	assert.Equal(t, 3, cfg.DB)
	assert.True(t, cfg.TLS)
	assert.NotNil(t, cfg.options().TLSConfig)
}

func TestLoadRedisConfig_Defaults(t *testing.T) {
	for _, k := range []string{"REDIS_ADDR", "REDIS_HOST", "REDIS_PORT", "REDIS_DB", "REDIS_TLS", "REDIS_DIAL_TIMEOUT"} {
		t.Setenv(k, "")
	}
	cfg := LoadRedisConfig()
	assert.Equal(t, "localhost:6379", cfg.Addr)
	assert.Equal(t, 0, cfg.DB)
	assert.False(t, cfg.TLS)
	assert.Nil(t, cfg.options().TLSConfig)
	assert.Equal(t, 2*time.Second, cfg.DialTimeout)
}

func TestNewRedisClient(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb, err := NewRedisClient(context.Background(), RedisConfig{Addr: mr.Addr(), DialTimeout: time.Second})
	require.NoError(t, err)
	defer rdb.Close()
	assert.NoError(t, rdb.Ping(context.Background()).Err())

	addr := mr.Addr()
	mr.Close()
	rdb, err = NewRedisClient(context.Background(), RedisConfig{Addr: addr, DialTimeout: 200 * time.Millisecond})
	assert.Error(t, err)
	assert.Nil(t, rdb)
}
