package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("JWT_TTL", "24h")
	t.Setenv("RATE_LIMIT_RPS", "20")
	t.Setenv("RATE_LIMIT_BURST", "40")
	t.Setenv("MIN_REDEMPTION_COINS", "100")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, int64(100), cfg.MinRedemptionCoins)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestLoadConfig_InvalidNumbers(t *testing.T) {
	t.Setenv("RATE_LIMIT_BURST", "lots")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_NonPositiveRedemptionMinimum(t *testing.T) {
	t.Setenv("MIN_REDEMPTION_COINS", "0")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestConfig_DSN(t *testing.T) {
	cfg := &Config{
		DatabaseHost:     "db",
		DatabasePort:     "5432",
		DatabaseUser:     "u",
		DatabasePassword: "p",
		DatabaseName:     "farm",
		DatabaseSSLMode:  "disable",
	}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=farm sslmode=disable", cfg.DSN())
}
