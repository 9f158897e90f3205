package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 2*time.Second, cfg.Browser.StartDelay)
	assert.Equal(t, 1500*time.Millisecond, cfg.Browser.PageDelay)
	assert.Equal(t, 20*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BROWSER_HEADLESS", "false")
	t.Setenv("BROWSER_PAGE_DELAY", "250ms")
	t.Setenv("HTTP_TIMEOUT", "5s")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("DB_PORT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 250*time.Millisecond, cfg.Browser.PageDelay)
	assert.Equal(t, 5*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestValidate_URLTemplate(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Search.DirectURL = "https://example.com/search"
	assert.Error(t, cfg.Validate())

	cfg.Search.DirectURL = "https://example.com/search?q=%s&x=%s"
	assert.Error(t, cfg.Validate())
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", DBName: "n", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5433/n?sslmode=disable", d.DSN())
}
