package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, "8090", cfg.Server.Port)
	assert.Equal(t, 60, cfg.Backend.PriceCacheTTLSec)
	assert.Equal(t, 120, cfg.Social.FeedCacheTTLSec)
	assert.Equal(t, 30, cfg.Refresh.TickerSec)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"backend": {"base_url": "http://backend:9000", "price_cache_ttl_sec": 30},
		"refresh": {"ticker_sec": 15}
	}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://backend:9000", cfg.Backend.BaseURL)
	assert.Equal(t, 30, cfg.Backend.PriceCacheTTLSec)
	assert.Equal(t, 15, cfg.Refresh.TickerSec)
	// Untouched sections keep their defaults.
	assert.Equal(t, 5, cfg.Backend.PriceTimeoutSec)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("BACKEND_BASE_URL", "http://elsewhere:1234")
	t.Setenv("REFRESH_TICKER_SEC", "45")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, "http://elsewhere:1234", cfg.Backend.BaseURL)
	assert.Equal(t, 45, cfg.Refresh.TickerSec)
}

func TestLoad_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSeconds(t *testing.T) {
	assert.Equal(t, 30*time.Second, Seconds(30, 10))
	assert.Equal(t, 10*time.Second, Seconds(0, 10))
	assert.Equal(t, 10*time.Second, Seconds(-1, 10))
}
