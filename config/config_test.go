package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Window)
	assert.Equal(t, 100, cfg.Episodes)
	assert.Equal(t, 0.0025, cfg.Commission)
	assert.Empty(t, cfg.Assets)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("DDPG_ASSETS", "ETH, XRP,,LTC")
	t.Setenv("DDPG_WINDOW", "3")
	t.Setenv("DDPG_SEED", "9")
	t.Setenv("DDPG_LOG_PRETTY", "true")
	t.Setenv("DDPG_COMMISSION", "not-a-number")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, []string{"ETH", "XRP", "LTC"}, cfg.Assets)
	assert.Equal(t, 3, cfg.Window)
	assert.Equal(t, uint64(9), cfg.Seed)
	assert.True(t, cfg.LogPretty)
	assert.Equal(t, 0.0025, cfg.Commission)
}

func TestLoadDotEnv(t *testing.T) {
	file := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(file, []byte("DDPG_EPISODES=7\n"+
		"DDPG_METRICS_ADDR=:9090\n"), 0644))
	t.Cleanup(func() {
		os.Unsetenv("DDPG_EPISODES")
		os.Unsetenv("DDPG_METRICS_ADDR")
	})

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Episodes)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
}

func TestValidate(t *testing.T) {
	t.Setenv("DDPG_WINDOW", "1")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
