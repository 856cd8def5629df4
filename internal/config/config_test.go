package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// No config file in the test working directory: defaults apply.
	t.Setenv("CONFIG_ENV", "test")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "release", cfg.Mode)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, int64(32768), cfg.ReadLimit)
	require.Equal(t, 5*time.Second, cfg.RetryInterval)
	require.Equal(t, 0, cfg.MaxRetries)
	require.False(t, cfg.CloseOldOnReregister)
	require.Empty(t, cfg.DatabaseURL)
}
