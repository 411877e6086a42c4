package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "http://localhost:8080", cfg.BaseURL)
	require.Equal(t, "buyer", cfg.Role)
	require.Equal(t, 5*time.Second, cfg.PollInterval)
	require.Equal(t, 30, cfg.PageSize)
	require.Equal(t, ":8080", cfg.HTTPAddress())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CHATSYNC_BASE_URL", "https://api.lokapasar.example/")
	t.Setenv("CHATSYNC_ROLE", "seller")
	t.Setenv("CHATSYNC_POLL_INTERVAL", "2s")
	t.Setenv("CHATSYNC_PAGE_SIZE", "50")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "https://api.lokapasar.example", cfg.BaseURL, "trailing slash is trimmed")
	require.Equal(t, "seller", cfg.Role)
	require.Equal(t, 2*time.Second, cfg.PollInterval)
	require.Equal(t, 50, cfg.PageSize)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("CHATSYNC_POLL_INTERVAL", "100ms")
	_, err := Load()
	require.Error(t, err, "sub-second polling would hammer the backend")

	t.Setenv("CHATSYNC_POLL_INTERVAL", "5s")
	t.Setenv("CHATSYNC_ROLE", "admin")
	_, err = Load()
	require.Error(t, err)
}
