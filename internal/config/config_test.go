package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 1500*time.Millisecond, cfg.ReplyDelay)
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, BackendMemory, cfg.SettingsBackend)
	assert.Equal(t, 2.0, cfg.RateLimit)
	assert.Equal(t, 5, cfg.RateBurst)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SUPPORTBOT_PORT", "9000")
	t.Setenv("SUPPORTBOT_REPLY_DELAY", "250")
	t.Setenv("SUPPORTBOT_TOP_K", "3")
	t.Setenv("SUPPORTBOT_SETTINGS_BACKEND", "SQLite")
	t.Setenv("SUPPORTBOT_SQLITE_PATH", "/tmp/x.db")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.ReplyDelay)
	assert.Equal(t, 3, cfg.TopK)
	assert.Equal(t, BackendSQLite, cfg.SettingsBackend)

	t.Setenv("SUPPORTBOT_REPLY_DELAY", "2s")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.ReplyDelay)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad delay", map[string]string{"SUPPORTBOT_REPLY_DELAY": "soon"}},
		{"zero top-k", map[string]string{"SUPPORTBOT_TOP_K": "0"}},
		{"unknown backend", map[string]string{"SUPPORTBOT_SETTINGS_BACKEND": "redis"}},
		{"postgres without url", map[string]string{"SUPPORTBOT_SETTINGS_BACKEND": "postgres"}},
		{"admin without password", map[string]string{"SUPPORTBOT_ADMIN_USERNAME": "root"}},
		{"admin without secret", map[string]string{"SUPPORTBOT_ADMIN_USERNAME": "root", "SUPPORTBOT_ADMIN_PASSWORD": "pw"}},
		{"bad burst", map[string]string{"SUPPORTBOT_RATE_BURST": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))

	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("SUPPORTBOT_DOTENV_PROBE=from-file\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("SUPPORTBOT_DOTENV_PROBE") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("SUPPORTBOT_DOTENV_PROBE"))
}
