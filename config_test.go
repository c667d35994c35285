package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "https://claude.ai", cfg.BaseURL)
	assert.Equal(t, filepath.Join(dir, "openclaw", "claude-session.json"), cfg.CookiePath)
	assert.Equal(t, filepath.Join(dir, "openclaw", "browser-data"), cfg.ProfileDir)
	assert.Equal(t, "watch", cfg.Mode)
	assert.Equal(t, "CLAUDE_SESSION_KEY", cfg.EnvVar)
	assert.Equal(t, 120*time.Second, cfg.loginTimeout())
	assert.Equal(t, 2*time.Second, cfg.pollInterval())
	assert.Equal(t, 10*time.Second, cfg.requestTimeout())
}

func TestLoadConfigJSON5(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{
  // browser login tuning
  "mode": "manual",
  "login_timeout_seconds": 300,
  /* keep the cache next to the repo */
  "cookie_path": "/tmp/claude-cookies.json"
}`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "manual", cfg.Mode)
	assert.Equal(t, 300*time.Second, cfg.loginTimeout())
	assert.Equal(t, "/tmp/claude-cookies.json", cfg.CookiePath)
	// untouched fields keep their defaults
	assert.Equal(t, "https://claude.ai", cfg.BaseURL)
	assert.Equal(t, 2, cfg.PollInterval)
}

func TestLoadConfigLocalOverride(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{"mode": "manual", "base_url": "https://claude.ai"}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.local.json5"), []byte(`{"base_url": "http://127.0.0.1:8080"}`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:8080", cfg.BaseURL)
	assert.Equal(t, "manual", cfg.Mode)
}

func TestLoadConfigExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{"cookie_path": "~/.claude/cookies.json"}`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".claude", "cookies.json"), cfg.CookiePath)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	t.Run("malformed", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json5")
		require.NoError(t, os.WriteFile(path, []byte(`{"mode": `), 0o600))
		_, err := LoadConfig(path)
		assert.ErrorContains(t, err, "failed to parse config")
	})

	for _, key := range []string{"login_timeout_seconds", "poll_interval_seconds", "request_timeout_seconds"} {
		t.Run("negative "+key, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json5")
			require.NoError(t, os.WriteFile(path, []byte(`{"`+key+`": -2}`), 0o600))
			_, err := LoadConfig(path)
			assert.ErrorContains(t, err, key+" must be positive")
		})
	}

	t.Run("unknown mode", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json5")
		require.NoError(t, os.WriteFile(path, []byte(`{"mode": "headless"}`), 0o600))
		_, err := LoadConfig(path)
		assert.ErrorContains(t, err, "unknown login mode")
	})
}
