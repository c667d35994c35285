package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

const (
	defaultBaseURL   = "https://claude.ai"
	defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultEnvVar    = "CLAUDE_SESSION_KEY"
)

// Config holds every path, timeout and endpoint the commands need.
type Config struct {
	BaseURL        string `json:"base_url"`
	CookiePath     string `json:"cookie_path"`
	ProfileDir     string `json:"profile_dir"`
	Mode           string `json:"mode"`
	EnvVar         string `json:"env_var"`
	UserAgent      string `json:"user_agent"`
	ChromePath     string `json:"chrome_path,omitempty"`
	LoginTimeout   int    `json:"login_timeout_seconds"`
	PollInterval   int    `json:"poll_interval_seconds"`
	RequestTimeout int    `json:"request_timeout_seconds"`
}

// DefaultConfig returns the configuration used when no file overrides it.
func DefaultConfig() Config {
	dir := configDir()
	return Config{
		BaseURL:        defaultBaseURL,
		CookiePath:     filepath.Join(dir, "claude-session.json"),
		ProfileDir:     filepath.Join(dir, "browser-data"),
		Mode:           string(ModeWatch),
		EnvVar:         defaultEnvVar,
		UserAgent:      defaultUserAgent,
		LoginTimeout:   120,
		PollInterval:   2,
		RequestTimeout: 10,
	}
}

// configDir returns the configuration directory.
func configDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "openclaw")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "openclaw")
}

// configPath returns the full path to the config file.
func configPath() string {
	return filepath.Join(configDir(), "config.json5")
}

// LoadConfig reads path (or the default config file when empty) and its
// "<name>.local.<ext>" sibling, the local file taking priority. Fields left
// unset fall back to DefaultConfig. A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		path = configPath()
	}

	var cfg Config
	if err := readConfigFile(path, &cfg); err != nil {
		return cfg, err
	}

	var local Config
	localPath := localConfigPath(path)
	if err := readConfigFile(localPath, &local); err != nil {
		return cfg, err
	}
	if local != (Config{}) {
		if err := mergo.Merge(&cfg, local, mergo.WithOverride); err != nil {
			return cfg, fmt.Errorf("failed to merge local config: %w", err)
		}
		slog.Debug("merging config with local overrides", "local", localPath)
	}

	if err := mergo.Merge(&cfg, DefaultConfig()); err != nil {
		return cfg, fmt.Errorf("failed to apply config defaults: %w", err)
	}
	cfg.CookiePath = expandHome(cfg.CookiePath)
	cfg.ProfileDir = expandHome(cfg.ProfileDir)

	if _, err := parseLoginMode(cfg.Mode); err != nil {
		return cfg, err
	}
	for _, f := range []struct {
		key   string
		value int
	}{
		{"login_timeout_seconds", cfg.LoginTimeout},
		{"poll_interval_seconds", cfg.PollInterval},
		{"request_timeout_seconds", cfg.RequestTimeout},
	} {
		if f.value <= 0 {
			return cfg, fmt.Errorf("%s must be positive, got %d", f.key, f.value)
		}
	}
	return cfg, nil
}

func readConfigFile(path string, out *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json5.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func localConfigPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func (c Config) loginTimeout() time.Duration {
	return time.Duration(c.LoginTimeout) * time.Second
}

func (c Config) pollInterval() time.Duration {
	return time.Duration(c.PollInterval) * time.Second
}

func (c Config) requestTimeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}
