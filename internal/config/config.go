// Package config reads the global ~/.opsdesk/config.toml: a default profile
// name plus one [profiles.<name>] table per backend environment. Environment
// variables override the resolved profile, which keeps tokens out of the
// file on shared machines.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

const (
	defaultRequestTimeout = 10 * time.Second
	defaultPollInterval   = 30 * time.Second
)

// Config is the global config file.
type Config struct {
	DefaultProfile string             `toml:"default_profile"`
	Profiles       map[string]Profile `toml:"profiles"`
}

// Profile holds one backend environment's settings.
type Profile struct {
	BaseURL               string `toml:"base_url" env:"OPSDESK_BASE_URL"`
	Token                 string `toml:"token" env:"OPSDESK_TOKEN"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds" env:"OPSDESK_REQUEST_TIMEOUT_SECONDS"`
	PollIntervalSeconds   int    `toml:"poll_interval_seconds" env:"OPSDESK_POLL_INTERVAL_SECONDS"`
}

// RequestTimeout is the blanket HTTP timeout.
func (p Profile) RequestTimeout() time.Duration {
	if p.RequestTimeoutSeconds <= 0 {
		return defaultRequestTimeout
	}
	return time.Duration(p.RequestTimeoutSeconds) * time.Second
}

// PollInterval is the badge refresh cadence.
func (p Profile) PollInterval() time.Duration {
	if p.PollIntervalSeconds <= 0 {
		return defaultPollInterval
	}
	return time.Duration(p.PollIntervalSeconds) * time.Second
}

// Load reads config from the given path.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// Resolve returns the named profile with env overrides applied and required
// fields checked.
func (c *Config) Resolve(name string) (Profile, error) {
	p, ok := c.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("profile %q not configured", name)
	}
	if err := env.Parse(&p); err != nil {
		return Profile{}, fmt.Errorf("apply env overrides: %w", err)
	}
	if p.BaseURL == "" {
		return Profile{}, fmt.Errorf("profile %q has no base_url", name)
	}
	if p.Token == "" {
		return Profile{}, fmt.Errorf("profile %q has no token (set OPSDESK_TOKEN or token in config)", name)
	}
	return p, nil
}
