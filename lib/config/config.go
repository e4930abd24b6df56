// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/babble-foundation/babble/lib/cron"
)

// Environment identifies the deployment type.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for the Babble service.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// Service configures the socket server and storage paths.
	Service ServiceConfig `yaml:"service"`

	// Presence configures the typing and babble-room TTL windows.
	Presence PresenceConfig `yaml:"presence"`

	// Relay configures the signal mailbox.
	Relay RelayConfig `yaml:"relay"`

	// Per-environment overrides, applied after the base values.
	Development *Overrides `yaml:"development,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides contains the fields that can be overridden per
// environment.
type Overrides struct {
	Service  *ServiceConfig  `yaml:"service,omitempty"`
	Presence *PresenceConfig `yaml:"presence,omitempty"`
	Relay    *RelayConfig    `yaml:"relay,omitempty"`
}

// ServiceConfig configures the service process.
type ServiceConfig struct {
	// SocketPath is the Unix socket the service listens on.
	SocketPath string `yaml:"socket_path"`

	// DatabasePath is the SQLite database file. The parent directory
	// must exist.
	DatabasePath string `yaml:"database_path"`

	// SweepSchedule is the 5-field cron expression driving the
	// expired-row sweep. Default: hourly on the hour.
	SweepSchedule string `yaml:"sweep_schedule"`
}

// PresenceConfig configures presence TTL windows.
type PresenceConfig struct {
	// TypingWindow is how long a typing indicator stays active after
	// its last refresh. Rows older than twice this window are
	// deleted by the sweep.
	TypingWindow time.Duration `yaml:"typing_window"`

	// LivenessWindow is how long a babble participant may go without
	// any relay activity before the sweep removes them. Guards
	// against clients that disconnect without leaving.
	LivenessWindow time.Duration `yaml:"liveness_window"`
}

// RelayConfig configures the signal mailbox.
type RelayConfig struct {
	// Retention is how long an unconsumed signal stays visible to
	// Poll before the sweep purges it.
	Retention time.Duration `yaml:"retention"`
}

// Default returns the base configuration. The config file is still
// required; these defaults only guarantee sensible values for fields
// the file omits.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	stateDir := filepath.Join(homeDir, ".local", "state", "babble")

	return &Config{
		Environment: Development,
		Service: ServiceConfig{
			SocketPath:    "/run/babble/service.sock",
			DatabasePath:  filepath.Join(stateDir, "babble.db"),
			SweepSchedule: "0 * * * *",
		},
		Presence: PresenceConfig{
			TypingWindow:   3 * time.Second,
			LivenessWindow: 10 * time.Minute,
		},
		Relay: RelayConfig{
			Retention: 30 * time.Second,
		},
	}
}

// Load loads configuration from the BABBLE_CONFIG environment
// variable. Fails if it is not set.
func Load() (*Config, error) {
	configPath := os.Getenv("BABBLE_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("BABBLE_CONFIG environment variable not set; " +
			"set it to the path of your babble.yaml config file, or use --config")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, applies the
// matching environment overrides, and returns the result. The file is
// the single source of truth.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	return cfg, nil
}

// applyEnvironmentOverrides merges the section matching
// cfg.Environment over the base values.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if overrides.Service != nil {
		if overrides.Service.SocketPath != "" {
			c.Service.SocketPath = overrides.Service.SocketPath
		}
		if overrides.Service.DatabasePath != "" {
			c.Service.DatabasePath = overrides.Service.DatabasePath
		}
		if overrides.Service.SweepSchedule != "" {
			c.Service.SweepSchedule = overrides.Service.SweepSchedule
		}
	}

	if overrides.Presence != nil {
		if overrides.Presence.TypingWindow > 0 {
			c.Presence.TypingWindow = overrides.Presence.TypingWindow
		}
		if overrides.Presence.LivenessWindow > 0 {
			c.Presence.LivenessWindow = overrides.Presence.LivenessWindow
		}
	}

	if overrides.Relay != nil && overrides.Relay.Retention > 0 {
		c.Relay.Retention = overrides.Relay.Retention
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if c.Service.SocketPath == "" {
		errs = append(errs, fmt.Errorf("service.socket_path is required"))
	}
	if c.Service.DatabasePath == "" {
		errs = append(errs, fmt.Errorf("service.database_path is required"))
	}
	if _, err := cron.Parse(c.Service.SweepSchedule); err != nil {
		errs = append(errs, fmt.Errorf("service.sweep_schedule: %w", err))
	}
	if c.Presence.TypingWindow <= 0 {
		errs = append(errs, fmt.Errorf("presence.typing_window must be positive"))
	}
	if c.Presence.LivenessWindow <= 0 {
		errs = append(errs, fmt.Errorf("presence.liveness_window must be positive"))
	}
	if c.Relay.Retention <= 0 {
		errs = append(errs, fmt.Errorf("relay.retention must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
