// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "babble.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() failed: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
environment: development
service:
  socket_path: /tmp/babble-test.sock
  database_path: /tmp/babble-test.db
presence:
  typing_window: 3s
  liveness_window: 5m
relay:
  retention: 30s
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Service.SocketPath != "/tmp/babble-test.sock" {
		t.Errorf("SocketPath = %q", cfg.Service.SocketPath)
	}
	if cfg.Presence.LivenessWindow != 5*time.Minute {
		t.Errorf("LivenessWindow = %v, want 5m", cfg.Presence.LivenessWindow)
	}
	// Omitted field keeps its default.
	if cfg.Service.SweepSchedule != "0 * * * *" {
		t.Errorf("SweepSchedule = %q, want hourly default", cfg.Service.SweepSchedule)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `
environment: production
service:
  socket_path: /run/babble/service.sock
production:
  service:
    socket_path: /run/babble/prod.sock
  relay:
    retention: 45s
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Service.SocketPath != "/run/babble/prod.sock" {
		t.Errorf("SocketPath = %q, want production override", cfg.Service.SocketPath)
	}
	if cfg.Relay.Retention != 45*time.Second {
		t.Errorf("Retention = %v, want 45s", cfg.Relay.Retention)
	}
}

func TestValidateRejectsBadSchedule(t *testing.T) {
	cfg := Default()
	cfg.Service.SweepSchedule = "not a schedule"
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate accepted an invalid sweep schedule")
	}
}

func TestLoadRequiresEnvVar(t *testing.T) {
	t.Setenv("BABBLE_CONFIG", "")
	if _, err := Load(); err == nil {
		t.Fatal("Load without BABBLE_CONFIG succeeded, want error")
	}
}
