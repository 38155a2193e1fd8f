// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Realtime.PongWait != 60*time.Second {
		t.Errorf("Realtime.PongWait = %v, want 60s", cfg.Realtime.PongWait)
	}
	if cfg.Realtime.PreviewLength != 100 {
		t.Errorf("Realtime.PreviewLength = %d, want 100", cfg.Realtime.PreviewLength)
	}
	if cfg.Presence.Store != "database" {
		t.Errorf("Presence.Store = %q, want database", cfg.Presence.Store)
	}
	if cfg.Relay.Enabled {
		t.Error("Relay.Enabled should be false by default")
	}
	if cfg.Security.JWTSecret != "" {
		t.Error("JWTSecret must not have a default")
	}
}

func TestLoadWithKoanf_EnvOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("WS_PONG_WAIT", "30s")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("PRESENCE_STORE", "badger")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Realtime.PongWait != 30*time.Second {
		t.Errorf("Realtime.PongWait = %v, want 30s", cfg.Realtime.PongWait)
	}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[1] != "https://b.example" {
		t.Errorf("CORSOrigins = %v", cfg.Security.CORSOrigins)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Presence.Store != "badger" {
		t.Errorf("Presence.Store = %q, want badger", cfg.Presence.Store)
	}
}

func TestLoadWithKoanf_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 7000
security:
  jwt_secret: "` + testSecret + `"
realtime:
  notification_preview_length: 40
relay:
  enabled: true
  embedded: true
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "7001")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}
	if cfg.Server.Port != 7001 {
		t.Errorf("env should win over file: port = %d", cfg.Server.Port)
	}
	if cfg.Realtime.PreviewLength != 40 {
		t.Errorf("PreviewLength = %d, want 40", cfg.Realtime.PreviewLength)
	}
	if !cfg.Relay.Enabled || !cfg.Relay.Embedded {
		t.Errorf("relay flags not loaded: %+v", cfg.Relay)
	}
	if cfg.Realtime.SendBuffer != 256 {
		t.Errorf("defaults should survive the file layer, SendBuffer = %d", cfg.Realtime.SendBuffer)
	}
}

func TestLoadWithKoanf_MissingSecret(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("JWT_SECRET", "")

	_, err := LoadWithKoanf()
	if err == nil || !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Fatalf("expected JWT_SECRET error, got %v", err)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := map[string]string{
		"HTTP_PORT":      "server.port",
		"NATS_URL":       "relay.url",
		"DUCKDB_PATH":    "database.path",
		"MEDIA_BASE_URL": "media.base_url",
		"PATH":           "",
		"HOME":           "",
	}
	for in, want := range tests {
		if got := envTransformFunc(in); got != want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := defaultConfig()
		c.Security.JWTSecret = testSecret
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "HTTP_PORT"},
		{"short secret", func(c *Config) { c.Security.JWTSecret = "short" }, "at least"},
		{"wildcard cors in production", func(c *Config) { c.Server.Environment = "production" }, "CORS_ORIGINS"},
		{"unknown presence store", func(c *Config) { c.Presence.Store = "redis" }, "PRESENCE_STORE"},
		{"shards not power of two", func(c *Config) { c.Realtime.RegistryShards = 12 }, "REGISTRY_SHARDS"},
		{"relay bad url", func(c *Config) {
			c.Relay.Enabled = true
			c.Relay.URL = "::nope"
		}, "NATS_URL"},
		{"relay embedded ignores url", func(c *Config) {
			c.Relay.Enabled = true
			c.Relay.Embedded = true
			c.Relay.URL = ""
		}, ""},
		{"media not absolute", func(c *Config) { c.Media.BaseURL = "/media" }, "MEDIA_BASE_URL"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "LOG_LEVEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
