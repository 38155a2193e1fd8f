// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order; the first existing file wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/workconnect/config.yaml",
	"/etc/workconnect/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Environment:     "development",
		},
		Security: SecurityConfig{
			JWTSecret:           "",
			CORSOrigins:         []string{"*"},
			HandshakeRateLimit:  60,
			HandshakeRateWindow: time.Minute,
			UserCacheTTL:        30 * time.Second,
			UserCacheSize:       10000,
		},
		Database: DatabaseConfig{
			Path:      "/data/workconnect.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
		},
		Presence: PresenceConfig{
			Store:               "database",
			BadgerPath:          "/data/presence",
			ReconcileOnStartup:  true,
			WriteTimeout:        5 * time.Second,
			BreakerMaxRequests:  3,
			BreakerInterval:     time.Minute,
			BreakerTimeout:      30 * time.Second,
			BreakerFailureRatio: 0.6,
			BreakerMinRequests:  5,
		},
		Realtime: RealtimeConfig{
			SendBuffer:        256,
			WriteWait:         10 * time.Second,
			PongWait:          60 * time.Second,
			MaxMessageSize:    64 * 1024,
			HandshakeTimeout:  10 * time.Second,
			FrameRate:         20,
			FrameBurst:        40,
			PreviewLength:     100,
			RegistryShards:    32,
			StoreTimeout:      5 * time.Second,
			MetricsInterval:   15 * time.Second,
			MaxMarkReadIDs:    500,
			MaxMessageContent: 10000,
		},
		Relay: RelayConfig{
			Enabled:       false,
			URL:           "nats://127.0.0.1:4222",
			Subject:       "workconnect.broadcasts",
			NodeID:        "",
			Embedded:      false,
			EmbeddedHost:  "127.0.0.1",
			EmbeddedPort:  4222,
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
		Media: MediaConfig{
			BaseURL: "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf layers struct defaults, the optional YAML file and mapped
// environment variables, then validates the result.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields splits comma-separated env values into slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) == 0 {
			continue
		}
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	// Server
	"http_host":        "server.host",
	"http_port":        "server.port",
	"http_timeout":     "server.read_timeout",
	"shutdown_timeout": "server.shutdown_timeout",
	"environment":      "server.environment",

	// Security
	"jwt_secret":          "security.jwt_secret",
	"cors_origins":        "security.cors_origins",
	"ws_handshake_limit":  "security.handshake_rate_limit",
	"ws_handshake_window": "security.handshake_rate_window",
	"user_cache_ttl":      "security.user_cache_ttl",
	"user_cache_size":     "security.user_cache_size",

	// Database
	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	// Presence
	"presence_store":            "presence.store",
	"presence_badger_path":      "presence.badger_path",
	"presence_reconcile":        "presence.reconcile_on_startup",
	"presence_write_timeout":    "presence.write_timeout",
	"presence_breaker_timeout":  "presence.breaker_timeout",
	"presence_breaker_ratio":    "presence.breaker_failure_ratio",
	"presence_breaker_min_reqs": "presence.breaker_min_requests",

	// Realtime
	"ws_send_buffer":       "realtime.send_buffer",
	"ws_write_wait":        "realtime.write_wait",
	"ws_pong_wait":         "realtime.pong_wait",
	"ws_max_message_size":  "realtime.max_message_size",
	"ws_handshake_timeout": "realtime.handshake_timeout",
	"ws_frame_rate":        "realtime.frame_rate",
	"ws_frame_burst":       "realtime.frame_burst",
	"notification_preview": "realtime.notification_preview_length",
	"registry_shards":      "realtime.registry_shards",
	"store_timeout":        "realtime.store_timeout",

	// Relay
	"relay_enabled":      "relay.enabled",
	"nats_url":           "relay.url",
	"relay_subject":      "relay.subject",
	"relay_node_id":      "relay.node_id",
	"nats_embedded":      "relay.embedded",
	"nats_embedded_host": "relay.embedded_host",
	"nats_embedded_port": "relay.embedded_port",

	// Media
	"media_base_url": "media.base_url",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps known environment variables (HTTP_PORT, JWT_SECRET,
// NATS_URL, ...) to koanf paths. Unknown variables map to "" and are dropped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
