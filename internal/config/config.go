// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

// Package config loads service configuration from defaults, an optional YAML
// file and environment variables, in that order of precedence (last wins).
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Database DatabaseConfig `koanf:"database"`
	Presence PresenceConfig `koanf:"presence"`
	Realtime RealtimeConfig `koanf:"realtime"`
	Relay    RelayConfig    `koanf:"relay"`
	Media    MediaConfig    `koanf:"media"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"`
}

// Addr returns host:port for http.Server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SecurityConfig holds credential and origin settings.
type SecurityConfig struct {
	// JWTSecret verifies HS256 access tokens issued by the marketplace backend.
	JWTSecret   string   `koanf:"jwt_secret"`
	CORSOrigins []string `koanf:"cors_origins"`

	// Handshake rate limit per client IP, applied to the /ws routes.
	HandshakeRateLimit  int           `koanf:"handshake_rate_limit"`
	HandshakeRateWindow time.Duration `koanf:"handshake_rate_window"`

	// Resolved users are cached this long between handshakes. Zero disables.
	UserCacheTTL  time.Duration `koanf:"user_cache_ttl"`
	UserCacheSize int           `koanf:"user_cache_size"`
}

// DatabaseConfig configures the DuckDB system of record.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// PresenceConfig configures durable presence records.
type PresenceConfig struct {
	// Store selects the last-seen backend: "database" (DuckDB) or "badger".
	Store      string `koanf:"store"`
	BadgerPath string `koanf:"badger_path"`

	// ReconcileOnStartup marks stale online records offline at boot.
	ReconcileOnStartup bool `koanf:"reconcile_on_startup"`

	WriteTimeout time.Duration `koanf:"write_timeout"`

	BreakerMaxRequests  uint32        `koanf:"breaker_max_requests"`
	BreakerInterval     time.Duration `koanf:"breaker_interval"`
	BreakerTimeout      time.Duration `koanf:"breaker_timeout"`
	BreakerFailureRatio float64       `koanf:"breaker_failure_ratio"`
	BreakerMinRequests  uint32        `koanf:"breaker_min_requests"`
}

// RealtimeConfig tunes connection handling.
type RealtimeConfig struct {
	SendBuffer        int           `koanf:"send_buffer"`
	WriteWait         time.Duration `koanf:"write_wait"`
	PongWait          time.Duration `koanf:"pong_wait"`
	MaxMessageSize    int64         `koanf:"max_message_size"`
	HandshakeTimeout  time.Duration `koanf:"handshake_timeout"`
	FrameRate         float64       `koanf:"frame_rate"`
	FrameBurst        int           `koanf:"frame_burst"`
	PreviewLength     int           `koanf:"notification_preview_length"`
	RegistryShards    int           `koanf:"registry_shards"`
	StoreTimeout      time.Duration `koanf:"store_timeout"`
	MetricsInterval   time.Duration `koanf:"metrics_interval"`
	MaxMarkReadIDs    int           `koanf:"max_mark_read_ids"`
	MaxMessageContent int           `koanf:"max_message_content"`
}

// RelayConfig configures cross-node fan-out over NATS.
type RelayConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`
	Subject string `koanf:"subject"`
	NodeID  string `koanf:"node_id"`

	// Embedded starts an in-process nats-server and ignores URL.
	Embedded     bool   `koanf:"embedded"`
	EmbeddedHost string `koanf:"embedded_host"`
	EmbeddedPort int    `koanf:"embedded_port"`

	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`
}

// MediaConfig holds the base used to turn stored relative paths into URLs.
type MediaConfig struct {
	BaseURL string `koanf:"base_url"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration. See LoadWithKoanf.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
