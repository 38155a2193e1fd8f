// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// minJWTSecretLength matches the HS256 key size.
const minJWTSecretLength = 32

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

var validLogFormats = map[string]bool{
	"json": true, "console": true,
}

var validPresenceStores = map[string]bool{
	"database": true, "badger": true,
}

// Validate checks that required configuration is present and coherent.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validatePresence(); err != nil {
		return err
	}
	if err := c.validateRealtime(); err != nil {
		return err
	}
	if err := c.validateRelay(); err != nil {
		return err
	}
	if err := c.validateMedia(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.Security.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}
	if c.IsProduction() {
		for _, o := range c.Security.CORSOrigins {
			if o == "*" {
				return fmt.Errorf("CORS_ORIGINS must not contain * in production")
			}
		}
	}
	if c.Security.HandshakeRateLimit < 0 {
		return fmt.Errorf("WS_HANDSHAKE_LIMIT must not be negative")
	}
	if c.Security.HandshakeRateLimit > 0 && c.Security.HandshakeRateWindow <= 0 {
		return fmt.Errorf("WS_HANDSHAKE_WINDOW must be positive when WS_HANDSHAKE_LIMIT is set")
	}
	if c.Security.UserCacheTTL < 0 || c.Security.UserCacheSize < 0 {
		return fmt.Errorf("USER_CACHE_TTL and USER_CACHE_SIZE must not be negative")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("DUCKDB_PATH is required")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("DUCKDB_THREADS must not be negative")
	}
	return nil
}

func (c *Config) validatePresence() error {
	if !validPresenceStores[c.Presence.Store] {
		return fmt.Errorf("PRESENCE_STORE must be one of: database, badger")
	}
	if c.Presence.Store == "badger" && c.Presence.BadgerPath == "" {
		return fmt.Errorf("PRESENCE_BADGER_PATH is required when PRESENCE_STORE=badger")
	}
	if c.Presence.BreakerFailureRatio <= 0 || c.Presence.BreakerFailureRatio > 1 {
		return fmt.Errorf("PRESENCE_BREAKER_RATIO must be in (0, 1]")
	}
	return nil
}

func (c *Config) validateRealtime() error {
	r := c.Realtime
	switch {
	case r.SendBuffer < 1:
		return fmt.Errorf("WS_SEND_BUFFER must be at least 1")
	case r.PongWait <= 0 || r.WriteWait <= 0:
		return fmt.Errorf("WS_PONG_WAIT and WS_WRITE_WAIT must be positive")
	case r.MaxMessageSize < 1024:
		return fmt.Errorf("WS_MAX_MESSAGE_SIZE must be at least 1024 bytes")
	case r.FrameRate <= 0 || r.FrameBurst < 1:
		return fmt.Errorf("WS_FRAME_RATE must be positive and WS_FRAME_BURST at least 1")
	case r.PreviewLength < 1:
		return fmt.Errorf("NOTIFICATION_PREVIEW must be at least 1")
	case r.RegistryShards < 1 || r.RegistryShards&(r.RegistryShards-1) != 0:
		return fmt.Errorf("REGISTRY_SHARDS must be a power of two")
	case r.StoreTimeout <= 0:
		return fmt.Errorf("STORE_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateRelay() error {
	if !c.Relay.Enabled {
		return nil
	}
	if c.Relay.Subject == "" {
		return fmt.Errorf("RELAY_SUBJECT is required when RELAY_ENABLED=true")
	}
	if c.Relay.Embedded {
		if c.Relay.EmbeddedPort < 1 || c.Relay.EmbeddedPort > 65535 {
			return fmt.Errorf("NATS_EMBEDDED_PORT must be between 1 and 65535")
		}
		return nil
	}
	u, err := url.Parse(c.Relay.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("NATS_URL is invalid: %q", c.Relay.URL)
	}
	return nil
}

func (c *Config) validateMedia() error {
	if c.Media.BaseURL == "" {
		return nil
	}
	u, err := url.Parse(c.Media.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("MEDIA_BASE_URL must be an absolute http(s) URL")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// IsProduction reports whether the server runs with production checks.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}
