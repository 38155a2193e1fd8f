// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

// Package api is the HTTP surface: websocket handshakes for the chat,
// presence and notification endpoints plus health and metrics.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/tomtom215/workconnect/internal/chat"
	"github.com/tomtom215/workconnect/internal/config"
	"github.com/tomtom215/workconnect/internal/logging"
	"github.com/tomtom215/workconnect/internal/websocket"
)

// Pinger reports store reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves every route.
type Handler struct {
	gateway   *chat.Gateway
	resolver  chat.IdentityResolver
	hub       *websocket.Hub
	db        Pinger
	config    *config.Config
	clientCfg websocket.ClientConfig
	upgrader  gws.Upgrader
	startTime time.Time
}

// NewHandler wires the handlers. db may be nil when the store has no ping.
func NewHandler(cfg *config.Config, gateway *chat.Gateway, resolver chat.IdentityResolver, hub *websocket.Hub, db Pinger) *Handler {
	h := &Handler{
		gateway:  gateway,
		resolver: resolver,
		hub:      hub,
		db:       db,
		config:   cfg,
		clientCfg: websocket.ClientConfig{
			SendBuffer:     cfg.Realtime.SendBuffer,
			WriteWait:      cfg.Realtime.WriteWait,
			PongWait:       cfg.Realtime.PongWait,
			MaxMessageSize: cfg.Realtime.MaxMessageSize,
		},
		startTime: time.Now(),
	}
	h.upgrader = gws.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: cfg.Realtime.HandshakeTimeout,
		CheckOrigin:      h.checkWebSocketOrigin,
	}
	return h
}

// checkWebSocketOrigin admits requests without Origin, which only
// non-browser clients send and which authenticate by token anyway, and
// browser requests from a configured origin.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.config.Security.CORSOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	logging.Ctx(r.Context()).Warn().Str("origin", sanitizeLogValue(origin)).Msg("websocket rejected from unauthorized origin")
	return false
}

// sanitizeLogValue strips control characters and caps length.
func sanitizeLogValue(s string) string {
	const maxLen = 200
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}
