// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/workconnect/internal/auth"
)

const pingTimeout = 2 * time.Second

func (h *Handler) storeReachable(ctx context.Context) bool {
	if h.db == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return h.db.Ping(ctx) == nil
}

// Health reports liveness plus a summary of the realtime layer.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	dbConnected := h.storeReachable(r.Context())
	if !dbConnected {
		status = "degraded"
	}

	NewResponseWriter(w, r).Success(map[string]interface{}{
		"status":       status,
		"environment":  h.config.Server.Environment,
		"database":     dbConnected,
		"uptime":       time.Since(h.startTime).Seconds(),
		"connections":  h.hub.GetClientCount(),
		"channels":     h.hub.Registry().ChannelCount(),
		"online_users": len(h.gateway.OnlineUsers()),
	})
}

// HealthLive answers as long as the process serves HTTP.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady returns 503 until the store answers.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if !h.storeReachable(r.Context()) {
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Store not reachable")
		return
	}
	rw.Success(map[string]interface{}{"ready": true})
}

// OnlineUsers lists the users online on this node.
func (h *Handler) OnlineUsers(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if _, err := h.resolver.ResolveIdentity(r.Context(), auth.CredentialFromRequest(r)); err != nil {
		if auth.IsRejection(err) {
			rw.Unauthorized("Authentication required")
			return
		}
		rw.InternalError("Failed to authenticate")
		return
	}
	rw.Success(map[string]interface{}{"online_users": h.gateway.OnlineUsers()})
}
