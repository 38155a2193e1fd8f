// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	requestIDKey    contextKey = "request_id"
	connectionIDKey contextKey = "connection_id"
	userIDKey       contextKey = "user_id"
)

// NewConnectionID returns a short random id used to correlate the log lines
// of a single realtime connection.
func NewConnectionID() string {
	return uuid.New().String()[:8]
}

// ContextWithRequestID stores the HTTP request id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request id or "".
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithConnection stores the realtime connection id and its user.
func ContextWithConnection(ctx context.Context, connID, userID string) context.Context {
	ctx = context.WithValue(ctx, connectionIDKey, connID)
	return context.WithValue(ctx, userIDKey, userID)
}

// ConnectionIDFromContext returns the connection id or "".
func ConnectionIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(connectionIDKey).(string); ok {
		return id
	}
	return ""
}

// Ctx returns the global logger enriched with whatever ids ctx carries.
//
//	logging.Ctx(ctx).Warn().Err(err).Msg("presence write failed")
func Ctx(ctx context.Context) *zerolog.Logger {
	lc := With()
	if id := RequestIDFromContext(ctx); id != "" {
		lc = lc.Str("request_id", id)
	}
	if id := ConnectionIDFromContext(ctx); id != "" {
		lc = lc.Str("connection_id", id)
	}
	if uid, ok := ctx.Value(userIDKey).(string); ok && uid != "" {
		lc = lc.Str("user_id", uid)
	}
	l := lc.Logger()
	return &l
}
