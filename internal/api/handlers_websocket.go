// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/workconnect/internal/auth"
	"github.com/tomtom215/workconnect/internal/chat"
	"github.com/tomtom215/workconnect/internal/logging"
	"github.com/tomtom215/workconnect/internal/models"
	"github.com/tomtom215/workconnect/internal/websocket"
)

// realtimeSession is what every endpoint's session offers the transport.
type realtimeSession interface {
	websocket.FrameHandler
	Identity() models.Identity
	Attach(ctx context.Context, conn websocket.Subscriber) error
}

// ChatSocket handles GET /ws/chat/{conversation_id}.
func (h *Handler) ChatSocket(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversation_id")
	sess, err := h.gateway.OpenConversation(r.Context(), auth.CredentialFromRequest(r), conversationID)
	if err != nil {
		h.rejectHandshake(w, r, err)
		return
	}
	h.serveSession(w, r, sess, chat.EndpointChat)
}

// PresenceSocket handles GET /ws/presence.
func (h *Handler) PresenceSocket(w http.ResponseWriter, r *http.Request) {
	sess, err := h.gateway.OpenPresence(r.Context(), auth.CredentialFromRequest(r))
	if err != nil {
		h.rejectHandshake(w, r, err)
		return
	}
	h.serveSession(w, r, sess, chat.EndpointPresence)
}

// NotificationSocket handles GET /ws/notifications.
func (h *Handler) NotificationSocket(w http.ResponseWriter, r *http.Request) {
	sess, err := h.gateway.OpenNotifications(r.Context(), auth.CredentialFromRequest(r))
	if err != nil {
		h.rejectHandshake(w, r, err)
		return
	}
	h.serveSession(w, r, sess, chat.EndpointNotifications)
}

// rejectHandshake answers a refused handshake before any upgrade, so the
// client sees a plain HTTP status and never an accepted socket.
func (h *Handler) rejectHandshake(w http.ResponseWriter, r *http.Request, err error) {
	rw := NewResponseWriter(w, r)
	switch {
	case auth.IsRejection(err):
		rw.Unauthorized("Authentication required")
	case errors.Is(err, chat.ErrNotParticipant):
		rw.Forbidden("Not a participant of this conversation")
	case errors.Is(err, chat.ErrConversationNotFound):
		rw.NotFound("Conversation not found")
	default:
		logging.Ctx(r.Context()).Error().Err(err).Msg("websocket handshake failed")
		rw.InternalError("Handshake failed")
	}
}

// serveSession upgrades, attaches and runs the connection. It blocks for the
// lifetime of the socket.
func (h *Handler) serveSession(w http.ResponseWriter, r *http.Request, sess realtimeSession, endpoint string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		sess.Close()
		logging.Ctx(r.Context()).Debug().Err(err).Str("endpoint", endpoint).Msg("websocket upgrade failed")
		return
	}

	identity := sess.Identity()
	client := websocket.NewClient(h.hub, conn, identity.UserID, endpoint, h.clientCfg)
	client.SetHandler(sess)

	// The connection outlives the request context once hijacked.
	ctx := logging.ContextWithConnection(context.WithoutCancel(r.Context()), client.ConnectionID(), identity.UserID)
	if err := sess.Attach(ctx, client); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("failed to attach session")
		client.Close()
		return
	}
	client.Run(ctx)
}
