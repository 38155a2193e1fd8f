// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/workconnect/internal/config"
	"github.com/tomtom215/workconnect/internal/logging"
	"github.com/tomtom215/workconnect/internal/models"
	"github.com/tomtom215/workconnect/internal/presence"
	"github.com/tomtom215/workconnect/internal/websocket"
)

// Endpoint labels.
const (
	EndpointChat          = "chat"
	EndpointPresence      = "presence"
	EndpointNotifications = "notifications"
)

// Options tune sessions.
type Options struct {
	MediaBaseURL      string
	PreviewLength     int
	FrameRate         float64
	FrameBurst        int
	StoreTimeout      time.Duration
	MaxMarkReadIDs    int
	MaxMessageContent int
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		PreviewLength:     100,
		FrameRate:         20,
		FrameBurst:        40,
		StoreTimeout:      5 * time.Second,
		MaxMarkReadIDs:    500,
		MaxMessageContent: 10000,
	}
}

// OptionsFromConfig maps the realtime and media sections onto Options.
func OptionsFromConfig(rt *config.RealtimeConfig, media *config.MediaConfig) Options {
	return Options{
		MediaBaseURL:      media.BaseURL,
		PreviewLength:     rt.PreviewLength,
		FrameRate:         rt.FrameRate,
		FrameBurst:        rt.FrameBurst,
		StoreTimeout:      rt.StoreTimeout,
		MaxMarkReadIDs:    rt.MaxMarkReadIDs,
		MaxMessageContent: rt.MaxMessageContent,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.FrameRate <= 0 {
		o.FrameRate = d.FrameRate
	}
	if o.FrameBurst <= 0 {
		o.FrameBurst = d.FrameBurst
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = d.StoreTimeout
	}
	if o.MaxMarkReadIDs <= 0 {
		o.MaxMarkReadIDs = d.MaxMarkReadIDs
	}
	if o.MaxMessageContent <= 0 {
		o.MaxMessageContent = d.MaxMessageContent
	}
	return o
}

// Gateway opens sessions. It is shared by all connections.
type Gateway struct {
	store    Store
	resolver IdentityResolver
	hub      *websocket.Hub
	tracker  *presence.Tracker
	notifier *Notifier
	opts     Options
}

// NewGateway wires a gateway.
func NewGateway(store Store, resolver IdentityResolver, hub *websocket.Hub, tracker *presence.Tracker, opts Options) *Gateway {
	opts = opts.withDefaults()
	return &Gateway{
		store:    store,
		resolver: resolver,
		hub:      hub,
		tracker:  tracker,
		notifier: NewNotifier(hub, opts.PreviewLength),
		opts:     opts,
	}
}

// OpenConversation authenticates credential and checks membership of
// conversationID. The returned session is AUTHORIZING; Attach it once the
// transport is up. Malformed and unknown ids yield ErrConversationNotFound,
// non-members ErrNotParticipant, and the session is left CLOSED.
func (g *Gateway) OpenConversation(ctx context.Context, credential, conversationID string) (*ConversationSession, error) {
	s := &ConversationSession{session: newSession(g, EndpointChat), conversationID: conversationID}
	if err := s.authenticate(ctx, credential); err != nil {
		return nil, err
	}

	if _, err := uuid.Parse(conversationID); err != nil {
		return nil, s.reject("not_found", ErrConversationNotFound)
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	conv, found, err := g.store.GetConversation(storeCtx, conversationID)
	if err != nil {
		return nil, s.reject("store_error", fmt.Errorf("load conversation %s: %w", conversationID, err))
	}
	if !found {
		return nil, s.reject("not_found", ErrConversationNotFound)
	}
	if !conv.HasParticipant(s.Identity().UserID) {
		return nil, s.reject("not_participant", ErrNotParticipant)
	}

	s.participants = append([]string(nil), conv.Participants...)
	s.markAuthorized()
	return s, nil
}

// OpenPresence authenticates credential for the presence feed.
func (g *Gateway) OpenPresence(ctx context.Context, credential string) (*PresenceSession, error) {
	s := &PresenceSession{session: newSession(g, EndpointPresence)}
	if err := s.authenticate(ctx, credential); err != nil {
		return nil, err
	}
	s.markAuthorized()
	return s, nil
}

// OpenNotifications authenticates credential for the caller's notification feed.
func (g *Gateway) OpenNotifications(ctx context.Context, credential string) (*NotificationSession, error) {
	s := &NotificationSession{session: newSession(g, EndpointNotifications)}
	if err := s.authenticate(ctx, credential); err != nil {
		return nil, err
	}
	s.markAuthorized()
	return s, nil
}

// OnlineUsers returns the users currently online.
func (g *Gateway) OnlineUsers() []string {
	return g.tracker.ListOnline()
}

// broadcastStatus announces a presence transition, never to the user's own connections.
func (g *Gateway) broadcastStatus(ctx context.Context, who models.Identity, online bool) {
	frame, err := encode(UserStatusChangeFrame{
		Type:     FrameUserStatusChange,
		UserID:   who.UserID,
		UserName: who.Name,
		IsOnline: online,
	})
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("failed to encode status change")
		return
	}
	g.hub.Broadcast(ctx, websocket.Event{
		Channel:      websocket.PresenceChannel,
		Frame:        frame,
		OriginUserID: who.UserID,
		SkipOrigin:   true,
	})
}
