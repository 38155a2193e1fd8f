// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

package chat

import (
	"context"

	"github.com/tomtom215/workconnect/internal/logging"
	"github.com/tomtom215/workconnect/internal/websocket"
)

// PresenceSession is a connection to the global presence feed.
type PresenceSession struct {
	*session
}

// Attach sends initial_presence to conn, then joins the presence channel and
// marks the user online. The snapshot is taken before the user is counted
// and never lists the user, so a fresh connection never sees itself.
func (s *PresenceSession) Attach(ctx context.Context, conn websocket.Subscriber) error {
	self := s.Identity().UserID
	return s.join(ctx, conn, []string{websocket.PresenceChannel}, func() {
		online := s.gw.tracker.ListOnline()
		others := make([]string, 0, len(online))
		for _, id := range online {
			if id != self {
				others = append(others, id)
			}
		}

		frame, err := encode(InitialPresenceFrame{Type: FrameInitialPresence, OnlineUsers: others})
		if err != nil {
			logging.Ctx(ctx).Error().Err(err).Msg("failed to encode initial presence")
			return
		}
		s.reply(ctx, frame)
	})
}

// HandleFrame answers malformed frames and ignores everything else.
func (s *PresenceSession) HandleFrame(ctx context.Context, raw []byte) {
	s.decode(ctx, raw)
}

// NotificationSession is a connection to the caller's own notification feed.
type NotificationSession struct {
	*session
}

// Attach joins the caller's notification channel and marks the user online.
func (s *NotificationSession) Attach(ctx context.Context, conn websocket.Subscriber) error {
	channel := websocket.NotificationChannel(s.Identity().UserID)
	return s.join(ctx, conn, []string{channel}, nil)
}

// HandleFrame answers malformed frames and ignores everything else.
func (s *NotificationSession) HandleFrame(ctx context.Context, raw []byte) {
	s.decode(ctx, raw)
}
