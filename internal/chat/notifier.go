// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

package chat

import (
	"context"

	"github.com/tomtom215/workconnect/internal/logging"
	"github.com/tomtom215/workconnect/internal/metrics"
	"github.com/tomtom215/workconnect/internal/models"
	"github.com/tomtom215/workconnect/internal/websocket"
)

// Notifier sends new_message_notification to participants' personal feeds.
// Delivery is at most once: a recipient without a live notification
// connection simply misses it.
type Notifier struct {
	hub           *websocket.Hub
	previewLength int
}

// NewNotifier creates a notifier truncating previews to previewLength runes.
func NewNotifier(hub *websocket.Hub, previewLength int) *Notifier {
	return &Notifier{hub: hub, previewLength: previewLength}
}

// NotifyNewMessage notifies every participant except the sender and returns
// how many recipients were addressed.
func (n *Notifier) NotifyNewMessage(ctx context.Context, conversationID string, msg *models.Message, sender models.Identity, participants []string) int {
	frame, err := encode(NewMessageNotificationFrame{
		Type:           FrameNewMessageNotification,
		ConversationID: conversationID,
		Message: NotificationPayload{
			ID:          msg.ID,
			Content:     Preview(msg.Content, n.previewLength),
			MessageType: msg.Type,
			CreatedAt:   msg.CreatedAt,
		},
		SenderName: sender.Name,
	})
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("message_id", msg.ID).Msg("failed to encode notification")
		return 0
	}

	addressed := 0
	seen := make(map[string]struct{}, len(participants))
	for _, userID := range participants {
		if userID == msg.SenderID {
			continue
		}
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}

		n.hub.Broadcast(ctx, websocket.Event{
			Channel:      websocket.NotificationChannel(userID),
			Frame:        frame,
			OriginUserID: msg.SenderID,
		})
		addressed++
	}
	metrics.NotificationsSent.Add(float64(addressed))
	return addressed
}
