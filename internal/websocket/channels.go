// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

package websocket

import "strings"

// Channel kinds, also used as metric labels.
const (
	KindConversation = "conversation"
	KindPresence     = "presence"
	KindNotification = "notifications"
	KindUnknown      = "unknown"
)

// PresenceChannel is the single global presence feed.
const PresenceChannel = KindPresence

// ConversationChannel names the channel of one conversation.
func ConversationChannel(conversationID string) string {
	return KindConversation + ":" + conversationID
}

// NotificationChannel names the personal notification feed of a user.
func NotificationChannel(userID string) string {
	return KindNotification + ":" + userID
}

// ChannelKind returns the kind prefix of a channel name.
func ChannelKind(channel string) string {
	if channel == PresenceChannel {
		return KindPresence
	}
	kind, _, ok := strings.Cut(channel, ":")
	if !ok {
		return KindUnknown
	}
	switch kind {
	case KindConversation, KindNotification:
		return kind
	}
	return KindUnknown
}
