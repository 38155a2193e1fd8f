// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

package chat

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"

	"github.com/tomtom215/workconnect/internal/models"
)

// FrameType is the "type" tag of a frame.
type FrameType string

// Inbound frame types.
const (
	FrameSendMessage FrameType = "send_message"
	FrameMarkAsRead  FrameType = "mark_as_read"
	FrameTypingStart FrameType = "typing_start"
	FrameTypingStop  FrameType = "typing_stop"
)

// Outbound frame types.
const (
	FrameMessageReceived        FrameType = "message_received"
	FrameMessagesRead           FrameType = "messages_read"
	FrameTypingIndicator        FrameType = "typing_indicator"
	FrameUserStatusChange       FrameType = "user_status_change"
	FrameInitialPresence        FrameType = "initial_presence"
	FrameNewMessageNotification FrameType = "new_message_notification"
	FrameError                  FrameType = "error"
)

// Error frame messages shown to clients.
const (
	MsgInvalidJSON        = "Invalid JSON format"
	MsgEmptyContent       = "Message content cannot be empty"
	MsgAttachmentRequired = "File attachment is required"
	MsgInvalidMessageType = "Invalid message type"
	MsgContentTooLong     = "Message content is too long"
	MsgTooManyMessageIDs  = "Too many message ids"
	MsgInvalidMessageIDs  = "Message ids must be non-empty strings"
	MsgSendFailed         = "Failed to send message"
	MsgMarkReadFailed     = "Failed to mark messages as read"
	MsgRateLimited        = "Rate limit exceeded"
)

// ErrInvalidJSON is returned by DecodeFrame for bytes that are not a JSON
// object or whose fields have the wrong JSON types.
var ErrInvalidJSON = errors.New("invalid JSON format")

// InboundFrame is one decoded client frame: *SendMessageFrame,
// *MarkAsReadFrame, *TypingFrame or *UnknownFrame.
type InboundFrame interface {
	FrameType() FrameType
}

// SendMessageFrame asks to persist and broadcast a message.
type SendMessageFrame struct {
	Content        string `json:"content"`
	MessageType    string `json:"message_type" validate:"omitempty,message_type"`
	FileAttachment string `json:"file_attachment"`
}

// MarkAsReadFrame asks to flip the read flag of messages.
type MarkAsReadFrame struct {
	MessageIDs []string `json:"message_ids" validate:"dive,required"`
}

// TypingFrame is typing_start or typing_stop.
type TypingFrame struct {
	IsTyping bool
}

// UnknownFrame carries an unrecognized type tag. It is ignored.
type UnknownFrame struct {
	Type string
}

func (*SendMessageFrame) FrameType() FrameType { return FrameSendMessage }
func (*MarkAsReadFrame) FrameType() FrameType  { return FrameMarkAsRead }
func (*UnknownFrame) FrameType() FrameType     { return "unknown" }

func (f *TypingFrame) FrameType() FrameType {
	if f.IsTyping {
		return FrameTypingStart
	}
	return FrameTypingStop
}

type envelope struct {
	Type string `json:"type"`
}

// DecodeFrame parses raw into its frame variant.
func DecodeFrame(raw []byte) (InboundFrame, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	var frame InboundFrame
	switch FrameType(env.Type) {
	case FrameSendMessage:
		frame = &SendMessageFrame{}
	case FrameMarkAsRead:
		frame = &MarkAsReadFrame{}
	case FrameTypingStart:
		return &TypingFrame{IsTyping: true}, nil
	case FrameTypingStop:
		return &TypingFrame{IsTyping: false}, nil
	default:
		return &UnknownFrame{Type: env.Type}, nil
	}

	if err := json.Unmarshal(raw, frame); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return frame, nil
}

// SenderPayload describes the author of a message.
type SenderPayload struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Avatar *string `json:"avatar"`
}

// MessagePayload is the client view of a message.
type MessagePayload struct {
	ID             string             `json:"id"`
	Content        string             `json:"content"`
	MessageType    models.MessageType `json:"message_type"`
	FileAttachment *string            `json:"file_attachment"`
	Sender         SenderPayload      `json:"sender"`
	CreatedAt      time.Time          `json:"created_at"`
	IsRead         bool               `json:"is_read"`
}

// NotificationPayload is the condensed message carried by notifications.
type NotificationPayload struct {
	ID          string             `json:"id"`
	Content     string             `json:"content"`
	MessageType models.MessageType `json:"message_type"`
	CreatedAt   time.Time          `json:"created_at"`
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// RenderMessage builds the client view of msg sent by sender. Media paths
// are made absolute against mediaBase.
func RenderMessage(msg *models.Message, sender models.Identity, mediaBase string) MessagePayload {
	return MessagePayload{
		ID:             msg.ID,
		Content:        msg.Content,
		MessageType:    msg.Type,
		FileAttachment: nullable(models.MediaURL(mediaBase, msg.FileAttachment)),
		Sender: SenderPayload{
			ID:     sender.UserID,
			Name:   sender.Name,
			Avatar: nullable(models.MediaURL(mediaBase, sender.Avatar)),
		},
		CreatedAt: msg.CreatedAt,
		IsRead:    msg.IsRead,
	}
}

// Preview shortens content to at most limit runes, appending "..." when cut.
// A non-positive limit keeps the content whole.
func Preview(content string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(content) <= limit {
		return content
	}
	runes := []rune(content)
	return string(runes[:limit]) + "..."
}

// ErrorFrame reports a non-fatal problem to the sender only.
type ErrorFrame struct {
	Type    FrameType `json:"type"`
	Message string    `json:"message"`
}

// MessageReceivedFrame carries a newly persisted message.
type MessageReceivedFrame struct {
	Type    FrameType      `json:"type"`
	Message MessagePayload `json:"message"`
}

// MessagesReadFrame is a read receipt.
type MessagesReadFrame struct {
	Type       FrameType `json:"type"`
	MessageIDs []string  `json:"message_ids"`
	ReaderID   string    `json:"reader_id"`
}

// TypingIndicatorFrame tells members that someone started or stopped typing.
type TypingIndicatorFrame struct {
	Type     FrameType `json:"type"`
	UserID   string    `json:"user_id"`
	UserName string    `json:"user_name"`
	IsTyping bool      `json:"is_typing"`
}

// UserStatusChangeFrame announces an online/offline transition.
type UserStatusChangeFrame struct {
	Type     FrameType `json:"type"`
	UserID   string    `json:"user_id"`
	UserName string    `json:"user_name"`
	IsOnline bool      `json:"is_online"`
}

// InitialPresenceFrame lists who was online when a presence connection opened.
type InitialPresenceFrame struct {
	Type        FrameType `json:"type"`
	OnlineUsers []string  `json:"online_users"`
}

// NewMessageNotificationFrame is the out-of-conversation new message alert.
type NewMessageNotificationFrame struct {
	Type           FrameType           `json:"type"`
	ConversationID string              `json:"conversation_id"`
	Message        NotificationPayload `json:"message"`
	SenderName     string              `json:"sender_name"`
}

// EncodeError returns an encoded error frame.
func EncodeError(message string) []byte {
	// A two-string struct always marshals.
	data, _ := json.Marshal(ErrorFrame{Type: FrameError, Message: message})
	return data
}

func encode(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return data, nil
}
