// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

package chat

import (
	"context"
	"strings"

	"github.com/tomtom215/workconnect/internal/logging"
	"github.com/tomtom215/workconnect/internal/metrics"
	"github.com/tomtom215/workconnect/internal/models"
	"github.com/tomtom215/workconnect/internal/validation"
	"github.com/tomtom215/workconnect/internal/websocket"
)

// ConversationSession is one connection to one conversation.
type ConversationSession struct {
	*session
	conversationID string
	participants   []string
}

// ConversationID returns the conversation this session is bound to.
func (s *ConversationSession) ConversationID() string {
	return s.conversationID
}

func (s *ConversationSession) channel() string {
	return websocket.ConversationChannel(s.conversationID)
}

// Attach joins conn to the conversation channel and marks the user online.
func (s *ConversationSession) Attach(ctx context.Context, conn websocket.Subscriber) error {
	return s.join(ctx, conn, []string{s.channel()}, nil)
}

// HandleFrame processes one inbound frame. Frames of a session must be
// handled sequentially.
func (s *ConversationSession) HandleFrame(ctx context.Context, raw []byte) {
	frame, ok := s.decode(ctx, raw)
	if !ok {
		return
	}

	switch f := frame.(type) {
	case *SendMessageFrame:
		s.sendMessage(ctx, f)
	case *MarkAsReadFrame:
		s.markAsRead(ctx, f)
	case *TypingFrame:
		s.typing(ctx, f.IsTyping)
	case *UnknownFrame:
		logging.Ctx(ctx).Debug().Str("frame_type", f.Type).Msg("ignoring unknown frame type")
	}
}

// validateSend returns the error message for an unacceptable send, or "".
func (s *ConversationSession) validateSend(f *SendMessageFrame) string {
	if verr := validation.ValidateStruct(f); verr != nil {
		if verr.HasTag("message_type", "message_type") {
			return MsgInvalidMessageType
		}
		return verr.First().Error()
	}

	msgType := models.MessageType(f.MessageType)
	switch {
	case msgType == models.MessageText && f.Content == "":
		return MsgEmptyContent
	case msgType == models.MessageFile && f.FileAttachment == "":
		return MsgAttachmentRequired
	case len([]rune(f.Content)) > s.gw.opts.MaxMessageContent:
		return MsgContentTooLong
	}
	return ""
}

// sendMessage persists first and broadcasts only after the write succeeded.
func (s *ConversationSession) sendMessage(ctx context.Context, f *SendMessageFrame) {
	f.Content = strings.TrimSpace(f.Content)
	f.FileAttachment = strings.TrimSpace(f.FileAttachment)
	if f.MessageType == "" {
		f.MessageType = string(models.MessageText)
	}
	if msg := s.validateSend(f); msg != "" {
		s.replyError(ctx, "validation", msg)
		return
	}

	sender := s.Identity()
	storeCtx, cancel := s.storeContext(ctx)
	msg, err := s.gw.store.CreateMessage(storeCtx, models.NewMessage{
		ConversationID: s.conversationID,
		SenderID:       sender.UserID,
		Content:        f.Content,
		Type:           models.MessageType(f.MessageType),
		FileAttachment: f.FileAttachment,
	})
	cancel()
	if err != nil {
		metrics.MessagesFailed.Inc()
		logging.Ctx(ctx).Error().Err(err).Str("conversation_id", s.conversationID).Msg("failed to persist message")
		s.replyError(ctx, "persistence", MsgSendFailed)
		return
	}
	metrics.MessagesPersisted.WithLabelValues(string(msg.Type)).Inc()

	frame, err := encode(MessageReceivedFrame{
		Type:    FrameMessageReceived,
		Message: RenderMessage(msg, sender, s.gw.opts.MediaBaseURL),
	})
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("message_id", msg.ID).Msg("failed to encode message")
		return
	}
	s.gw.hub.Broadcast(ctx, websocket.Event{
		Channel:      s.channel(),
		Frame:        frame,
		OriginUserID: sender.UserID,
	})

	s.gw.notifier.NotifyNewMessage(ctx, s.conversationID, msg, sender, s.participants)
}

// markAsRead flips messages of this conversation not sent by the caller and
// broadcasts a receipt naming only the ids that changed.
func (s *ConversationSession) markAsRead(ctx context.Context, f *MarkAsReadFrame) {
	if verr := validation.ValidateStruct(f); verr != nil {
		s.replyError(ctx, "validation", MsgInvalidMessageIDs)
		return
	}
	if len(f.MessageIDs) > s.gw.opts.MaxMarkReadIDs {
		s.replyError(ctx, "validation", MsgTooManyMessageIDs)
		return
	}
	if len(f.MessageIDs) == 0 {
		return
	}

	reader := s.Identity().UserID
	storeCtx, cancel := s.storeContext(ctx)
	flipped, err := s.gw.store.MarkMessagesRead(storeCtx, s.conversationID, reader, f.MessageIDs)
	cancel()
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("conversation_id", s.conversationID).Msg("failed to mark messages read")
		s.replyError(ctx, "persistence", MsgMarkReadFailed)
		return
	}
	if len(flipped) == 0 {
		return
	}
	metrics.MessagesMarkedRead.Add(float64(len(flipped)))

	frame, err := encode(MessagesReadFrame{Type: FrameMessagesRead, MessageIDs: flipped, ReaderID: reader})
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("failed to encode read receipt")
		return
	}
	s.gw.hub.Broadcast(ctx, websocket.Event{Channel: s.channel(), Frame: frame, OriginUserID: reader})
}

// typing is never echoed to any connection of the typist.
func (s *ConversationSession) typing(ctx context.Context, isTyping bool) {
	who := s.Identity()
	frame, err := encode(TypingIndicatorFrame{
		Type:     FrameTypingIndicator,
		UserID:   who.UserID,
		UserName: who.Name,
		IsTyping: isTyping,
	})
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("failed to encode typing indicator")
		return
	}
	s.gw.hub.Broadcast(ctx, websocket.Event{
		Channel:      s.channel(),
		Frame:        frame,
		OriginUserID: who.UserID,
		SkipOrigin:   true,
	})
}
