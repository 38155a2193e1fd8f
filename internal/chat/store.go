// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

// Package chat implements the realtime sessions: conversation chat,
// the presence feed and the personal notification feed.
package chat

import (
	"context"
	"errors"

	"github.com/tomtom215/workconnect/internal/models"
)

// Store is the durable side of a conversation. *database.DB implements it.
type Store interface {
	GetConversation(ctx context.Context, id string) (*models.Conversation, bool, error)
	CreateMessage(ctx context.Context, msg models.NewMessage) (*models.Message, error)
	MarkMessagesRead(ctx context.Context, conversationID, readerID string, ids []string) ([]string, error)
}

// IdentityResolver turns a bearer credential into an identity.
// *auth.Authenticator implements it.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, credential string) (models.Identity, error)
}

// Handshake and lifecycle errors.
var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotParticipant       = errors.New("user is not a participant of the conversation")
	ErrInvalidState         = errors.New("session is not in the required state")
	ErrSessionClosed        = errors.New("session closed")
)
