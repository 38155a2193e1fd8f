// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

// Package models holds the entities shared between the store, the gateway
// and the HTTP layer.
package models

import (
	"strings"
	"time"
)

// MessageType tags the payload of a message.
type MessageType string

// Message types accepted on send_message.
const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageFile  MessageType = "file"
	MessageVoice MessageType = "voice"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageFile, MessageVoice:
		return true
	}
	return false
}

// Identity is the authenticated principal behind a connection.
type Identity struct {
	UserID string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Role   string `json:"role,omitempty"`
}

// User is a row of the user directory.
type User struct {
	ID       string
	Email    string
	FullName string
	Avatar   string
	Role     string
	IsActive bool
}

// DisplayName falls back to the email when no full name is set.
func (u *User) DisplayName() string {
	if name := strings.TrimSpace(u.FullName); name != "" {
		return name
	}
	return u.Email
}

// Identity projects the user onto a connection identity.
func (u *User) Identity() Identity {
	return Identity{UserID: u.ID, Name: u.DisplayName(), Avatar: u.Avatar, Role: u.Role}
}

// Conversation is a durable chat between two or more participants.
type Conversation struct {
	ID            string
	Participants  []string
	JobID         string
	LastMessageID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasParticipant reports whether userID belongs to the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Message is a persisted chat message.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Content        string
	Type           MessageType
	FileAttachment string
	IsRead         bool
	CreatedAt      time.Time
}

// NewMessage carries the fields of a message about to be created.
type NewMessage struct {
	ConversationID string
	SenderID       string
	Content        string
	Type           MessageType
	FileAttachment string
}

// PresenceRecord is the durable online flag and last-seen time of a user.
type PresenceRecord struct {
	UserID   string    `json:"user_id"`
	IsOnline bool      `json:"is_online"`
	LastSeen time.Time `json:"last_seen"`
}
