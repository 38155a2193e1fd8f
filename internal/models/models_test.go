// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

package models

import "testing"

func TestMediaURL(t *testing.T) {
	tests := []struct {
		name, base, path, want string
	}{
		{"empty path", "https://cdn.example", "", ""},
		{"relative", "https://cdn.example", "avatars/a.png", "https://cdn.example/avatars/a.png"},
		{"slashes collapsed", "https://cdn.example/media/", "/chat/f.pdf", "https://cdn.example/media/chat/f.pdf"},
		{"already absolute", "https://cdn.example", "https://s3.example/x.png", "https://s3.example/x.png"},
		{"no base", "", "avatars/a.png", "avatars/a.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MediaURL(tt.base, tt.path); got != tt.want {
				t.Errorf("MediaURL(%q, %q) = %q, want %q", tt.base, tt.path, got, tt.want)
			}
		})
	}
}

func TestMessageTypeValid(t *testing.T) {
	for _, mt := range []MessageType{MessageText, MessageImage, MessageFile, MessageVoice} {
		if !mt.Valid() {
			t.Errorf("%q should be valid", mt)
		}
	}
	if MessageType("video").Valid() {
		t.Error("video should not be valid")
	}
}

func TestUserDisplayName(t *testing.T) {
	u := &User{ID: "1", Email: "a@example.com", FullName: "  "}
	if u.DisplayName() != "a@example.com" {
		t.Errorf("DisplayName() = %q, want email fallback", u.DisplayName())
	}
	u.FullName = "Ada Lovelace"
	id := u.Identity()
	if id.Name != "Ada Lovelace" || id.UserID != "1" {
		t.Errorf("Identity() = %+v", id)
	}
}

func TestConversationHasParticipant(t *testing.T) {
	c := &Conversation{Participants: []string{"1", "2"}}
	if !c.HasParticipant("2") || c.HasParticipant("3") {
		t.Error("HasParticipant mismatch")
	}
}
