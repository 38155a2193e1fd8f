// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

package chat

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/workconnect/internal/models"
)

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    FrameType
		wantErr bool
	}{
		{"send", `{"type":"send_message","content":"hi"}`, FrameSendMessage, false},
		{"mark", `{"type":"mark_as_read","message_ids":["a","b"]}`, FrameMarkAsRead, false},
		{"typing start", `{"type":"typing_start"}`, FrameTypingStart, false},
		{"typing stop", `{"type":"typing_stop"}`, FrameTypingStop, false},
		{"unknown", `{"type":"dance"}`, "unknown", false},
		{"missing type", `{"content":"hi"}`, "unknown", false},
		{"not json", `hello`, "", true},
		{"wrong field type", `{"type":"mark_as_read","message_ids":"a"}`, "", true},
		{"array", `[1,2]`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := DecodeFrame([]byte(tt.raw))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidJSON) {
					t.Fatalf("err = %v, want ErrInvalidJSON", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeFrame: %v", err)
			}
			if f.FrameType() != tt.want {
				t.Errorf("FrameType = %q, want %q", f.FrameType(), tt.want)
			}
		})
	}
}

func TestDecodeFrame_Fields(t *testing.T) {
	f, err := DecodeFrame([]byte(`{"type":"send_message","content":"see file","message_type":"file","file_attachment":"chat/a.pdf"}`))
	if err != nil {
		t.Fatal(err)
	}
	send, ok := f.(*SendMessageFrame)
	if !ok {
		t.Fatalf("got %T", f)
	}
	if send.Content != "see file" || send.MessageType != "file" || send.FileAttachment != "chat/a.pdf" {
		t.Errorf("fields = %+v", send)
	}
}

func TestPreview(t *testing.T) {
	long := strings.Repeat("a", 150)
	if got := Preview(long, 100); got != strings.Repeat("a", 100)+"..." {
		t.Errorf("Preview(150 chars) len = %d", len(got))
	}
	if got := Preview("short", 100); got != "short" {
		t.Errorf("Preview(short) = %q", got)
	}
	exact := strings.Repeat("b", 100)
	if got := Preview(exact, 100); got != exact {
		t.Error("content of exactly the limit must not be cut")
	}
	// Runes, not bytes.
	emoji := strings.Repeat("é", 120)
	if got := Preview(emoji, 100); got != strings.Repeat("é", 100)+"..." {
		t.Errorf("Preview cut inside a rune: %q", got)
	}
	if got := Preview(long, 0); got != long {
		t.Error("non-positive limit must keep content")
	}
}

func TestRenderMessage(t *testing.T) {
	created := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	msg := &models.Message{
		ID:             "m1",
		Content:        "photo",
		Type:           models.MessageImage,
		FileAttachment: "chat/p.png",
		CreatedAt:      created,
	}
	sender := models.Identity{UserID: "7", Name: "Ada", Avatar: "avatars/7.png"}

	p := RenderMessage(msg, sender, "https://cdn.example.com/media/")
	if p.FileAttachment == nil || *p.FileAttachment != "https://cdn.example.com/media/chat/p.png" {
		t.Errorf("FileAttachment = %v", p.FileAttachment)
	}
	if p.Sender.Avatar == nil || *p.Sender.Avatar != "https://cdn.example.com/media/avatars/7.png" {
		t.Errorf("Avatar = %v", p.Sender.Avatar)
	}

	data, err := json.Marshal(MessageReceivedFrame{Type: FrameMessageReceived, Message: RenderMessage(&models.Message{ID: "m2", Type: models.MessageText}, models.Identity{UserID: "7"}, "")})
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if v, ok := decoded["message"]["file_attachment"]; !ok || v != nil {
		t.Errorf("file_attachment = %v, want explicit null", v)
	}
}

func TestEncodeError(t *testing.T) {
	var f ErrorFrame
	if err := json.Unmarshal(EncodeError(MsgInvalidJSON), &f); err != nil {
		t.Fatal(err)
	}
	if f.Type != FrameError || f.Message != "Invalid JSON format" {
		t.Errorf("frame = %+v", f)
	}
}
