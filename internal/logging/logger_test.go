// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	if idx := strings.LastIndex(line, "\n"); idx >= 0 {
		line = line[idx+1:]
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("invalid log line %q: %v", line, err)
	}
	return m
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestValidLevel(t *testing.T) {
	if !ValidLevel("debug") || !ValidLevel(" Warn ") {
		t.Error("expected debug and warn to be valid")
	}
	if ValidLevel("verbose") {
		t.Error("verbose should not be valid")
	}
}

func TestInit_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	Info().Str("conversation_id", "c1").Msg("joined")

	m := decodeLine(t, &buf)
	if m["message"] != "joined" {
		t.Errorf("message = %v, want joined", m["message"])
	}
	if m["conversation_id"] != "c1" {
		t.Errorf("conversation_id = %v, want c1", m["conversation_id"])
	}
	if m["level"] != "info" {
		t.Errorf("level = %v, want info", m["level"])
	}
}

func TestCtx_AddsConnectionFields(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Output: &buf})
	defer Init(DefaultConfig())

	ctx := ContextWithConnection(context.Background(), "abcd1234", "42")
	ctx = ContextWithRequestID(ctx, "req-1")
	Ctx(ctx).Info().Msg("frame")

	m := decodeLine(t, &buf)
	if m["connection_id"] != "abcd1234" || m["user_id"] != "42" || m["request_id"] != "req-1" {
		t.Errorf("context fields missing: %v", m)
	}
}

func TestNewConnectionID(t *testing.T) {
	a, b := NewConnectionID(), NewConnectionID()
	if len(a) != 8 {
		t.Errorf("len = %d, want 8", len(a))
	}
	if a == b {
		t.Error("ids should differ")
	}
}

func TestSlogHandler(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	defer Init(DefaultConfig())

	slog.New(NewSlogHandler()).WithGroup("svc").Warn("restarting", "attempt", 3, "err", errors.New("boom"))

	m := decodeLine(t, &buf)
	if m["level"] != "warn" {
		t.Errorf("level = %v, want warn", m["level"])
	}
	if m["svc.attempt"] != float64(3) {
		t.Errorf("svc.attempt = %v, want 3", m["svc.attempt"])
	}
	if m["svc.err"] != "boom" {
		t.Errorf("svc.err = %v, want boom", m["svc.err"])
	}
}

func TestWatermillLogger(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	defer Init(DefaultConfig())

	var adapter watermill.LoggerAdapter = NewWatermillLogger()
	adapter.With(watermill.LogFields{"topic": "broadcasts"}).Error("publish failed", errors.New("down"), nil)

	m := decodeLine(t, &buf)
	if m["component"] != "relay" || m["topic"] != "broadcasts" || m["error"] != "down" {
		t.Errorf("unexpected fields: %v", m)
	}
}
