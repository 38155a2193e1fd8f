// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/workconnect/internal/config"
	"github.com/tomtom215/workconnect/internal/models"
)

const testSecret = "test-secret-with-at-least-32-characters!!"

type fakeDirectory map[string]*models.User

func (d fakeDirectory) GetUser(_ context.Context, id string) (*models.User, bool, error) {
	if id == "boom" {
		return nil, false, errors.New("database is locked")
	}
	u, ok := d[id]
	return u, ok, nil
}

func newTestManager(t *testing.T) *JWTManager {
	t.Helper()
	m, err := NewJWTManager(&config.SecurityConfig{JWTSecret: testSecret})
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}
	return m
}

func signClaims(t *testing.T, claims jwt.Claims, secret string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestNewJWTManager_EmptySecret(t *testing.T) {
	if _, err := NewJWTManager(&config.SecurityConfig{}); err == nil {
		t.Error("expected error for empty secret")
	}
}

func TestValidateToken(t *testing.T) {
	m := newTestManager(t)
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))
	past := jwt.NewNumericDate(time.Now().Add(-time.Hour))

	valid, err := m.GenerateToken("17", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		token   string
		wantID  string
		wantErr bool
	}{
		{name: "generated", token: valid, wantID: "17"},
		{
			name: "numeric user_id",
			token: signClaims(t, jwt.MapClaims{
				"user_id": 42, "token_type": "access", "exp": future.Unix(),
			}, testSecret),
			wantID: "42",
		},
		{
			name: "no token_type",
			token: signClaims(t, jwt.MapClaims{
				"user_id": "abc", "exp": future.Unix(),
			}, testSecret),
			wantID: "abc",
		},
		{
			name: "refresh token",
			token: signClaims(t, jwt.MapClaims{
				"user_id": 42, "token_type": "refresh", "exp": future.Unix(),
			}, testSecret),
			wantErr: true,
		},
		{
			name: "expired",
			token: signClaims(t, jwt.MapClaims{
				"user_id": 42, "exp": past.Unix(),
			}, testSecret),
			wantErr: true,
		},
		{
			name: "no exp",
			token: signClaims(t, jwt.MapClaims{
				"user_id": 42,
			}, testSecret),
			wantErr: true,
		},
		{
			name: "wrong secret",
			token: signClaims(t, jwt.MapClaims{
				"user_id": 42, "exp": future.Unix(),
			}, "another-secret-that-is-long-enough-too"),
			wantErr: true,
		},
		{
			name: "fractional user_id",
			token: signClaims(t, jwt.MapClaims{
				"user_id": 4.5, "exp": future.Unix(),
			}, testSecret),
			wantErr: true,
		},
		{name: "garbage", token: "not-a-jwt", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := m.ValidateToken(tt.token)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCredential) {
					t.Errorf("err = %v, want ErrInvalidCredential", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateToken: %v", err)
			}
			if string(claims.UserID) != tt.wantID {
				t.Errorf("UserID = %q, want %q", claims.UserID, tt.wantID)
			}
		})
	}
}

func TestResolveIdentity(t *testing.T) {
	m := newTestManager(t)
	dir := fakeDirectory{
		"1": {ID: "1", Email: "ann@example.com", FullName: "Ann", Avatar: "avatars/1.png", Role: "client", IsActive: true},
		"2": {ID: "2", Email: "bob@example.com", IsActive: true},
		"3": {ID: "3", Email: "gone@example.com", IsActive: false},
	}
	a := NewAuthenticator(m, dir)
	ctx := context.Background()

	token := func(id string) string {
		tok, err := m.GenerateToken(id, time.Minute)
		if err != nil {
			t.Fatal(err)
		}
		return tok
	}

	id, err := a.ResolveIdentity(ctx, token("1"))
	if err != nil {
		t.Fatalf("ResolveIdentity: %v", err)
	}
	if id.UserID != "1" || id.Name != "Ann" || id.Role != "client" || id.Avatar != "avatars/1.png" {
		t.Errorf("identity = %+v", id)
	}

	id, _ = a.ResolveIdentity(ctx, token("2"))
	if id.Name != "bob@example.com" {
		t.Errorf("display name fallback = %q", id.Name)
	}

	rejections := []struct {
		name string
		cred string
		want error
	}{
		{"missing", "", ErrMissingCredential},
		{"invalid", "xyz", ErrInvalidCredential},
		{"unknown", token("99"), ErrUnknownUser},
		{"inactive", token("3"), ErrInactiveUser},
	}
	for _, tt := range rejections {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.ResolveIdentity(ctx, tt.cred)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if !IsRejection(err) {
				t.Errorf("IsRejection(%v) = false", err)
			}
		})
	}

	_, err = a.ResolveIdentity(ctx, token("boom"))
	if err == nil || IsRejection(err) {
		t.Errorf("store failure classified as rejection: %v", err)
	}
}

func TestCredentialFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		header string
		want   string
	}{
		{"query", "/ws/presence?token=abc", "", "abc"},
		{"header", "/ws/presence", "Bearer xyz", "xyz"},
		{"lowercase scheme", "/ws/presence", "bearer xyz", "xyz"},
		{"query wins", "/ws/presence?token=abc", "Bearer xyz", "abc"},
		{"basic ignored", "/ws/presence", "Basic Zm9v", ""},
		{"none", "/ws/presence", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.url, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if got := CredentialFromRequest(r); got != tt.want {
				t.Errorf("CredentialFromRequest() = %q, want %q", got, tt.want)
			}
		})
	}
}
