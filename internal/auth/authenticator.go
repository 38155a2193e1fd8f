// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

// Package auth resolves the bearer credential presented on a realtime
// handshake into a user identity.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tomtom215/workconnect/internal/models"
)

// Handshake failures. All of them reject the connection before upgrade.
var (
	ErrMissingCredential = errors.New("missing credential")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrUnknownUser       = errors.New("unknown user")
	ErrInactiveUser      = errors.New("inactive user")
)

// UserDirectory looks users up by id. *database.DB implements it.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (*models.User, bool, error)
}

// Authenticator validates access tokens and loads the identity behind them.
type Authenticator struct {
	tokens *JWTManager
	users  UserDirectory
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(tokens *JWTManager, users UserDirectory) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// ResolveIdentity returns the identity of the token's user. Store failures
// are returned wrapped and unclassified; every other failure wraps one of
// the sentinel errors above.
func (a *Authenticator) ResolveIdentity(ctx context.Context, credential string) (models.Identity, error) {
	if credential == "" {
		return models.Identity{}, ErrMissingCredential
	}

	claims, err := a.tokens.ValidateToken(credential)
	if err != nil {
		return models.Identity{}, err
	}

	user, found, err := a.users.GetUser(ctx, string(claims.UserID))
	if err != nil {
		return models.Identity{}, fmt.Errorf("load user %s: %w", claims.UserID, err)
	}
	if !found {
		return models.Identity{}, fmt.Errorf("%w: %s", ErrUnknownUser, claims.UserID)
	}
	if !user.IsActive {
		return models.Identity{}, fmt.Errorf("%w: %s", ErrInactiveUser, claims.UserID)
	}
	return user.Identity(), nil
}

// IsRejection reports whether err means the client presented a bad
// credential, as opposed to a server-side failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrMissingCredential) ||
		errors.Is(err, ErrInvalidCredential) ||
		errors.Is(err, ErrUnknownUser) ||
		errors.Is(err, ErrInactiveUser)
}

// CredentialFromRequest extracts the bearer token from the "token" query
// parameter, which browsers must use for websockets, or the Authorization header.
func CredentialFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
