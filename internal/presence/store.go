// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

// Package presence tracks which users hold at least one live connection and
// mirrors that state, best effort, into a durable store.
package presence

import (
	"context"

	"github.com/tomtom215/workconnect/internal/models"
)

// Store is the durable side of presence. *database.DB, *BadgerStore and
// *BreakerStore implement it.
type Store interface {
	GetOrCreatePresence(ctx context.Context, userID string) (*models.PresenceRecord, error)
	SetPresence(ctx context.Context, userID string, online bool) error
	ListOnlineUserIDs(ctx context.Context) ([]string, error)
	ResetOnlinePresence(ctx context.Context) (int, error)
}
