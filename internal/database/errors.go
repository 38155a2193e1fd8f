// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

package database

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/tomtom215/workconnect/internal/logging"
)

var (
	// ErrNotParticipant is returned when a message sender is not a member of
	// the target conversation.
	ErrNotParticipant = errors.New("sender is not a participant of the conversation")

	// ErrConversationNotFound is returned by writes against a missing conversation.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrInvalidConversation rejects conversations with fewer than two participants.
	ErrInvalidConversation = errors.New("conversation needs at least two distinct participants")
)

const (
	conflictRetries    = 3
	conflictRetryDelay = 20 * time.Millisecond
)

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}

func closeWithLog(c io.Closer, resource string) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		logging.Warn().Str("type", resource).Err(err).Msg("Failed to close resource")
	}
}

// isTransactionConflict matches DuckDB optimistic concurrency failures.
func isTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "Transaction conflict") || strings.Contains(s, "Conflict on update")
}

// withConflictRetry re-runs fn while DuckDB reports a write-write conflict.
func withConflictRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		if err = fn(); !isTransactionConflict(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(conflictRetryDelay * time.Duration(attempt+1)):
		}
	}
	return err
}
