// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tomtom215/workconnect/internal/models"
)

// CreateConversation stores a conversation between participants (in order).
// Duplicate ids are collapsed; fewer than two distinct participants is an error.
func (db *DB) CreateConversation(ctx context.Context, participants []string, jobID string) (*models.Conversation, error) {
	seen := make(map[string]struct{}, len(participants))
	ordered := make([]string, 0, len(participants))
	for _, p := range participants {
		if _, dup := seen[p]; dup || p == "" {
			continue
		}
		seen[p] = struct{}{}
		ordered = append(ordered, p)
	}
	if len(ordered) < 2 {
		return nil, ErrInvalidConversation
	}

	ctx, cancel := ensureContext(ctx)
	defer cancel()

	now := db.now().Truncate(timestampPrecision)
	conv := &models.Conversation{
		ID:           uuid.NewString(),
		Participants: ordered,
		JobID:        jobID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (id, job_id, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		conv.ID, jobID, now, now); err != nil {
		return nil, fmt.Errorf("failed to insert conversation: %w", err)
	}
	for i, p := range ordered {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO conversation_participants (conversation_id, user_id, position) VALUES (?, ?, ?)`,
			conv.ID, p, i); err != nil {
			return nil, fmt.Errorf("failed to insert participant %s: %w", p, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit conversation: %w", err)
	}
	return conv, nil
}

// GetConversation loads a conversation and its participants.
// found is false when the id does not exist.
func (db *DB) GetConversation(ctx context.Context, id string) (conv *models.Conversation, found bool, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	c := &models.Conversation{ID: id}
	err = db.conn.QueryRowContext(ctx, `
		SELECT job_id, last_message_id, created_at, updated_at
		FROM conversations WHERE id = ?`, id).
		Scan(&c.JobID, &c.LastMessageID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load conversation %s: %w", id, err)
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT user_id FROM conversation_participants
		WHERE conversation_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load participants of %s: %w", id, err)
	}
	defer closeWithLog(rows, "rows")

	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, false, fmt.Errorf("failed to scan participant: %w", err)
		}
		c.Participants = append(c.Participants, uid)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("failed to iterate participants: %w", err)
	}
	return c, true, nil
}
