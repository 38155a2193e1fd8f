// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

package database

import (
	"context"
	"fmt"

	"github.com/tomtom215/workconnect/internal/models"
)

// GetOrCreatePresence returns the presence row of userID, inserting an
// offline record first if none exists.
func (db *DB) GetOrCreatePresence(ctx context.Context, userID string) (*models.PresenceRecord, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	mu := db.lockFor(&db.presenceLocks, userID)
	mu.Lock()
	defer mu.Unlock()

	if _, err := db.conn.ExecContext(ctx, `
		INSERT INTO user_presence (user_id, is_online, last_seen) VALUES (?, FALSE, ?)
		ON CONFLICT (user_id) DO NOTHING`,
		userID, db.now().Truncate(timestampPrecision)); err != nil {
		return nil, fmt.Errorf("failed to create presence for %s: %w", userID, err)
	}

	rec := &models.PresenceRecord{UserID: userID}
	if err := db.conn.QueryRowContext(ctx, `
		SELECT is_online, last_seen FROM user_presence WHERE user_id = ?`, userID).
		Scan(&rec.IsOnline, &rec.LastSeen); err != nil {
		return nil, fmt.Errorf("failed to load presence for %s: %w", userID, err)
	}
	return rec, nil
}

// SetPresence writes the online flag and bumps last_seen, creating the row if needed.
func (db *DB) SetPresence(ctx context.Context, userID string, online bool) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	mu := db.lockFor(&db.presenceLocks, userID)
	mu.Lock()
	defer mu.Unlock()

	now := db.now().Truncate(timestampPrecision)
	err := withConflictRetry(ctx, func() error {
		_, err := db.conn.ExecContext(ctx, `
			INSERT INTO user_presence (user_id, is_online, last_seen) VALUES (?, ?, ?)
			ON CONFLICT (user_id) DO UPDATE SET
				is_online = excluded.is_online,
				last_seen = excluded.last_seen`,
			userID, online, now)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to set presence for %s: %w", userID, err)
	}
	return nil
}

// ListOnlineUserIDs returns ids of users whose durable record is online.
func (db *DB) ListOnlineUserIDs(ctx context.Context) ([]string, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT user_id FROM user_presence WHERE is_online ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list online users: %w", err)
	}
	defer closeWithLog(rows, "rows")

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ResetOnlinePresence marks every online record offline and returns how many
// rows changed. Used at startup, when no connection can be live yet.
func (db *DB) ResetOnlinePresence(ctx context.Context) (int, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE user_presence SET is_online = FALSE, last_seen = ? WHERE is_online`,
		db.now().Truncate(timestampPrecision))
	if err != nil {
		return 0, fmt.Errorf("failed to reset presence: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read reset result: %w", err)
	}
	return int(n), nil
}
