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

	"github.com/tomtom215/workconnect/internal/models"
)

// UpsertUser inserts or refreshes a user directory row. The marketplace
// backend owns users; this is how its sync job and tests populate them.
func (db *DB) UpsertUser(ctx context.Context, u *models.User) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	role := u.Role
	if role == "" {
		role = "client"
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO users (id, email, full_name, avatar, role, is_active)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			email = excluded.email,
			full_name = excluded.full_name,
			avatar = excluded.avatar,
			role = excluded.role,
			is_active = excluded.is_active`,
		u.ID, u.Email, u.FullName, u.Avatar, role, u.IsActive)
	if err != nil {
		return fmt.Errorf("failed to upsert user %s: %w", u.ID, err)
	}
	return nil
}

// GetUser returns the user with id. found is false when no row exists.
func (db *DB) GetUser(ctx context.Context, id string) (user *models.User, found bool, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	u := &models.User{}
	err = db.conn.QueryRowContext(ctx, `
		SELECT id, email, full_name, avatar, role, is_active
		FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Email, &u.FullName, &u.Avatar, &u.Role, &u.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load user %s: %w", id, err)
	}
	return u, true, nil
}
