// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

package database

import (
	"context"
	"fmt"
)

// Foreign keys are deliberately absent: DuckDB rejects updates to rows
// referenced by a foreign key, and conversations are updated on every message.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id         VARCHAR PRIMARY KEY,
		email      VARCHAR NOT NULL,
		full_name  VARCHAR NOT NULL DEFAULT '',
		avatar     VARCHAR NOT NULL DEFAULT '',
		role       VARCHAR NOT NULL DEFAULT 'client',
		is_active  BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`,
	`CREATE TABLE IF NOT EXISTS conversations (
		id              VARCHAR PRIMARY KEY,
		job_id          VARCHAR NOT NULL DEFAULT '',
		last_message_id VARCHAR NOT NULL DEFAULT '',
		created_at      TIMESTAMP NOT NULL,
		updated_at      TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS conversation_participants (
		conversation_id VARCHAR NOT NULL,
		user_id         VARCHAR NOT NULL,
		position        INTEGER NOT NULL,
		PRIMARY KEY (conversation_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id              VARCHAR PRIMARY KEY,
		conversation_id VARCHAR NOT NULL,
		sender_id       VARCHAR NOT NULL,
		content         VARCHAR NOT NULL DEFAULT '',
		message_type    VARCHAR NOT NULL DEFAULT 'text',
		file_attachment VARCHAR NOT NULL DEFAULT '',
		is_read         BOOLEAN NOT NULL DEFAULT FALSE,
		created_at      TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages (conversation_id)`,
	`CREATE TABLE IF NOT EXISTS user_presence (
		user_id   VARCHAR PRIMARY KEY,
		is_online BOOLEAN NOT NULL DEFAULT FALSE,
		last_seen TIMESTAMP NOT NULL
	)`,
}

func (db *DB) createSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
