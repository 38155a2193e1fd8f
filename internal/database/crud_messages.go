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
	"strings"

	"github.com/google/uuid"

	"github.com/tomtom215/workconnect/internal/models"
)

// CreateMessage persists a message and advances the conversation's
// last-message pointer and activity time in one transaction. The sender must
// be a participant; otherwise ErrNotParticipant (or ErrConversationNotFound)
// is returned and nothing is written.
func (db *DB) CreateMessage(ctx context.Context, nm models.NewMessage) (*models.Message, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	msgType := nm.Type
	if msgType == "" {
		msgType = models.MessageText
	}
	msg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: nm.ConversationID,
		SenderID:       nm.SenderID,
		Content:        nm.Content,
		Type:           msgType,
		FileAttachment: nm.FileAttachment,
		CreatedAt:      db.now().Truncate(timestampPrecision),
	}

	mu := db.lockFor(&db.conversationLocks, nm.ConversationID)
	mu.Lock()
	defer mu.Unlock()

	err := withConflictRetry(ctx, func() error {
		return db.insertMessageTx(ctx, msg)
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (db *DB) insertMessageTx(ctx context.Context, msg *models.Message) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, content, message_type, file_attachment, is_read, created_at)
		SELECT ?, ?, ?, ?, ?, ?, FALSE, ?
		WHERE EXISTS (
			SELECT 1 FROM conversation_participants WHERE conversation_id = ? AND user_id = ?
		)`,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Content, string(msg.Type), msg.FileAttachment, msg.CreatedAt,
		msg.ConversationID, msg.SenderID)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to read insert result: %w", err)
	} else if n == 0 {
		return db.missingMembershipError(ctx, tx, msg.ConversationID)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE conversations SET last_message_id = ?, updated_at = ? WHERE id = ?`,
		msg.ID, msg.CreatedAt, msg.ConversationID); err != nil {
		return fmt.Errorf("failed to update conversation pointer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit message: %w", err)
	}
	return nil
}

func (db *DB) missingMembershipError(ctx context.Context, tx *sql.Tx, conversationID string) error {
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM conversations WHERE id = ?`, conversationID).Scan(&n); err != nil {
		return fmt.Errorf("failed to check conversation: %w", err)
	}
	if n == 0 {
		return ErrConversationNotFound
	}
	return ErrNotParticipant
}

// MarkMessagesRead flips is_read for the listed messages that belong to
// conversationID, were not sent by readerID and were still unread. It returns
// the ids actually flipped, in the order they were requested.
func (db *DB) MarkMessagesRead(ctx context.Context, conversationID, readerID string, ids []string) ([]string, error) {
	ids = uniqueNonEmpty(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	ctx, cancel := ensureContext(ctx)
	defer cancel()

	args := make([]interface{}, 0, len(ids)+2)
	args = append(args, conversationID, readerID)
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	query := `
		UPDATE messages SET is_read = TRUE
		WHERE conversation_id = ? AND sender_id <> ? AND is_read = FALSE
		  AND id IN (` + placeholders + `)
		RETURNING id`

	mu := db.lockFor(&db.conversationLocks, conversationID)
	mu.Lock()
	defer mu.Unlock()

	var flipped map[string]struct{}
	err := withConflictRetry(ctx, func() error {
		var qerr error
		flipped, qerr = db.collectIDs(ctx, query, args...)
		return qerr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to mark messages read: %w", err)
	}

	out := make([]string, 0, len(flipped))
	for _, id := range ids {
		if _, ok := flipped[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (db *DB) collectIDs(ctx context.Context, query string, args ...interface{}) (map[string]struct{}, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer closeWithLog(rows, "rows")

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// GetMessage loads a single message. found is false when it does not exist.
func (db *DB) GetMessage(ctx context.Context, id string) (msg *models.Message, found bool, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	m := &models.Message{}
	var msgType string
	err = db.conn.QueryRowContext(ctx, `
		SELECT id, conversation_id, sender_id, content, message_type, file_attachment, is_read, created_at
		FROM messages WHERE id = ?`, id).
		Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &msgType, &m.FileAttachment, &m.IsRead, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load message %s: %w", id, err)
	}
	m.Type = models.MessageType(msgType)
	return m, true, nil
}

// CountMessages returns the number of messages in a conversation.
func (db *DB) CountMessages(ctx context.Context, conversationID string) (int, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	var n int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT count(*) FROM messages WHERE conversation_id = ?`, conversationID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return n, nil
}

func uniqueNonEmpty(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
