// Package store – messages.go keeps the per-contact conversation history that
// feeds the assistant's context window.
package store

import (
	"context"
	"fmt"
	"time"
)

// Message roles as persisted.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn in a contact's conversation history.
type Message struct {
	ID        int64     `json:"id"`
	ContactID int64     `json:"contact_id"`
	RemoteID  string    `json:"remote_id,omitempty"`
	Role      string    `json:"role"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// AppendMessage stores one conversation turn. A zero createdAt means now.
func (db *DB) AppendMessage(ctx context.Context, contactID int64, role, body, remoteID string, createdAt time.Time) (*Message, error) {
	if createdAt.IsZero() {
		createdAt = db.now()
	}
	ts := createdAt.UTC().Format(timeFormat)
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO messages (contact_id, remote_id, role, body, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		contactID, remoteID, role, body, ts)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("append message id: %w", err)
	}
	return &Message{
		ID:        id,
		ContactID: contactID,
		RemoteID:  remoteID,
		Role:      role,
		Body:      body,
		CreatedAt: createdAt.UTC(),
	}, nil
}

// MessagesByContact returns the full history for a contact in chronological
// order.
func (db *DB) MessagesByContact(ctx context.Context, contactID int64) ([]Message, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, contact_id, remote_id, role, body, created_at
		FROM messages WHERE contact_id = ?
		ORDER BY created_at ASC, id ASC`, contactID)
	if err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var createdAt string
		if err := rows.Scan(&m.ID, &m.ContactID, &m.RemoteID, &m.Role, &m.Body, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.CreatedAt, _ = time.Parse(timeFormat, createdAt)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
