// Package store – forms.go is the append-only log of raw form submissions.
// Every submission is kept verbatim; nothing here is ever updated.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// FormSubmission is one raw website form payload with its identity fields
// lifted out for lookup.
type FormSubmission struct {
	ID        int64           `json:"id"`
	Email     string          `json:"email,omitempty"`
	Phone     string          `json:"phone,omitempty"`
	FullName  string          `json:"full_name,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// InsertForm appends a submission to the log.
func (db *DB) InsertForm(ctx context.Context, email, phone, fullName string, payload json.RawMessage) (*FormSubmission, error) {
	now := db.now().UTC()
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO forms (email, phone, full_name, payload, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		email, phone, fullName, string(payload), now.Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("insert form: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert form id: %w", err)
	}
	return &FormSubmission{
		ID: id, Email: email, Phone: phone, FullName: fullName,
		Payload: payload, CreatedAt: now,
	}, nil
}

// FormsByIdentity returns every submission matching the email or phone, oldest
// first. Either key may be empty.
func (db *DB) FormsByIdentity(ctx context.Context, email, phone string) ([]FormSubmission, error) {
	if email == "" && phone == "" {
		return nil, nil
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, email, phone, full_name, payload, created_at
		FROM forms
		WHERE (email != '' AND email = ?) OR (phone != '' AND phone = ?)
		ORDER BY created_at ASC, id ASC`, email, phone)
	if err != nil {
		return nil, fmt.Errorf("select forms: %w", err)
	}
	defer rows.Close()

	var subs []FormSubmission
	for rows.Next() {
		var f FormSubmission
		var payload, createdAt string
		if err := rows.Scan(&f.ID, &f.Email, &f.Phone, &f.FullName, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan form: %w", err)
		}
		f.Payload = json.RawMessage(payload)
		f.CreatedAt, _ = time.Parse(timeFormat, createdAt)
		subs = append(subs, f)
	}
	return subs, rows.Err()
}
