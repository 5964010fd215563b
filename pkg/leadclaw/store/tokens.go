// Package store – tokens.go persists OAuth token blobs keyed by integration
// name. The blob shape belongs to the crm package; the store treats it as
// opaque JSON.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// TokenData returns the stored blob for an integration, or nil when no token
// has been saved yet.
func (db *DB) TokenData(ctx context.Context, name string) ([]byte, error) {
	var data string
	err := db.conn.QueryRowContext(ctx,
		`SELECT data FROM tokens WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select token %s: %w", name, err)
	}
	return []byte(data), nil
}

// SaveTokenData inserts or replaces the blob for an integration.
func (db *DB) SaveTokenData(ctx context.Context, name string, data []byte) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO tokens (name, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		name, string(data), db.now().UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("save token %s: %w", name, err)
	}
	return nil
}
