// Package store – query.go is the constrained lead query used by the admin
// assistant. Filters are an explicit allow-list compiled to parameterized
// SQL; free-form predicates are not accepted.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// LeadFilter enumerates every supported predicate. Zero values mean
// "no constraint".
type LeadFilter struct {
	Email         string     `json:"email,omitempty"`
	Phone         string     `json:"phone,omitempty"`
	City          string     `json:"city,omitempty"`
	PostalCode    string     `json:"postal_code,omitempty"`
	Source        string     `json:"source,omitempty"`
	NameContains  string     `json:"name_contains,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
	Limit         int        `json:"limit,omitempty"`
}

const maxLeadResults = 50

// QueryLeads returns contacts matching every set filter, newest first.
func (db *DB) QueryLeads(ctx context.Context, f LeadFilter) ([]Contact, error) {
	var where []string
	var args []any

	add := func(clause string, arg any) {
		where = append(where, clause)
		args = append(args, arg)
	}
	if f.Email != "" {
		add("email = ?", f.Email)
	}
	if f.Phone != "" {
		add("phone = ?", f.Phone)
	}
	if f.City != "" {
		add("city = ? COLLATE NOCASE", f.City)
	}
	if f.PostalCode != "" {
		add("postal_code = ? COLLATE NOCASE", f.PostalCode)
	}
	if f.Source != "" {
		add("source = ? COLLATE NOCASE", f.Source)
	}
	if f.NameContains != "" {
		add("(contact_name LIKE ? COLLATE NOCASE OR first_name LIKE ? COLLATE NOCASE OR last_name LIKE ? COLLATE NOCASE)",
			"%"+f.NameContains+"%")
		args = append(args, "%"+f.NameContains+"%", "%"+f.NameContains+"%")
	}
	if f.CreatedAfter != nil {
		add("created_at >= ?", f.CreatedAfter.UTC().Format(timeFormat))
	}
	if f.CreatedBefore != nil {
		add("created_at <= ?", f.CreatedBefore.UTC().Format(timeFormat))
	}

	limit := f.Limit
	if limit <= 0 || limit > maxLeadResults {
		limit = maxLeadResults
	}

	query := `SELECT ` + contactColumns + ` FROM contacts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query leads: %w", err)
	}
	defer rows.Close()

	var out []Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}
