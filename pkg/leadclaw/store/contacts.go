// Package store – contacts.go is the local mirror of remote CRM contacts.
// Email is the identity key; the remote id is attached once known.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Contact is the locally mirrored contact record.
type Contact struct {
	ID          int64     `json:"id"`
	RemoteID    string    `json:"remote_id,omitempty"`
	FirstName   string    `json:"first_name,omitempty"`
	LastName    string    `json:"last_name,omitempty"`
	ContactName string    `json:"contact_name,omitempty"`
	CompanyName string    `json:"company_name,omitempty"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	Address1    string    `json:"address1,omitempty"`
	City        string    `json:"city,omitempty"`
	State       string    `json:"state,omitempty"`
	PostalCode  string    `json:"postal_code,omitempty"`
	Country     string    `json:"country,omitempty"`
	Website     string    `json:"website,omitempty"`
	Timezone    string    `json:"timezone,omitempty"`
	Source      string    `json:"source,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	DateAdded   string    `json:"date_added,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const contactColumns = `id, remote_id, first_name, last_name, contact_name, company_name,
	email, phone, address1, city, state, postal_code, country, website,
	timezone, source, tags, date_added, created_at, updated_at`

func scanContact(row interface{ Scan(...any) error }) (*Contact, error) {
	var c Contact
	var tags, createdAt, updatedAt string
	err := row.Scan(&c.ID, &c.RemoteID, &c.FirstName, &c.LastName, &c.ContactName,
		&c.CompanyName, &c.Email, &c.Phone, &c.Address1, &c.City, &c.State,
		&c.PostalCode, &c.Country, &c.Website, &c.Timezone, &c.Source,
		&tags, &c.DateAdded, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &c.Tags); err != nil {
			return nil, fmt.Errorf("decode contact tags: %w", err)
		}
	}
	c.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	c.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)
	return &c, nil
}

func (db *DB) contactBy(ctx context.Context, where string, arg any) (*Contact, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE `+where+` LIMIT 1`, arg)
	c, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select contact: %w", err)
	}
	return c, nil
}

// ContactByEmail returns the contact with the given email, or nil.
func (db *DB) ContactByEmail(ctx context.Context, email string) (*Contact, error) {
	if email == "" {
		return nil, nil
	}
	return db.contactBy(ctx, "email = ?", email)
}

// ContactByRemoteID returns the contact carrying the given remote id, or nil.
func (db *DB) ContactByRemoteID(ctx context.Context, remoteID string) (*Contact, error) {
	if remoteID == "" {
		return nil, nil
	}
	return db.contactBy(ctx, "remote_id = ?", remoteID)
}

// ContactByPhone returns the contact with the given phone number, or nil.
func (db *DB) ContactByPhone(ctx context.Context, phone string) (*Contact, error) {
	if phone == "" {
		return nil, nil
	}
	return db.contactBy(ctx, "phone = ?", phone)
}

// ContactByID returns the contact with the given local id, or nil.
func (db *DB) ContactByID(ctx context.Context, id int64) (*Contact, error) {
	return db.contactBy(ctx, "id = ?", id)
}

// UpsertContact inserts the contact or, when a row with the same email
// already exists, refreshes it with the newest remote projection. The merged
// row is returned with its local id.
func (db *DB) UpsertContact(ctx context.Context, c Contact) (*Contact, error) {
	if c.Email == "" {
		return nil, errors.New("store: contact email is required")
	}
	tags, err := json.Marshal(c.Tags)
	if err != nil {
		return nil, fmt.Errorf("encode contact tags: %w", err)
	}
	now := db.now().UTC().Format(timeFormat)
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO contacts (remote_id, first_name, last_name, contact_name,
			company_name, email, phone, address1, city, state, postal_code,
			country, website, timezone, source, tags, date_added, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			remote_id    = CASE WHEN excluded.remote_id != '' THEN excluded.remote_id ELSE contacts.remote_id END,
			first_name   = excluded.first_name,
			last_name    = excluded.last_name,
			contact_name = excluded.contact_name,
			company_name = excluded.company_name,
			phone        = CASE WHEN excluded.phone != '' THEN excluded.phone ELSE contacts.phone END,
			address1     = excluded.address1,
			city         = excluded.city,
			state        = excluded.state,
			postal_code  = excluded.postal_code,
			country      = excluded.country,
			website      = excluded.website,
			timezone     = excluded.timezone,
			source       = excluded.source,
			tags         = excluded.tags,
			date_added   = excluded.date_added,
			updated_at   = excluded.updated_at`,
		c.RemoteID, c.FirstName, c.LastName, c.ContactName, c.CompanyName,
		c.Email, c.Phone, c.Address1, c.City, c.State, c.PostalCode,
		c.Country, c.Website, c.Timezone, c.Source, string(tags), c.DateAdded,
		now, now)
	if err != nil {
		return nil, fmt.Errorf("upsert contact: %w", err)
	}
	return db.ContactByEmail(ctx, c.Email)
}
