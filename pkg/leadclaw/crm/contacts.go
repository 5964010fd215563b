// Package crm – contacts.go covers the remote contact endpoints: lookup by
// email or phone, free-text search, fetch and create.
package crm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Contact is the remote contact record, trimmed to the fields the assistant
// actually works with.
type Contact struct {
	ID          string   `json:"id"`
	FirstName   string   `json:"firstName,omitempty"`
	LastName    string   `json:"lastName,omitempty"`
	ContactName string   `json:"contactName,omitempty"`
	CompanyName string   `json:"companyName,omitempty"`
	Email       string   `json:"email,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	Address1    string   `json:"address1,omitempty"`
	City        string   `json:"city,omitempty"`
	State       string   `json:"state,omitempty"`
	Country     string   `json:"country,omitempty"`
	PostalCode  string   `json:"postalCode,omitempty"`
	Website     string   `json:"website,omitempty"`
	Timezone    string   `json:"timezone,omitempty"`
	Source      string   `json:"source,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	DateAdded   string   `json:"dateAdded,omitempty"`
}

// NewContact is the payload for contact creation. LocationID is filled in by
// the client.
type NewContact struct {
	FirstName  string   `json:"firstName,omitempty"`
	LastName   string   `json:"lastName,omitempty"`
	Email      string   `json:"email,omitempty"`
	Phone      string   `json:"phone,omitempty"`
	Source     string   `json:"source,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	LocationID string   `json:"locationId"`
}

// SearchContacts runs a free-text search scoped to the location.
func (c *Client) SearchContacts(ctx context.Context, query string, limit int) ([]Contact, error) {
	if limit <= 0 {
		limit = 10
	}
	q := url.Values{
		"locationId": {c.cfg.LocationID},
		"query":      {query},
		"limit":      {strconv.Itoa(limit)},
	}
	var out struct {
		Contacts []Contact `json:"contacts"`
	}
	if err := c.do(ctx, http.MethodGet, "/contacts/", q, nil, &out); err != nil {
		return nil, fmt.Errorf("search contacts: %w", err)
	}
	return out.Contacts, nil
}

// LookupContactByEmail returns the single best match for an email address, or
// nil when the remote has no such contact.
func (c *Client) LookupContactByEmail(ctx context.Context, email string) (*Contact, error) {
	return c.lookupOne(ctx, email)
}

// LookupContactByPhone returns the single best match for a phone number, or
// nil when the remote has no such contact.
func (c *Client) LookupContactByPhone(ctx context.Context, phone string) (*Contact, error) {
	return c.lookupOne(ctx, phone)
}

func (c *Client) lookupOne(ctx context.Context, query string) (*Contact, error) {
	if query == "" {
		return nil, nil
	}
	matches, err := c.SearchContacts(ctx, query, 1)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return &matches[0], nil
}

// GetContact fetches one contact by remote id.
func (c *Client) GetContact(ctx context.Context, id string) (*Contact, error) {
	var out struct {
		Contact Contact `json:"contact"`
	}
	if err := c.do(ctx, http.MethodGet, "/contacts/"+id, nil, nil, &out); err != nil {
		return nil, fmt.Errorf("get contact %s: %w", id, err)
	}
	return &out.Contact, nil
}

// CreateContact creates a contact in the remote CRM and returns the stored
// record.
func (c *Client) CreateContact(ctx context.Context, nc NewContact) (*Contact, error) {
	nc.LocationID = c.cfg.LocationID
	var out struct {
		Contact Contact `json:"contact"`
	}
	if err := c.do(ctx, http.MethodPost, "/contacts/", nil, nc, &out); err != nil {
		return nil, fmt.Errorf("create contact: %w", err)
	}
	return &out.Contact, nil
}
