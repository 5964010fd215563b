// Package assistant – reconcile.go matches an inbound identity to exactly one
// canonical contact across the local store and the remote CRM, creating the
// record on both sides when neither has it.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jholhewres/leadclaw/pkg/leadclaw/crm"
	"github.com/jholhewres/leadclaw/pkg/leadclaw/store"
)

// Reconciler resolves inbound identities against both stores. The cascade is
// local-by-email, remote-by-email, remote-by-phone, then create, cheapest
// lookup first, creation only when every lookup misses.
type Reconciler struct {
	db     *store.DB
	crm    *crm.Client
	logger *slog.Logger
}

// NewReconciler wires a reconciler.
func NewReconciler(db *store.DB, client *crm.Client, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		db:     db,
		crm:    client,
		logger: logger.With("component", "reconciler"),
	}
}

// EnsureContact returns the canonical local contact for the identity,
// creating it in both stores if absent.
func (r *Reconciler) EnsureContact(ctx context.Context, email, phone, fullName string) (*store.Contact, error) {
	// 1. Local cache hit with a remote link needs no remote traffic.
	if local, err := r.db.ContactByEmail(ctx, email); err != nil {
		return nil, err
	} else if local != nil && local.RemoteID != "" {
		return local, nil
	}

	// 2–3. Remote lookup by email, then phone.
	remote, err := r.crm.LookupContactByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if remote == nil {
		remote, err = r.crm.LookupContactByPhone(ctx, phone)
		if err != nil {
			return nil, err
		}
	}

	// 4. Neither store knows this identity: create the remote record.
	if remote == nil {
		first, last := splitFullName(fullName)
		created, err := r.crm.CreateContact(ctx, crm.NewContact{
			FirstName: first,
			LastName:  last,
			Email:     email,
			Phone:     phone,
			Source:    "website form",
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRemoteCreateFailed, err)
		}
		if created == nil || created.ID == "" {
			return nil, ErrRemoteCreateFailed
		}
		r.logger.Info("remote contact created", "remote_id", created.ID, "email", email)
		remote = created
	}

	// 5. Project the remote record onto the local row and return it. Upsert
	// covers both the brand-new and the known-but-unlinked contact.
	local, err := r.db.UpsertContact(ctx, projectContact(remote, email, phone))
	if err != nil {
		return nil, err
	}
	return local, nil
}

// ByRemoteID resolves an inbound message's remote contact id to the local
// contact, pulling the remote record in when it is not mirrored yet.
func (r *Reconciler) ByRemoteID(ctx context.Context, remoteID string) (*store.Contact, error) {
	local, err := r.db.ContactByRemoteID(ctx, remoteID)
	if err != nil {
		return nil, err
	}
	if local != nil {
		return local, nil
	}

	remote, err := r.crm.GetContact(ctx, remoteID)
	if err != nil {
		return nil, fmt.Errorf("%w: remote id %s: %v", ErrContactNotFound, remoteID, err)
	}
	if remote == nil || remote.Email == "" {
		return nil, fmt.Errorf("%w: remote id %s has no email", ErrContactNotFound, remoteID)
	}
	return r.db.UpsertContact(ctx, projectContact(remote, remote.Email, remote.Phone))
}

// projectContact copies the fixed set of remote fields onto a local contact.
// Anything outside the allow-list is dropped.
func projectContact(remote *crm.Contact, fallbackEmail, fallbackPhone string) store.Contact {
	c := store.Contact{
		RemoteID:    remote.ID,
		FirstName:   remote.FirstName,
		LastName:    remote.LastName,
		ContactName: remote.ContactName,
		CompanyName: remote.CompanyName,
		Email:       remote.Email,
		Phone:       remote.Phone,
		Address1:    remote.Address1,
		City:        remote.City,
		State:       remote.State,
		PostalCode:  remote.PostalCode,
		Country:     remote.Country,
		Website:     remote.Website,
		Timezone:    remote.Timezone,
		Source:      remote.Source,
		Tags:        remote.Tags,
		DateAdded:   remote.DateAdded,
	}
	if c.Email == "" {
		c.Email = fallbackEmail
	}
	if c.Phone == "" {
		c.Phone = fallbackPhone
	}
	return c
}

// splitFullName divides a display name at the first whitespace run: head is
// the first name, everything after is the last name.
func splitFullName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}
	parts := strings.Fields(full)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
