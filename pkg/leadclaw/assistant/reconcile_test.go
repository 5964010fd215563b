package assistant

import (
	"context"
	"testing"

	"github.com/jholhewres/leadclaw/pkg/leadclaw/crm"
	"github.com/jholhewres/leadclaw/pkg/leadclaw/store"
)

func newTestReconciler(t *testing.T, fake *fakeCRM) (*Reconciler, *testBackend) {
	t.Helper()
	backend := newTestBackend(t, fake, nil)
	return NewReconciler(backend.db, backend.client, nil), backend
}

func TestEnsureContactCreatesOnceForNewIdentity(t *testing.T) {
	fake := newFakeCRM()
	r, backend := newTestReconciler(t, fake)
	ctx := context.Background()

	first, err := r.EnsureContact(ctx, "a@b.com", "+447555000111", "Ada Lovelace")
	if err != nil {
		t.Fatalf("EnsureContact: %v", err)
	}
	if first.RemoteID == "" {
		t.Fatal("contact not linked to remote")
	}
	if first.FirstName != "Ada" || first.LastName != "Lovelace" {
		t.Errorf("name split: %q %q", first.FirstName, first.LastName)
	}

	// Second call with the same email must be a pure lookup.
	second, err := r.EnsureContact(ctx, "a@b.com", "+447555000111", "Ada Lovelace")
	if err != nil {
		t.Fatalf("EnsureContact second call: %v", err)
	}
	if second.ID != first.ID || second.RemoteID != first.RemoteID {
		t.Errorf("not idempotent: %+v vs %+v", second, first)
	}
	if fake.contactCreates != 1 {
		t.Errorf("remote creates = %d, want 1", fake.contactCreates)
	}

	// Exactly one local row.
	leads, err := backend.db.QueryLeads(ctx, store.LeadFilter{})
	if err != nil {
		t.Fatalf("QueryLeads: %v", err)
	}
	if len(leads) != 1 {
		t.Errorf("local contacts = %d, want 1", len(leads))
	}
}

func TestEnsureContactLinksExistingRemoteByEmail(t *testing.T) {
	fake := newFakeCRM()
	fake.addContact(crm.Contact{ID: "rem-9", Email: "known@b.com", FirstName: "Known", City: "London"})
	r, _ := newTestReconciler(t, fake)

	c, err := r.EnsureContact(context.Background(), "known@b.com", "", "Known Person")
	if err != nil {
		t.Fatalf("EnsureContact: %v", err)
	}
	if c.RemoteID != "rem-9" {
		t.Errorf("remote id = %q, want rem-9", c.RemoteID)
	}
	if c.City != "London" {
		t.Errorf("remote fields not projected: %+v", c)
	}
	if fake.contactCreates != 0 {
		t.Errorf("should not create when remote match exists, creates = %d", fake.contactCreates)
	}
}

func TestEnsureContactFallsBackToPhoneLookup(t *testing.T) {
	fake := newFakeCRM()
	fake.addContact(crm.Contact{ID: "rem-7", Email: "other@b.com", Phone: "+447000000007"})
	r, _ := newTestReconciler(t, fake)

	// Email unknown remotely, phone matches.
	c, err := r.EnsureContact(context.Background(), "new@b.com", "+447000000007", "New Name")
	if err != nil {
		t.Fatalf("EnsureContact: %v", err)
	}
	if c.RemoteID != "rem-7" {
		t.Errorf("remote id = %q, want rem-7 via phone lookup", c.RemoteID)
	}
	if fake.contactCreates != 0 {
		t.Errorf("creates = %d, want 0", fake.contactCreates)
	}
}

func TestByRemoteIDPullsUnmirroredContact(t *testing.T) {
	fake := newFakeCRM()
	fake.addContact(crm.Contact{ID: "rem-3", Email: "sms@b.com", Phone: "+447123"})
	r, backend := newTestReconciler(t, fake)
	ctx := context.Background()

	c, err := r.ByRemoteID(ctx, "rem-3")
	if err != nil {
		t.Fatalf("ByRemoteID: %v", err)
	}
	if c.Email != "sms@b.com" {
		t.Errorf("contact = %+v", c)
	}

	// Second resolution hits the local mirror.
	again, err := r.ByRemoteID(ctx, "rem-3")
	if err != nil {
		t.Fatalf("ByRemoteID again: %v", err)
	}
	if again.ID != c.ID {
		t.Errorf("expected same local row, got %d vs %d", again.ID, c.ID)
	}
	_ = backend
}

func TestSplitFullName(t *testing.T) {
	tests := []struct {
		in          string
		first, last string
	}{
		{"Ada Lovelace", "Ada", "Lovelace"},
		{"Anne Marie van der Berg", "Anne", "Marie van der Berg"},
		{"Prince", "Prince", ""},
		{"  trimmed  name ", "trimmed", "name"},
		{"", "", ""},
	}
	for _, tt := range tests {
		first, last := splitFullName(tt.in)
		if first != tt.first || last != tt.last {
			t.Errorf("splitFullName(%q) = %q, %q; want %q, %q", tt.in, first, last, tt.first, tt.last)
		}
	}
}
