package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "leadclaw.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestTokenRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	data, err := db.TokenData(ctx, "crm")
	if err != nil {
		t.Fatalf("TokenData: %v", err)
	}
	if data != nil {
		t.Errorf("expected nil for missing token, got %q", data)
	}

	if err := db.SaveTokenData(ctx, "crm", []byte(`{"access_token":"a1"}`)); err != nil {
		t.Fatalf("SaveTokenData: %v", err)
	}
	if err := db.SaveTokenData(ctx, "crm", []byte(`{"access_token":"a2"}`)); err != nil {
		t.Fatalf("SaveTokenData overwrite: %v", err)
	}

	data, err = db.TokenData(ctx, "crm")
	if err != nil {
		t.Fatalf("TokenData: %v", err)
	}
	if string(data) != `{"access_token":"a2"}` {
		t.Errorf("got %q", data)
	}
}

func TestUpsertContactMergesOnEmail(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	first, err := db.UpsertContact(ctx, Contact{
		Email:     "jane@example.com",
		FirstName: "Jane",
		Phone:     "+441111111111",
	})
	if err != nil {
		t.Fatalf("UpsertContact: %v", err)
	}

	second, err := db.UpsertContact(ctx, Contact{
		Email:     "jane@example.com",
		FirstName: "Jane",
		LastName:  "Doe",
		RemoteID:  "rem-1",
		City:      "London",
		Tags:      []string{"lead"},
	})
	if err != nil {
		t.Fatalf("UpsertContact update: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("upsert created a second row: %d vs %d", second.ID, first.ID)
	}
	if second.RemoteID != "rem-1" || second.LastName != "Doe" || second.City != "London" {
		t.Errorf("update not applied: %+v", second)
	}
	if second.Phone != "+441111111111" {
		t.Errorf("empty phone clobbered existing value: %q", second.Phone)
	}
	if len(second.Tags) != 1 || second.Tags[0] != "lead" {
		t.Errorf("tags = %v", second.Tags)
	}
}

func TestContactLookups(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	c, err := db.UpsertContact(ctx, Contact{
		Email:    "bob@example.com",
		Phone:    "+442222222222",
		RemoteID: "rem-2",
	})
	if err != nil {
		t.Fatalf("UpsertContact: %v", err)
	}

	if got, _ := db.ContactByRemoteID(ctx, "rem-2"); got == nil || got.ID != c.ID {
		t.Errorf("ContactByRemoteID = %+v", got)
	}
	if got, _ := db.ContactByPhone(ctx, "+442222222222"); got == nil || got.ID != c.ID {
		t.Errorf("ContactByPhone = %+v", got)
	}
	if got, _ := db.ContactByEmail(ctx, "nobody@example.com"); got != nil {
		t.Errorf("expected nil for unknown email, got %+v", got)
	}
	if got, _ := db.ContactByEmail(ctx, ""); got != nil {
		t.Errorf("empty email should never match, got %+v", got)
	}
}

func TestMessagesChronologicalOrder(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	c, err := db.UpsertContact(ctx, Contact{Email: "kay@example.com"})
	if err != nil {
		t.Fatalf("UpsertContact: %v", err)
	}

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	// Deliberately appended out of order.
	for _, m := range []struct {
		role string
		body string
		at   time.Time
	}{
		{RoleAssistant, "second", base.Add(time.Minute)},
		{RoleUser, "first", base},
		{RoleUser, "third", base.Add(2 * time.Minute)},
	} {
		if _, err := db.AppendMessage(ctx, c.ID, m.role, m.body, "", m.at); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	msgs, err := db.MessagesByContact(ctx, c.ID)
	if err != nil {
		t.Fatalf("MessagesByContact: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	for i, want := range []string{"first", "second", "third"} {
		if msgs[i].Body != want {
			t.Errorf("msgs[%d] = %q, want %q", i, msgs[i].Body, want)
		}
	}
}

func TestFormsAppendOnlyAndIdentityLookup(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	payload := json.RawMessage(`{"service":"roofing","postcode":"SW1A 1AA"}`)
	if _, err := db.InsertForm(ctx, "lee@example.com", "", "Lee Smith", payload); err != nil {
		t.Fatalf("InsertForm: %v", err)
	}
	if _, err := db.InsertForm(ctx, "", "+443333333333", "Lee Smith", payload); err != nil {
		t.Fatalf("InsertForm: %v", err)
	}

	byEmail, err := db.FormsByIdentity(ctx, "lee@example.com", "")
	if err != nil {
		t.Fatalf("FormsByIdentity: %v", err)
	}
	if len(byEmail) != 1 {
		t.Errorf("by email: expected 1, got %d", len(byEmail))
	}

	both, err := db.FormsByIdentity(ctx, "lee@example.com", "+443333333333")
	if err != nil {
		t.Fatalf("FormsByIdentity: %v", err)
	}
	if len(both) != 2 {
		t.Errorf("by both keys: expected 2, got %d", len(both))
	}

	none, err := db.FormsByIdentity(ctx, "", "")
	if err != nil {
		t.Fatalf("FormsByIdentity: %v", err)
	}
	if none != nil {
		t.Errorf("empty identity should match nothing, got %d rows", len(none))
	}
}
