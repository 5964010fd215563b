package assistant

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jholhewres/leadclaw/pkg/leadclaw/store"
)

func TestAssembleFreshFormIsTwoEntries(t *testing.T) {
	backend := newTestBackend(t, newFakeCRM(), nil)
	ctx := context.Background()

	contact, err := backend.db.UpsertContact(ctx, store.Contact{Email: "a@b.com", RemoteID: "rem-1"})
	if err != nil {
		t.Fatalf("seed contact: %v", err)
	}

	asm := NewAssembler(backend.db)
	raw := json.RawMessage(`{"email":"a@b.com","service":"roofing"}`)
	msgs, err := asm.ForFormSubmit(ctx, contact, FormSubmitEvent{Email: "a@b.com", Raw: raw})
	if err != nil {
		t.Fatalf("ForFormSubmit: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 entries for a fresh contact, got %d", len(msgs))
	}
	if !strings.Contains(msgs[0].Content, "Contact details") {
		t.Errorf("first entry is not the profile summary: %q", msgs[0].Content)
	}
	if !strings.Contains(msgs[1].Content, `"service":"roofing"`) {
		t.Errorf("second entry missing verbatim submission: %q", msgs[1].Content)
	}
}

func TestAssembleIncludesPriorFormsVerbatim(t *testing.T) {
	backend := newTestBackend(t, newFakeCRM(), nil)
	ctx := context.Background()

	contact, _ := backend.db.UpsertContact(ctx, store.Contact{Email: "a@b.com", RemoteID: "rem-1"})
	prior := json.RawMessage(`{"email":"a@b.com","service":"gutters","note":"URGENT!!"}`)
	if _, err := backend.db.InsertForm(ctx, "a@b.com", "", "Ada", prior); err != nil {
		t.Fatalf("seed form: %v", err)
	}

	asm := NewAssembler(backend.db)
	msgs, err := asm.ForFormSubmit(ctx, contact, FormSubmitEvent{Email: "a@b.com", Raw: json.RawMessage(`{"service":"roofing"}`)})
	if err != nil {
		t.Fatalf("ForFormSubmit: %v", err)
	}
	// Prior submissions ride along in the profile entry, byte for byte.
	if !strings.Contains(msgs[0].Content, `"note":"URGENT!!"`) {
		t.Errorf("prior submission not included verbatim: %q", msgs[0].Content)
	}
}

func TestAssembleHistoryChronological(t *testing.T) {
	backend := newTestBackend(t, newFakeCRM(), nil)
	ctx := context.Background()

	contact, _ := backend.db.UpsertContact(ctx, store.Contact{Email: "a@b.com", RemoteID: "rem-1"})

	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	// Inserted T3, T1, T2: assembly must emit T1, T2, T3.
	backend.db.AppendMessage(ctx, contact.ID, store.RoleUser, "t3", "", base.Add(2*time.Hour))
	backend.db.AppendMessage(ctx, contact.ID, store.RoleUser, "t1", "", base)
	backend.db.AppendMessage(ctx, contact.ID, store.RoleAssistant, "t2", "", base.Add(time.Hour))

	asm := NewAssembler(backend.db)
	msgs, err := asm.ForInboundMessage(ctx, contact, InboundMessageEvent{
		ContactID: "rem-1",
		Body:      "new question",
		Timestamp: base.Add(3 * time.Hour),
	})
	if err != nil {
		t.Fatalf("ForInboundMessage: %v", err)
	}
	// Entries: profile, new body, then history T1 T2 T3.
	if len(msgs) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(msgs))
	}
	if msgs[1].Content != "new question" {
		t.Errorf("entry 1 = %q", msgs[1].Content)
	}
	for i, want := range []string{"t1", "t2", "t3"} {
		if msgs[2+i].Content != want {
			t.Errorf("history[%d] = %q, want %q", i, msgs[2+i].Content, want)
		}
	}
	if msgs[3].Role != store.RoleAssistant {
		t.Errorf("t2 lost its role: %q", msgs[3].Role)
	}
	if msgs[2].Timestamp.IsZero() {
		t.Error("history entry missing its timestamp")
	}
}
