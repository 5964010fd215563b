// Package assistant – conversation.go assembles the model context for one
// contact: a synthetic profile entry, the new inbound content, then the full
// persisted history in chronological order. Nothing is dropped or truncated
// here; context-window policy belongs to the model service.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jholhewres/leadclaw/pkg/leadclaw/agent"
	"github.com/jholhewres/leadclaw/pkg/leadclaw/store"
)

// Assembler builds model context from local storage.
type Assembler struct {
	db *store.DB
}

// NewAssembler wires an assembler over the store.
func NewAssembler(db *store.DB) *Assembler {
	return &Assembler{db: db}
}

// ForFormSubmit builds context for a fresh form submission: profile plus any
// prior submissions for the same identity (kept verbatim), then the new
// submission, then history.
func (a *Assembler) ForFormSubmit(ctx context.Context, contact *store.Contact, ev FormSubmitEvent) ([]agent.Message, error) {
	prior, err := a.db.FormsByIdentity(ctx, ev.Email, ev.Phone)
	if err != nil {
		return nil, err
	}

	profile := profileSummary(contact)
	if len(prior) > 0 {
		profile += "\n\nPrevious form submissions from this contact:"
		for _, f := range prior {
			profile += "\n" + string(f.Payload)
		}
	}

	msgs := []agent.Message{
		{Role: "user", Content: profile},
		{Role: "user", Content: "New form submission received with the following details:\n" + string(ev.Raw)},
	}
	return a.appendHistory(ctx, contact, msgs)
}

// ForInboundMessage builds context for a customer reply: profile, the new
// message body, then history.
func (a *Assembler) ForInboundMessage(ctx context.Context, contact *store.Contact, ev InboundMessageEvent) ([]agent.Message, error) {
	msgs := []agent.Message{
		{Role: "user", Content: profileSummary(contact)},
		{Role: "user", Content: ev.Body, Timestamp: ev.Timestamp},
	}
	return a.appendHistory(ctx, contact, msgs)
}

func (a *Assembler) appendHistory(ctx context.Context, contact *store.Contact, msgs []agent.Message) ([]agent.Message, error) {
	history, err := a.db.MessagesByContact(ctx, contact.ID)
	if err != nil {
		return nil, err
	}
	// The store already orders by created_at, but the ordering contract
	// belongs to this component, so it is enforced here too.
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].CreatedAt.Before(history[j].CreatedAt)
	})
	for _, m := range history {
		msgs = append(msgs, agent.Message{
			Role:      m.Role,
			Content:   m.Body,
			Timestamp: m.CreatedAt,
		})
	}
	return msgs, nil
}

// profileSummary serializes the contact for the synthetic leading entry.
func profileSummary(contact *store.Contact) string {
	data, err := json.Marshal(contact)
	if err != nil {
		return fmt.Sprintf("Contact details: %s <%s> %s", contact.ContactName, contact.Email, contact.Phone)
	}
	return "Contact details:\n" + string(data)
}
