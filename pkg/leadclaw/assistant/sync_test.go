package assistant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jholhewres/leadclaw/pkg/leadclaw/crm"
)

func TestEnsureOpenSkipsCreateWhenOpenExists(t *testing.T) {
	fake := newFakeCRM()
	fake.opportunities = []crm.Opportunity{
		{ID: "opp-1", ContactID: "c-1", PipelineID: "pipe-1", Status: "open", Name: "Existing"},
	}
	backend := newTestBackend(t, fake, nil)
	flow := NewOpportunityFlow(backend.client, "pipe-1", "stage-1", nil)

	opp, created, err := flow.EnsureOpen(context.Background(), "c-1", "New Deal", 500)
	if err != nil {
		t.Fatalf("EnsureOpen: %v", err)
	}
	if created {
		t.Error("reported a create despite existing open opportunity")
	}
	if opp.ID != "opp-1" {
		t.Errorf("returned %q, want existing opp-1", opp.ID)
	}
	if fake.opportunityCreates != 0 {
		t.Errorf("create calls = %d, want 0", fake.opportunityCreates)
	}
}

func TestEnsureOpenCreatesWhenAbsent(t *testing.T) {
	fake := newFakeCRM()
	backend := newTestBackend(t, fake, nil)
	flow := NewOpportunityFlow(backend.client, "pipe-1", "stage-1", nil)

	opp, created, err := flow.EnsureOpen(context.Background(), "c-1", "Roof Repair", 1200)
	if err != nil {
		t.Fatalf("EnsureOpen: %v", err)
	}
	if !created {
		t.Error("expected a create")
	}
	if opp.PipelineID != "pipe-1" || opp.PipelineStageID != "stage-1" || opp.Status != "open" {
		t.Errorf("opportunity = %+v", opp)
	}
	if fake.opportunityCreates != 1 {
		t.Errorf("create calls = %d, want 1", fake.opportunityCreates)
	}
}

func TestRescheduleUpdatesExistingAppointment(t *testing.T) {
	fake := newFakeCRM()
	// Appointment two days out: inside the ±6-day resolution window.
	fake.events = []crm.CalendarEvent{{
		ID:         "event-1",
		CalendarID: "cal-1",
		ContactID:  "c-1",
		Status:     "confirmed",
		StartTime:  time.Now().Add(48 * time.Hour).Format(time.RFC3339),
		EndTime:    time.Now().Add(49 * time.Hour).Format(time.RFC3339),
	}}
	backend := newTestBackend(t, fake, nil)
	flow := NewAppointmentFlow(backend.client, "cal-1", "Europe/London", nil)

	newStart := time.Now().Add(96 * time.Hour).Truncate(time.Second)
	updated, err := flow.Reschedule(context.Background(), "c-1", newStart, newStart.Add(time.Hour))
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if updated.ID != "event-1" {
		t.Errorf("updated %q, want event-1", updated.ID)
	}
	if fake.appointmentCreates != 0 {
		t.Errorf("create calls = %d, want 0", fake.appointmentCreates)
	}
	if fake.appointmentUpdates != 1 {
		t.Errorf("update calls = %d, want 1", fake.appointmentUpdates)
	}
}

func TestRescheduleWithoutActiveAppointment(t *testing.T) {
	fake := newFakeCRM()
	backend := newTestBackend(t, fake, nil)
	flow := NewAppointmentFlow(backend.client, "cal-1", "Europe/London", nil)

	start := time.Now().Add(96 * time.Hour)
	_, err := flow.Reschedule(context.Background(), "c-1", start, start.Add(time.Hour))
	if !errors.Is(err, ErrNoActiveAppointment) {
		t.Errorf("expected ErrNoActiveAppointment, got %v", err)
	}
}

func TestBookRefusesDoubleBooking(t *testing.T) {
	fake := newFakeCRM()
	fake.events = []crm.CalendarEvent{{
		ID:         "event-1",
		CalendarID: "cal-1",
		ContactID:  "c-1",
		Status:     "confirmed",
		StartTime:  time.Now().Add(24 * time.Hour).Format(time.RFC3339),
	}}
	backend := newTestBackend(t, fake, nil)
	flow := NewAppointmentFlow(backend.client, "cal-1", "Europe/London", nil)

	start := time.Now().Add(96 * time.Hour)
	existing, err := flow.Book(context.Background(), "c-1", "Site visit", "", start, start.Add(time.Hour))
	if !errors.Is(err, ErrAppointmentExists) {
		t.Fatalf("expected ErrAppointmentExists, got %v", err)
	}
	if existing == nil || existing.ID != "event-1" {
		t.Errorf("expected the active appointment back, got %+v", existing)
	}
	if fake.appointmentCreates != 0 {
		t.Errorf("create calls = %d, want 0", fake.appointmentCreates)
	}
}

func TestSlotsEnforceMinimumLookahead(t *testing.T) {
	fake := newFakeCRM()
	backend := newTestBackend(t, fake, nil)
	flow := NewAppointmentFlow(backend.client, "cal-1", "Europe/London", nil)

	// Request a window ending tomorrow; the flow must widen it to 3 days out.
	now := time.Now()
	slots, err := flow.Slots(context.Background(), now, now.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	if len(slots) == 0 {
		t.Error("expected slots from the widened window")
	}
	wantEnd := now.Add(minSlotLookahead).UnixMilli()
	if fake.slotsQueryEndMs < wantEnd-1000 {
		t.Errorf("window end %d not widened to minimum lookahead %d", fake.slotsQueryEndMs, wantEnd)
	}
}
