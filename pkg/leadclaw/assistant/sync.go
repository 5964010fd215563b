// Package assistant – sync.go holds the opportunity and appointment state
// machines. Existence checks happen inside these flows, not in the tool
// prompts, so "create" can never duplicate an open record.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jholhewres/leadclaw/pkg/leadclaw/crm"
)

var (
	// ErrNoActiveAppointment marks a reschedule or cancel with nothing to act on.
	ErrNoActiveAppointment = errors.New("assistant: no active appointment for contact")

	// ErrAppointmentExists marks a booking attempt while one is already active.
	ErrAppointmentExists = errors.New("assistant: contact already has an active appointment")
)

const (
	// minSlotLookahead is the earliest a new appointment may be offered.
	minSlotLookahead = 72 * time.Hour

	// resolveWindow is how far around now to search when resolving the
	// contact's existing appointment for reschedule or cancel.
	resolveWindow = 6 * 24 * time.Hour
)

// OpportunityFlow drives the pipeline record lifecycle:
// absent → open → updated → deleted.
type OpportunityFlow struct {
	crm        *crm.Client
	pipelineID string
	stageID    string
	logger     *slog.Logger
}

// NewOpportunityFlow wires the flow to one pipeline and entry stage.
func NewOpportunityFlow(client *crm.Client, pipelineID, stageID string, logger *slog.Logger) *OpportunityFlow {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpportunityFlow{
		crm:        client,
		pipelineID: pipelineID,
		stageID:    stageID,
		logger:     logger.With("component", "opportunity-flow"),
	}
}

// List returns the contact's opportunities on the configured pipeline.
func (f *OpportunityFlow) List(ctx context.Context, contactID string) ([]crm.Opportunity, error) {
	all, err := f.crm.SearchOpportunities(ctx, contactID, "")
	if err != nil {
		return nil, err
	}
	var out []crm.Opportunity
	for _, o := range all {
		if o.PipelineID == "" || o.PipelineID == f.pipelineID {
			out = append(out, o)
		}
	}
	return out, nil
}

// EnsureOpen returns the contact's open opportunity, creating one only when
// the search confirms absence. The bool reports whether a create happened.
func (f *OpportunityFlow) EnsureOpen(ctx context.Context, contactID, name string, value float64) (*crm.Opportunity, bool, error) {
	existing, err := f.List(ctx, contactID)
	if err != nil {
		return nil, false, err
	}
	for i := range existing {
		if existing[i].Status == "open" {
			f.logger.Debug("open opportunity already present", "opportunity_id", existing[i].ID, "contact_id", contactID)
			return &existing[i], false, nil
		}
	}

	created, err := f.crm.CreateOpportunity(ctx, crm.NewOpportunity{
		Name:            name,
		PipelineID:      f.pipelineID,
		PipelineStageID: f.stageID,
		ContactID:       contactID,
		MonetaryValue:   value,
	})
	if err != nil {
		return nil, false, err
	}
	f.logger.Info("opportunity created", "opportunity_id", created.ID, "contact_id", contactID)
	return created, true, nil
}

// Update applies a partial update; the id must come from a prior search.
func (f *OpportunityFlow) Update(ctx context.Context, id string, up crm.OpportunityUpdate) (*crm.Opportunity, error) {
	if id == "" {
		return nil, errors.New("opportunity id is required for update")
	}
	return f.crm.UpdateOpportunity(ctx, id, up)
}

// Delete removes the record. Terminal: no further transitions.
func (f *OpportunityFlow) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("opportunity id is required for delete")
	}
	if err := f.crm.DeleteOpportunity(ctx, id); err != nil {
		return err
	}
	f.logger.Info("opportunity deleted", "opportunity_id", id)
	return nil
}

// AppointmentFlow drives the booking lifecycle:
// absent → scheduled → rescheduled → cancelled.
type AppointmentFlow struct {
	crm        *crm.Client
	calendarID string
	timezone   string
	logger     *slog.Logger
	now        func() time.Time
}

// NewAppointmentFlow wires the flow to one calendar.
func NewAppointmentFlow(client *crm.Client, calendarID, timezone string, logger *slog.Logger) *AppointmentFlow {
	if logger == nil {
		logger = slog.Default()
	}
	return &AppointmentFlow{
		crm:        client,
		calendarID: calendarID,
		timezone:   timezone,
		logger:     logger.With("component", "appointment-flow"),
		now:        time.Now,
	}
}

// Slots returns bookable windows, widening the range so callers always see
// at least the minimum lookahead.
func (f *AppointmentFlow) Slots(ctx context.Context, from, to time.Time) ([]crm.Slot, error) {
	now := f.now()
	if from.Before(now) {
		from = now
	}
	if earliest := now.Add(minSlotLookahead); to.Before(earliest) {
		to = earliest
	}
	return f.crm.FreeSlots(ctx, f.calendarID, from, to, f.timezone)
}

// Active resolves the contact's current appointment inside the ±6-day window
// around now, or nil when none exists.
func (f *AppointmentFlow) Active(ctx context.Context, contactID string) (*crm.CalendarEvent, error) {
	now := f.now()
	events, err := f.crm.CalendarEvents(ctx, f.calendarID, now.Add(-resolveWindow), now.Add(resolveWindow))
	if err != nil {
		return nil, err
	}
	for i := range events {
		if events[i].ContactID != contactID {
			continue
		}
		if events[i].Status == "cancelled" {
			continue
		}
		return &events[i], nil
	}
	return nil, nil
}

// Book creates an appointment after confirming the contact has none active.
func (f *AppointmentFlow) Book(ctx context.Context, contactID, title, description string, start, end time.Time) (*crm.CalendarEvent, error) {
	active, err := f.Active(ctx, contactID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return active, fmt.Errorf("%w: appointment %s at %s", ErrAppointmentExists, active.ID, active.StartTime)
	}

	event, err := f.crm.BookAppointment(ctx, crm.NewAppointment{
		CalendarID:  f.calendarID,
		ContactID:   contactID,
		Title:       title,
		Description: description,
		StartTime:   start.Format(time.RFC3339),
		EndTime:     end.Format(time.RFC3339),
		Timezone:    f.timezone,
	})
	if err != nil {
		return nil, err
	}
	f.logger.Info("appointment booked", "event_id", event.ID, "contact_id", contactID, "start", event.StartTime)
	return event, nil
}

// Reschedule moves the contact's existing appointment. It never creates a
// second booking.
func (f *AppointmentFlow) Reschedule(ctx context.Context, contactID string, start, end time.Time) (*crm.CalendarEvent, error) {
	active, err := f.Active(ctx, contactID)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, ErrNoActiveAppointment
	}

	updated, err := f.crm.UpdateAppointment(ctx, active.ID, crm.AppointmentUpdate{
		StartTime: start.Format(time.RFC3339),
		EndTime:   end.Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	f.logger.Info("appointment rescheduled", "event_id", active.ID, "contact_id", contactID, "start", updated.StartTime)
	return updated, nil
}

// Cancel removes the contact's active appointment via the raw delete path.
func (f *AppointmentFlow) Cancel(ctx context.Context, contactID string) error {
	active, err := f.Active(ctx, contactID)
	if err != nil {
		return err
	}
	if active == nil {
		return ErrNoActiveAppointment
	}
	if err := f.crm.DeleteAppointment(ctx, active.ID); err != nil {
		return err
	}
	f.logger.Info("appointment cancelled", "event_id", active.ID, "contact_id", contactID)
	return nil
}
