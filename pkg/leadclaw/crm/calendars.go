// Package crm – calendars.go covers free-slot discovery and appointment
// booking on the remote calendar.
package crm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Slot is one bookable window returned by the free-slots endpoint.
type Slot struct {
	Start string `json:"start"`
	End   string `json:"end,omitempty"`
}

// CalendarEvent is an existing booking on the calendar.
type CalendarEvent struct {
	ID          string `json:"id"`
	CalendarID  string `json:"calendarId"`
	ContactID   string `json:"contactId,omitempty"`
	Title       string `json:"title,omitempty"`
	Status      string `json:"appointmentStatus,omitempty"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Address     string `json:"address,omitempty"`
	Description string `json:"notes,omitempty"`
}

// NewAppointment is the booking payload. CalendarID and LocationID are filled
// by the client from configuration.
type NewAppointment struct {
	CalendarID  string `json:"calendarId"`
	LocationID  string `json:"locationId"`
	ContactID   string `json:"contactId"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Status      string `json:"appointmentStatus,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
}

// AppointmentUpdate carries the reschedulable fields.
type AppointmentUpdate struct {
	StartTime string `json:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`
	Title     string `json:"title,omitempty"`
}

// FreeSlots lists open windows on a calendar between two instants. The remote
// keys slots by date; the client flattens them into one ordered list.
func (c *Client) FreeSlots(ctx context.Context, calendarID string, from, to time.Time, timezone string) ([]Slot, error) {
	q := url.Values{
		"startDate": {strconv.FormatInt(from.UnixMilli(), 10)},
		"endDate":   {strconv.FormatInt(to.UnixMilli(), 10)},
	}
	if timezone != "" {
		q.Set("timezone", timezone)
	}
	var out map[string]struct {
		Slots []string `json:"slots"`
	}
	if err := c.do(ctx, http.MethodGet, "/calendars/"+calendarID+"/free-slots", q, nil, &out); err != nil {
		return nil, fmt.Errorf("free slots: %w", err)
	}
	var slots []Slot
	for _, day := range out {
		for _, s := range day.Slots {
			slots = append(slots, Slot{Start: s})
		}
	}
	return slots, nil
}

// CalendarEvents lists bookings on a calendar between two instants.
func (c *Client) CalendarEvents(ctx context.Context, calendarID string, from, to time.Time) ([]CalendarEvent, error) {
	q := url.Values{
		"locationId": {c.cfg.LocationID},
		"calendarId": {calendarID},
		"startTime":  {strconv.FormatInt(from.UnixMilli(), 10)},
		"endTime":    {strconv.FormatInt(to.UnixMilli(), 10)},
	}
	var out struct {
		Events []CalendarEvent `json:"events"`
	}
	if err := c.do(ctx, http.MethodGet, "/calendars/events", q, nil, &out); err != nil {
		return nil, fmt.Errorf("calendar events: %w", err)
	}
	return out.Events, nil
}

// BookAppointment creates a confirmed booking.
func (c *Client) BookAppointment(ctx context.Context, na NewAppointment) (*CalendarEvent, error) {
	na.LocationID = c.cfg.LocationID
	if na.Status == "" {
		na.Status = "confirmed"
	}
	var out CalendarEvent
	if err := c.do(ctx, http.MethodPost, "/calendars/events/appointments", nil, na, &out); err != nil {
		return nil, fmt.Errorf("book appointment: %w", err)
	}
	return &out, nil
}

// UpdateAppointment reschedules or retitles an existing booking.
func (c *Client) UpdateAppointment(ctx context.Context, id string, up AppointmentUpdate) (*CalendarEvent, error) {
	var out CalendarEvent
	if err := c.do(ctx, http.MethodPut, "/calendars/events/appointments/"+id, nil, up, &out); err != nil {
		return nil, fmt.Errorf("update appointment %s: %w", id, err)
	}
	return &out, nil
}

// DeleteAppointment cancels a booking via the raw delete path.
func (c *Client) DeleteAppointment(ctx context.Context, id string) error {
	if err := c.rawDelete(ctx, "/calendars/events/"+id, nil); err != nil {
		return fmt.Errorf("delete appointment %s: %w", id, err)
	}
	return nil
}
