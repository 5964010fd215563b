// Package assistant – events.go defines the inbound event variants and the
// envelope parser. Dispatch is a type switch over the closed set of kinds,
// so a new kind is a compile-time-visible change.
package assistant

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jholhewres/leadclaw/pkg/leadclaw/agent"
)

// Event kind tags as they appear on the wire.
const (
	KindFormSubmit     = "formSubmit"
	KindInboundMessage = "inboundMessage"
	KindAdmin          = "admin"
)

// Event is the closed set of inbound event variants.
type Event interface {
	Kind() string
}

// FormSubmitEvent is a website lead form submission. Identity fields are
// lifted out; the untouched payload is kept for the append-only form log.
type FormSubmitEvent struct {
	Email    string
	Phone    string
	FullName string
	Fields   map[string]any
	Raw      json.RawMessage
}

func (FormSubmitEvent) Kind() string { return KindFormSubmit }

// InboundMessageEvent is a customer reply arriving on an existing remote
// conversation thread.
type InboundMessageEvent struct {
	ContactID string // remote contact id
	Body      string
	Timestamp time.Time
}

func (InboundMessageEvent) Kind() string { return KindInboundMessage }

// AdminEvent is an operator conversation with the back-office assistant.
type AdminEvent struct {
	Messages []agent.Message
}

func (AdminEvent) Kind() string { return KindAdmin }

type eventEnvelope struct {
	ItsFor string          `json:"itsFor"`
	Data   json.RawMessage `json:"data"`
}

// ParseEvent decodes the inbound envelope into its typed variant.
func ParseEvent(raw []byte) (Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("parse event envelope: %w", err)
	}
	switch env.ItsFor {
	case KindFormSubmit:
		return parseFormSubmit(env.Data)
	case KindInboundMessage:
		return parseInboundMessage(env.Data)
	case KindAdmin:
		return parseAdmin(env.Data)
	case "":
		return nil, fmt.Errorf("parse event: missing itsFor tag")
	default:
		return nil, fmt.Errorf("parse event: unknown kind %q", env.ItsFor)
	}
}

func parseFormSubmit(data json.RawMessage) (Event, error) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("parse formSubmit payload: %w", err)
	}
	ev := FormSubmitEvent{
		Email:    stringField(fields, "email"),
		Phone:    stringField(fields, "phone"),
		FullName: stringField(fields, "full_name", "fullName", "name"),
		Fields:   fields,
		Raw:      data,
	}
	if ev.Email == "" && ev.Phone == "" {
		return nil, fmt.Errorf("parse formSubmit payload: no email or phone")
	}
	return ev, nil
}

func parseInboundMessage(data json.RawMessage) (Event, error) {
	var wire struct {
		ContactID string          `json:"contactId"`
		Body      string          `json:"body"`
		Timestamp json.RawMessage `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("parse inboundMessage payload: %w", err)
	}
	if wire.ContactID == "" {
		return nil, fmt.Errorf("parse inboundMessage payload: missing contactId")
	}
	if strings.TrimSpace(wire.Body) == "" {
		return nil, fmt.Errorf("parse inboundMessage payload: empty body")
	}
	ts, err := parseTimestamp(wire.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("parse inboundMessage payload: %w", err)
	}
	return InboundMessageEvent{ContactID: wire.ContactID, Body: wire.Body, Timestamp: ts}, nil
}

func parseAdmin(data json.RawMessage) (Event, error) {
	var wire struct {
		Messages []agent.Message `json:"messages"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("parse admin payload: %w", err)
	}
	if len(wire.Messages) == 0 {
		return nil, fmt.Errorf("parse admin payload: no messages")
	}
	return AdminEvent{Messages: wire.Messages}, nil
}

// parseTimestamp accepts RFC3339 strings and millisecond epochs. A missing
// timestamp means now.
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Now().UTC(), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
		}
		return t.UTC(), nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		ms, err := strconv.ParseInt(n.String(), 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp %s", n)
		}
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp %s", raw)
}

func stringField(fields map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := fields[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
