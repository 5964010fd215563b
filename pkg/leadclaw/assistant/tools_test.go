package assistant

import (
	"context"
	"strings"
	"testing"

	"github.com/jholhewres/leadclaw/pkg/leadclaw/agent"
)

func TestInServiceArea(t *testing.T) {
	areas := []string{"SW", "SE1", "n1"}
	cases := []struct {
		postcode string
		want     bool
	}{
		{"SW1A 1AA", true},
		{"sw19 2bb", true},
		{"SE1 7PB", true},
		{"SE9 4QL", false},
		{"N1 9GU", true},
		{"NW3 2PP", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := InServiceArea(tc.postcode, areas); got != tc.want {
			t.Errorf("InServiceArea(%q) = %v, want %v", tc.postcode, got, tc.want)
		}
	}
}

func toolCall(name, args string) agent.ToolCall {
	return agent.ToolCall{
		ID:   "call-1",
		Type: "function",
		Function: agent.FunctionCall{
			Name:      name,
			Arguments: args,
		},
	}
}

func newTestToolset(t *testing.T) *Toolset {
	t.Helper()
	backend := newTestBackend(t, newFakeCRM(), nil)
	opps := NewOpportunityFlow(backend.client, "pipe-1", "stage-1", nil)
	appts := NewAppointmentFlow(backend.client, "cal-1", "Europe/London", nil)
	return NewToolset(backend.db, backend.client, opps, appts, nil, []string{"SW", "SE"}, nil)
}

func TestToolArgValidation(t *testing.T) {
	exec := newTestToolset(t).AdminExecutor()

	cases := []struct {
		name string
		call agent.ToolCall
		want string
	}{
		{"empty postcode", toolCall("check_address", `{"postcode":"  "}`), "postcode is required"},
		{"unknown field", toolCall("check_address", `{"postcode":"SW1","zip":"x"}`), "invalid arguments"},
		{"bad timestamp", toolCall("book_appointment", `{"contact_id":"c-1","title":"Visit","start":"tomorrow","end":"2026-09-02T10:00:00Z"}`), "not RFC3339"},
		{"inverted window", toolCall("get_free_slots", `{"start":"2026-09-02T10:00:00Z","end":"2026-09-01T10:00:00Z"}`), "end must be after start"},
		{"missing contact", toolCall("ensure_opportunity", `{"contact_id":"","name":"Roof"}`), "contact_id and name are required"},
		{"empty query", toolCall("search_contacts", `{"query":" "}`), "query must not be empty"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := exec.Execute(context.Background(), tc.call)
			if !strings.HasPrefix(msg.Content, "Error:") {
				t.Fatalf("content = %q, want tool error", msg.Content)
			}
			if !strings.Contains(msg.Content, tc.want) {
				t.Errorf("content = %q, want it to mention %q", msg.Content, tc.want)
			}
		})
	}
}

func TestCustomerExecutorExcludesAdminTools(t *testing.T) {
	toolset := newTestToolset(t)

	names := map[string]bool{}
	for _, def := range toolset.CustomerExecutor().Definitions() {
		names[def.Function.Name] = true
	}
	for _, admin := range []string{"search_contacts", "query_leads"} {
		if names[admin] {
			t.Errorf("customer executor must not expose %s", admin)
		}
	}
	for _, core := range []string{"ensure_opportunity", "book_appointment", "check_address"} {
		if !names[core] {
			t.Errorf("customer executor missing %s", core)
		}
	}
}
