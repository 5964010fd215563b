package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jholhewres/leadclaw/pkg/leadclaw/crm"
	"github.com/jholhewres/leadclaw/pkg/leadclaw/store"
)

// fakeCRM is an in-memory stand-in for the remote CRM. Tests preload state
// and assert on the call counters afterwards.
type fakeCRM struct {
	mu sync.Mutex

	contacts      map[string]crm.Contact // keyed by remote id
	opportunities []crm.Opportunity
	events        []crm.CalendarEvent
	sentMessages  []string

	contactCreates     int
	opportunityCreates int
	appointmentCreates int
	appointmentUpdates int
	slotsQueryEndMs    int64

	nextID int
}

func newFakeCRM() *fakeCRM {
	return &fakeCRM{contacts: make(map[string]crm.Contact)}
}

func (f *fakeCRM) addContact(c crm.Contact) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contacts[c.ID] = c
}

func (f *fakeCRM) genID(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeCRM) handler(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("GET /contacts/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		query := strings.ToLower(r.URL.Query().Get("query"))
		var matches []crm.Contact
		for _, c := range f.contacts {
			if query != "" && (strings.ToLower(c.Email) == query || c.Phone == r.URL.Query().Get("query")) {
				matches = append(matches, c)
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"contacts": matches})
	})

	mux.HandleFunc("GET /contacts/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		c, ok := f.contacts[r.PathValue("id")]
		if !ok {
			http.Error(w, `{"message":"not found"}`, http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"contact": c})
	})

	mux.HandleFunc("POST /contacts/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var nc crm.NewContact
		json.NewDecoder(r.Body).Decode(&nc)
		c := crm.Contact{
			ID:        f.genID("contact"),
			FirstName: nc.FirstName,
			LastName:  nc.LastName,
			Email:     nc.Email,
			Phone:     nc.Phone,
			Source:    nc.Source,
		}
		f.contacts[c.ID] = c
		f.contactCreates++
		json.NewEncoder(w).Encode(map[string]any{"contact": c})
	})

	mux.HandleFunc("GET /opportunities/search", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		contactID := r.URL.Query().Get("contact_id")
		var matches []crm.Opportunity
		for _, o := range f.opportunities {
			if contactID == "" || o.ContactID == contactID {
				matches = append(matches, o)
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"opportunities": matches})
	})

	mux.HandleFunc("POST /opportunities/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var no crm.NewOpportunity
		json.NewDecoder(r.Body).Decode(&no)
		o := crm.Opportunity{
			ID:              f.genID("opp"),
			Name:            no.Name,
			PipelineID:      no.PipelineID,
			PipelineStageID: no.PipelineStageID,
			ContactID:       no.ContactID,
			Status:          no.Status,
			MonetaryValue:   no.MonetaryValue,
		}
		f.opportunities = append(f.opportunities, o)
		f.opportunityCreates++
		json.NewEncoder(w).Encode(map[string]any{"opportunity": o})
	})

	mux.HandleFunc("GET /calendars/events", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"events": f.events})
	})

	mux.HandleFunc("GET /calendars/{id}/free-slots", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.slotsQueryEndMs, _ = strconv.ParseInt(r.URL.Query().Get("endDate"), 10, 64)
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{
			"2026-09-01": map[string]any{"slots": []string{"2026-09-01T09:00:00+01:00"}},
		})
	})

	mux.HandleFunc("POST /calendars/events/appointments", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var na crm.NewAppointment
		json.NewDecoder(r.Body).Decode(&na)
		ev := crm.CalendarEvent{
			ID:         f.genID("event"),
			CalendarID: na.CalendarID,
			ContactID:  na.ContactID,
			Title:      na.Title,
			Status:     "confirmed",
			StartTime:  na.StartTime,
			EndTime:    na.EndTime,
		}
		f.events = append(f.events, ev)
		f.appointmentCreates++
		json.NewEncoder(w).Encode(ev)
	})

	mux.HandleFunc("PUT /calendars/events/appointments/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var up crm.AppointmentUpdate
		json.NewDecoder(r.Body).Decode(&up)
		id := r.PathValue("id")
		for i := range f.events {
			if f.events[i].ID == id {
				f.events[i].StartTime = up.StartTime
				f.events[i].EndTime = up.EndTime
				f.appointmentUpdates++
				json.NewEncoder(w).Encode(f.events[i])
				return
			}
		}
		http.Error(w, `{"message":"not found"}`, http.StatusNotFound)
	})

	mux.HandleFunc("DELETE /calendars/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("DELETE /opportunities/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /conversations/messages", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var msg struct {
			Message string `json:"message"`
		}
		json.NewDecoder(r.Body).Decode(&msg)
		f.sentMessages = append(f.sentMessages, msg.Message)
		json.NewEncoder(w).Encode(map[string]any{"messageId": f.genID("msg")})
	})

	return mux
}

// testBackend spins up the fake CRM and a scripted LLM, returning a wired
// client stack over a temp database.
type testBackend struct {
	fake   *fakeCRM
	db     *store.DB
	client *crm.Client
	crmURL string
	llmURL string
}

func newTestBackend(t *testing.T, fake *fakeCRM, llmReplies []map[string]any) *testBackend {
	t.Helper()

	crmSrv := httptest.NewServer(fake.handler(t))
	t.Cleanup(crmSrv.Close)

	var llmURL string
	if llmReplies != nil {
		calls := 0
		llmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls >= len(llmReplies) {
				t.Fatalf("unexpected LLM call %d", calls+1)
			}
			reply := llmReplies[calls]
			calls++
			json.NewEncoder(w).Encode(reply)
		}))
		t.Cleanup(llmSrv.Close)
		llmURL = llmSrv.URL
	}

	db, err := store.Open(filepath.Join(t.TempDir(), "leadclaw.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	// Seed a token that never needs refreshing during the test.
	tok, _ := json.Marshal(crm.TokenRecord{
		AccessToken:  "test-access",
		RefreshToken: "test-refresh",
		ExpiresAt:    time.Now().Add(24 * time.Hour),
	})
	if err := db.SaveTokenData(context.Background(), "crm", tok); err != nil {
		t.Fatalf("seed token: %v", err)
	}

	sessions := crm.NewSessionManager(crm.SessionConfig{
		TokenURL:     crmSrv.URL + "/oauth/token",
		ClientID:     "client",
		ClientSecret: "secret",
	}, db, nil)
	client := crm.NewClient(crm.ClientConfig{
		BaseURL:    crmSrv.URL,
		LocationID: "loc-1",
	}, sessions, nil)

	return &testBackend{fake: fake, db: db, client: client, crmURL: crmSrv.URL, llmURL: llmURL}
}

func newTestAssistant(t *testing.T, fake *fakeCRM, llmReplies []map[string]any) (*Assistant, *testBackend) {
	t.Helper()
	backend := newTestBackend(t, fake, llmReplies)

	cfg := DefaultConfig()
	cfg.CRM.BaseURL = backend.crmURL
	cfg.CRM.TokenURL = backend.crmURL + "/oauth/token"
	cfg.CRM.ClientID = "client"
	cfg.CRM.ClientSecret = "secret"
	cfg.CRM.LocationID = "loc-1"
	cfg.CRM.CalendarID = "cal-1"
	cfg.CRM.PipelineID = "pipe-1"
	cfg.CRM.PipelineStageID = "stage-1"
	cfg.LLM.BaseURL = backend.llmURL
	cfg.LLM.Model = "test-model"
	cfg.Assistant.BusinessName = "Acme Roofing"
	cfg.Assistant.ServiceAreas = []string{"SW", "SE"}

	a, err := New(cfg, backend.db, nil)
	if err != nil {
		t.Fatalf("New assistant: %v", err)
	}
	return a, backend
}

func llmTextReply(content string) map[string]any {
	return map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}, "finish_reason": "stop"},
		},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
}
