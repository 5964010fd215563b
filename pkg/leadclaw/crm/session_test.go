package crm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// memoryTokenStore keeps token blobs in a map, mirroring the persistence
// contract without a database.
type memoryTokenStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryTokenStore() *memoryTokenStore {
	return &memoryTokenStore{data: make(map[string][]byte)}
}

func (s *memoryTokenStore) TokenData(_ context.Context, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[name], nil
}

func (s *memoryTokenStore) SaveTokenData(_ context.Context, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[name] = data
	return nil
}

func fakeTokenServer(t *testing.T, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if calls != nil {
			calls.Add(1)
		}
		grant := r.PostFormValue("grant_type")
		if grant != "refresh_token" && grant != "authorization_code" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  fmt.Sprintf("access-%s-%d", grant, time.Now().UnixNano()),
			"refresh_token": "refresh-next",
			"expires_in":    86400,
			"locationId":    "loc-1",
		})
	}))
}

func newTestSessionManager(t *testing.T, srv *httptest.Server) (*SessionManager, *memoryTokenStore) {
	t.Helper()
	store := newMemoryTokenStore()
	sm := NewSessionManager(SessionConfig{
		TokenURL:     srv.URL,
		ClientID:     "client",
		ClientSecret: "secret",
	}, store, nil)
	return sm, store
}

func seedToken(t *testing.T, store *memoryTokenStore, name string, rec TokenRecord) {
	t.Helper()
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal token: %v", err)
	}
	if err := store.SaveTokenData(context.Background(), name, data); err != nil {
		t.Fatalf("seed token: %v", err)
	}
}

func TestEnsureFreshReturnsTokenOutsideThreshold(t *testing.T) {
	var calls atomic.Int64
	srv := fakeTokenServer(t, &calls)
	defer srv.Close()

	sm, store := newTestSessionManager(t, srv)
	seedToken(t, store, "crm", TokenRecord{
		AccessToken:  "still-good",
		RefreshToken: "r1",
		ExpiresAt:    time.Now().Add(31 * time.Minute),
	})

	rec, err := sm.EnsureFresh(context.Background(), "crm")
	if err != nil {
		t.Fatalf("EnsureFresh: %v", err)
	}
	if rec.AccessToken != "still-good" {
		t.Errorf("token was refreshed early, got %q", rec.AccessToken)
	}
	if calls.Load() != 0 {
		t.Errorf("expected no refresh calls, got %d", calls.Load())
	}
}

func TestEnsureFreshRefreshesInsideThreshold(t *testing.T) {
	var calls atomic.Int64
	srv := fakeTokenServer(t, &calls)
	defer srv.Close()

	sm, store := newTestSessionManager(t, srv)
	seedToken(t, store, "crm", TokenRecord{
		AccessToken:  "nearly-expired",
		RefreshToken: "r1",
		ExpiresAt:    time.Now().Add(29 * time.Minute),
	})

	rec, err := sm.EnsureFresh(context.Background(), "crm")
	if err != nil {
		t.Fatalf("EnsureFresh: %v", err)
	}
	if rec.AccessToken == "nearly-expired" {
		t.Error("token inside threshold was not refreshed")
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 refresh call, got %d", calls.Load())
	}
	if !rec.ExpiresAt.After(time.Now().Add(refreshThreshold)) {
		t.Error("refreshed token should expire beyond the threshold")
	}

	// The refreshed record must have been persisted.
	data, _ := store.TokenData(context.Background(), "crm")
	var saved TokenRecord
	if err := json.Unmarshal(data, &saved); err != nil {
		t.Fatalf("decode persisted token: %v", err)
	}
	if saved.AccessToken != rec.AccessToken {
		t.Errorf("persisted token %q does not match returned %q", saved.AccessToken, rec.AccessToken)
	}
}

func TestEnsureFreshSerializesConcurrentRefreshes(t *testing.T) {
	var calls atomic.Int64
	srv := fakeTokenServer(t, &calls)
	defer srv.Close()

	sm, store := newTestSessionManager(t, srv)
	seedToken(t, store, "crm", TokenRecord{
		AccessToken:  "stale",
		RefreshToken: "r1",
		ExpiresAt:    time.Now().Add(-time.Hour),
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := sm.EnsureFresh(context.Background(), "crm"); err != nil {
				t.Errorf("EnsureFresh: %v", err)
			}
		}()
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("expected exactly 1 refresh for concurrent callers, got %d", calls.Load())
	}
}

func TestEnsureFreshMissingToken(t *testing.T) {
	srv := fakeTokenServer(t, nil)
	defer srv.Close()

	sm, _ := newTestSessionManager(t, srv)
	if _, err := sm.EnsureFresh(context.Background(), "crm"); err == nil {
		t.Fatal("expected error for missing token")
	} else if !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("expected ErrTokenNotFound, got %v", err)
	}
}

func TestExchangePersistsToken(t *testing.T) {
	srv := fakeTokenServer(t, nil)
	defer srv.Close()

	sm, store := newTestSessionManager(t, srv)
	rec, err := sm.Exchange(context.Background(), "crm", "auth-code-123")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if rec.AccessToken == "" {
		t.Fatal("exchange returned empty access token")
	}
	if data, _ := store.TokenData(context.Background(), "crm"); len(data) == 0 {
		t.Error("exchanged token was not persisted")
	}
}

func TestRefreshKeepsOldRefreshTokenWhenOmitted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "new-access",
			"expires_in":   3600,
		})
	}))
	defer srv.Close()

	sm, store := newTestSessionManager(t, srv)
	seedToken(t, store, "crm", TokenRecord{
		AccessToken:  "stale",
		RefreshToken: "keep-me",
		ExpiresAt:    time.Now().Add(-time.Minute),
	})

	rec, err := sm.EnsureFresh(context.Background(), "crm")
	if err != nil {
		t.Fatalf("EnsureFresh: %v", err)
	}
	if rec.RefreshToken != "keep-me" {
		t.Errorf("refresh token lost, got %q", rec.RefreshToken)
	}
}

func TestRefreshFailureDegradesToStaleToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	sm, store := newTestSessionManager(t, srv)
	seedToken(t, store, "crm", TokenRecord{
		AccessToken:  "stale-but-usable",
		RefreshToken: "r1",
		ExpiresAt:    time.Now().Add(5 * time.Minute),
	})

	rec, err := sm.EnsureFresh(context.Background(), "crm")
	if err != nil {
		t.Fatalf("refresh failure must not abort the call: %v", err)
	}
	if rec.AccessToken != "stale-but-usable" {
		t.Errorf("expected stale token back, got %q", rec.AccessToken)
	}
}
