// Package crm – session.go owns the OAuth token lifecycle for the remote CRM:
// authorization-code exchange, persistence through a TokenStore, and
// serialized refresh-before-expiry for every authenticated call.
package crm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ErrTokenNotFound is returned when no persisted token exists for the
// integration. The operator must run the OAuth exchange first.
var ErrTokenNotFound = errors.New("crm: token not found")

// refreshThreshold is how close to expiry a token may get before EnsureFresh
// proactively refreshes it.
const refreshThreshold = 30 * time.Minute

// TokenRecord is the persisted shape of an issued OAuth token pair.
// ExpiresAt is absolute; the wire-level expires_in is converted on receipt.
type TokenRecord struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	UserType     string    `json:"user_type,omitempty"`
	LocationID   string    `json:"location_id,omitempty"`
	CompanyID    string    `json:"company_id,omitempty"`
	UserID       string    `json:"user_id,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Fresh reports whether the token is still comfortably inside its lifetime.
func (t TokenRecord) Fresh(now time.Time) bool {
	return t.AccessToken != "" && t.ExpiresAt.After(now.Add(refreshThreshold))
}

// TokenStore persists token records keyed by integration name. A nil payload
// with a nil error means no record exists yet.
type TokenStore interface {
	TokenData(ctx context.Context, name string) ([]byte, error)
	SaveTokenData(ctx context.Context, name string, data []byte) error
}

// SessionConfig carries the OAuth client identity for the CRM app.
type SessionConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	UserType     string // "Location" or "Company"
}

// SessionManager hands out valid access tokens. Refreshes for the same
// integration are serialized behind a per-name mutex so concurrent callers
// never race each other into double-spending a refresh token.
type SessionManager struct {
	cfg    SessionConfig
	store  TokenStore
	client *http.Client
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	cache map[string]TokenRecord

	now func() time.Time
}

// NewSessionManager wires a manager over the given store.
func NewSessionManager(cfg SessionConfig, store TokenStore, logger *slog.Logger) *SessionManager {
	if cfg.TokenURL == "" {
		cfg.TokenURL = "https://services.leadconnectorhq.com/oauth/token"
	}
	if cfg.UserType == "" {
		cfg.UserType = "Location"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		cfg:    cfg,
		store:  store,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger.With("component", "crm-session"),
		locks:  make(map[string]*sync.Mutex),
		cache:  make(map[string]TokenRecord),
		now:    time.Now,
	}
}

func (m *SessionManager) lockFor(name string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[name]
	if !ok {
		l = &sync.Mutex{}
		m.locks[name] = l
	}
	return l
}

// EnsureFresh returns a token guaranteed to outlive the next request window,
// refreshing and persisting it when it is within the threshold of expiry.
func (m *SessionManager) EnsureFresh(ctx context.Context, name string) (TokenRecord, error) {
	l := m.lockFor(name)
	l.Lock()
	defer l.Unlock()

	rec, err := m.load(ctx, name)
	if err != nil {
		return TokenRecord{}, err
	}
	if rec.Fresh(m.now()) {
		return rec, nil
	}

	m.logger.Info("refreshing access token", "integration", name, "expires_at", rec.ExpiresAt)
	form := url.Values{
		"client_id":     {m.cfg.ClientID},
		"client_secret": {m.cfg.ClientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {rec.RefreshToken},
		"user_type":     {m.cfg.UserType},
	}
	fresh, err := m.tokenRequest(ctx, form)
	if err != nil {
		// Degrade to the stale token: the remote call may still succeed, and
		// if it does not the per-call auth failure is recoverable.
		m.logger.Warn("token refresh failed, proceeding with stale token",
			"integration", name, "error", err)
		return rec, nil
	}
	// Some issuers omit the refresh token on refresh; keep the old one.
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = rec.RefreshToken
	}
	if err := m.save(ctx, name, fresh); err != nil {
		return TokenRecord{}, err
	}
	return fresh, nil
}

// Exchange trades an authorization code for the initial token pair and
// persists it under the integration name.
func (m *SessionManager) Exchange(ctx context.Context, name, code string) (TokenRecord, error) {
	l := m.lockFor(name)
	l.Lock()
	defer l.Unlock()

	form := url.Values{
		"client_id":     {m.cfg.ClientID},
		"client_secret": {m.cfg.ClientSecret},
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"user_type":     {m.cfg.UserType},
	}
	rec, err := m.tokenRequest(ctx, form)
	if err != nil {
		return TokenRecord{}, fmt.Errorf("exchange authorization code: %w", err)
	}
	if err := m.save(ctx, name, rec); err != nil {
		return TokenRecord{}, err
	}
	m.logger.Info("authorization code exchanged", "integration", name, "expires_at", rec.ExpiresAt)
	return rec, nil
}

// Current returns the persisted record without refreshing it.
func (m *SessionManager) Current(ctx context.Context, name string) (TokenRecord, error) {
	l := m.lockFor(name)
	l.Lock()
	defer l.Unlock()
	return m.load(ctx, name)
}

func (m *SessionManager) load(ctx context.Context, name string) (TokenRecord, error) {
	if rec, ok := m.cache[name]; ok {
		return rec, nil
	}
	data, err := m.store.TokenData(ctx, name)
	if err != nil {
		return TokenRecord{}, fmt.Errorf("load token for %s: %w", name, err)
	}
	if len(data) == 0 {
		return TokenRecord{}, ErrTokenNotFound
	}
	var rec TokenRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return TokenRecord{}, fmt.Errorf("decode token for %s: %w", name, err)
	}
	m.cache[name] = rec
	return rec, nil
}

func (m *SessionManager) save(ctx context.Context, name string, rec TokenRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode token for %s: %w", name, err)
	}
	if err := m.store.SaveTokenData(ctx, name, data); err != nil {
		return fmt.Errorf("persist token for %s: %w", name, err)
	}
	m.cache[name] = rec
	return nil
}

// tokenWire is the issuer's response body for both grant types.
type tokenWire struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	UserType     string `json:"userType"`
	LocationID   string `json:"locationId"`
	CompanyID    string `json:"companyId"`
	UserID       string `json:"userId"`
}

func (m *SessionManager) tokenRequest(ctx context.Context, form url.Values) (TokenRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return TokenRecord{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return TokenRecord{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return TokenRecord{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return TokenRecord{}, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var wire tokenWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return TokenRecord{}, fmt.Errorf("decode token response: %w", err)
	}
	if wire.AccessToken == "" {
		return TokenRecord{}, errors.New("token response missing access_token")
	}
	return TokenRecord{
		AccessToken:  wire.AccessToken,
		RefreshToken: wire.RefreshToken,
		TokenType:    wire.TokenType,
		Scope:        wire.Scope,
		UserType:     wire.UserType,
		LocationID:   wire.LocationID,
		CompanyID:    wire.CompanyID,
		UserID:       wire.UserID,
		ExpiresAt:    m.now().Add(time.Duration(wire.ExpiresIn) * time.Second),
	}, nil
}
