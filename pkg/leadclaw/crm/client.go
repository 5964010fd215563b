// Package crm – client.go is the authenticated HTTP client for the remote
// CRM. Every call resolves a fresh token through the session manager first,
// then speaks the versioned REST API.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// apiVersion pins the remote API revision every request is made against.
const apiVersion = "2021-07-28"

// ClientConfig carries the per-location wiring for the remote CRM.
type ClientConfig struct {
	BaseURL     string
	LocationID  string
	Integration string // token name handed to the session manager
}

// Client talks to the remote CRM on behalf of one location.
type Client struct {
	cfg      ClientConfig
	sessions *SessionManager
	http     *http.Client
	logger   *slog.Logger
}

// NewClient builds a client over the session manager.
func NewClient(cfg ClientConfig, sessions *SessionManager, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://services.leadconnectorhq.com"
	}
	if cfg.Integration == "" {
		cfg.Integration = "crm"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:      cfg,
		sessions: sessions,
		http:     &http.Client{Timeout: 30 * time.Second},
		logger:   logger.With("component", "crm-client"),
	}
}

// LocationID exposes the configured location for callers composing payloads.
func (c *Client) LocationID() string { return c.cfg.LocationID }

// apiError is a remote failure with its status code preserved.
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("crm api returned %d: %s", e.Status, e.Body)
}

// do performs an authenticated JSON request. A nil out skips decoding.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	endpoint := c.cfg.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}

	tok, err := c.sessions.EnsureFresh(ctx, c.cfg.Integration)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("Version", apiVersion)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	c.logger.Debug("crm request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &apiError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

// rawDelete issues a DELETE with a hand-built request instead of the shared
// helper. The remote rejects deletes that carry the usual content headers, so
// this path sends the bare minimum.
func (c *Client) rawDelete(ctx context.Context, path string, query url.Values) error {
	endpoint := c.cfg.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}

	tok, err := c.sessions.EnsureFresh(ctx, c.cfg.Integration)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("Version", apiVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("DELETE %s: %w", path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &apiError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return nil
}
