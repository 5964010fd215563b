// Package assistant – estimate.go forwards collected project details to the
// external estimation service webhook.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Estimator posts estimate requests to a configured webhook.
type Estimator struct {
	url    string
	http   *http.Client
	logger *slog.Logger
}

// NewEstimator returns nil when no webhook is configured, which disables the
// estimate tool.
func NewEstimator(url string, logger *slog.Logger) *Estimator {
	if url == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Estimator{
		url:    url,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: logger.With("component", "estimator"),
	}
}

// Request sends one estimate request and returns the service's response body
// so the model can relay pricing details.
func (e *Estimator) Request(ctx context.Context, contactID, email string, details map[string]any) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"contactId": contactID,
		"email":     email,
		"details":   details,
	})
	if err != nil {
		return "", fmt.Errorf("encode estimate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("estimate webhook: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("estimate webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	e.logger.Info("estimate requested", "contact_id", contactID)
	if len(body) == 0 {
		return "estimate request accepted", nil
	}
	return string(body), nil
}
