// Package crm – keepalive.go periodically touches every configured
// integration token so refreshes happen on schedule instead of in the hot
// path of a webhook.
package crm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Keepalive drives scheduled token refreshes through the session manager.
type Keepalive struct {
	sessions *SessionManager
	names    []string
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger
}

// NewKeepalive prepares a scheduler for the given integration names.
// Schedule accepts standard cron syntax or the @every form.
func NewKeepalive(sessions *SessionManager, names []string, schedule string, logger *slog.Logger) *Keepalive {
	if schedule == "" {
		schedule = "@every 10m"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Keepalive{
		sessions: sessions,
		names:    names,
		schedule: schedule,
		logger:   logger.With("component", "crm-keepalive"),
	}
}

// Start registers the refresh job and launches the cron loop.
func (k *Keepalive) Start() error {
	k.cron = cron.New()
	if _, err := k.cron.AddFunc(k.schedule, k.tick); err != nil {
		return err
	}
	k.cron.Start()
	k.logger.Info("token keepalive started", "schedule", k.schedule, "integrations", len(k.names))
	return nil
}

// Stop halts the cron loop and waits for a running tick to finish.
func (k *Keepalive) Stop() {
	if k.cron == nil {
		return
	}
	<-k.cron.Stop().Done()
	k.logger.Info("token keepalive stopped")
}

func (k *Keepalive) tick() {
	for _, name := range k.names {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		_, err := k.sessions.EnsureFresh(ctx, name)
		cancel()
		switch {
		case err == nil:
		case errors.Is(err, ErrTokenNotFound):
			k.logger.Warn("no token to keep alive", "integration", name)
		default:
			k.logger.Error("token refresh failed", "integration", name, "error", err)
		}
	}
}
