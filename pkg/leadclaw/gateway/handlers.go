// Package gateway – handlers.go: the event intake and status endpoints.
// Handled events always answer 200 with a result envelope; HTTP-level errors
// are reserved for requests that never reached the pipeline.
package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jholhewres/leadclaw/pkg/leadclaw/assistant"
	"github.com/jholhewres/leadclaw/pkg/leadclaw/crm"
)

// maxEventBody bounds one inbound event payload.
const maxEventBody = 1 << 20

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	g.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(g.startedAt).Round(time.Second).String(),
	})
}

func (g *Gateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		g.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	g.writeJSON(w, http.StatusOK, map[string]any{
		"started_at": g.startedAt,
		"uptime":     time.Since(g.startedAt).Round(time.Second).String(),
	})
}

// handleEvents is the single intake: {itsFor, data} in, envelope out.
func (g *Gateway) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		g.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Each event gets an id so a webhook delivery can be traced through
	// the logs. Echoed back for the sender's own records.
	eventID := uuid.NewString()
	w.Header().Set("X-Event-Id", eventID)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody))
	if err != nil {
		g.writeError(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	ev, err := assistant.ParseEvent(body)
	if err != nil {
		// Malformed events are answered inside the envelope, not with a 4xx:
		// webhook senders retry on transport failures, and a retry cannot fix
		// a bad payload.
		g.logger.Warn("unparseable event", "event_id", eventID, "error", err)
		g.writeJSON(w, http.StatusOK, crm.FailErr("invalid event", err))
		return
	}

	start := time.Now()
	result := g.assistant.HandleEvent(r.Context(), ev)
	g.logger.Info("event handled",
		"event_id", eventID,
		"kind", ev.Kind(),
		"success", result.Success,
		"duration_ms", time.Since(start).Milliseconds())

	g.writeJSON(w, http.StatusOK, result)
}

// ---------- Response helpers ----------

func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Error("failed to encode response", "error", err)
	}
}

func (g *Gateway) writeError(w http.ResponseWriter, message string, status int) {
	g.writeJSON(w, status, map[string]any{
		"success": false,
		"message": message,
	})
}
