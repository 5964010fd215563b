// Package assistant – assistant.go is the facade: one entry point per inbound
// event, wiring reconciliation, context assembly, the tool loop and the
// outbound side effects. Every failure folds into the result envelope; the
// HTTP layer never sees an error from here.
package assistant

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jholhewres/leadclaw/pkg/leadclaw/agent"
	"github.com/jholhewres/leadclaw/pkg/leadclaw/crm"
	"github.com/jholhewres/leadclaw/pkg/leadclaw/store"
)

// Assistant owns the full request pipeline for one CRM location.
type Assistant struct {
	cfg      *Config
	db       *store.DB
	crm      *crm.Client
	sessions *crm.SessionManager

	reconciler *Reconciler
	assembler  *Assembler
	customer   *agent.Runner
	admin      *agent.Runner

	logger *slog.Logger
}

// New validates the configuration and wires the whole pipeline.
func New(cfg *Config, db *store.DB, logger *slog.Logger) (*Assistant, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	sessions := crm.NewSessionManager(crm.SessionConfig{
		TokenURL:     cfg.CRM.TokenURL,
		ClientID:     cfg.CRM.ClientID,
		ClientSecret: cfg.CRM.ClientSecret,
	}, db, logger)

	client := crm.NewClient(crm.ClientConfig{
		BaseURL:     cfg.CRM.BaseURL,
		LocationID:  cfg.CRM.LocationID,
		Integration: cfg.CRM.Integration,
	}, sessions, logger)

	opps := NewOpportunityFlow(client, cfg.CRM.PipelineID, cfg.CRM.PipelineStageID, logger)
	appts := NewAppointmentFlow(client, cfg.CRM.CalendarID, cfg.CRM.Timezone, logger)
	estimator := NewEstimator(cfg.Assistant.EstimateWebhookURL, logger)
	toolset := NewToolset(db, client, opps, appts, estimator, cfg.Assistant.ServiceAreas, logger)

	llm := agent.NewLLMClient(cfg.LLM, logger)

	return &Assistant{
		cfg:        cfg,
		db:         db,
		crm:        client,
		sessions:   sessions,
		reconciler: NewReconciler(db, client, logger),
		assembler:  NewAssembler(db),
		customer:   agent.NewRunner(llm, toolset.CustomerExecutor(), cfg.Assistant.MaxSteps, logger),
		admin:      agent.NewRunner(llm, toolset.AdminExecutor(), cfg.Assistant.MaxSteps, logger),
		logger:     logger.With("component", "assistant"),
	}, nil
}

// Sessions exposes the token manager for the keepalive scheduler and the
// OAuth commands.
func (a *Assistant) Sessions() *crm.SessionManager { return a.sessions }

// Config exposes the effective configuration.
func (a *Assistant) Config() *Config { return a.cfg }

// HandleEvent dispatches one inbound event and always returns an envelope.
func (a *Assistant) HandleEvent(ctx context.Context, ev Event) crm.Result {
	switch ev := ev.(type) {
	case FormSubmitEvent:
		return a.handleFormSubmit(ctx, ev)
	case InboundMessageEvent:
		return a.handleInboundMessage(ctx, ev)
	case AdminEvent:
		return a.handleAdmin(ctx, ev)
	default:
		return crm.Fail("unsupported event kind %q", ev.Kind())
	}
}

func (a *Assistant) handleFormSubmit(ctx context.Context, ev FormSubmitEvent) crm.Result {
	a.logger.Info("form submission received", "email", ev.Email, "phone", ev.Phone)

	// Step 1: resolve the canonical contact on both sides.
	contact, err := a.reconciler.EnsureContact(ctx, ev.Email, ev.Phone, ev.FullName)
	if err != nil {
		return a.failure("contact reconciliation failed", err)
	}

	// Step 2: assemble context before logging the submission, so the new
	// payload appears exactly once.
	messages, err := a.assembler.ForFormSubmit(ctx, contact, ev)
	if err != nil {
		return a.failure("conversation assembly failed", err)
	}

	// Step 3: append to the form log. The lead is captured even if the model
	// call below fails.
	if _, err := a.db.InsertForm(ctx, ev.Email, ev.Phone, ev.FullName, ev.Raw); err != nil {
		return a.failure("form persistence failed", err)
	}

	// Step 4: run the tool loop.
	result, err := a.customer.Run(ctx, customerSystemPrompt(a.cfg), messages)
	if err != nil {
		return a.modelFailure(err)
	}

	// Step 5: deliver the reply and persist it.
	return a.sendReply(ctx, contact, result)
}

func (a *Assistant) handleInboundMessage(ctx context.Context, ev InboundMessageEvent) crm.Result {
	a.logger.Info("inbound message received", "remote_contact_id", ev.ContactID)

	// Step 1: resolve the remote contact id to the local mirror.
	contact, err := a.reconciler.ByRemoteID(ctx, ev.ContactID)
	if err != nil {
		return a.failure("contact lookup failed", err)
	}

	// Step 2: assemble context from history before recording the new turn.
	messages, err := a.assembler.ForInboundMessage(ctx, contact, ev)
	if err != nil {
		return a.failure("conversation assembly failed", err)
	}

	// Step 3: record the inbound turn.
	if _, err := a.db.AppendMessage(ctx, contact.ID, store.RoleUser, ev.Body, "", ev.Timestamp); err != nil {
		return a.failure("message persistence failed", err)
	}

	// Step 4: run the tool loop.
	result, err := a.customer.Run(ctx, customerSystemPrompt(a.cfg), messages)
	if err != nil {
		return a.modelFailure(err)
	}

	// Step 5: deliver the reply and persist it.
	return a.sendReply(ctx, contact, result)
}

func (a *Assistant) handleAdmin(ctx context.Context, ev AdminEvent) crm.Result {
	result, err := a.admin.Run(ctx, adminSystemPrompt(a.cfg), ev.Messages)
	if err != nil {
		return a.modelFailure(err)
	}
	return crm.OK("ok", map[string]any{
		"reply": result.Text,
		"steps": result.Steps,
		"tools": len(result.Transcript),
	})
}

// sendReply delivers the assistant text over SMS and records it as an
// assistant-role message.
func (a *Assistant) sendReply(ctx context.Context, contact *store.Contact, result *agent.RunResult) crm.Result {
	if contact.RemoteID == "" {
		return crm.Fail("contact %d has no remote id, cannot send reply", contact.ID)
	}
	remoteMsgID, err := a.crm.SendSMS(ctx, contact.RemoteID, result.Text)
	if err != nil {
		return a.failure("reply delivery failed", err)
	}
	if _, err := a.db.AppendMessage(ctx, contact.ID, store.RoleAssistant, result.Text, remoteMsgID, time.Time{}); err != nil {
		// The reply already went out; a bookkeeping failure is logged, not fatal.
		a.logger.Error("failed to persist assistant reply", "contact_id", contact.ID, "error", err)
	}

	a.logger.Info("reply sent",
		"contact_id", contact.ID,
		"steps", result.Steps,
		"tools", len(result.Transcript),
		"total_tokens", result.Usage.TotalTokens)

	return crm.OK("reply sent", map[string]any{
		"reply":      result.Text,
		"contact_id": contact.ID,
		"remote_id":  contact.RemoteID,
		"steps":      result.Steps,
	})
}

func (a *Assistant) failure(prefix string, err error) crm.Result {
	a.logger.Error(prefix, "error", err)
	return crm.FailErr(prefix, err)
}

func (a *Assistant) modelFailure(err error) crm.Result {
	if errors.Is(err, agent.ErrEmptyResponse) {
		a.logger.Warn("model returned no usable text")
		return crm.Fail("model produced no response text")
	}
	return a.failure("model request failed", err)
}
