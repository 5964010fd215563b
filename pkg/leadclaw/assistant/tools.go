// Package assistant – tools.go declares the callable tool set. Every tool
// decodes its arguments into a typed struct and validates before dispatch, so
// malformed model output becomes a readable tool error, never a panic.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jholhewres/leadclaw/pkg/leadclaw/agent"
	"github.com/jholhewres/leadclaw/pkg/leadclaw/crm"
	"github.com/jholhewres/leadclaw/pkg/leadclaw/store"
)

// Toolset builds the executors for the customer and admin assistant profiles.
type Toolset struct {
	db           *store.DB
	crm          *crm.Client
	opps         *OpportunityFlow
	appts        *AppointmentFlow
	estimator    *Estimator
	serviceAreas []string
	logger       *slog.Logger
}

// NewToolset wires the tool backends together.
func NewToolset(db *store.DB, client *crm.Client, opps *OpportunityFlow, appts *AppointmentFlow, estimator *Estimator, serviceAreas []string, logger *slog.Logger) *Toolset {
	if logger == nil {
		logger = slog.Default()
	}
	return &Toolset{
		db:           db,
		crm:          client,
		opps:         opps,
		appts:        appts,
		estimator:    estimator,
		serviceAreas: serviceAreas,
		logger:       logger,
	}
}

// CustomerExecutor registers the tools exposed when talking to a lead.
func (t *Toolset) CustomerExecutor() *agent.Executor {
	exec := agent.NewExecutor(t.logger)
	t.registerOpportunityTools(exec)
	t.registerAppointmentTools(exec)
	t.registerAddressTool(exec)
	t.registerEstimateTool(exec)
	return exec
}

// AdminExecutor registers the full surface, including lead queries over the
// local store and raw contact search.
func (t *Toolset) AdminExecutor() *agent.Executor {
	exec := t.CustomerExecutor()
	t.registerContactTools(exec)
	t.registerLeadQueryTool(exec)
	return exec
}

// ---------- Contacts ----------

type searchContactsArgs struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

func (t *Toolset) registerContactTools(exec *agent.Executor) {
	exec.Register(agent.Definition{
		Name:        "search_contacts",
		Description: "Search remote CRM contacts by free text (name, email or phone). Returns up to limit matches.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "Free-text search: name, email or phone"},
				"limit": {"type": "integer", "description": "Maximum results, default 10"}
			},
			"required": ["query"]
		}`),
		Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			args, err := agent.DecodeArgs[searchContactsArgs]("search_contacts", raw)
			if err != nil {
				return nil, err
			}
			if strings.TrimSpace(args.Query) == "" {
				return nil, &agent.ArgError{Tool: "search_contacts", Reason: "query must not be empty"}
			}
			return t.crm.SearchContacts(ctx, args.Query, args.Limit)
		},
	})
}

// ---------- Opportunities ----------

type getOpportunitiesArgs struct {
	ContactID string `json:"contact_id"`
}

type ensureOpportunityArgs struct {
	ContactID     string  `json:"contact_id"`
	Name          string  `json:"name"`
	MonetaryValue float64 `json:"monetary_value,omitempty"`
}

type updateOpportunityArgs struct {
	OpportunityID string   `json:"opportunity_id"`
	Name          *string  `json:"name,omitempty"`
	MonetaryValue *float64 `json:"monetary_value,omitempty"`
	Status        *string  `json:"status,omitempty"`
}

type deleteOpportunityArgs struct {
	OpportunityID string `json:"opportunity_id"`
}

func (t *Toolset) registerOpportunityTools(exec *agent.Executor) {
	exec.Register(agent.Definition{
		Name:        "get_opportunities",
		Description: "List the sales opportunities for a contact on the active pipeline.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"contact_id": {"type": "string", "description": "Remote contact id"}
			},
			"required": ["contact_id"]
		}`),
		Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			args, err := agent.DecodeArgs[getOpportunitiesArgs]("get_opportunities", raw)
			if err != nil {
				return nil, err
			}
			if args.ContactID == "" {
				return nil, &agent.ArgError{Tool: "get_opportunities", Reason: "contact_id is required"}
			}
			return t.opps.List(ctx, args.ContactID)
		},
	})

	exec.Register(agent.Definition{
		Name:        "ensure_opportunity",
		Description: "Return the contact's open opportunity, creating one only if none exists. Never creates duplicates.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"contact_id": {"type": "string", "description": "Remote contact id"},
				"name": {"type": "string", "description": "Opportunity title, e.g. the customer's name and project"},
				"monetary_value": {"type": "number", "description": "Estimated value in GBP"}
			},
			"required": ["contact_id", "name"]
		}`),
		Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			args, err := agent.DecodeArgs[ensureOpportunityArgs]("ensure_opportunity", raw)
			if err != nil {
				return nil, err
			}
			if args.ContactID == "" || args.Name == "" {
				return nil, &agent.ArgError{Tool: "ensure_opportunity", Reason: "contact_id and name are required"}
			}
			opp, created, err := t.opps.EnsureOpen(ctx, args.ContactID, args.Name, args.MonetaryValue)
			if err != nil {
				return nil, err
			}
			return map[string]any{"opportunity": opp, "created": created}, nil
		},
	})

	exec.Register(agent.Definition{
		Name:        "update_opportunity",
		Description: "Update an existing opportunity's name, value or status. Requires the opportunity id from get_opportunities.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"opportunity_id": {"type": "string"},
				"name": {"type": "string"},
				"monetary_value": {"type": "number"},
				"status": {"type": "string", "enum": ["open", "won", "lost", "abandoned"]}
			},
			"required": ["opportunity_id"]
		}`),
		Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			args, err := agent.DecodeArgs[updateOpportunityArgs]("update_opportunity", raw)
			if err != nil {
				return nil, err
			}
			if args.OpportunityID == "" {
				return nil, &agent.ArgError{Tool: "update_opportunity", Reason: "opportunity_id is required"}
			}
			return t.opps.Update(ctx, args.OpportunityID, crm.OpportunityUpdate{
				Name:          args.Name,
				MonetaryValue: args.MonetaryValue,
				Status:        args.Status,
			})
		},
	})

	exec.Register(agent.Definition{
		Name:        "delete_opportunity",
		Description: "Permanently delete an opportunity. Only for records created by mistake.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"opportunity_id": {"type": "string"}
			},
			"required": ["opportunity_id"]
		}`),
		Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			args, err := agent.DecodeArgs[deleteOpportunityArgs]("delete_opportunity", raw)
			if err != nil {
				return nil, err
			}
			if args.OpportunityID == "" {
				return nil, &agent.ArgError{Tool: "delete_opportunity", Reason: "opportunity_id is required"}
			}
			if err := t.opps.Delete(ctx, args.OpportunityID); err != nil {
				return nil, err
			}
			return "opportunity deleted", nil
		},
	})
}

// ---------- Appointments ----------

type slotWindowArgs struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type bookAppointmentArgs struct {
	ContactID   string `json:"contact_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Start       string `json:"start"`
	End         string `json:"end"`
}

type rescheduleArgs struct {
	ContactID string `json:"contact_id"`
	Start     string `json:"start"`
	End       string `json:"end"`
}

type cancelAppointmentArgs struct {
	ContactID string `json:"contact_id"`
}

func parseWindow(tool, start, end string) (time.Time, time.Time, error) {
	from, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return time.Time{}, time.Time{}, &agent.ArgError{Tool: tool, Reason: fmt.Sprintf("start %q is not RFC3339", start)}
	}
	to, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return time.Time{}, time.Time{}, &agent.ArgError{Tool: tool, Reason: fmt.Sprintf("end %q is not RFC3339", end)}
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, &agent.ArgError{Tool: tool, Reason: "end must be after start"}
	}
	return from, to, nil
}

func (t *Toolset) registerAppointmentTools(exec *agent.Executor) {
	exec.Register(agent.Definition{
		Name:        "get_free_slots",
		Description: "List bookable appointment slots between two RFC3339 instants. Slots are never offered sooner than 3 days out.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"start": {"type": "string", "description": "Window start, RFC3339"},
				"end": {"type": "string", "description": "Window end, RFC3339"}
			},
			"required": ["start", "end"]
		}`),
		Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			args, err := agent.DecodeArgs[slotWindowArgs]("get_free_slots", raw)
			if err != nil {
				return nil, err
			}
			from, to, err := parseWindow("get_free_slots", args.Start, args.End)
			if err != nil {
				return nil, err
			}
			return t.appts.Slots(ctx, from, to)
		},
	})

	exec.Register(agent.Definition{
		Name:        "book_appointment",
		Description: "Book a site-visit appointment for a contact. Fails if the contact already has an active appointment; use reschedule_appointment instead.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"contact_id": {"type": "string"},
				"title": {"type": "string"},
				"description": {"type": "string"},
				"start": {"type": "string", "description": "RFC3339"},
				"end": {"type": "string", "description": "RFC3339"}
			},
			"required": ["contact_id", "title", "start", "end"]
		}`),
		Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			args, err := agent.DecodeArgs[bookAppointmentArgs]("book_appointment", raw)
			if err != nil {
				return nil, err
			}
			if args.ContactID == "" || args.Title == "" {
				return nil, &agent.ArgError{Tool: "book_appointment", Reason: "contact_id and title are required"}
			}
			from, to, err := parseWindow("book_appointment", args.Start, args.End)
			if err != nil {
				return nil, err
			}
			return t.appts.Book(ctx, args.ContactID, args.Title, args.Description, from, to)
		},
	})

	exec.Register(agent.Definition{
		Name:        "reschedule_appointment",
		Description: "Move the contact's existing appointment to a new time. The current appointment is found automatically.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"contact_id": {"type": "string"},
				"start": {"type": "string", "description": "RFC3339"},
				"end": {"type": "string", "description": "RFC3339"}
			},
			"required": ["contact_id", "start", "end"]
		}`),
		Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			args, err := agent.DecodeArgs[rescheduleArgs]("reschedule_appointment", raw)
			if err != nil {
				return nil, err
			}
			if args.ContactID == "" {
				return nil, &agent.ArgError{Tool: "reschedule_appointment", Reason: "contact_id is required"}
			}
			from, to, err := parseWindow("reschedule_appointment", args.Start, args.End)
			if err != nil {
				return nil, err
			}
			return t.appts.Reschedule(ctx, args.ContactID, from, to)
		},
	})

	exec.Register(agent.Definition{
		Name:        "cancel_appointment",
		Description: "Cancel the contact's active appointment.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"contact_id": {"type": "string"}
			},
			"required": ["contact_id"]
		}`),
		Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			args, err := agent.DecodeArgs[cancelAppointmentArgs]("cancel_appointment", raw)
			if err != nil {
				return nil, err
			}
			if args.ContactID == "" {
				return nil, &agent.ArgError{Tool: "cancel_appointment", Reason: "contact_id is required"}
			}
			if err := t.appts.Cancel(ctx, args.ContactID); err != nil {
				return nil, err
			}
			return "appointment cancelled", nil
		},
	})
}

// ---------- Address check ----------

type checkAddressArgs struct {
	Postcode string `json:"postcode"`
}

func (t *Toolset) registerAddressTool(exec *agent.Executor) {
	exec.Register(agent.Definition{
		Name:        "check_address",
		Description: "Check whether a UK postcode is inside the business's service area.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"postcode": {"type": "string", "description": "UK postcode, e.g. SW1A 1AA"}
			},
			"required": ["postcode"]
		}`),
		Handler: func(_ context.Context, raw json.RawMessage) (any, error) {
			args, err := agent.DecodeArgs[checkAddressArgs]("check_address", raw)
			if err != nil {
				return nil, err
			}
			if strings.TrimSpace(args.Postcode) == "" {
				return nil, &agent.ArgError{Tool: "check_address", Reason: "postcode is required"}
			}
			covered := InServiceArea(args.Postcode, t.serviceAreas)
			return map[string]any{"postcode": args.Postcode, "covered": covered}, nil
		},
	})
}

// ---------- Estimate ----------

type sendEstimateArgs struct {
	ContactID string         `json:"contact_id"`
	Email     string         `json:"email,omitempty"`
	Details   map[string]any `json:"details"`
}

func (t *Toolset) registerEstimateTool(exec *agent.Executor) {
	exec.Register(agent.Definition{
		Name:        "send_estimate",
		Description: "Trigger an estimate for the contact's project via the estimation service. Details should carry the project fields collected so far.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"contact_id": {"type": "string"},
				"email": {"type": "string"},
				"details": {"type": "object", "description": "Project fields: service, size, materials, postcode, etc."}
			},
			"required": ["contact_id", "details"]
		}`),
		Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			args, err := agent.DecodeArgs[sendEstimateArgs]("send_estimate", raw)
			if err != nil {
				return nil, err
			}
			if args.ContactID == "" || len(args.Details) == 0 {
				return nil, &agent.ArgError{Tool: "send_estimate", Reason: "contact_id and details are required"}
			}
			if t.estimator == nil {
				return nil, fmt.Errorf("estimate service is not configured")
			}
			return t.estimator.Request(ctx, args.ContactID, args.Email, args.Details)
		},
	})
}

// ---------- Lead query (admin) ----------

func (t *Toolset) registerLeadQueryTool(exec *agent.Executor) {
	exec.Register(agent.Definition{
		Name:        "query_leads",
		Description: "Query locally stored leads. Only the listed filters are supported; all set filters are ANDed.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"email": {"type": "string"},
				"phone": {"type": "string"},
				"city": {"type": "string"},
				"postal_code": {"type": "string"},
				"source": {"type": "string"},
				"name_contains": {"type": "string"},
				"created_after": {"type": "string", "description": "RFC3339"},
				"created_before": {"type": "string", "description": "RFC3339"},
				"limit": {"type": "integer"}
			}
		}`),
		Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			filter, err := agent.DecodeArgs[store.LeadFilter]("query_leads", raw)
			if err != nil {
				return nil, err
			}
			leads, err := t.db.QueryLeads(ctx, filter)
			if err != nil {
				return nil, err
			}
			return map[string]any{"count": len(leads), "leads": leads}, nil
		},
	})
}

// InServiceArea reports whether the postcode starts with one of the covered
// outward prefixes. Comparison ignores case and spaces.
func InServiceArea(postcode string, areas []string) bool {
	norm := strings.ToUpper(strings.ReplaceAll(postcode, " ", ""))
	for _, area := range areas {
		prefix := strings.ToUpper(strings.ReplaceAll(area, " ", ""))
		if prefix != "" && strings.HasPrefix(norm, prefix) {
			return true
		}
	}
	return false
}
