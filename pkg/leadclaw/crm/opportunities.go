// Package crm – opportunities.go covers the pipeline opportunity endpoints.
package crm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Opportunity is the remote pipeline record for a lead.
type Opportunity struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	PipelineID      string  `json:"pipelineId"`
	PipelineStageID string  `json:"pipelineStageId"`
	ContactID       string  `json:"contactId"`
	Status          string  `json:"status"` // open, won, lost, abandoned
	MonetaryValue   float64 `json:"monetaryValue,omitempty"`
	Source          string  `json:"source,omitempty"`
	CreatedAt       string  `json:"createdAt,omitempty"`
	UpdatedAt       string  `json:"updatedAt,omitempty"`
}

// NewOpportunity is the creation payload. LocationID is filled by the client.
type NewOpportunity struct {
	Name            string  `json:"name"`
	PipelineID      string  `json:"pipelineId"`
	PipelineStageID string  `json:"pipelineStageId,omitempty"`
	ContactID       string  `json:"contactId"`
	Status          string  `json:"status"`
	MonetaryValue   float64 `json:"monetaryValue,omitempty"`
	LocationID      string  `json:"locationId"`
}

// OpportunityUpdate carries the mutable fields. Nil pointers keep the remote
// value untouched.
type OpportunityUpdate struct {
	Name            *string  `json:"name,omitempty"`
	PipelineStageID *string  `json:"pipelineStageId,omitempty"`
	Status          *string  `json:"status,omitempty"`
	MonetaryValue   *float64 `json:"monetaryValue,omitempty"`
}

// SearchOpportunities lists opportunities for a contact, optionally filtered
// by free text.
func (c *Client) SearchOpportunities(ctx context.Context, contactID, query string) ([]Opportunity, error) {
	q := url.Values{
		"location_id": {c.cfg.LocationID},
	}
	if contactID != "" {
		q.Set("contact_id", contactID)
	}
	if query != "" {
		q.Set("q", query)
	}
	var out struct {
		Opportunities []Opportunity `json:"opportunities"`
	}
	if err := c.do(ctx, http.MethodGet, "/opportunities/search", q, nil, &out); err != nil {
		return nil, fmt.Errorf("search opportunities: %w", err)
	}
	return out.Opportunities, nil
}

// CreateOpportunity creates a pipeline record and returns it.
func (c *Client) CreateOpportunity(ctx context.Context, no NewOpportunity) (*Opportunity, error) {
	no.LocationID = c.cfg.LocationID
	if no.Status == "" {
		no.Status = "open"
	}
	var out struct {
		Opportunity Opportunity `json:"opportunity"`
	}
	if err := c.do(ctx, http.MethodPost, "/opportunities/", nil, no, &out); err != nil {
		return nil, fmt.Errorf("create opportunity: %w", err)
	}
	return &out.Opportunity, nil
}

// UpdateOpportunity applies a partial update to an existing record.
func (c *Client) UpdateOpportunity(ctx context.Context, id string, up OpportunityUpdate) (*Opportunity, error) {
	var out struct {
		Opportunity Opportunity `json:"opportunity"`
	}
	if err := c.do(ctx, http.MethodPut, "/opportunities/"+id, nil, up, &out); err != nil {
		return nil, fmt.Errorf("update opportunity %s: %w", id, err)
	}
	return &out.Opportunity, nil
}

// DeleteOpportunity removes a record. This endpoint is picky about request
// shape, so it goes through the raw delete path.
func (c *Client) DeleteOpportunity(ctx context.Context, id string) error {
	if err := c.rawDelete(ctx, "/opportunities/"+id, nil); err != nil {
		return fmt.Errorf("delete opportunity %s: %w", id, err)
	}
	return nil
}
