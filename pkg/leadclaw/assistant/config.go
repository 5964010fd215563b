// Package assistant – config.go defines the YAML configuration tree and its
// defaults. Values load over the defaults, so a minimal config file only
// states what differs.
package assistant

import (
	"fmt"

	"github.com/jholhewres/leadclaw/pkg/leadclaw/agent"
)

// Config is the root configuration.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Database  DatabaseConfig  `yaml:"database"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	LLM       agent.LLMConfig `yaml:"llm"`
	CRM       CRMConfig       `yaml:"crm"`
	Assistant AssistantConfig `yaml:"assistant"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// DatabaseConfig locates the SQLite file.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// GatewayConfig controls the inbound HTTP endpoint.
type GatewayConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Address        string   `yaml:"address"`
	AuthToken      string   `yaml:"auth_token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// CRMConfig wires the remote CRM: OAuth app identity, location scoping and
// the pipeline/calendar the assistant operates on.
type CRMConfig struct {
	BaseURL           string `yaml:"base_url"`
	TokenURL          string `yaml:"token_url"`
	ClientID          string `yaml:"client_id"`
	ClientSecret      string `yaml:"client_secret"`
	LocationID        string `yaml:"location_id"`
	Integration       string `yaml:"integration"`
	CalendarID        string `yaml:"calendar_id"`
	PipelineID        string `yaml:"pipeline_id"`
	PipelineStageID   string `yaml:"pipeline_stage_id"`
	Timezone          string `yaml:"timezone"`
	KeepaliveSchedule string `yaml:"keepalive_schedule"`
}

// AssistantConfig tunes the assistant's behavior and business context.
type AssistantConfig struct {
	BusinessName       string   `yaml:"business_name"`
	MaxSteps           int      `yaml:"max_steps"`
	ServiceAreas       []string `yaml:"service_areas"` // postcode prefixes
	EstimateWebhookURL string   `yaml:"estimate_webhook_url"`
}

// DefaultConfig returns the baseline every config file is merged onto.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Database: DatabaseConfig{
			Path: "leadclaw.db",
		},
		Gateway: GatewayConfig{
			Enabled: true,
			Address: "127.0.0.1:8484",
		},
		LLM: agent.LLMConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o",
			Temperature: 0.3,
		},
		CRM: CRMConfig{
			BaseURL:           "https://services.leadconnectorhq.com",
			Integration:       "crm",
			Timezone:          "Europe/London",
			KeepaliveSchedule: "@every 10m",
		},
		Assistant: AssistantConfig{
			MaxSteps: 10,
		},
	}
}

// Validate checks the fields a request cannot proceed without.
func (c *Config) Validate() error {
	if c.CRM.LocationID == "" {
		return fmt.Errorf("%w: crm.location_id", ErrConfigMissing)
	}
	if c.CRM.ClientID == "" || c.CRM.ClientSecret == "" {
		return fmt.Errorf("%w: crm.client_id / crm.client_secret", ErrConfigMissing)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("%w: llm.model", ErrConfigMissing)
	}
	return nil
}
