// Package models defines the wire-level data model shared by the store,
// the run engine, and the HTTP API. JSON field names are stable identifiers.
package models

import "time"

// Agent is an agent under test: an HTTP endpoint that accepts a task and
// returns a response plus structured tool calls.
type Agent struct {
	ID              string    `json:"agent_id"`
	Name            string    `json:"agent_name"`
	Description     string    `json:"description,omitempty"`
	EndpointURL     string    `json:"endpoint_url"`
	Model           string    `json:"model,omitempty"`
	Team            string    `json:"team,omitempty"`
	Tags            []string  `json:"tags,omitempty"`
	DefaultRiskTier string    `json:"default_risk_tier,omitempty"`
	SamplingRate    *float64  `json:"sampling_rate,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// PromptVersion is one version of an agent's system prompt. Version numbers
// are monotonically increasing per agent; at most one version is active.
type PromptVersion struct {
	AgentID   string    `json:"agent_id"`
	Version   int       `json:"prompt_version"`
	Text      string    `json:"prompt_text"`
	Notes     string    `json:"notes,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
