package models

import "time"

// ProposalCategory buckets a prompt proposal by what it improves.
type ProposalCategory string

const (
	CategoryCapability ProposalCategory = "capability"
	CategoryQuality    ProposalCategory = "quality"
	CategoryGuardrails ProposalCategory = "guardrails"
)

// ProposalStatus is the review state of a proposal.
type ProposalStatus string

const (
	ProposalPending   ProposalStatus = "pending"
	ProposalApplied   ProposalStatus = "applied"
	ProposalDismissed ProposalStatus = "dismissed"
)

// PromptDiff is a line-level edit to a prompt text.
type PromptDiff struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

// PromptProposal is a candidate edit to an agent's system prompt, synthesized
// from failure annotations and awaiting apply or dismiss.
type PromptProposal struct {
	ID            string           `json:"proposal_id"`
	AgentID       string           `json:"agent_id"`
	PromptVersion int              `json:"prompt_version"`
	Title         string           `json:"title"`
	Category      ProposalCategory `json:"category"`
	Confidence    float64          `json:"confidence"` // [0,1]
	Priority      string           `json:"priority"`   // high|medium|low
	PatternSource string           `json:"pattern_source,omitempty"`
	Impact        string           `json:"impact,omitempty"`
	Diff          PromptDiff       `json:"diff"`
	Status        ProposalStatus   `json:"status"`
	Reasoning     string           `json:"reasoning,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}
