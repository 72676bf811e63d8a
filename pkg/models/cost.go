package models

import "time"

// CallType identifies which subsystem made an LLM call.
type CallType string

const (
	CallAgentInvocation    CallType = "agent_invocation"
	CallJudgeLLM           CallType = "judge_llm"
	CallProposalGeneration CallType = "proposal_generation"
)

// CostRecord is one LLM call's token and dollar accounting.
type CostRecord struct {
	ID           string    `json:"cost_id"`
	EvaluationID string    `json:"eval_id,omitempty"`
	TestCaseID   string    `json:"tc_id,omitempty"`
	AgentID      string    `json:"agent_id,omitempty"`
	CallType     CallType  `json:"call_type"`
	Model        string    `json:"model,omitempty"`
	TokensIn     int       `json:"tokens_in"`
	TokensOut    int       `json:"tokens_out"`
	CostUSD      float64   `json:"cost_usd"`
	Timestamp    time.Time `json:"timestamp"`
}
