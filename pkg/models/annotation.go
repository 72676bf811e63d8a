package models

import "time"

// Efficiency labels how economically the agent solved the task.
type Efficiency string

const (
	EfficiencyEfficient  Efficiency = "efficient"
	EfficiencyAcceptable Efficiency = "acceptable"
	EfficiencyWasteful   Efficiency = "wasteful"
)

// RunAnnotation is a human label on one completed test-case result.
type RunAnnotation struct {
	EvaluationID string     `json:"eval_id"`
	TestCaseID   string     `json:"tc_id"`
	Outcome      int        `json:"outcome"` // 1-5
	Efficiency   Efficiency `json:"efficiency,omitempty"`
	Issues       []string   `json:"issues,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ActionAnnotation is a human label on one tool call within a result.
type ActionAnnotation struct {
	EvaluationID     string    `json:"eval_id"`
	TestCaseID       string    `json:"tc_id"`
	ActionIndex      int       `json:"action_index"`
	Correctness      string    `json:"correctness,omitempty"`
	ParameterQuality string    `json:"parameter_quality,omitempty"`
	InfoUtilization  string    `json:"info_utilization,omitempty"`
	ErrorContributor bool      `json:"error_contributor,omitempty"`
	Correction       string    `json:"correction,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
