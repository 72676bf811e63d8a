package models

import "time"

// ProductionTrace is an ingested production interaction. Ingestion and PII
// scrubbing live outside the engine; the rows live here so promoted traces
// can become regression test cases.
type ProductionTrace struct {
	ID        string     `json:"trace_id"`
	AgentID   string     `json:"agent_id,omitempty"`
	Input     string     `json:"input"`
	Response  string     `json:"response,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Status    string     `json:"status"` // new | reviewed | converted | discarded
	CreatedAt time.Time  `json:"created_at"`
}

// TraceAnnotation is a reviewer label on a production trace.
type TraceAnnotation struct {
	TraceID   string    `json:"trace_id"`
	Outcome   int       `json:"outcome,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TraceConversion links a trace to the regression test case it became.
type TraceConversion struct {
	TraceID    string    `json:"trace_id"`
	TestCaseID string    `json:"tc_id"`
	DatasetID  string    `json:"dataset_id"`
	CreatedAt  time.Time `json:"created_at"`
}
