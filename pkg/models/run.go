package models

import (
	"fmt"
	"time"
)

// RunStatus is the lifecycle state of an evaluation run.
// Transitions: pending -> running -> completed | failed | cancelled.
// Terminal states never reopen.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// IsTerminal reports whether the status is final.
func (s RunStatus) IsTerminal() bool {
	return s == RunCompleted || s == RunFailed || s == RunCancelled
}

// StatusHistoryEntry is one timestamped, append-only line of run history.
type StatusHistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	// Rate-limit retries carry the attempt number and wait duration so the
	// UI can render backoff activity.
	IsRateLimit bool    `json:"is_rate_limit,omitempty"`
	Attempt     int     `json:"attempt,omitempty"`
	WaitSeconds float64 `json:"wait_seconds,omitempty"`
}

// FailureMode is a heuristic label on a failed test case, not authoritative.
type FailureMode string

const (
	FailureToolNotCalled FailureMode = "tool_not_called"
	FailureWrongTool     FailureMode = "wrong_tool"
	FailureWrongArgs     FailureMode = "wrong_args"
	FailureHallucination FailureMode = "hallucination"
	FailurePartialMatch  FailureMode = "partial_match"
)

// ToolCall is one observed call the agent made while handling a test case.
type ToolCall struct {
	Name            string         `json:"name"`
	Arguments       map[string]any `json:"arguments"`
	Result          any            `json:"result,omitempty"`
	Success         *bool          `json:"success,omitempty"`
	Reasoning       string         `json:"reasoning,omitempty"`
	StepNumber      int            `json:"step_number,omitempty"`
	DurationSeconds float64        `json:"duration_seconds,omitempty"`
}

// AssertionResult is one judge verdict on one assertion.
type AssertionResult struct {
	Assertion      string `json:"assertion"`
	Passed         bool   `json:"passed"`
	LLMJudgeOutput string `json:"llm_judge_output,omitempty"`
}

// ArgumentAssertionResult groups verdicts for one argument of one tool.
type ArgumentAssertionResult struct {
	ArgName    string            `json:"arg_name"`
	Assertions []AssertionResult `json:"assertions"`
}

// ToolExpectationResult holds the graded expectations for one declared tool.
type ToolExpectationResult struct {
	ToolName  string                    `json:"tool_name"`
	Arguments []ArgumentAssertionResult `json:"arguments"`
}

// ExpectedToolResult records whether a tool from the minimal tool set was
// observed in the agent's calls. Pure string membership, no LLM involved.
type ExpectedToolResult struct {
	ToolName  string `json:"tool_name"`
	WasCalled bool   `json:"was_called"`
}

// ResponseQualityResult is the judge verdict on the response text.
type ResponseQualityResult struct {
	Assertion      string `json:"assertion"`
	Passed         bool   `json:"passed"`
	LLMJudgeOutput string `json:"llm_judge_output,omitempty"`
}

// BehaviorAssertionResult is one verdict from a batched behavior grading call.
type BehaviorAssertionResult struct {
	Assertion      string `json:"assertion"`
	Passed         bool   `json:"passed"`
	LLMJudgeOutput string `json:"llm_judge_output,omitempty"`
}

// TestCaseResult is the embedded per-case outcome inside a run.
type TestCaseResult struct {
	TestCaseID            string                    `json:"tc_id"`
	Passed                bool                      `json:"passed"`
	Response              string                    `json:"response,omitempty"`
	ToolCalls             []ToolCall                `json:"tool_calls,omitempty"`
	ExpectedTools         []ExpectedToolResult      `json:"expected_tools,omitempty"`
	ToolExpectations      []ToolExpectationResult   `json:"tool_expectation_results,omitempty"`
	ResponseQuality       *ResponseQualityResult    `json:"response_quality_result,omitempty"`
	BehaviorAssertions    []BehaviorAssertionResult `json:"behavior_assertion_results,omitempty"`
	AssertionMode         AssertionMode             `json:"assertion_mode"`
	ExecutionError        string                    `json:"execution_error,omitempty"`
	FailureMode           FailureMode               `json:"failure_mode,omitempty"`
	RetryCount            int                       `json:"retry_count,omitempty"`
	AgentCallDuration     float64                   `json:"agent_call_duration_seconds"`
	JudgeCallDuration     float64                   `json:"judge_call_duration_seconds"`
	TotalDuration         float64                   `json:"total_duration_seconds"`
	CompletedAt           time.Time                 `json:"completed_at"`
}

// Regression marks a test case that passed in the agent's prior completed run
// on the same dataset and failed in this one.
type Regression struct {
	TestCaseID     string `json:"testcase_id"`
	PreviousResult string `json:"previous_result"`
	CurrentResult  string `json:"current_result"`
}

// EvaluationRun is one execution of a dataset against an agent.
type EvaluationRun struct {
	ID        string `json:"eval_id"`
	DatasetID string `json:"dataset_id"`
	AgentID   string `json:"agent_id"`
	// Snapshots taken at launch so later edits don't rewrite history.
	PromptVersion      int    `json:"prompt_version,omitempty"`
	JudgeConfigID      string `json:"judge_config_id,omitempty"`
	JudgeConfigVersion int    `json:"judge_config_version,omitempty"`
	AgentEndpointURL   string `json:"agent_endpoint_url"`

	TimeoutSeconds int       `json:"timeout_seconds"`
	Status         RunStatus `json:"status"`
	StatusMessage  string    `json:"status_message,omitempty"`

	TotalTests      int `json:"total_tests"`
	CompletedTests  int `json:"completed_tests"`
	PassedCount     int `json:"passed_count"`
	FailedTests     int `json:"failed_tests"`
	InProgressTests int `json:"in_progress_tests"`

	TestCases     []TestCaseResult     `json:"test_cases"`
	StatusHistory []StatusHistoryEntry `json:"status_history"`
	Regressions   []Regression         `json:"regressions,omitempty"`
	Warnings      []string             `json:"warnings,omitempty"`

	TotalRateLimitHits    int     `json:"total_rate_limit_hits,omitempty"`
	TotalRetryWaitSeconds float64 `json:"total_retry_wait_seconds,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// AppendHistory appends a plain status-history entry and updates the
// current-activity line.
func (r *EvaluationRun) AppendHistory(message string) {
	r.StatusMessage = message
	r.StatusHistory = append(r.StatusHistory, StatusHistoryEntry{
		Timestamp: time.Now().UTC(),
		Message:   message,
	})
}

// AppendRateLimitEvent records one backoff wait in the run history and
// accumulates the rate-limit totals.
func (r *EvaluationRun) AppendRateLimitEvent(source string, attempt int, wait time.Duration) {
	r.TotalRateLimitHits++
	r.TotalRetryWaitSeconds += wait.Seconds()
	r.StatusHistory = append(r.StatusHistory, StatusHistoryEntry{
		Timestamp:   time.Now().UTC(),
		Message:     fmt.Sprintf("%s rate limited, retrying in %.1fs (attempt %d)", source, wait.Seconds(), attempt),
		IsRateLimit: true,
		Attempt:     attempt,
		WaitSeconds: wait.Seconds(),
	})
}
