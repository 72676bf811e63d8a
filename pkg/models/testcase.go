package models

import "time"

// AssertionMode selects which assertion payloads of a test case are graded.
type AssertionMode string

const (
	ModeResponseOnly AssertionMode = "response_only"
	ModeToolLevel    AssertionMode = "tool_level"
	ModeHybrid       AssertionMode = "hybrid"
)

// ArgumentAssertion holds the natural-language assertions for one argument of
// an expected tool call.
type ArgumentAssertion struct {
	ArgName    string   `json:"arg_name"`
	Assertions []string `json:"assertions"`
}

// ToolExpectation declares per-argument assertions for one tool the agent is
// expected to call.
type ToolExpectation struct {
	ToolName  string              `json:"tool_name"`
	Arguments []ArgumentAssertion `json:"arguments"`
}

// ResponseQualityExpectation is a single natural-language claim about the
// response text.
type ResponseQualityExpectation struct {
	Assertion string `json:"assertion"`
}

// TestCase is one input plus its grading payload.
type TestCase struct {
	ID               string            `json:"tc_id"`
	DatasetID        string            `json:"dataset_id"`
	Input            string            `json:"tc_input"`
	ExpectedResponse string            `json:"expected_response,omitempty"`
	Description      string            `json:"description,omitempty"`
	MinimalToolSet   []string          `json:"minimal_tool_set,omitempty"`
	ToolExpectations []ToolExpectation `json:"tool_expectations,omitempty"`
	// BehaviorAssertions address tool use and response content jointly.
	BehaviorAssertions []string                    `json:"behavior_assertions,omitempty"`
	ResponseQuality    *ResponseQualityExpectation `json:"response_quality_expectation,omitempty"`
	AssertionMode      AssertionMode               `json:"assertion_mode,omitempty"`
	// IsHoldout excludes the case from prompt-improvement data while still
	// evaluating it, so overfitting to proposals stays detectable.
	IsHoldout bool      `json:"is_holdout,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EffectiveMode returns the assertion mode, inferring it when unset:
// tool expectations win over behavior assertions, which win over
// response-only grading.
func (tc *TestCase) EffectiveMode() AssertionMode {
	if tc.AssertionMode != "" {
		return tc.AssertionMode
	}
	if len(tc.ToolExpectations) > 0 {
		return ModeToolLevel
	}
	if len(tc.BehaviorAssertions) > 0 {
		return ModeHybrid
	}
	return ModeResponseOnly
}

// Normalize stamps the inferred assertion mode onto the test case so the
// stored document and every consumer agree on the mode in effect.
func (tc *TestCase) Normalize() {
	tc.AssertionMode = tc.EffectiveMode()
}
