package runner

import (
	"context"
	"encoding/json"
	"time"

	"github.com/agentevalhq/agenteval/pkg/dispatch"
	"github.com/agentevalhq/agenteval/pkg/judge"
	"github.com/agentevalhq/agenteval/pkg/models"
	"github.com/agentevalhq/agenteval/pkg/retry"
)

// AgentCaller is the dispatcher surface the evaluator needs.
type AgentCaller interface {
	Dispatch(ctx context.Context, endpointURL string, req dispatch.Request, timeout time.Duration, attr dispatch.Attribution, onWait retry.OnWait) (*dispatch.Result, error)
}

// Grader is the judge surface the evaluator needs.
type Grader interface {
	GradeSingle(ctx context.Context, jc *models.JudgeConfig, assertion string, evidence judge.SingleContext, attr judge.Attribution, onWait retry.OnWait) (judge.Verdict, error)
	GradeBatch(ctx context.Context, jc *models.JudgeConfig, toolName, toolCallsJSON string, actualTools []string, assertions []judge.BatchAssertion, evidence judge.SingleContext, attr judge.Attribution, onWait retry.OnWait) ([]judge.Verdict, error)
}

// Evaluator executes one test case end-to-end: dispatch the agent, grade the
// sections the assertion mode enables, classify the failure.
type Evaluator struct {
	dispatcher AgentCaller
	grader     Grader
}

// NewEvaluator builds an Evaluator.
func NewEvaluator(dispatcher AgentCaller, grader Grader) *Evaluator {
	return &Evaluator{dispatcher: dispatcher, grader: grader}
}

// RateLimitCallback receives every backoff wait so the coordinator can record
// it in run history. source is "agent" or "judge".
type RateLimitCallback func(source string, attempt int, wait time.Duration)

// Evaluate runs one test case against the run's snapshotted agent endpoint.
// It never returns an error: every fault is captured on the result so the run
// can keep going.
func (e *Evaluator) Evaluate(ctx context.Context, run *models.EvaluationRun, tc *models.TestCase, jc *models.JudgeConfig, systemPrompt string, onRateLimit RateLimitCallback) models.TestCaseResult {
	start := time.Now()
	mode := tc.EffectiveMode()
	result := models.TestCaseResult{
		TestCaseID:    tc.ID,
		AssertionMode: mode,
	}

	dispatchAttr := dispatch.Attribution{EvaluationID: run.ID, TestCaseID: tc.ID, AgentID: run.AgentID}
	judgeAttr := judge.Attribution{EvaluationID: run.ID, TestCaseID: tc.ID, AgentID: run.AgentID}
	agentWait := func(attempt int, wait time.Duration) {
		if onRateLimit != nil {
			onRateLimit("agent", attempt, wait)
		}
	}
	judgeWait := func(attempt int, wait time.Duration) {
		if onRateLimit != nil {
			onRateLimit("judge", attempt, wait)
		}
	}

	agentStart := time.Now()
	agentResult, err := e.dispatcher.Dispatch(ctx, run.AgentEndpointURL, dispatch.Request{
		Input:           tc.Input,
		DatasetID:       tc.DatasetID,
		TestCaseID:      tc.ID,
		AgentID:         run.AgentID,
		EvaluationRunID: run.ID,
		SystemPrompt:    systemPrompt,
	}, time.Duration(run.TimeoutSeconds)*time.Second, dispatchAttr, agentWait)
	result.AgentCallDuration = time.Since(agentStart).Seconds()
	if err != nil {
		result.Passed = false
		result.ExecutionError = err.Error()
		if agentResult != nil {
			result.RetryCount = agentResult.RetryCount
		}
		result.TotalDuration = time.Since(start).Seconds()
		result.CompletedAt = time.Now().UTC()
		return result
	}
	result.Response = agentResult.Response
	result.ToolCalls = agentResult.ToolCalls
	result.RetryCount = agentResult.RetryCount
	if agentResult.Metadata.Error != "" {
		result.ExecutionError = agentResult.Metadata.Error
	}

	evidence := judge.SingleContext{
		TestInput:       tc.Input,
		TestDescription: tc.Description,
		Response:        agentResult.Response,
		ToolCallsJSON:   marshalToolCalls(agentResult.ToolCalls),
	}

	judgeStart := time.Now()
	judgeErr := e.grade(ctx, &result, tc, jc, mode, evidence, judgeAttr, judgeWait)
	result.JudgeCallDuration = time.Since(judgeStart).Seconds()
	if judgeErr != nil && result.ExecutionError == "" {
		result.ExecutionError = judgeErr.Error()
	}

	result.Passed = judgeErr == nil && result.ExecutionError == "" && allSectionsPassed(&result)
	if !result.Passed {
		result.FailureMode = classifyFailure(&result)
	}
	result.TotalDuration = time.Since(start).Seconds()
	result.CompletedAt = time.Now().UTC()
	return result
}

// grade fills the result sections the mode enables.
func (e *Evaluator) grade(ctx context.Context, result *models.TestCaseResult, tc *models.TestCase, jc *models.JudgeConfig, mode models.AssertionMode, evidence judge.SingleContext, attr judge.Attribution, onWait retry.OnWait) error {
	if mode == models.ModeToolLevel {
		result.ExpectedTools = checkExpectedTools(tc.MinimalToolSet, result.ToolCalls)
		if err := e.gradeToolExpectations(ctx, result, tc, jc, evidence, attr, onWait); err != nil {
			return err
		}
	}
	if mode == models.ModeHybrid {
		if err := e.gradeBehaviorAssertions(ctx, result, tc, jc, evidence, attr, onWait); err != nil {
			return err
		}
	}
	if tc.ResponseQuality != nil {
		verdict, err := e.grader.GradeSingle(ctx, jc, tc.ResponseQuality.Assertion, evidence, attr, onWait)
		if err != nil {
			return err
		}
		result.ResponseQuality = &models.ResponseQualityResult{
			Assertion:      tc.ResponseQuality.Assertion,
			Passed:         verdict.Passed,
			LLMJudgeOutput: verdict.Reasoning,
		}
	}
	return nil
}

// gradeToolExpectations issues one batched judge call per declared tool. A
// tool the agent never called fails all its assertions without an LLM call.
func (e *Evaluator) gradeToolExpectations(ctx context.Context, result *models.TestCaseResult, tc *models.TestCase, jc *models.JudgeConfig, evidence judge.SingleContext, attr judge.Attribution, onWait retry.OnWait) error {
	actualTools := toolNames(result.ToolCalls)

	for _, expectation := range tc.ToolExpectations {
		toolResult := models.ToolExpectationResult{ToolName: expectation.ToolName}

		calls := callsToTool(result.ToolCalls, expectation.ToolName)
		if len(calls) == 0 {
			for _, arg := range expectation.Arguments {
				argResult := models.ArgumentAssertionResult{ArgName: arg.ArgName}
				for _, assertion := range arg.Assertions {
					argResult.Assertions = append(argResult.Assertions, models.AssertionResult{
						Assertion:      assertion,
						Passed:         false,
						LLMJudgeOutput: "tool not called",
					})
				}
				toolResult.Arguments = append(toolResult.Arguments, argResult)
			}
			result.ToolExpectations = append(result.ToolExpectations, toolResult)
			continue
		}

		// Flatten every (arg, assertion) pair into one ordered list so the
		// whole tool is graded in a single call.
		var flat []judge.BatchAssertion
		for _, arg := range expectation.Arguments {
			for _, assertion := range arg.Assertions {
				flat = append(flat, judge.BatchAssertion{ArgName: arg.ArgName, Text: assertion})
			}
		}
		verdicts, err := e.grader.GradeBatch(ctx, jc, expectation.ToolName,
			marshalToolCalls(calls), actualTools, flat, evidence, attr, onWait)
		if err != nil {
			return err
		}

		// Re-expand the flat verdict list into the per-argument structure.
		idx := 0
		for _, arg := range expectation.Arguments {
			argResult := models.ArgumentAssertionResult{ArgName: arg.ArgName}
			for _, assertion := range arg.Assertions {
				verdict := judge.Verdict{Reasoning: "no verdict returned"}
				if idx < len(verdicts) {
					verdict = verdicts[idx]
				}
				argResult.Assertions = append(argResult.Assertions, models.AssertionResult{
					Assertion:      assertion,
					Passed:         verdict.Passed,
					LLMJudgeOutput: verdict.Reasoning,
				})
				idx++
			}
			toolResult.Arguments = append(toolResult.Arguments, argResult)
		}
		result.ToolExpectations = append(result.ToolExpectations, toolResult)
	}
	return nil
}

// gradeBehaviorAssertions grades the whole assertion list in one call over
// the full transcript.
func (e *Evaluator) gradeBehaviorAssertions(ctx context.Context, result *models.TestCaseResult, tc *models.TestCase, jc *models.JudgeConfig, evidence judge.SingleContext, attr judge.Attribution, onWait retry.OnWait) error {
	if len(tc.BehaviorAssertions) == 0 {
		return nil
	}
	batch := make([]judge.BatchAssertion, len(tc.BehaviorAssertions))
	for i, assertion := range tc.BehaviorAssertions {
		batch[i] = judge.BatchAssertion{Text: assertion}
	}
	verdicts, err := e.grader.GradeBatch(ctx, jc, "", evidence.ToolCallsJSON,
		toolNames(result.ToolCalls), batch, evidence, attr, onWait)
	if err != nil {
		return err
	}
	for i, assertion := range tc.BehaviorAssertions {
		verdict := judge.Verdict{Reasoning: "no verdict returned"}
		if i < len(verdicts) {
			verdict = verdicts[i]
		}
		result.BehaviorAssertions = append(result.BehaviorAssertions, models.BehaviorAssertionResult{
			Assertion:      assertion,
			Passed:         verdict.Passed,
			LLMJudgeOutput: verdict.Reasoning,
		})
	}
	return nil
}

// checkExpectedTools is pure string membership against the actual calls.
func checkExpectedTools(minimalToolSet []string, calls []models.ToolCall) []models.ExpectedToolResult {
	results := make([]models.ExpectedToolResult, 0, len(minimalToolSet))
	for _, name := range minimalToolSet {
		called := false
		for _, call := range calls {
			if call.Name == name {
				called = true
				break
			}
		}
		results = append(results, models.ExpectedToolResult{ToolName: name, WasCalled: called})
	}
	return results
}

// allSectionsPassed applies the pass criterion: every enabled section must be
// fully green; disabled sections are trivially satisfied.
func allSectionsPassed(result *models.TestCaseResult) bool {
	for _, tool := range result.ExpectedTools {
		if !tool.WasCalled {
			return false
		}
	}
	for _, tool := range result.ToolExpectations {
		for _, arg := range tool.Arguments {
			for _, a := range arg.Assertions {
				if !a.Passed {
					return false
				}
			}
		}
	}
	for _, b := range result.BehaviorAssertions {
		if !b.Passed {
			return false
		}
	}
	if result.ResponseQuality != nil && !result.ResponseQuality.Passed {
		return false
	}
	return true
}

// classifyFailure assigns the single heuristic failure label.
func classifyFailure(result *models.TestCaseResult) models.FailureMode {
	if result.ExecutionError != "" {
		return models.FailurePartialMatch
	}

	missingRequired := false
	required := make(map[string]bool)
	for _, tool := range result.ExpectedTools {
		required[tool.ToolName] = true
		if !tool.WasCalled {
			missingRequired = true
		}
	}
	unexpectedCalled := false
	if len(required) > 0 {
		for _, call := range result.ToolCalls {
			if !required[call.Name] {
				unexpectedCalled = true
				break
			}
		}
	}
	assertionsFailed := false
	for _, tool := range result.ToolExpectations {
		for _, arg := range tool.Arguments {
			for _, a := range arg.Assertions {
				if !a.Passed {
					assertionsFailed = true
				}
			}
		}
	}
	for _, b := range result.BehaviorAssertions {
		if !b.Passed {
			assertionsFailed = true
		}
	}
	qualityFailed := result.ResponseQuality != nil && !result.ResponseQuality.Passed

	switch {
	case missingRequired && unexpectedCalled:
		return models.FailureWrongTool
	case missingRequired:
		return models.FailureToolNotCalled
	case assertionsFailed && !qualityFailed:
		return models.FailureWrongArgs
	case qualityFailed && !assertionsFailed:
		return models.FailureHallucination
	default:
		return models.FailurePartialMatch
	}
}

func callsToTool(calls []models.ToolCall, name string) []models.ToolCall {
	var out []models.ToolCall
	for _, call := range calls {
		if call.Name == name {
			out = append(out, call)
		}
	}
	return out
}

func toolNames(calls []models.ToolCall) []string {
	seen := make(map[string]bool)
	var names []string
	for _, call := range calls {
		if !seen[call.Name] {
			seen[call.Name] = true
			names = append(names, call.Name)
		}
	}
	return names
}

func marshalToolCalls(calls []models.ToolCall) string {
	if len(calls) == 0 {
		return "[]"
	}
	b, err := json.MarshalIndent(calls, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(b)
}
