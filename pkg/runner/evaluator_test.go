package runner

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentevalhq/agenteval/pkg/dispatch"
	"github.com/agentevalhq/agenteval/pkg/judge"
	"github.com/agentevalhq/agenteval/pkg/models"
	"github.com/agentevalhq/agenteval/pkg/retry"
)

type stubDispatcher struct {
	result     *dispatch.Result
	err        error
	gotTimeout time.Duration
}

func (s *stubDispatcher) Dispatch(_ context.Context, _ string, _ dispatch.Request, timeout time.Duration, _ dispatch.Attribution, _ retry.OnWait) (*dispatch.Result, error) {
	s.gotTimeout = timeout
	return s.result, s.err
}

// stubGrader passes an assertion iff its text appears in the pass set.
type stubGrader struct {
	pass        map[string]bool
	batchCalls  [][]judge.BatchAssertion
	singleCalls []string
	err         error
}

func (s *stubGrader) GradeSingle(_ context.Context, _ *models.JudgeConfig, assertion string, _ judge.SingleContext, _ judge.Attribution, _ retry.OnWait) (judge.Verdict, error) {
	s.singleCalls = append(s.singleCalls, assertion)
	if s.err != nil {
		return judge.Verdict{}, s.err
	}
	return judge.Verdict{Passed: s.pass[assertion], Reasoning: "stub"}, nil
}

func (s *stubGrader) GradeBatch(_ context.Context, _ *models.JudgeConfig, _ string, _ string, _ []string, assertions []judge.BatchAssertion, _ judge.SingleContext, _ judge.Attribution, _ retry.OnWait) ([]judge.Verdict, error) {
	s.batchCalls = append(s.batchCalls, assertions)
	if s.err != nil {
		return nil, s.err
	}
	verdicts := make([]judge.Verdict, len(assertions))
	for i, a := range assertions {
		verdicts[i] = judge.Verdict{Passed: s.pass[a.Text], Reasoning: "stub"}
	}
	return verdicts, nil
}

func testRun() *models.EvaluationRun {
	return &models.EvaluationRun{
		ID:               "eval_1",
		AgentID:          "agent_1",
		DatasetID:        "dataset_1",
		AgentEndpointURL: "http://agent.test/run",
	}
}

func agentResult(response string, tools ...string) *dispatch.Result {
	calls := make([]models.ToolCall, len(tools))
	for i, name := range tools {
		calls[i] = models.ToolCall{Name: name, Arguments: map[string]any{}}
	}
	return &dispatch.Result{Response: response, ToolCalls: calls}
}

func TestEvaluateResponseOnlyPass(t *testing.T) {
	grader := &stubGrader{pass: map[string]bool{"mentions the passport": true}}
	e := NewEvaluator(&stubDispatcher{result: agentResult("You need a passport")}, grader)

	tc := &models.TestCase{
		ID:              "tc_1",
		Input:           "what documents?",
		ResponseQuality: &models.ResponseQualityExpectation{Assertion: "mentions the passport"},
	}
	result := e.Evaluate(context.Background(), testRun(), tc, &models.JudgeConfig{}, "", nil)

	assert.True(t, result.Passed)
	assert.Equal(t, models.ModeResponseOnly, result.AssertionMode)
	require.NotNil(t, result.ResponseQuality)
	assert.True(t, result.ResponseQuality.Passed)
	assert.Empty(t, result.ToolExpectations)
	assert.Empty(t, result.BehaviorAssertions)
	assert.False(t, result.CompletedAt.IsZero())
	assert.Empty(t, grader.batchCalls)
}

func TestEvaluateDispatchErrorShapesResult(t *testing.T) {
	e := NewEvaluator(&stubDispatcher{err: errors.New("connection refused")}, &stubGrader{})

	tc := &models.TestCase{ID: "tc_1", Input: "x",
		ResponseQuality: &models.ResponseQualityExpectation{Assertion: "anything"}}
	result := e.Evaluate(context.Background(), testRun(), tc, &models.JudgeConfig{}, "", nil)

	assert.False(t, result.Passed)
	assert.Contains(t, result.ExecutionError, "connection refused")
	assert.Nil(t, result.ResponseQuality)
	assert.Equal(t, "tc_1", result.TestCaseID)
}

func TestEvaluatePassesRunTimeoutToDispatcher(t *testing.T) {
	d := &stubDispatcher{result: agentResult("ok")}
	e := NewEvaluator(d, &stubGrader{})

	run := testRun()
	run.TimeoutSeconds = 42
	e.Evaluate(context.Background(), run, &models.TestCase{ID: "tc_1", Input: "x"}, &models.JudgeConfig{}, "", nil)

	assert.Equal(t, 42*time.Second, d.gotTimeout)
}

func TestEvaluateDispatchErrorKeepsRetryCount(t *testing.T) {
	d := &stubDispatcher{
		result: &dispatch.Result{RetryCount: 4},
		err:    errors.New("retry attempts exhausted after 5 attempts: agent rate limited"),
	}
	e := NewEvaluator(d, &stubGrader{})

	tc := &models.TestCase{ID: "tc_1", Input: "x"}
	result := e.Evaluate(context.Background(), testRun(), tc, &models.JudgeConfig{}, "", nil)

	assert.False(t, result.Passed)
	assert.Contains(t, result.ExecutionError, "exhausted")
	assert.Equal(t, 4, result.RetryCount)
}

func TestEvaluateToolLevelToolNotCalled(t *testing.T) {
	grader := &stubGrader{pass: map[string]bool{"response is fine": true}}
	e := NewEvaluator(&stubDispatcher{result: agentResult("done", "search_flights")}, grader)

	tc := &models.TestCase{
		ID:             "tc_1",
		Input:          "book it",
		MinimalToolSet: []string{"search_flights", "book_flight"},
		ToolExpectations: []models.ToolExpectation{
			{ToolName: "book_flight", Arguments: []models.ArgumentAssertion{
				{ArgName: "flight_id", Assertions: []string{"matches a search result"}},
			}},
		},
		ResponseQuality: &models.ResponseQualityExpectation{Assertion: "response is fine"},
	}
	tc.Normalize()
	result := e.Evaluate(context.Background(), testRun(), tc, &models.JudgeConfig{}, "", nil)

	assert.False(t, result.Passed)
	assert.Equal(t, models.FailureToolNotCalled, result.FailureMode)

	require.Len(t, result.ExpectedTools, 2)
	assert.True(t, result.ExpectedTools[0].WasCalled)
	assert.False(t, result.ExpectedTools[1].WasCalled)

	// The uncalled tool's assertions fail without any judge call.
	require.Len(t, result.ToolExpectations, 1)
	verdict := result.ToolExpectations[0].Arguments[0].Assertions[0]
	assert.False(t, verdict.Passed)
	assert.Equal(t, "tool not called", verdict.LLMJudgeOutput)
	assert.Empty(t, grader.batchCalls)
}

func TestEvaluateToolLevelBatchedGrading(t *testing.T) {
	grader := &stubGrader{pass: map[string]bool{
		"origin is Boston":     true,
		"destination is DEN":   true,
		"date is next Tuesday": false,
		"response is fine":     true,
	}}
	e := NewEvaluator(&stubDispatcher{result: agentResult("done", "search_flights")}, grader)

	tc := &models.TestCase{
		ID:             "tc_1",
		Input:          "book it",
		MinimalToolSet: []string{"search_flights"},
		ToolExpectations: []models.ToolExpectation{
			{ToolName: "search_flights", Arguments: []models.ArgumentAssertion{
				{ArgName: "origin", Assertions: []string{"origin is Boston"}},
				{ArgName: "destination", Assertions: []string{"destination is DEN", "date is next Tuesday"}},
			}},
		},
		ResponseQuality: &models.ResponseQualityExpectation{Assertion: "response is fine"},
	}
	tc.Normalize()
	result := e.Evaluate(context.Background(), testRun(), tc, &models.JudgeConfig{}, "", nil)

	assert.False(t, result.Passed)
	assert.Equal(t, models.FailureWrongArgs, result.FailureMode)

	// All three assertions travel in one batched call.
	require.Len(t, grader.batchCalls, 1)
	assert.Len(t, grader.batchCalls[0], 3)

	args := result.ToolExpectations[0].Arguments
	require.Len(t, args, 2)
	assert.True(t, args[0].Assertions[0].Passed)
	assert.True(t, args[1].Assertions[0].Passed)
	assert.False(t, args[1].Assertions[1].Passed)
}

func TestEvaluateHybridMode(t *testing.T) {
	grader := &stubGrader{pass: map[string]bool{
		"cancels before refunding": true,
		"quotes from tool output":  true,
		"confirms cancellation":    true,
	}}
	e := NewEvaluator(&stubDispatcher{result: agentResult("cancelled", "cancel_reservation")}, grader)

	tc := &models.TestCase{
		ID:    "tc_1",
		Input: "cancel my reservation",
		BehaviorAssertions: []string{
			"cancels before refunding",
			"quotes from tool output",
		},
		ResponseQuality: &models.ResponseQualityExpectation{Assertion: "confirms cancellation"},
	}
	tc.Normalize()
	result := e.Evaluate(context.Background(), testRun(), tc, &models.JudgeConfig{}, "", nil)

	assert.True(t, result.Passed)
	assert.Equal(t, models.ModeHybrid, result.AssertionMode)
	require.Len(t, result.BehaviorAssertions, 2)
	assert.Empty(t, result.ExpectedTools)
	require.Len(t, grader.batchCalls, 1)
	require.Len(t, grader.singleCalls, 1)
}

func TestEvaluateHallucinationClassification(t *testing.T) {
	grader := &stubGrader{pass: map[string]bool{
		"origin is Boston": true,
		// response quality fails while tools look fine
	}}
	e := NewEvaluator(&stubDispatcher{result: agentResult("made something up", "search_flights")}, grader)

	tc := &models.TestCase{
		ID:             "tc_1",
		Input:          "book it",
		MinimalToolSet: []string{"search_flights"},
		ToolExpectations: []models.ToolExpectation{
			{ToolName: "search_flights", Arguments: []models.ArgumentAssertion{
				{ArgName: "origin", Assertions: []string{"origin is Boston"}},
			}},
		},
		ResponseQuality: &models.ResponseQualityExpectation{Assertion: "states the real price"},
	}
	tc.Normalize()
	result := e.Evaluate(context.Background(), testRun(), tc, &models.JudgeConfig{}, "", nil)

	assert.False(t, result.Passed)
	assert.Equal(t, models.FailureHallucination, result.FailureMode)
}

func TestEvaluateWrongToolClassification(t *testing.T) {
	e := NewEvaluator(&stubDispatcher{result: agentResult("done", "send_email")}, &stubGrader{})

	tc := &models.TestCase{
		ID:             "tc_1",
		Input:          "book it",
		MinimalToolSet: []string{"search_flights"},
		ToolExpectations: []models.ToolExpectation{
			{ToolName: "search_flights", Arguments: []models.ArgumentAssertion{
				{ArgName: "origin", Assertions: []string{"origin is Boston"}},
			}},
		},
	}
	tc.Normalize()
	result := e.Evaluate(context.Background(), testRun(), tc, &models.JudgeConfig{}, "", nil)

	assert.False(t, result.Passed)
	assert.Equal(t, models.FailureWrongTool, result.FailureMode)
}

func TestEvaluateJudgeErrorBecomesExecutionError(t *testing.T) {
	grader := &stubGrader{err: errors.New("judge call failed: retry attempts exhausted")}
	e := NewEvaluator(&stubDispatcher{result: agentResult("ok")}, grader)

	tc := &models.TestCase{ID: "tc_1", Input: "x",
		ResponseQuality: &models.ResponseQualityExpectation{Assertion: "anything"}}
	result := e.Evaluate(context.Background(), testRun(), tc, &models.JudgeConfig{}, "", nil)

	assert.False(t, result.Passed)
	assert.True(t, strings.Contains(result.ExecutionError, "exhausted"))
}
