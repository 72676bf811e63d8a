package judge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentevalhq/agenteval/pkg/llm"
	"github.com/agentevalhq/agenteval/pkg/models"
	"github.com/agentevalhq/agenteval/pkg/retry"
)

type stubChat struct {
	replies  []string
	rateHits int
	prompts  []string
	systems  []string
}

func (s *stubChat) Chat(_ context.Context, system, user string) (string, llm.Usage, error) {
	s.systems = append(s.systems, system)
	s.prompts = append(s.prompts, user)
	if s.rateHits > 0 {
		s.rateHits--
		return "", llm.Usage{}, &retry.RateLimitError{Source: "judge", Detail: "429"}
	}
	reply := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return reply, llm.Usage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120}, nil
}

func (s *stubChat) Model() string { return "gpt-4o-mini" }

type captureCosts struct {
	records []*models.CostRecord
}

func (c *captureCosts) RecordCost(_ context.Context, rec *models.CostRecord) error {
	c.records = append(c.records, rec)
	return nil
}

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func binaryConfig() *models.JudgeConfig {
	return &models.JudgeConfig{
		ID:                        "jc",
		Version:                   1,
		ScoringMode:               models.ScoringBinary,
		SystemPrompt:              "you are a judge",
		UserPromptTemplateSingle:  "Assertion: {{assertion}}\n{{assertion_context}}",
		UserPromptTemplateBatched: "Tool {{tool_name}}\n{{tool_calls_json}}\n{{assertions_block}}",
	}
}

func TestGradeSingle(t *testing.T) {
	chat := &stubChat{replies: []string{`{"passed": true, "reasoning": "matches"}`}}
	costs := &captureCosts{}
	j := New(chat, fastPolicy(), costs)

	verdict, err := j.GradeSingle(context.Background(), binaryConfig(),
		"response mentions the booked flight",
		SingleContext{TestInput: "book a flight", Response: "Booked UA123 for $240"},
		Attribution{EvaluationID: "eval_1", TestCaseID: "tc_1", AgentID: "agent_1"}, nil)
	require.NoError(t, err)
	assert.True(t, verdict.Passed)
	assert.Equal(t, "matches", verdict.Reasoning)

	require.Len(t, chat.prompts, 1)
	assert.Contains(t, chat.prompts[0], "response mentions the booked flight")
	assert.Contains(t, chat.prompts[0], "Booked UA123")
	assert.Equal(t, "you are a judge", chat.systems[0])

	require.Len(t, costs.records, 1)
	assert.Equal(t, models.CallJudgeLLM, costs.records[0].CallType)
	assert.Equal(t, "eval_1", costs.records[0].EvaluationID)
	assert.Equal(t, 100, costs.records[0].TokensIn)
	assert.Greater(t, costs.records[0].CostUSD, 0.0)
}

func TestGradeSingleRetriesRateLimit(t *testing.T) {
	chat := &stubChat{replies: []string{`{"passed": true}`}, rateHits: 2}
	j := New(chat, fastPolicy(), nil)

	var waits []int
	verdict, err := j.GradeSingle(context.Background(), binaryConfig(), "a",
		SingleContext{}, Attribution{}, func(attempt int, _ time.Duration) {
			waits = append(waits, attempt)
		})
	require.NoError(t, err)
	assert.True(t, verdict.Passed)
	assert.Equal(t, []int{1, 2}, waits)
}

func TestGradeSingleExhaustionReturnsError(t *testing.T) {
	chat := &stubChat{replies: []string{`{"passed": true}`}, rateHits: 10}
	j := New(chat, fastPolicy(), nil)

	_, err := j.GradeSingle(context.Background(), binaryConfig(), "a",
		SingleContext{}, Attribution{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, retry.ErrAttemptsExhausted)
}

func TestGradeBatchKeysVerdictsByIndex(t *testing.T) {
	chat := &stubChat{replies: []string{`{"results": [
		{"index": 1, "passed": false, "reasoning": "wrong date"},
		{"index": 0, "passed": true, "reasoning": "right city"}
	]}`}}
	j := New(chat, fastPolicy(), nil)

	verdicts, err := j.GradeBatch(context.Background(), binaryConfig(),
		"search_flights", `[{"name":"search_flights"}]`, []string{"search_flights"},
		judgeAssertions("origin is Boston", "date is next Tuesday"),
		SingleContext{TestInput: "book it"}, Attribution{}, nil)
	require.NoError(t, err)
	require.Len(t, verdicts, 2)
	assert.True(t, verdicts[0].Passed)
	assert.Equal(t, "right city", verdicts[0].Reasoning)
	assert.False(t, verdicts[1].Passed)

	assert.Contains(t, chat.prompts[0], "0. origin is Boston")
	assert.Contains(t, chat.prompts[0], "1. date is next Tuesday")
}

func TestGradeBatchEmptyListNoCall(t *testing.T) {
	chat := &stubChat{replies: []string{`{}`}}
	j := New(chat, fastPolicy(), nil)
	verdicts, err := j.GradeBatch(context.Background(), binaryConfig(),
		"t", "[]", nil, nil, SingleContext{}, Attribution{}, nil)
	require.NoError(t, err)
	assert.Nil(t, verdicts)
	assert.Empty(t, chat.prompts)
}

func judgeAssertions(texts ...string) []BatchAssertion {
	out := make([]BatchAssertion, len(texts))
	for i, text := range texts {
		out[i] = BatchAssertion{Text: text}
	}
	return out
}
