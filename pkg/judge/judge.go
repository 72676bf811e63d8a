// Package judge grades natural-language assertions with an LLM, driven by a
// versioned JudgeConfig. Grading is fail-closed: every fault short of a
// rate-limit exhaustion produces failed verdicts, never an error.
package judge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agentevalhq/agenteval/pkg/llm"
	"github.com/agentevalhq/agenteval/pkg/models"
	"github.com/agentevalhq/agenteval/pkg/retry"
)

// ChatClient is the LLM surface the judge needs. *llm.Client satisfies it;
// tests substitute a canned transcript.
type ChatClient interface {
	Chat(ctx context.Context, system, user string) (string, llm.Usage, error)
	Model() string
}

// CostSink receives one accounting row per LLM call.
type CostSink interface {
	RecordCost(ctx context.Context, rec *models.CostRecord) error
}

// Attribution tags cost records with the run and case being graded.
type Attribution struct {
	EvaluationID string
	TestCaseID   string
	AgentID      string
}

// BatchAssertion is one entry of a batched grading call. ArgName is set for
// tool-argument assertions and empty for behavior assertions.
type BatchAssertion struct {
	ArgName string
	Text    string
}

// SingleContext carries the evidence block for single-assertion grading.
type SingleContext struct {
	TestInput       string
	TestDescription string
	Response        string
	ToolCallsJSON   string
}

// Judge renders judge prompts, calls the LLM with backoff, and parses
// verdicts.
type Judge struct {
	client ChatClient
	policy retry.Policy
	costs  CostSink
}

// New builds a Judge. costs may be nil to skip accounting.
func New(client ChatClient, policy retry.Policy, costs CostSink) *Judge {
	return &Judge{client: client, policy: policy, costs: costs}
}

// GradeSingle grades one assertion against the evidence block. The returned
// error is non-nil only for rate-limit exhaustion or context cancellation;
// all other faults come back as a failed verdict.
func (j *Judge) GradeSingle(ctx context.Context, jc *models.JudgeConfig, assertion string, evidence SingleContext, attr Attribution, onWait retry.OnWait) (Verdict, error) {
	contextBlock := renderAssertionContext(jc, evidence)
	user := renderTemplate(jc.UserPromptTemplateSingle, map[string]string{
		"assertion":         assertion,
		"assertion_context": contextBlock,
		"test_input":        evidence.TestInput,
		"test_description":  evidence.TestDescription,
		"response":          evidence.Response,
		"tool_calls_json":   evidence.ToolCallsJSON,
		"rubric":            rubricBlock(jc),
	})

	output, err := j.chat(ctx, jc.SystemPrompt, user, models.CallJudgeLLM, attr, onWait)
	if err != nil {
		return Verdict{}, err
	}
	return parseSingle(output), nil
}

// GradeBatch grades an ordered assertion list in one call, keyed by index.
// toolName and toolCallsJSON describe the calls under judgment; actualTools
// lists every tool the agent touched.
func (j *Judge) GradeBatch(ctx context.Context, jc *models.JudgeConfig, toolName, toolCallsJSON string, actualTools []string, assertions []BatchAssertion, evidence SingleContext, attr Attribution, onWait retry.OnWait) ([]Verdict, error) {
	if len(assertions) == 0 {
		return nil, nil
	}
	user := renderTemplate(jc.UserPromptTemplateBatched, map[string]string{
		"assertions_block": assertionsBlock(assertions),
		"tool_name":        toolName,
		"tool_calls_json":  toolCallsJSON,
		"actual_tools":     strings.Join(actualTools, ", "),
		"test_input":       evidence.TestInput,
		"test_description": evidence.TestDescription,
		"rubric":           rubricBlock(jc),
	})

	output, err := j.chat(ctx, jc.SystemPrompt, user, models.CallJudgeLLM, attr, onWait)
	if err != nil {
		return nil, err
	}
	return parseBatch(output, len(assertions)), nil
}

// Complete exposes the raw chat path for internal templates (proposal
// generation) with the same backoff and accounting.
func (j *Judge) Complete(ctx context.Context, system, user string, callType models.CallType, attr Attribution, onWait retry.OnWait) (string, error) {
	return j.chat(ctx, system, user, callType, attr, onWait)
}

func (j *Judge) chat(ctx context.Context, system, user string, callType models.CallType, attr Attribution, onWait retry.OnWait) (string, error) {
	var output string
	var usage llm.Usage
	err := j.policy.Do(ctx, func() error {
		var chatErr error
		output, usage, chatErr = j.client.Chat(ctx, system, user)
		return chatErr
	}, onWait)

	if usage.TotalTokens > 0 {
		j.recordCost(ctx, callType, attr, usage)
	}
	if err != nil {
		return "", fmt.Errorf("judge call failed: %w", err)
	}
	return output, nil
}

func (j *Judge) recordCost(ctx context.Context, callType models.CallType, attr Attribution, usage llm.Usage) {
	if j.costs == nil {
		return
	}
	rec := &models.CostRecord{
		EvaluationID: attr.EvaluationID,
		TestCaseID:   attr.TestCaseID,
		AgentID:      attr.AgentID,
		CallType:     callType,
		Model:        j.client.Model(),
		TokensIn:     usage.PromptTokens,
		TokensOut:    usage.CompletionTokens,
		CostUSD:      llm.EstimateCost(j.client.Model(), usage.PromptTokens, usage.CompletionTokens),
	}
	if err := j.costs.RecordCost(ctx, rec); err != nil {
		slog.Warn("Failed to record judge cost", "error", err)
	}
}

// renderAssertionContext builds the evidence block inserted into the single
// template's {{assertion_context}} slot.
func renderAssertionContext(jc *models.JudgeConfig, evidence SingleContext) string {
	var b strings.Builder
	if evidence.TestInput != "" {
		fmt.Fprintf(&b, "Test input: %s\n", evidence.TestInput)
	}
	if evidence.TestDescription != "" {
		fmt.Fprintf(&b, "Test description: %s\n", evidence.TestDescription)
	}
	if evidence.Response != "" {
		fmt.Fprintf(&b, "Agent response:\n%s\n", evidence.Response)
	}
	if evidence.ToolCallsJSON != "" {
		fmt.Fprintf(&b, "Agent tool calls:\n%s\n", evidence.ToolCallsJSON)
	}
	if rubric := rubricBlock(jc); rubric != "" {
		b.WriteString(rubric)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
