package store

import "github.com/agentevalhq/agenteval/pkg/models"

// Built-in document identifiers seeded at startup.
const (
	DefaultBinaryJudgeID = "judge_config_default_binary"
	CUAJudgeID           = "judge_config_cua"
	DefaultAgentName     = "Computer Use Agent"

	SystemPromptProposalGeneration     = "proposal_generation_system"
	SystemPromptProposalGenerationUser = "proposal_generation_user"
	SystemPromptComparisonExplanation  = "comparison_explanation"
)

const defaultJudgeSystemPrompt = `You are an impartial evaluator of AI agent behavior. You are given what an agent actually did and an assertion describing what it should have done. Judge strictly: if the evidence does not clearly satisfy the assertion, it fails. Always answer with a single JSON object and nothing else.`

const cuaJudgeSystemPrompt = `You are an impartial evaluator of a computer-use agent. The agent operates a browser or desktop by issuing tool calls (click, type, navigate, read). You are given the agent's actual tool calls and response, plus assertions about what a competent operator would have done. Ground every verdict in the recorded tool calls; do not give credit for actions the transcript does not show. Always answer with a single JSON object and nothing else.`

const defaultSingleTemplate = `Evaluate the following assertion against the agent's behavior.

Assertion: {{assertion}}

{{assertion_context}}

Reply with JSON: {"passed": true|false, "reasoning": "<one or two sentences>"}`

const defaultBatchedTemplate = `Evaluate each numbered assertion against the agent's use of the tool "{{tool_name}}".

Test input: {{test_input}}
Test description: {{test_description}}

Actual calls to {{tool_name}}:
{{tool_calls_json}}

All tools the agent called: {{actual_tools}}
{{rubric}}
Assertions:
{{assertions_block}}

Reply with JSON: {"results": [{"index": <n>, "passed": true|false, "reasoning": "<short>"}]} covering every index exactly once.`

func builtinBinaryJudgeConfig() *models.JudgeConfig {
	return &models.JudgeConfig{
		ID:                        DefaultBinaryJudgeID,
		Name:                      "Default Binary Judge",
		ScoringMode:               models.ScoringBinary,
		SystemPrompt:              defaultJudgeSystemPrompt,
		UserPromptTemplateSingle:  defaultSingleTemplate,
		UserPromptTemplateBatched: defaultBatchedTemplate,
		Notes:                     "Built-in pass/fail judge.",
	}
}

func cuaRubricCriteria() []models.RubricCriterion {
	return []models.RubricCriterion{
		{
			Name:        "Click Accuracy",
			Description: "Did the agent act on the elements the task required?",
			Levels: map[int]string{
				1: "Acted on unrelated elements throughout",
				2: "Mostly wrong elements, occasional correct target",
				3: "Correct targets with noticeable misses",
				4: "Correct targets with a single minor miss",
				5: "Every action landed on the intended element",
			},
		},
		{
			Name:        "Task Completion",
			Description: "Did the agent reach the goal state the input asked for?",
			Levels: map[int]string{
				1: "No progress toward the goal",
				2: "Early steps only",
				3: "Substantial progress, goal not reached",
				4: "Goal reached with unnecessary detours",
				5: "Goal reached directly",
			},
		},
		{
			Name:        "Action Efficiency",
			Description: "Were the tool calls economical for the task?",
			Levels: map[int]string{
				1: "Severe thrashing or loops",
				2: "Many redundant actions",
				3: "Some redundancy",
				4: "Near-minimal action sequence",
				5: "Minimal action sequence",
			},
		},
	}
}

func builtinCUAJudgeConfig() *models.JudgeConfig {
	return &models.JudgeConfig{
		ID:                        CUAJudgeID,
		Name:                      "Computer Use Judge",
		ScoringMode:               models.ScoringRubric,
		Criteria:                  cuaRubricCriteria(),
		PassThreshold:             models.DefaultRubricPassThreshold,
		SystemPrompt:              cuaJudgeSystemPrompt,
		UserPromptTemplateSingle:  defaultSingleTemplate,
		UserPromptTemplateBatched: defaultBatchedTemplate,
		Notes:                     "Built-in rubric judge for computer-use agents.",
	}
}

const proposalGenerationSystemText = `You are a prompt engineer improving the system prompt of an AI agent. You are given a recurring failure pattern observed across evaluated runs, with annotator notes and concrete transcripts. Propose one focused edit to the prompt that addresses the pattern without regressing unrelated behavior. Always answer with a single JSON object and nothing else.`

const proposalGenerationUserText = `Current system prompt:
{{current_prompt}}

Failure pattern: {{issue_tag}} ({{occurrences}} of {{total_annotated}} annotated cases)

Annotator notes:
{{annotator_notes}}

Suggested corrections from per-action review:
{{action_corrections}}

Tool pass/fail summary:
{{tool_failure_summary}}

Sample transcripts:
{{transcript_excerpts}}

Reply with JSON: {"title": str, "category": "capability"|"quality"|"guardrails", "confidence": 0.0-1.0, "priority": "high"|"medium"|"low", "pattern_source": str, "impact": str, "diff": {"added": [str], "removed": [str]}, "reasoning": str}`

const comparisonExplanationText = `You are comparing two evaluation runs of the same agent on the same dataset. Given the per-case outcomes of both runs, explain in two or three sentences what changed, calling out regressions first. Plain prose, no JSON.`
