// Package proposals synthesizes candidate system-prompt edits from human
// annotations on failed evaluation cases.
package proposals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/agentevalhq/agenteval/pkg/judge"
	"github.com/agentevalhq/agenteval/pkg/models"
	"github.com/agentevalhq/agenteval/pkg/retry"
	"github.com/agentevalhq/agenteval/pkg/store"
)

// minTagOccurrences is the clustering threshold: an issue tag must appear on
// at least this many annotated cases before it becomes a proposal.
const minTagOccurrences = 2

// Store is the persistence surface the generator needs.
type Store interface {
	GetActivePrompt(ctx context.Context, agentID string) (*models.PromptVersion, error)
	GetPromptVersion(ctx context.Context, agentID string, version int) (*models.PromptVersion, error)
	ListEvaluationsByAgent(ctx context.Context, agentID string) ([]models.EvaluationRun, error)
	ListRunAnnotations(ctx context.Context, evalID string) ([]models.RunAnnotation, error)
	ListActionAnnotations(ctx context.Context, evalID string) ([]models.ActionAnnotation, error)
	GetTestCase(ctx context.Context, id string) (*models.TestCase, error)
	GetSystemPrompt(ctx context.Context, name string) (*models.SystemPrompt, error)
	CreateProposal(ctx context.Context, p *models.PromptProposal) error
}

// Completer is the LLM surface the generator needs. *judge.Judge satisfies it.
type Completer interface {
	Complete(ctx context.Context, system, user string, callType models.CallType, attr judge.Attribution, onWait retry.OnWait) (string, error)
}

// Generator turns annotation clusters into pending PromptProposals.
type Generator struct {
	store Store
	llm   Completer
}

// NewGenerator builds a Generator.
func NewGenerator(st Store, llm Completer) *Generator {
	return &Generator{store: st, llm: llm}
}

// issueCluster is one issue tag's evidence, gathered across recent runs.
type issueCluster struct {
	tag         string
	occurrences int
	notes       []string
	corrections []string
	excerpts    []string
}

// Generate builds proposals for every issue tag above threshold. version zero
// means the agent's active prompt. Returns the persisted proposals.
func (g *Generator) Generate(ctx context.Context, agentID string, version int) ([]models.PromptProposal, error) {
	prompt, err := g.resolvePrompt(ctx, agentID, version)
	if err != nil {
		return nil, err
	}

	runs, err := g.store.ListEvaluationsByAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}

	clusters, totalAnnotated, err := g.gatherClusters(ctx, runs)
	if err != nil {
		return nil, err
	}
	if len(clusters) == 0 {
		return nil, nil
	}

	systemTmpl, err := g.store.GetSystemPrompt(ctx, store.SystemPromptProposalGeneration)
	if err != nil {
		return nil, fmt.Errorf("proposal system template missing: %w", err)
	}
	userTmpl, err := g.store.GetSystemPrompt(ctx, store.SystemPromptProposalGenerationUser)
	if err != nil {
		return nil, fmt.Errorf("proposal user template missing: %w", err)
	}

	toolSummary := toolFailureSummary(runs)

	var proposals []models.PromptProposal
	for _, cluster := range clusters {
		proposal, err := g.generateOne(ctx, agentID, prompt, cluster, totalAnnotated, toolSummary, systemTmpl.Text, userTmpl.Text)
		if err != nil {
			slog.Warn("Proposal generation failed for tag",
				"agent_id", agentID, "tag", cluster.tag, "error", err)
			continue
		}
		proposals = append(proposals, *proposal)
	}
	return proposals, nil
}

func (g *Generator) resolvePrompt(ctx context.Context, agentID string, version int) (*models.PromptVersion, error) {
	if version > 0 {
		return g.store.GetPromptVersion(ctx, agentID, version)
	}
	return g.store.GetActivePrompt(ctx, agentID)
}

// gatherClusters walks the agent's runs, keeping annotations on non-holdout
// failed cases, grouped by issue tag.
func (g *Generator) gatherClusters(ctx context.Context, runs []models.EvaluationRun) ([]issueCluster, int, error) {
	byTag := make(map[string]*issueCluster)
	totalAnnotated := 0
	holdout := make(map[string]bool)

	for _, run := range runs {
		results := make(map[string]*models.TestCaseResult, len(run.TestCases))
		for i := range run.TestCases {
			results[run.TestCases[i].TestCaseID] = &run.TestCases[i]
		}

		annotations, err := g.store.ListRunAnnotations(ctx, run.ID)
		if err != nil {
			return nil, 0, err
		}
		actions, err := g.store.ListActionAnnotations(ctx, run.ID)
		if err != nil {
			return nil, 0, err
		}
		corrections := make(map[string][]string)
		for _, action := range actions {
			if action.Correction != "" {
				corrections[action.TestCaseID] = append(corrections[action.TestCaseID], action.Correction)
			}
		}

		for _, annotation := range annotations {
			if excluded, ok := holdout[annotation.TestCaseID]; ok && excluded {
				continue
			} else if !ok {
				tc, err := g.store.GetTestCase(ctx, annotation.TestCaseID)
				if err != nil && !isNotFound(err) {
					return nil, 0, err
				}
				holdout[annotation.TestCaseID] = tc != nil && tc.IsHoldout
				if holdout[annotation.TestCaseID] {
					continue
				}
			}
			result := results[annotation.TestCaseID]
			if result != nil && result.Passed {
				continue
			}
			totalAnnotated++
			for _, tag := range annotation.Issues {
				cluster := byTag[tag]
				if cluster == nil {
					cluster = &issueCluster{tag: tag}
					byTag[tag] = cluster
				}
				cluster.occurrences++
				if annotation.Notes != "" && len(cluster.notes) < 3 {
					cluster.notes = append(cluster.notes, annotation.Notes)
				}
				for _, correction := range corrections[annotation.TestCaseID] {
					if len(cluster.corrections) < 3 {
						cluster.corrections = append(cluster.corrections, correction)
					}
				}
				if result != nil && len(cluster.excerpts) < 2 {
					cluster.excerpts = append(cluster.excerpts, transcriptExcerpt(result))
				}
			}
		}
	}

	var clusters []issueCluster
	for _, cluster := range byTag {
		if cluster.occurrences >= minTagOccurrences {
			clusters = append(clusters, *cluster)
		}
	}
	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].occurrences != clusters[j].occurrences {
			return clusters[i].occurrences > clusters[j].occurrences
		}
		return clusters[i].tag < clusters[j].tag
	})
	return clusters, totalAnnotated, nil
}

// proposalPayload is the JSON shape the model must emit.
type proposalPayload struct {
	Title         string   `json:"title"`
	Category      string   `json:"category"`
	Confidence    float64  `json:"confidence"`
	Priority      string   `json:"priority"`
	PatternSource string   `json:"pattern_source"`
	Impact        string   `json:"impact"`
	Diff          struct {
		Added   []string `json:"added"`
		Removed []string `json:"removed"`
	} `json:"diff"`
	Reasoning string `json:"reasoning"`
}

func (g *Generator) generateOne(ctx context.Context, agentID string, prompt *models.PromptVersion, cluster issueCluster, totalAnnotated int, toolSummary, systemTmpl, userTmpl string) (*models.PromptProposal, error) {
	user := renderTemplate(userTmpl, map[string]string{
		"current_prompt":       prompt.Text,
		"issue_tag":            cluster.tag,
		"occurrences":          strconv.Itoa(cluster.occurrences),
		"total_annotated":      strconv.Itoa(totalAnnotated),
		"annotator_notes":      bulletList(cluster.notes),
		"action_corrections":   bulletList(cluster.corrections),
		"tool_failure_summary": toolSummary,
		"transcript_excerpts":  strings.Join(cluster.excerpts, "\n---\n"),
	})

	attr := judge.Attribution{AgentID: agentID}
	output, err := g.llm.Complete(ctx, systemTmpl, user, models.CallProposalGeneration, attr, nil)
	if err != nil {
		return nil, err
	}

	payload, err := parseProposal(output)
	if err != nil {
		return nil, err
	}

	proposal := &models.PromptProposal{
		AgentID:       agentID,
		PromptVersion: prompt.Version,
		Title:         payload.Title,
		Category:      normalizeCategory(payload.Category),
		Confidence:    clamp01(payload.Confidence),
		Priority:      payload.Priority,
		PatternSource: payload.PatternSource,
		Impact:        payload.Impact,
		Diff:          models.PromptDiff{Added: payload.Diff.Added, Removed: payload.Diff.Removed},
		Status:        models.ProposalPending,
		Reasoning:     payload.Reasoning,
	}
	if err := g.store.CreateProposal(ctx, proposal); err != nil {
		return nil, err
	}
	return proposal, nil
}

func parseProposal(output string) (*proposalPayload, error) {
	start := strings.Index(output, "{")
	end := strings.LastIndex(output, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("proposal output contained no JSON")
	}
	var payload proposalPayload
	if err := json.Unmarshal([]byte(output[start:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse proposal output: %w", err)
	}
	if payload.Title == "" {
		return nil, fmt.Errorf("proposal output missing title")
	}
	return &payload, nil
}

// toolFailureSummary derives per-tool pass/fail ratios from graded results.
func toolFailureSummary(runs []models.EvaluationRun) string {
	type tally struct{ passed, failed int }
	byTool := make(map[string]*tally)
	for _, run := range runs {
		for _, result := range run.TestCases {
			for _, tool := range result.ToolExpectations {
				t := byTool[tool.ToolName]
				if t == nil {
					t = &tally{}
					byTool[tool.ToolName] = t
				}
				for _, arg := range tool.Arguments {
					for _, a := range arg.Assertions {
						if a.Passed {
							t.passed++
						} else {
							t.failed++
						}
					}
				}
			}
		}
	}
	if len(byTool) == 0 {
		return "no tool-level grading data"
	}
	names := make([]string, 0, len(byTool))
	for name := range byTool {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, name := range names {
		t := byTool[name]
		fmt.Fprintf(&b, "- %s: %d passed, %d failed\n", name, t.passed, t.failed)
	}
	return strings.TrimRight(b.String(), "\n")
}

func transcriptExcerpt(result *models.TestCaseResult) string {
	response := result.Response
	if len(response) > 400 {
		response = response[:400] + "..."
	}
	tools := make([]string, 0, len(result.ToolCalls))
	for _, call := range result.ToolCalls {
		tools = append(tools, call.Name)
	}
	return fmt.Sprintf("case %s\ntools: %s\nresponse: %s",
		result.TestCaseID, strings.Join(tools, ", "), response)
}

// renderTemplate substitutes {{name}} placeholders literally.
func renderTemplate(tmpl string, vars map[string]string) string {
	replacements := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		replacements = append(replacements, "{{"+name+"}}", value)
	}
	return strings.NewReplacer(replacements...).Replace(tmpl)
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	var b strings.Builder
	for _, item := range items {
		fmt.Fprintf(&b, "- %s\n", item)
	}
	return strings.TrimRight(b.String(), "\n")
}

func normalizeCategory(s string) models.ProposalCategory {
	switch models.ProposalCategory(strings.ToLower(strings.TrimSpace(s))) {
	case models.CategoryCapability:
		return models.CategoryCapability
	case models.CategoryGuardrails:
		return models.CategoryGuardrails
	default:
		return models.CategoryQuality
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
