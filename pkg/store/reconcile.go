package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/agentevalhq/agenteval/pkg/models"
)

// Reconcile runs every startup reconciler in order: defaults first, then the
// orphaned-run sweep.
func (c *Client) Reconcile(ctx context.Context, defaultAgentEndpoint string) error {
	if err := c.EnsureDefaultAgents(ctx, defaultAgentEndpoint); err != nil {
		return fmt.Errorf("failed to ensure default agents: %w", err)
	}
	if err := c.EnsureDefaultJudgeConfigs(ctx); err != nil {
		return fmt.Errorf("failed to ensure default judge configs: %w", err)
	}
	if err := c.EnsureDefaultSystemPrompts(ctx); err != nil {
		return fmt.Errorf("failed to ensure default system prompts: %w", err)
	}
	if err := c.CleanupOrphanedEvaluations(ctx); err != nil {
		return fmt.Errorf("failed to clean up orphaned runs: %w", err)
	}
	return nil
}

// EnsureDefaultAgents seeds one agent when the collection is empty.
func (c *Client) EnsureDefaultAgents(ctx context.Context, endpointURL string) error {
	agents, err := c.ListAgents(ctx)
	if err != nil {
		return err
	}
	if len(agents) > 0 {
		return nil
	}
	agent := &models.Agent{
		Name:        DefaultAgentName,
		Description: "Seeded default agent.",
		EndpointURL: endpointURL,
	}
	if err := c.CreateAgent(ctx, agent); err != nil {
		return err
	}
	slog.Info("Seeded default agent", "agent_id", agent.ID, "endpoint", endpointURL)
	return nil
}

// EnsureDefaultJudgeConfigs seeds the two built-in judge configs and migrates
// legacy versions of the computer-use config forward:
//   - a binary computer-use config gets a rubric successor version, activated
//   - a rubric version still carrying the "Selector Precision" criterion gets
//     a successor with "Click Accuracy" and the current system prompt
func (c *Client) EnsureDefaultJudgeConfigs(ctx context.Context) error {
	if err := c.seedJudgeConfigIfMissing(ctx, builtinBinaryJudgeConfig()); err != nil {
		return err
	}
	if err := c.seedJudgeConfigIfMissing(ctx, builtinCUAJudgeConfig()); err != nil {
		return err
	}
	if err := c.migrateCUAJudgeConfig(ctx); err != nil {
		return err
	}

	if _, err := c.GetActiveJudgeConfig(ctx); errors.Is(err, ErrNotFound) {
		if err := c.SetActiveJudgeConfig(ctx, DefaultBinaryJudgeID, 1); err != nil {
			return err
		}
		slog.Info("Activated default judge config", "judge_config_id", DefaultBinaryJudgeID)
	} else if err != nil {
		return err
	}
	return nil
}

func (c *Client) seedJudgeConfigIfMissing(ctx context.Context, jc *models.JudgeConfig) error {
	versions, err := c.ListJudgeConfigVersions(ctx, jc.ID)
	if err != nil {
		return err
	}
	if len(versions) > 0 {
		return nil
	}
	if err := c.CreateJudgeConfig(ctx, jc); err != nil {
		return err
	}
	slog.Info("Seeded judge config", "judge_config_id", jc.ID, "version", jc.Version)
	return nil
}

func (c *Client) migrateCUAJudgeConfig(ctx context.Context) error {
	versions, err := c.ListJudgeConfigVersions(ctx, CUAJudgeID)
	if err != nil || len(versions) == 0 {
		return err
	}
	latest := versions[len(versions)-1]

	needsMigration := latest.ScoringMode == models.ScoringBinary
	if !needsMigration {
		for _, criterion := range latest.Criteria {
			if criterion.Name == "Selector Precision" {
				needsMigration = true
				break
			}
		}
	}
	if !needsMigration {
		return nil
	}

	successor := builtinCUAJudgeConfig()
	successor.Notes = fmt.Sprintf("Migrated from version %d.", latest.Version)
	if err := c.CreateJudgeConfig(ctx, successor); err != nil {
		return err
	}
	if latest.IsActive {
		if err := c.SetActiveJudgeConfig(ctx, successor.ID, successor.Version); err != nil {
			return err
		}
	}
	slog.Info("Migrated computer-use judge config",
		"from_version", latest.Version, "to_version", successor.Version)
	return nil
}

// EnsureDefaultSystemPrompts seeds the internal LLM templates that the
// proposal generator and run comparison rely on. Existing rows are kept.
func (c *Client) EnsureDefaultSystemPrompts(ctx context.Context) error {
	defaults := map[string]string{
		SystemPromptProposalGeneration:     proposalGenerationSystemText,
		SystemPromptProposalGenerationUser: proposalGenerationUserText,
		SystemPromptComparisonExplanation:  comparisonExplanationText,
	}
	for name, text := range defaults {
		if _, err := c.GetSystemPrompt(ctx, name); err == nil {
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := c.PutSystemPrompt(ctx, name, text); err != nil {
			return err
		}
		slog.Info("Seeded system prompt", "name", name)
	}
	return nil
}

// CleanupOrphanedEvaluations forces any run still in pending or running into
// cancelled. Runs in those states at startup were interrupted by a previous
// shutdown and will never make progress.
func (c *Client) CleanupOrphanedEvaluations(ctx context.Context) error {
	runs, err := c.ListEvaluations(ctx)
	if err != nil {
		return err
	}
	swept := 0
	for i := range runs {
		run := &runs[i]
		if run.Status != models.RunPending && run.Status != models.RunRunning {
			continue
		}
		run.Status = models.RunCancelled
		now := time.Now().UTC()
		run.CompletedAt = &now
		run.AppendHistory("cancelled on restart - server had been interrupted")
		if err := c.SaveEvaluation(ctx, run); err != nil {
			return err
		}
		swept++
	}
	if swept > 0 {
		slog.Info("Cancelled orphaned runs", "count", swept)
	}
	return nil
}

// ResetAllData clears every collection. Admin-only.
func (c *Client) ResetAllData(ctx context.Context) error {
	for _, table := range collections {
		if _, err := c.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	slog.Info("All data reset", "collections", len(collections))
	return nil
}
