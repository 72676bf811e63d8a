package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/agentevalhq/agenteval/pkg/models"
	"github.com/agentevalhq/agenteval/pkg/store"
)

// Store is the persistence surface the coordinator needs.
type Store interface {
	GetAgent(ctx context.Context, id string) (*models.Agent, error)
	GetDataset(ctx context.Context, id string) (*models.Dataset, error)
	ListTestCases(ctx context.Context, datasetID string) ([]models.TestCase, error)
	GetActivePrompt(ctx context.Context, agentID string) (*models.PromptVersion, error)
	GetPromptVersion(ctx context.Context, agentID string, version int) (*models.PromptVersion, error)
	GetActiveJudgeConfig(ctx context.Context) (*models.JudgeConfig, error)
	GetJudgeConfig(ctx context.Context, id string, version int) (*models.JudgeConfig, error)
	CreateEvaluation(ctx context.Context, run *models.EvaluationRun) error
	SaveEvaluation(ctx context.Context, run *models.EvaluationRun) error
	LatestCompletedRun(ctx context.Context, agentID, datasetID string) (*models.EvaluationRun, error)
}

// CaseEvaluator is the per-case execution surface. *Evaluator satisfies it.
type CaseEvaluator interface {
	Evaluate(ctx context.Context, run *models.EvaluationRun, tc *models.TestCase, jc *models.JudgeConfig, systemPrompt string, onRateLimit RateLimitCallback) models.TestCaseResult
}

// LaunchRequest selects what to evaluate. Zero PromptVersion and empty
// JudgeConfigID mean "use whatever is active".
type LaunchRequest struct {
	AgentID            string `json:"agent_id"`
	DatasetID          string `json:"dataset_id"`
	PromptVersion      int    `json:"prompt_version,omitempty"`
	JudgeConfigID      string `json:"judge_config_id,omitempty"`
	JudgeConfigVersion int    `json:"judge_config_version,omitempty"`
	TimeoutSeconds     int    `json:"timeout_seconds,omitempty"`
}

// LaunchedRun bundles the resolved snapshot Execute works from, so the
// execution loop never re-reads mutable configuration.
type LaunchedRun struct {
	Run          *models.EvaluationRun
	TestCases    []models.TestCase
	JudgeConfig  *models.JudgeConfig
	SystemPrompt string
}

// Coordinator drives evaluation runs through their lifecycle.
type Coordinator struct {
	store      Store
	evaluator  CaseEvaluator
	registry   *Registry
	runTimeout time.Duration
}

// NewCoordinator builds a Coordinator. runTimeout is the default per-agent-call
// timeout used when the launch request does not set its own.
func NewCoordinator(st Store, evaluator CaseEvaluator, registry *Registry, runTimeout time.Duration) *Coordinator {
	return &Coordinator{store: st, evaluator: evaluator, registry: registry, runTimeout: runTimeout}
}

// Registry exposes the cancellation registry for the HTTP layer.
func (c *Coordinator) Registry() *Registry {
	return c.registry
}

// Launch resolves the request, snapshots agent endpoint, prompt version, and
// judge config into a new run, and persists it in pending. The caller then
// hands the LaunchedRun to Execute, normally on its own goroutine.
func (c *Coordinator) Launch(ctx context.Context, req LaunchRequest) (*LaunchedRun, error) {
	agent, err := c.store.GetAgent(ctx, req.AgentID)
	if err != nil {
		return nil, err
	}
	if _, err := c.store.GetDataset(ctx, req.DatasetID); err != nil {
		return nil, err
	}
	cases, err := c.store.ListTestCases(ctx, req.DatasetID)
	if err != nil {
		return nil, err
	}

	jc, err := c.resolveJudgeConfig(ctx, req)
	if err != nil {
		return nil, err
	}

	systemPrompt := ""
	promptVersion := 0
	prompt, err := c.resolvePrompt(ctx, req)
	if err != nil {
		return nil, err
	}
	if prompt != nil {
		systemPrompt = prompt.Text
		promptVersion = prompt.Version
	}

	timeout := req.TimeoutSeconds
	if timeout <= 0 {
		timeout = int(c.runTimeout.Seconds())
	}

	run := &models.EvaluationRun{
		AgentID:            req.AgentID,
		DatasetID:          req.DatasetID,
		PromptVersion:      promptVersion,
		JudgeConfigID:      jc.ID,
		JudgeConfigVersion: jc.Version,
		AgentEndpointURL:   agent.EndpointURL,
		TimeoutSeconds:     timeout,
		Status:             models.RunPending,
		TotalTests:         len(cases),
	}
	run.AppendHistory("run created")
	if err := c.store.CreateEvaluation(ctx, run); err != nil {
		return nil, err
	}

	// Register before the caller's 202 goes out so a cancel arriving ahead of
	// the Execute goroutine lands on the handle instead of racing it.
	c.registry.Register(run.ID, nil)

	return &LaunchedRun{Run: run, TestCases: cases, JudgeConfig: jc, SystemPrompt: systemPrompt}, nil
}

func (c *Coordinator) resolveJudgeConfig(ctx context.Context, req LaunchRequest) (*models.JudgeConfig, error) {
	if req.JudgeConfigID != "" {
		return c.store.GetJudgeConfig(ctx, req.JudgeConfigID, req.JudgeConfigVersion)
	}
	jc, err := c.store.GetActiveJudgeConfig(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, store.NewValidationError("judge_config_id", "no active judge config and none pinned")
	}
	return jc, err
}

// resolvePrompt returns nil without error when the agent has no prompt
// versions; the agent then runs on its own built-in prompt.
func (c *Coordinator) resolvePrompt(ctx context.Context, req LaunchRequest) (*models.PromptVersion, error) {
	if req.PromptVersion > 0 {
		return c.store.GetPromptVersion(ctx, req.AgentID, req.PromptVersion)
	}
	prompt, err := c.store.GetActivePrompt(ctx, req.AgentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return prompt, err
}

// Execute drives a launched run to a terminal state. It is designed to run on
// its own goroutine; every fault is persisted onto the run and the returned
// error exists for callers that execute synchronously (tests).
func (c *Coordinator) Execute(ctx context.Context, lr *LaunchedRun) error {
	run := lr.Run

	// The run itself has no deadline; TimeoutSeconds bounds each agent call
	// inside the evaluator. The context is cancelled only on shutdown abort.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.registry.Register(run.ID, cancel)
	defer c.registry.Unregister(run.ID)

	if c.registry.IsCancelled(run.ID) {
		return c.cancelRun(run)
	}

	now := time.Now().UTC()
	run.StartedAt = &now
	run.Status = models.RunRunning
	run.AppendHistory(fmt.Sprintf("run started: %d test cases", run.TotalTests))
	if err := c.store.SaveEvaluation(ctx, run); err != nil {
		return c.fail(run, err)
	}

	baseline := c.loadBaseline(ctx, run)

	for i := range lr.TestCases {
		if c.registry.IsCancelled(run.ID) || ctx.Err() != nil {
			return c.cancelRun(run)
		}
		tc := &lr.TestCases[i]

		run.InProgressTests = 1
		run.StatusMessage = fmt.Sprintf("case %d/%d: evaluating", i+1, run.TotalTests)
		if err := c.store.SaveEvaluation(ctx, run); err != nil {
			return c.fail(run, err)
		}

		result := c.evaluator.Evaluate(ctx, run, tc, lr.JudgeConfig, lr.SystemPrompt, run.AppendRateLimitEvent)

		run.TestCases = append(run.TestCases, result)
		run.CompletedTests++
		run.InProgressTests = 0
		if result.Passed {
			run.PassedCount++
		} else {
			run.FailedTests++
		}
		outcome := "failed"
		if result.Passed {
			outcome = "passed"
		}
		run.StatusMessage = fmt.Sprintf("case %d/%d: %s; %d%% complete",
			i+1, run.TotalTests, outcome, run.CompletedTests*100/run.TotalTests)

		if err := c.store.SaveEvaluation(ctx, run); err != nil {
			return c.fail(run, err)
		}
	}

	if c.registry.IsCancelled(run.ID) {
		return c.cancelRun(run)
	}

	run.Regressions = detectRegressions(baseline, run.TestCases)
	if run.TotalRateLimitHits > 0 {
		run.Warnings = append(run.Warnings, fmt.Sprintf(
			"%d rate-limit events, %.1fs total retry wait",
			run.TotalRateLimitHits, run.TotalRetryWaitSeconds))
	}

	done := time.Now().UTC()
	run.CompletedAt = &done
	run.Status = models.RunCompleted
	run.AppendHistory(fmt.Sprintf("run completed: %d/%d passed", run.PassedCount, run.TotalTests))
	if err := c.store.SaveEvaluation(ctx, run); err != nil {
		return c.fail(run, err)
	}
	slog.Info("Run completed", "eval_id", run.ID,
		"passed", run.PassedCount, "failed", run.FailedTests,
		"regressions", len(run.Regressions))
	return nil
}

// loadBaseline maps tc_id to passed from the agent's prior completed run on
// the same dataset. No baseline means no regression detection.
func (c *Coordinator) loadBaseline(ctx context.Context, run *models.EvaluationRun) map[string]bool {
	prior, err := c.store.LatestCompletedRun(ctx, run.AgentID, run.DatasetID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Warn("Failed to load baseline run", "eval_id", run.ID, "error", err)
		}
		return nil
	}
	baseline := make(map[string]bool, len(prior.TestCases))
	for _, result := range prior.TestCases {
		baseline[result.TestCaseID] = result.Passed
	}
	return baseline
}

// detectRegressions flags cases that passed in the baseline and failed now.
func detectRegressions(baseline map[string]bool, results []models.TestCaseResult) []models.Regression {
	if baseline == nil {
		return nil
	}
	var regressions []models.Regression
	for _, result := range results {
		if passedBefore, ok := baseline[result.TestCaseID]; ok && passedBefore && !result.Passed {
			regressions = append(regressions, models.Regression{
				TestCaseID:     result.TestCaseID,
				PreviousResult: "passed",
				CurrentResult:  "failed",
			})
		}
	}
	return regressions
}

// cancelRun finishes a soft cancel: the already-evaluated cases stay on the
// run, the status goes terminal.
func (c *Coordinator) cancelRun(run *models.EvaluationRun) error {
	done := time.Now().UTC()
	run.CompletedAt = &done
	run.InProgressTests = 0
	run.Status = models.RunCancelled
	run.AppendHistory(fmt.Sprintf("run cancelled after %d/%d cases", run.CompletedTests, run.TotalTests))
	// Persist with a fresh context; the run context is usually already dead.
	saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.store.SaveEvaluation(saveCtx, run); err != nil {
		slog.Error("Failed to persist cancelled run", "eval_id", run.ID, "error", err)
		return err
	}
	slog.Info("Run cancelled", "eval_id", run.ID, "completed", run.CompletedTests)
	return nil
}

// fail transitions the run to failed without swallowing the error.
func (c *Coordinator) fail(run *models.EvaluationRun, cause error) error {
	done := time.Now().UTC()
	run.CompletedAt = &done
	run.InProgressTests = 0
	run.Status = models.RunFailed
	run.AppendHistory("run failed: " + cause.Error())
	saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.store.SaveEvaluation(saveCtx, run); err != nil {
		slog.Error("Failed to persist failed run", "eval_id", run.ID, "error", err)
	}
	return cause
}
