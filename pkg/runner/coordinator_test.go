package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentevalhq/agenteval/pkg/models"
	"github.com/agentevalhq/agenteval/pkg/store"
)

// memStore is an in-memory Store stub. Saves deep-copy nothing; the
// coordinator owns the run object, so snapshots record save counts instead.
type memStore struct {
	agent        *models.Agent
	dataset      *models.Dataset
	cases        []models.TestCase
	activePrompt *models.PromptVersion
	activeJudge  *models.JudgeConfig
	baseline     *models.EvaluationRun

	created        []*models.EvaluationRun
	saveCount      int
	saveErr        error
	inProgressSeen []int
}

func (m *memStore) GetAgent(_ context.Context, id string) (*models.Agent, error) {
	if m.agent == nil || m.agent.ID != id {
		return nil, store.ErrNotFound
	}
	return m.agent, nil
}

func (m *memStore) GetDataset(_ context.Context, id string) (*models.Dataset, error) {
	if m.dataset == nil || m.dataset.ID != id {
		return nil, store.ErrNotFound
	}
	return m.dataset, nil
}

func (m *memStore) ListTestCases(_ context.Context, _ string) ([]models.TestCase, error) {
	return m.cases, nil
}

func (m *memStore) GetActivePrompt(_ context.Context, _ string) (*models.PromptVersion, error) {
	if m.activePrompt == nil {
		return nil, store.ErrNotFound
	}
	return m.activePrompt, nil
}

func (m *memStore) GetPromptVersion(_ context.Context, _ string, version int) (*models.PromptVersion, error) {
	if m.activePrompt != nil && m.activePrompt.Version == version {
		return m.activePrompt, nil
	}
	return nil, store.ErrNotFound
}

func (m *memStore) GetActiveJudgeConfig(_ context.Context) (*models.JudgeConfig, error) {
	if m.activeJudge == nil {
		return nil, store.ErrNotFound
	}
	return m.activeJudge, nil
}

func (m *memStore) GetJudgeConfig(_ context.Context, id string, version int) (*models.JudgeConfig, error) {
	if m.activeJudge != nil && m.activeJudge.ID == id && m.activeJudge.Version == version {
		return m.activeJudge, nil
	}
	return nil, store.ErrNotFound
}

func (m *memStore) CreateEvaluation(_ context.Context, run *models.EvaluationRun) error {
	if run.ID == "" {
		run.ID = models.NewID("eval")
	}
	run.CreatedAt = time.Now().UTC()
	m.created = append(m.created, run)
	return nil
}

func (m *memStore) SaveEvaluation(_ context.Context, run *models.EvaluationRun) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saveCount++
	m.inProgressSeen = append(m.inProgressSeen, run.InProgressTests)
	return nil
}

func (m *memStore) LatestCompletedRun(_ context.Context, _, _ string) (*models.EvaluationRun, error) {
	if m.baseline == nil {
		return nil, store.ErrNotFound
	}
	return m.baseline, nil
}

// scriptedEvaluator returns canned pass/fail outcomes per test case ID.
type scriptedEvaluator struct {
	pass      map[string]bool
	perCase   func(run *models.EvaluationRun, tc *models.TestCase)
	evaluated []string
}

func (s *scriptedEvaluator) Evaluate(_ context.Context, run *models.EvaluationRun, tc *models.TestCase, _ *models.JudgeConfig, _ string, _ RateLimitCallback) models.TestCaseResult {
	s.evaluated = append(s.evaluated, tc.ID)
	if s.perCase != nil {
		s.perCase(run, tc)
	}
	return models.TestCaseResult{
		TestCaseID:  tc.ID,
		Passed:      s.pass[tc.ID],
		CompletedAt: time.Now().UTC(),
	}
}

func fixtureStore() *memStore {
	return &memStore{
		agent:   &models.Agent{ID: "agent_1", Name: "cua", EndpointURL: "http://agent.test/run"},
		dataset: &models.Dataset{ID: "dataset_1", Seed: models.DatasetSeed{Name: "smoke"}},
		cases: []models.TestCase{
			{ID: "tc_1", DatasetID: "dataset_1", Input: "a"},
			{ID: "tc_2", DatasetID: "dataset_1", Input: "b"},
			{ID: "tc_3", DatasetID: "dataset_1", Input: "c"},
		},
		activePrompt: &models.PromptVersion{AgentID: "agent_1", Version: 3, Text: "be helpful", IsActive: true},
		activeJudge:  &models.JudgeConfig{ID: "jc_default", Version: 2, ScoringMode: models.ScoringBinary},
	}
}

func newTestCoordinator(st *memStore, eval CaseEvaluator) *Coordinator {
	return NewCoordinator(st, eval, NewRegistry(), 30*time.Second)
}

func TestLaunchSnapshotsConfiguration(t *testing.T) {
	st := fixtureStore()
	c := newTestCoordinator(st, &scriptedEvaluator{})

	lr, err := c.Launch(context.Background(), LaunchRequest{AgentID: "agent_1", DatasetID: "dataset_1"})
	require.NoError(t, err)

	run := lr.Run
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, models.RunPending, run.Status)
	assert.Equal(t, "http://agent.test/run", run.AgentEndpointURL)
	assert.Equal(t, 3, run.PromptVersion)
	assert.Equal(t, "jc_default", run.JudgeConfigID)
	assert.Equal(t, 2, run.JudgeConfigVersion)
	assert.Equal(t, 3, run.TotalTests)
	assert.Equal(t, "be helpful", lr.SystemPrompt)
	require.Len(t, run.StatusHistory, 1)
	assert.Equal(t, "run created", run.StatusHistory[0].Message)
	require.Len(t, st.created, 1)
}

func TestLaunchUnknownAgent(t *testing.T) {
	c := newTestCoordinator(fixtureStore(), &scriptedEvaluator{})
	_, err := c.Launch(context.Background(), LaunchRequest{AgentID: "agent_missing", DatasetID: "dataset_1"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLaunchNoActiveJudgeConfig(t *testing.T) {
	st := fixtureStore()
	st.activeJudge = nil
	c := newTestCoordinator(st, &scriptedEvaluator{})

	_, err := c.Launch(context.Background(), LaunchRequest{AgentID: "agent_1", DatasetID: "dataset_1"})
	require.Error(t, err)
	var verr *store.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestLaunchWithoutPromptVersionsRunsBare(t *testing.T) {
	st := fixtureStore()
	st.activePrompt = nil
	c := newTestCoordinator(st, &scriptedEvaluator{})

	lr, err := c.Launch(context.Background(), LaunchRequest{AgentID: "agent_1", DatasetID: "dataset_1"})
	require.NoError(t, err)
	assert.Empty(t, lr.SystemPrompt)
	assert.Zero(t, lr.Run.PromptVersion)
}

func TestExecuteCompletesRun(t *testing.T) {
	st := fixtureStore()
	eval := &scriptedEvaluator{pass: map[string]bool{"tc_1": true, "tc_2": false, "tc_3": true}}
	c := newTestCoordinator(st, eval)

	lr, err := c.Launch(context.Background(), LaunchRequest{AgentID: "agent_1", DatasetID: "dataset_1"})
	require.NoError(t, err)
	require.NoError(t, c.Execute(context.Background(), lr))

	run := lr.Run
	assert.Equal(t, models.RunCompleted, run.Status)
	assert.Equal(t, 3, run.CompletedTests)
	assert.Equal(t, 2, run.PassedCount)
	assert.Equal(t, 1, run.FailedTests)
	assert.Zero(t, run.InProgressTests)
	require.NotNil(t, run.StartedAt)
	require.NotNil(t, run.CompletedAt)

	// Results keep dataset order.
	assert.Equal(t, []string{"tc_1", "tc_2", "tc_3"}, eval.evaluated)
	require.Len(t, run.TestCases, 3)
	assert.Equal(t, "tc_2", run.TestCases[1].TestCaseID)

	// One save per transition to running, two per case (in-progress snapshot
	// plus checkpoint), one terminal.
	assert.Equal(t, 8, st.saveCount)
	assert.Contains(t, st.inProgressSeen, 1)
	assert.Equal(t, "run completed: 2/3 passed", run.StatusHistory[len(run.StatusHistory)-1].Message)
	assert.False(t, c.Registry().IsCancelled(run.ID))
}

func TestExecuteOutlivesPerCallTimeout(t *testing.T) {
	st := fixtureStore()
	eval := &scriptedEvaluator{
		pass: map[string]bool{"tc_1": true, "tc_2": true, "tc_3": true},
		perCase: func(_ *models.EvaluationRun, _ *models.TestCase) {
			time.Sleep(400 * time.Millisecond)
		},
	}
	c := newTestCoordinator(st, eval)

	// Three 400 ms cases against a 1 s per-agent-call timeout: the run total
	// exceeds the timeout but no single call does, so the run must complete.
	lr, err := c.Launch(context.Background(), LaunchRequest{
		AgentID: "agent_1", DatasetID: "dataset_1", TimeoutSeconds: 1,
	})
	require.NoError(t, err)
	require.NoError(t, c.Execute(context.Background(), lr))

	assert.Equal(t, models.RunCompleted, lr.Run.Status)
	assert.Equal(t, 3, lr.Run.CompletedTests)
	assert.Equal(t, []string{"tc_1", "tc_2", "tc_3"}, eval.evaluated)
}

func TestCancelBetweenLaunchAndExecute(t *testing.T) {
	st := fixtureStore()
	eval := &scriptedEvaluator{pass: map[string]bool{"tc_1": true}}
	c := newTestCoordinator(st, eval)

	lr, err := c.Launch(context.Background(), LaunchRequest{AgentID: "agent_1", DatasetID: "dataset_1"})
	require.NoError(t, err)

	// The handle exists as soon as Launch returns, so a cancel that beats the
	// Execute goroutine is not lost.
	require.True(t, c.Registry().Cancel(lr.Run.ID))
	require.NoError(t, c.Execute(context.Background(), lr))

	assert.Equal(t, models.RunCancelled, lr.Run.Status)
	assert.Empty(t, eval.evaluated)
	assert.Zero(t, lr.Run.CompletedTests)
	assert.Equal(t, "run cancelled after 0/3 cases",
		lr.Run.StatusHistory[len(lr.Run.StatusHistory)-1].Message)
}

func TestExecuteDetectsRegressions(t *testing.T) {
	st := fixtureStore()
	st.baseline = &models.EvaluationRun{
		ID: "eval_prior", AgentID: "agent_1", DatasetID: "dataset_1",
		Status: models.RunCompleted,
		TestCases: []models.TestCaseResult{
			{TestCaseID: "tc_1", Passed: true},
			{TestCaseID: "tc_2", Passed: true},
			{TestCaseID: "tc_3", Passed: false},
		},
	}
	eval := &scriptedEvaluator{pass: map[string]bool{"tc_1": true, "tc_2": false, "tc_3": false}}
	c := newTestCoordinator(st, eval)

	lr, err := c.Launch(context.Background(), LaunchRequest{AgentID: "agent_1", DatasetID: "dataset_1"})
	require.NoError(t, err)
	require.NoError(t, c.Execute(context.Background(), lr))

	// tc_2 regressed; tc_3 failed before too, so it is not a regression.
	require.Len(t, lr.Run.Regressions, 1)
	assert.Equal(t, "tc_2", lr.Run.Regressions[0].TestCaseID)
	assert.Equal(t, "passed", lr.Run.Regressions[0].PreviousResult)
	assert.Equal(t, "failed", lr.Run.Regressions[0].CurrentResult)
}

func TestExecuteSoftCancelMidRun(t *testing.T) {
	st := fixtureStore()
	c := newTestCoordinator(st, nil)
	eval := &scriptedEvaluator{
		pass: map[string]bool{"tc_1": true},
		perCase: func(run *models.EvaluationRun, tc *models.TestCase) {
			if tc.ID == "tc_1" {
				// Cancellation lands while the first case is in flight.
				require.True(t, c.Registry().Cancel(run.ID))
			}
		},
	}
	c.evaluator = eval

	lr, err := c.Launch(context.Background(), LaunchRequest{AgentID: "agent_1", DatasetID: "dataset_1"})
	require.NoError(t, err)
	require.NoError(t, c.Execute(context.Background(), lr))

	run := lr.Run
	assert.Equal(t, models.RunCancelled, run.Status)
	assert.Equal(t, 1, run.CompletedTests)
	require.Len(t, run.TestCases, 1)
	assert.Equal(t, []string{"tc_1"}, eval.evaluated)
	require.NotNil(t, run.CompletedAt)
	assert.Equal(t, "run cancelled after 1/3 cases",
		run.StatusHistory[len(run.StatusHistory)-1].Message)
}

func TestExecuteFailsWhenCheckpointSaveFails(t *testing.T) {
	st := fixtureStore()
	eval := &scriptedEvaluator{pass: map[string]bool{"tc_1": true}}
	c := newTestCoordinator(st, eval)

	lr, err := c.Launch(context.Background(), LaunchRequest{AgentID: "agent_1", DatasetID: "dataset_1"})
	require.NoError(t, err)

	st.saveErr = errors.New("connection reset")
	err = c.Execute(context.Background(), lr)
	require.Error(t, err)
	assert.Equal(t, models.RunFailed, lr.Run.Status)
	assert.Contains(t, lr.Run.StatusMessage, "run failed")
}

func TestExecuteRecordsRateLimitWarning(t *testing.T) {
	st := fixtureStore()
	st.cases = st.cases[:1]
	eval := &scriptedEvaluator{
		pass: map[string]bool{"tc_1": true},
		perCase: func(run *models.EvaluationRun, _ *models.TestCase) {
			run.AppendRateLimitEvent("agent", 1, 2*time.Second)
			run.AppendRateLimitEvent("judge", 1, time.Second)
		},
	}
	c := newTestCoordinator(st, eval)

	lr, err := c.Launch(context.Background(), LaunchRequest{AgentID: "agent_1", DatasetID: "dataset_1"})
	require.NoError(t, err)
	require.NoError(t, c.Execute(context.Background(), lr))

	run := lr.Run
	assert.Equal(t, 2, run.TotalRateLimitHits)
	assert.InDelta(t, 3.0, run.TotalRetryWaitSeconds, 0.001)
	require.Len(t, run.Warnings, 1)
	assert.Contains(t, run.Warnings[0], "2 rate-limit events")
}

func TestRegistryCancelUnknownRun(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Cancel("eval_missing"))
}

func TestRegistryRegisterKeepsCancelFlag(t *testing.T) {
	r := NewRegistry()
	r.Register("eval_1", nil)
	require.True(t, r.Cancel("eval_1"))

	// Re-registering to arm the abort must not clear the pending cancel.
	r.Register("eval_1", func() {})
	assert.True(t, r.IsCancelled("eval_1"))
}

func TestRegistryAbortAllInvokesAborts(t *testing.T) {
	r := NewRegistry()
	aborted := false
	r.Register("eval_1", func() { aborted = true })
	r.AbortAll()
	assert.True(t, aborted)
	assert.True(t, r.IsCancelled("eval_1"))
}
