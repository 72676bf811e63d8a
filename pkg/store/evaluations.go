package store

import (
	"context"
	"sort"
	"time"

	"github.com/agentevalhq/agenteval/pkg/models"
)

// CreateEvaluation persists a new run record.
func (c *Client) CreateEvaluation(ctx context.Context, run *models.EvaluationRun) error {
	if run.AgentID == "" {
		return NewValidationError("agent_id", "required")
	}
	if run.DatasetID == "" {
		return NewValidationError("dataset_id", "required")
	}
	if run.ID == "" {
		run.ID = models.NewID("eval")
	}
	if run.Status == "" {
		run.Status = models.RunPending
	}
	if run.TestCases == nil {
		run.TestCases = []models.TestCaseResult{}
	}
	run.CreatedAt = time.Now().UTC()
	return insertDoc(ctx, c.db, "evaluations", run.ID, run)
}

// GetEvaluation loads one run by id.
func (c *Client) GetEvaluation(ctx context.Context, id string) (*models.EvaluationRun, error) {
	var run models.EvaluationRun
	if err := getDoc(ctx, c.db, "evaluations", id, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// SaveEvaluation overwrites a run document. Used by the coordinator to
// checkpoint after every test case and status transition.
func (c *Client) SaveEvaluation(ctx context.Context, run *models.EvaluationRun) error {
	return putDoc(ctx, c.db, "evaluations", run.ID, run)
}

// ListEvaluations returns all runs, newest first.
func (c *Client) ListEvaluations(ctx context.Context) ([]models.EvaluationRun, error) {
	runs, err := listDocs[models.EvaluationRun](ctx, c.db, "evaluations", "", "")
	if err != nil {
		return nil, err
	}
	sortRunsNewestFirst(runs)
	return runs, nil
}

// ListEvaluationsByAgent returns the agent's runs, newest first.
func (c *Client) ListEvaluationsByAgent(ctx context.Context, agentID string) ([]models.EvaluationRun, error) {
	runs, err := listDocs[models.EvaluationRun](ctx, c.db, "evaluations", "agent_id", agentID)
	if err != nil {
		return nil, err
	}
	sortRunsNewestFirst(runs)
	return runs, nil
}

// LatestCompletedRun returns the agent's most recent completed run on the
// dataset, or ErrNotFound. This is the regression baseline.
func (c *Client) LatestCompletedRun(ctx context.Context, agentID, datasetID string) (*models.EvaluationRun, error) {
	runs, err := c.ListEvaluationsByAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	for i := range runs {
		if runs[i].DatasetID == datasetID && runs[i].Status == models.RunCompleted {
			return &runs[i], nil
		}
	}
	return nil, ErrNotFound
}

// DeleteEvaluation removes a run and its annotations.
func (c *Client) DeleteEvaluation(ctx context.Context, id string) error {
	if err := deleteDoc(ctx, c.db, "evaluations", id); err != nil {
		return err
	}
	if err := deleteDocsByField(ctx, c.db, "run_annotations", "eval_id", id); err != nil {
		return err
	}
	return deleteDocsByField(ctx, c.db, "action_annotations", "eval_id", id)
}

func sortRunsNewestFirst(runs []models.EvaluationRun) {
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
}
