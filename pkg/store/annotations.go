package store

import (
	"context"
	"fmt"
	"time"

	"github.com/agentevalhq/agenteval/pkg/models"
)

func runAnnotationKey(evalID, tcID string) string {
	return fmt.Sprintf("%s:%s", evalID, tcID)
}

func actionAnnotationKey(evalID, tcID string, actionIndex int) string {
	return fmt.Sprintf("%s:%s:%d", evalID, tcID, actionIndex)
}

// PutRunAnnotation upserts the human label for one test-case result. Saving
// again for the same (run, case) pair replaces the previous label.
func (c *Client) PutRunAnnotation(ctx context.Context, a *models.RunAnnotation) error {
	if a.EvaluationID == "" {
		return NewValidationError("eval_id", "required")
	}
	if a.TestCaseID == "" {
		return NewValidationError("tc_id", "required")
	}
	if a.Outcome < 1 || a.Outcome > 5 {
		return NewValidationError("outcome", "must be in [1,5]")
	}
	if _, err := c.GetEvaluation(ctx, a.EvaluationID); err != nil {
		return err
	}
	a.CreatedAt = time.Now().UTC()
	return putDoc(ctx, c.db, "run_annotations", runAnnotationKey(a.EvaluationID, a.TestCaseID), a)
}

// GetRunAnnotation loads the label for one (run, case) pair.
func (c *Client) GetRunAnnotation(ctx context.Context, evalID, tcID string) (*models.RunAnnotation, error) {
	var a models.RunAnnotation
	if err := getDoc(ctx, c.db, "run_annotations", runAnnotationKey(evalID, tcID), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// ListRunAnnotations returns all labels on one run.
func (c *Client) ListRunAnnotations(ctx context.Context, evalID string) ([]models.RunAnnotation, error) {
	return listDocs[models.RunAnnotation](ctx, c.db, "run_annotations", "eval_id", evalID)
}

// ListRunAnnotationsByAgent returns the labels across all of an agent's runs.
// The proposal generator consumes this view.
func (c *Client) ListRunAnnotationsByAgent(ctx context.Context, agentID string) ([]models.RunAnnotation, error) {
	runs, err := c.ListEvaluationsByAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	var out []models.RunAnnotation
	for _, run := range runs {
		annotations, err := c.ListRunAnnotations(ctx, run.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, annotations...)
	}
	return out, nil
}

// PutActionAnnotation upserts the label for one tool call in a result.
func (c *Client) PutActionAnnotation(ctx context.Context, a *models.ActionAnnotation) error {
	if a.EvaluationID == "" {
		return NewValidationError("eval_id", "required")
	}
	if a.TestCaseID == "" {
		return NewValidationError("tc_id", "required")
	}
	if a.ActionIndex < 0 {
		return NewValidationError("action_index", "must be non-negative")
	}
	if _, err := c.GetEvaluation(ctx, a.EvaluationID); err != nil {
		return err
	}
	a.CreatedAt = time.Now().UTC()
	key := actionAnnotationKey(a.EvaluationID, a.TestCaseID, a.ActionIndex)
	return putDoc(ctx, c.db, "action_annotations", key, a)
}

// ListActionAnnotations returns all tool-call labels on one run.
func (c *Client) ListActionAnnotations(ctx context.Context, evalID string) ([]models.ActionAnnotation, error) {
	return listDocs[models.ActionAnnotation](ctx, c.db, "action_annotations", "eval_id", evalID)
}
