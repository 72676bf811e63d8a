package store

import (
	"context"
	"fmt"
	"time"

	"github.com/agentevalhq/agenteval/pkg/models"
)

// CreateAgent validates and persists a new agent.
func (c *Client) CreateAgent(ctx context.Context, agent *models.Agent) error {
	if agent.Name == "" {
		return NewValidationError("agent_name", "required")
	}
	if agent.EndpointURL == "" {
		return NewValidationError("endpoint_url", "required")
	}
	if agent.SamplingRate != nil && (*agent.SamplingRate < 0 || *agent.SamplingRate > 1) {
		return NewValidationError("sampling_rate", "must be in [0,1]")
	}
	if agent.ID == "" {
		agent.ID = models.NewID("agent")
	}
	now := time.Now().UTC()
	agent.CreatedAt = now
	agent.UpdatedAt = now
	return insertDoc(ctx, c.db, "agents", agent.ID, agent)
}

// GetAgent loads one agent by id.
func (c *Client) GetAgent(ctx context.Context, id string) (*models.Agent, error) {
	var agent models.Agent
	if err := getDoc(ctx, c.db, "agents", id, &agent); err != nil {
		return nil, err
	}
	return &agent, nil
}

// ListAgents returns all agents.
func (c *Client) ListAgents(ctx context.Context) ([]models.Agent, error) {
	return listDocs[models.Agent](ctx, c.db, "agents", "", "")
}

// UpdateAgent overwrites an existing agent document.
func (c *Client) UpdateAgent(ctx context.Context, agent *models.Agent) error {
	if _, err := c.GetAgent(ctx, agent.ID); err != nil {
		return err
	}
	agent.UpdatedAt = time.Now().UTC()
	return putDoc(ctx, c.db, "agents", agent.ID, agent)
}

// DeleteAgent removes an agent and cascades to its prompts, proposals, runs,
// and the annotations of those runs.
func (c *Client) DeleteAgent(ctx context.Context, id string) error {
	if err := deleteDoc(ctx, c.db, "agents", id); err != nil {
		return err
	}

	runs, err := listDocs[models.EvaluationRun](ctx, c.db, "evaluations", "agent_id", id)
	if err != nil {
		return fmt.Errorf("failed to list runs for cascade: %w", err)
	}
	for _, run := range runs {
		if err := deleteDocsByField(ctx, c.db, "run_annotations", "eval_id", run.ID); err != nil {
			return err
		}
		if err := deleteDocsByField(ctx, c.db, "action_annotations", "eval_id", run.ID); err != nil {
			return err
		}
	}

	if err := deleteDocsByField(ctx, c.db, "evaluations", "agent_id", id); err != nil {
		return err
	}
	if err := deleteDocsByField(ctx, c.db, "agent_prompts", "agent_id", id); err != nil {
		return err
	}
	return deleteDocsByField(ctx, c.db, "prompt_proposals", "agent_id", id)
}
