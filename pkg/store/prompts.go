package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/agentevalhq/agenteval/pkg/models"
)

func promptKey(agentID string, version int) string {
	return fmt.Sprintf("%s:%d", agentID, version)
}

// CreatePromptVersion persists a new prompt version for an agent. When
// Version is zero the next version number is allocated.
func (c *Client) CreatePromptVersion(ctx context.Context, prompt *models.PromptVersion) error {
	if prompt.AgentID == "" {
		return NewValidationError("agent_id", "required")
	}
	if prompt.Text == "" {
		return NewValidationError("prompt_text", "required")
	}
	if _, err := c.GetAgent(ctx, prompt.AgentID); err != nil {
		return err
	}
	if prompt.Version == 0 {
		next, err := c.NextPromptVersion(ctx, prompt.AgentID)
		if err != nil {
			return err
		}
		prompt.Version = next
	}
	prompt.CreatedAt = time.Now().UTC()
	return insertDoc(ctx, c.db, "agent_prompts", promptKey(prompt.AgentID, prompt.Version), prompt)
}

// GetPromptVersion loads one prompt version.
func (c *Client) GetPromptVersion(ctx context.Context, agentID string, version int) (*models.PromptVersion, error) {
	var prompt models.PromptVersion
	if err := getDoc(ctx, c.db, "agent_prompts", promptKey(agentID, version), &prompt); err != nil {
		return nil, err
	}
	return &prompt, nil
}

// ListPromptVersions returns all prompt versions of an agent, oldest first.
func (c *Client) ListPromptVersions(ctx context.Context, agentID string) ([]models.PromptVersion, error) {
	prompts, err := listDocs[models.PromptVersion](ctx, c.db, "agent_prompts", "agent_id", agentID)
	if err != nil {
		return nil, err
	}
	sort.Slice(prompts, func(i, j int) bool { return prompts[i].Version < prompts[j].Version })
	return prompts, nil
}

// GetActivePrompt returns the agent's active prompt version, or ErrNotFound
// when none is active.
func (c *Client) GetActivePrompt(ctx context.Context, agentID string) (*models.PromptVersion, error) {
	prompts, err := c.ListPromptVersions(ctx, agentID)
	if err != nil {
		return nil, err
	}
	for i := range prompts {
		if prompts[i].IsActive {
			return &prompts[i], nil
		}
	}
	return nil, ErrNotFound
}

// NextPromptVersion allocates max(version)+1 for the agent, starting at 1.
func (c *Client) NextPromptVersion(ctx context.Context, agentID string) (int, error) {
	query := `
		SELECT COALESCE(MAX((doc->>'prompt_version')::int), 0) + 1
		FROM agent_prompts WHERE doc->>'agent_id' = $1
	`
	var next int
	if err := c.db.QueryRowContext(ctx, query, agentID).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to allocate prompt version: %w", err)
	}
	return next, nil
}

// SetActivePrompt atomically flips the active flag to the given version
// within the agent's scope. A concurrent reader never observes two active
// versions or zero active versions mid-flip.
func (c *Client) SetActivePrompt(ctx context.Context, agentID string, version int) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE agent_prompts
		SET doc = jsonb_set(doc, '{is_active}', 'true'), updated_at = now()
		WHERE key = $1
	`, promptKey(agentID, version))
	if err != nil {
		return fmt.Errorf("failed to activate prompt: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE agent_prompts
		SET doc = jsonb_set(doc, '{is_active}', 'false'), updated_at = now()
		WHERE doc->>'agent_id' = $1 AND key != $2
	`, agentID, promptKey(agentID, version)); err != nil {
		return fmt.Errorf("failed to clear active prompts: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit active flip: %w", err)
	}
	return nil
}
