package store

import (
	"context"
	"time"

	"github.com/agentevalhq/agenteval/pkg/models"
)

// PutSystemPrompt upserts an internal LLM template row, keyed by name.
func (c *Client) PutSystemPrompt(ctx context.Context, name, text string) error {
	if name == "" {
		return NewValidationError("name", "required")
	}
	sp := models.SystemPrompt{Name: name, Text: text, UpdatedAt: time.Now().UTC()}
	return putDoc(ctx, c.db, "system_prompts", name, &sp)
}

// GetSystemPrompt loads one internal template by name.
func (c *Client) GetSystemPrompt(ctx context.Context, name string) (*models.SystemPrompt, error) {
	var sp models.SystemPrompt
	if err := getDoc(ctx, c.db, "system_prompts", name, &sp); err != nil {
		return nil, err
	}
	return &sp, nil
}

// ListSystemPrompts returns all internal templates.
func (c *Client) ListSystemPrompts(ctx context.Context) ([]models.SystemPrompt, error) {
	return listDocs[models.SystemPrompt](ctx, c.db, "system_prompts", "", "")
}
