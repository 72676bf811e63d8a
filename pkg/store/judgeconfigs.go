package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/agentevalhq/agenteval/pkg/models"
)

func judgeConfigKey(id string, version int) string {
	return fmt.Sprintf("%s:%d", id, version)
}

// CreateJudgeConfig persists a new judge config version. Version history is
// append-only; when Version is zero the next number is allocated.
func (c *Client) CreateJudgeConfig(ctx context.Context, jc *models.JudgeConfig) error {
	if jc.ID == "" {
		return NewValidationError("judge_config_id", "required")
	}
	if jc.ScoringMode == "" {
		jc.ScoringMode = models.ScoringBinary
	}
	if jc.ScoringMode == models.ScoringRubric && jc.PassThreshold == 0 {
		jc.PassThreshold = models.DefaultRubricPassThreshold
	}
	if jc.Version == 0 {
		next, err := c.NextJudgeConfigVersion(ctx, jc.ID)
		if err != nil {
			return err
		}
		jc.Version = next
	}
	jc.CreatedAt = time.Now().UTC()
	return insertDoc(ctx, c.db, "judge_configs", judgeConfigKey(jc.ID, jc.Version), jc)
}

// GetJudgeConfig loads one judge config version.
func (c *Client) GetJudgeConfig(ctx context.Context, id string, version int) (*models.JudgeConfig, error) {
	var jc models.JudgeConfig
	if err := getDoc(ctx, c.db, "judge_configs", judgeConfigKey(id, version), &jc); err != nil {
		return nil, err
	}
	return &jc, nil
}

// ListJudgeConfigs returns all judge config versions, grouped by id, oldest
// version first.
func (c *Client) ListJudgeConfigs(ctx context.Context) ([]models.JudgeConfig, error) {
	configs, err := listDocs[models.JudgeConfig](ctx, c.db, "judge_configs", "", "")
	if err != nil {
		return nil, err
	}
	sort.Slice(configs, func(i, j int) bool {
		if configs[i].ID != configs[j].ID {
			return configs[i].ID < configs[j].ID
		}
		return configs[i].Version < configs[j].Version
	})
	return configs, nil
}

// ListJudgeConfigVersions returns the version history of one config id.
func (c *Client) ListJudgeConfigVersions(ctx context.Context, id string) ([]models.JudgeConfig, error) {
	configs, err := listDocs[models.JudgeConfig](ctx, c.db, "judge_configs", "judge_config_id", id)
	if err != nil {
		return nil, err
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].Version < configs[j].Version })
	return configs, nil
}

// GetActiveJudgeConfig returns the single globally active judge config, or
// ErrNotFound when none is active.
func (c *Client) GetActiveJudgeConfig(ctx context.Context) (*models.JudgeConfig, error) {
	configs, err := c.ListJudgeConfigs(ctx)
	if err != nil {
		return nil, err
	}
	for i := range configs {
		if configs[i].IsActive {
			return &configs[i], nil
		}
	}
	return nil, ErrNotFound
}

// NextJudgeConfigVersion allocates max(version)+1 for the config id.
func (c *Client) NextJudgeConfigVersion(ctx context.Context, id string) (int, error) {
	query := `
		SELECT COALESCE(MAX((doc->>'judge_config_version')::int), 0) + 1
		FROM judge_configs WHERE doc->>'judge_config_id' = $1
	`
	var next int
	if err := c.db.QueryRowContext(ctx, query, id).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to allocate judge config version: %w", err)
	}
	return next, nil
}

// SetActiveJudgeConfig atomically flips the globally active judge config.
func (c *Client) SetActiveJudgeConfig(ctx context.Context, id string, version int) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE judge_configs
		SET doc = jsonb_set(doc, '{is_active}', 'true'), updated_at = now()
		WHERE key = $1
	`, judgeConfigKey(id, version))
	if err != nil {
		return fmt.Errorf("failed to activate judge config: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE judge_configs
		SET doc = jsonb_set(doc, '{is_active}', 'false'), updated_at = now()
		WHERE key != $1
	`, judgeConfigKey(id, version)); err != nil {
		return fmt.Errorf("failed to clear active judge configs: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit active flip: %w", err)
	}
	return nil
}

// DeleteJudgeConfig removes one config version. Deleting the active version
// is a conflict.
func (c *Client) DeleteJudgeConfig(ctx context.Context, id string, version int) error {
	jc, err := c.GetJudgeConfig(ctx, id, version)
	if err != nil {
		return err
	}
	if jc.IsActive {
		return ErrActiveConfig
	}
	return deleteDoc(ctx, c.db, "judge_configs", judgeConfigKey(id, version))
}
