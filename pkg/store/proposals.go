package store

import (
	"context"
	"sort"
	"time"

	"github.com/agentevalhq/agenteval/pkg/models"
)

// CreateProposal persists a new prompt proposal in pending state.
func (c *Client) CreateProposal(ctx context.Context, p *models.PromptProposal) error {
	if p.AgentID == "" {
		return NewValidationError("agent_id", "required")
	}
	if p.Title == "" {
		return NewValidationError("title", "required")
	}
	if p.ID == "" {
		p.ID = models.NewID("proposal")
	}
	if p.Status == "" {
		p.Status = models.ProposalPending
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	return insertDoc(ctx, c.db, "prompt_proposals", p.ID, p)
}

// GetProposal loads one proposal by id.
func (c *Client) GetProposal(ctx context.Context, id string) (*models.PromptProposal, error) {
	var p models.PromptProposal
	if err := getDoc(ctx, c.db, "prompt_proposals", id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProposals returns an agent's proposals, newest first. An empty status
// returns all states.
func (c *Client) ListProposals(ctx context.Context, agentID string, status models.ProposalStatus) ([]models.PromptProposal, error) {
	proposals, err := listDocs[models.PromptProposal](ctx, c.db, "prompt_proposals", "agent_id", agentID)
	if err != nil {
		return nil, err
	}
	if status != "" {
		kept := proposals[:0]
		for _, p := range proposals {
			if p.Status == status {
				kept = append(kept, p)
			}
		}
		proposals = kept
	}
	sort.Slice(proposals, func(i, j int) bool {
		return proposals[i].CreatedAt.After(proposals[j].CreatedAt)
	})
	return proposals, nil
}

// UpdateProposalStatus transitions a proposal to applied or dismissed.
func (c *Client) UpdateProposalStatus(ctx context.Context, id string, status models.ProposalStatus) (*models.PromptProposal, error) {
	p, err := c.GetProposal(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Status = status
	p.UpdatedAt = time.Now().UTC()
	if err := putDoc(ctx, c.db, "prompt_proposals", p.ID, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteProposal removes one proposal.
func (c *Client) DeleteProposal(ctx context.Context, id string) error {
	return deleteDoc(ctx, c.db, "prompt_proposals", id)
}
