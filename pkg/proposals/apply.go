package proposals

import (
	"context"
	"strings"

	"github.com/agentevalhq/agenteval/pkg/models"
)

// ApplyStore is the persistence surface Apply needs.
type ApplyStore interface {
	GetProposal(ctx context.Context, id string) (*models.PromptProposal, error)
	GetPromptVersion(ctx context.Context, agentID string, version int) (*models.PromptVersion, error)
	CreatePromptVersion(ctx context.Context, prompt *models.PromptVersion) error
	SetActivePrompt(ctx context.Context, agentID string, version int) error
	UpdateProposalStatus(ctx context.Context, id string, status models.ProposalStatus) (*models.PromptProposal, error)
}

// Apply turns an approved proposal into a new active prompt version: apply
// the diff to the referenced version's text, store it under the next version
// number, flip it active, and mark the proposal applied.
func Apply(ctx context.Context, st ApplyStore, proposalID string) (*models.PromptVersion, error) {
	proposal, err := st.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	base, err := st.GetPromptVersion(ctx, proposal.AgentID, proposal.PromptVersion)
	if err != nil {
		return nil, err
	}

	next := &models.PromptVersion{
		AgentID: proposal.AgentID,
		Text:    applyDiff(base.Text, proposal.Diff),
		Notes:   "Applied proposal: " + proposal.Title,
	}
	if err := st.CreatePromptVersion(ctx, next); err != nil {
		return nil, err
	}
	if err := st.SetActivePrompt(ctx, proposal.AgentID, next.Version); err != nil {
		return nil, err
	}
	if _, err := st.UpdateProposalStatus(ctx, proposalID, models.ProposalApplied); err != nil {
		return nil, err
	}
	return next, nil
}

// applyDiff edits the prompt line by line, best effort: removed lines are
// matched after trimming whitespace, added lines are appended at the end.
// Lines that cannot be matched are skipped rather than failing the apply.
func applyDiff(text string, diff models.PromptDiff) string {
	removed := make(map[string]bool, len(diff.Removed))
	for _, line := range diff.Removed {
		removed[strings.TrimSpace(line)] = true
	}

	var kept []string
	for _, line := range strings.Split(text, "\n") {
		if removed[strings.TrimSpace(line)] {
			continue
		}
		kept = append(kept, line)
	}
	out := strings.TrimRight(strings.Join(kept, "\n"), "\n")
	for _, line := range diff.Added {
		if out != "" {
			out += "\n"
		}
		out += line
	}
	return out
}
