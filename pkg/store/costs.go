package store

import (
	"context"
	"time"

	"github.com/agentevalhq/agenteval/pkg/models"
)

// CostSummary aggregates token and dollar spend over a set of cost records.
type CostSummary struct {
	TotalCalls     int                         `json:"total_calls"`
	TotalTokensIn  int                         `json:"total_tokens_in"`
	TotalTokensOut int                         `json:"total_tokens_out"`
	TotalCostUSD   float64                     `json:"total_cost_usd"`
	ByCallType     map[models.CallType]float64 `json:"by_call_type"`
}

// RecordCost persists one LLM call's accounting row.
func (c *Client) RecordCost(ctx context.Context, rec *models.CostRecord) error {
	if rec.CallType == "" {
		return NewValidationError("call_type", "required")
	}
	if rec.ID == "" {
		rec.ID = models.NewID("cost")
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	return insertDoc(ctx, c.db, "cost_records", rec.ID, rec)
}

// ListCostsByRun returns the cost rows attributed to one evaluation run.
func (c *Client) ListCostsByRun(ctx context.Context, evalID string) ([]models.CostRecord, error) {
	return listDocs[models.CostRecord](ctx, c.db, "cost_records", "eval_id", evalID)
}

// ListCostsByAgent returns the cost rows attributed to one agent.
func (c *Client) ListCostsByAgent(ctx context.Context, agentID string) ([]models.CostRecord, error) {
	return listDocs[models.CostRecord](ctx, c.db, "cost_records", "agent_id", agentID)
}

// SummarizeCosts folds cost rows into totals and a per-call-type breakdown.
func SummarizeCosts(records []models.CostRecord) CostSummary {
	summary := CostSummary{ByCallType: make(map[models.CallType]float64)}
	for _, rec := range records {
		summary.TotalCalls++
		summary.TotalTokensIn += rec.TokensIn
		summary.TotalTokensOut += rec.TokensOut
		summary.TotalCostUSD += rec.CostUSD
		summary.ByCallType[rec.CallType] += rec.CostUSD
	}
	return summary
}

// SummarizeRunCosts aggregates one run's spend.
func (c *Client) SummarizeRunCosts(ctx context.Context, evalID string) (CostSummary, error) {
	records, err := c.ListCostsByRun(ctx, evalID)
	if err != nil {
		return CostSummary{}, err
	}
	return SummarizeCosts(records), nil
}
