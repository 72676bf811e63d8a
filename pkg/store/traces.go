package store

import (
	"context"
	"time"

	"github.com/agentevalhq/agenteval/pkg/models"
)

// CreateTrace persists an ingested production trace.
func (c *Client) CreateTrace(ctx context.Context, tr *models.ProductionTrace) error {
	if tr.Input == "" {
		return NewValidationError("input", "required")
	}
	if tr.ID == "" {
		tr.ID = models.NewID("trace")
	}
	if tr.Status == "" {
		tr.Status = "new"
	}
	tr.CreatedAt = time.Now().UTC()
	return insertDoc(ctx, c.db, "production_traces", tr.ID, tr)
}

// GetTrace loads one trace by id.
func (c *Client) GetTrace(ctx context.Context, id string) (*models.ProductionTrace, error) {
	var tr models.ProductionTrace
	if err := getDoc(ctx, c.db, "production_traces", id, &tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

// ListTraces returns traces, optionally filtered by review status.
func (c *Client) ListTraces(ctx context.Context, status string) ([]models.ProductionTrace, error) {
	if status == "" {
		return listDocs[models.ProductionTrace](ctx, c.db, "production_traces", "", "")
	}
	return listDocs[models.ProductionTrace](ctx, c.db, "production_traces", "status", status)
}

// UpdateTraceStatus moves a trace through the review lifecycle.
func (c *Client) UpdateTraceStatus(ctx context.Context, id, status string) (*models.ProductionTrace, error) {
	tr, err := c.GetTrace(ctx, id)
	if err != nil {
		return nil, err
	}
	tr.Status = status
	if err := putDoc(ctx, c.db, "production_traces", tr.ID, tr); err != nil {
		return nil, err
	}
	return tr, nil
}

// PutTraceAnnotation upserts a reviewer label on a trace.
func (c *Client) PutTraceAnnotation(ctx context.Context, a *models.TraceAnnotation) error {
	if a.TraceID == "" {
		return NewValidationError("trace_id", "required")
	}
	if _, err := c.GetTrace(ctx, a.TraceID); err != nil {
		return err
	}
	a.CreatedAt = time.Now().UTC()
	return putDoc(ctx, c.db, "trace_annotations", a.TraceID, a)
}

// GetTraceAnnotation loads the reviewer label on a trace.
func (c *Client) GetTraceAnnotation(ctx context.Context, traceID string) (*models.TraceAnnotation, error) {
	var a models.TraceAnnotation
	if err := getDoc(ctx, c.db, "trace_annotations", traceID, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// RecordTraceConversion links a trace to the regression test case it became
// and marks the trace converted.
func (c *Client) RecordTraceConversion(ctx context.Context, conv *models.TraceConversion) error {
	if conv.TraceID == "" {
		return NewValidationError("trace_id", "required")
	}
	if conv.TestCaseID == "" {
		return NewValidationError("tc_id", "required")
	}
	conv.CreatedAt = time.Now().UTC()
	if err := putDoc(ctx, c.db, "trace_conversions", conv.TraceID, conv); err != nil {
		return err
	}
	_, err := c.UpdateTraceStatus(ctx, conv.TraceID, "converted")
	return err
}
