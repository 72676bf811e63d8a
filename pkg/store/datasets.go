package store

import (
	"context"
	"time"

	"github.com/agentevalhq/agenteval/pkg/models"
)

// CreateDataset validates and persists a new dataset.
func (c *Client) CreateDataset(ctx context.Context, ds *models.Dataset) error {
	if ds.Seed.Name == "" {
		return NewValidationError("seed.name", "required")
	}
	if ds.ID == "" {
		ds.ID = models.NewID("dataset")
	}
	if ds.TestCaseIDs == nil {
		ds.TestCaseIDs = []string{}
	}
	now := time.Now().UTC()
	ds.CreatedAt = now
	ds.UpdatedAt = now
	return insertDoc(ctx, c.db, "datasets", ds.ID, ds)
}

// GetDataset loads one dataset by id.
func (c *Client) GetDataset(ctx context.Context, id string) (*models.Dataset, error) {
	var ds models.Dataset
	if err := getDoc(ctx, c.db, "datasets", id, &ds); err != nil {
		return nil, err
	}
	return &ds, nil
}

// ListDatasets returns all datasets.
func (c *Client) ListDatasets(ctx context.Context) ([]models.Dataset, error) {
	return listDocs[models.Dataset](ctx, c.db, "datasets", "", "")
}

// DeleteDataset removes a dataset and cascades to its test cases.
func (c *Client) DeleteDataset(ctx context.Context, id string) error {
	if err := deleteDoc(ctx, c.db, "datasets", id); err != nil {
		return err
	}
	return deleteDocsByField(ctx, c.db, "testcases", "dataset_id", id)
}

// CreateTestCase persists a new test case and registers it on its dataset.
// The assertion mode is normalized before storage so every consumer sees the
// mode in effect.
func (c *Client) CreateTestCase(ctx context.Context, tc *models.TestCase) error {
	if tc.DatasetID == "" {
		return NewValidationError("dataset_id", "required")
	}
	if tc.Input == "" {
		return NewValidationError("tc_input", "required")
	}
	ds, err := c.GetDataset(ctx, tc.DatasetID)
	if err != nil {
		return err
	}
	if tc.ID == "" {
		tc.ID = models.NewID("tc")
	}
	tc.Normalize()
	now := time.Now().UTC()
	tc.CreatedAt = now
	tc.UpdatedAt = now
	if err := insertDoc(ctx, c.db, "testcases", tc.ID, tc); err != nil {
		return err
	}

	ds.TestCaseIDs = append(ds.TestCaseIDs, tc.ID)
	ds.UpdatedAt = now
	return putDoc(ctx, c.db, "datasets", ds.ID, ds)
}

// GetTestCase loads one test case by id.
func (c *Client) GetTestCase(ctx context.Context, id string) (*models.TestCase, error) {
	var tc models.TestCase
	if err := getDoc(ctx, c.db, "testcases", id, &tc); err != nil {
		return nil, err
	}
	return &tc, nil
}

// ListTestCases returns the dataset's test cases in dataset-declared order.
func (c *Client) ListTestCases(ctx context.Context, datasetID string) ([]models.TestCase, error) {
	ds, err := c.GetDataset(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.TestCase)
	cases, err := listDocs[models.TestCase](ctx, c.db, "testcases", "dataset_id", datasetID)
	if err != nil {
		return nil, err
	}
	for _, tc := range cases {
		byID[tc.ID] = tc
	}
	ordered := make([]models.TestCase, 0, len(ds.TestCaseIDs))
	for _, id := range ds.TestCaseIDs {
		if tc, ok := byID[id]; ok {
			ordered = append(ordered, tc)
		}
	}
	return ordered, nil
}

// UpdateTestCase overwrites an existing test case, re-normalizing the mode.
func (c *Client) UpdateTestCase(ctx context.Context, tc *models.TestCase) error {
	if _, err := c.GetTestCase(ctx, tc.ID); err != nil {
		return err
	}
	tc.Normalize()
	tc.UpdatedAt = time.Now().UTC()
	return putDoc(ctx, c.db, "testcases", tc.ID, tc)
}

// DeleteTestCase removes a test case and unregisters it from its dataset.
func (c *Client) DeleteTestCase(ctx context.Context, id string) error {
	tc, err := c.GetTestCase(ctx, id)
	if err != nil {
		return err
	}
	if err := deleteDoc(ctx, c.db, "testcases", id); err != nil {
		return err
	}
	ds, err := c.GetDataset(ctx, tc.DatasetID)
	if err != nil {
		// Dataset already gone; nothing to unregister.
		if err == ErrNotFound {
			return nil
		}
		return err
	}
	kept := ds.TestCaseIDs[:0]
	for _, tcid := range ds.TestCaseIDs {
		if tcid != id {
			kept = append(kept, tcid)
		}
	}
	ds.TestCaseIDs = kept
	ds.UpdatedAt = time.Now().UTC()
	return putDoc(ctx, c.db, "datasets", ds.ID, ds)
}
