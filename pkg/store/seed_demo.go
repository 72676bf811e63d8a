package store

import (
	"context"
	"log/slog"

	"github.com/agentevalhq/agenteval/pkg/models"
)

// SeedDemoData creates a small dataset exercising all three assertion modes,
// wired to the first agent on record. Idempotence is not attempted; each call
// creates a fresh dataset.
func (c *Client) SeedDemoData(ctx context.Context) (*models.Dataset, error) {
	agents, err := c.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	if len(agents) == 0 {
		return nil, ErrNotFound
	}

	ds := &models.Dataset{
		Seed: models.DatasetSeed{
			Name:   "Demo: travel booking",
			Goal:   "Book a one-way flight and report the confirmation",
			Domain: "travel",
		},
		RiskTier: "low",
	}
	if err := c.CreateDataset(ctx, ds); err != nil {
		return nil, err
	}

	cases := []*models.TestCase{
		{
			DatasetID:        ds.ID,
			Input:            "Find the cheapest one-way flight from Boston to Denver next Tuesday and book it.",
			ExpectedResponse: "A booking confirmation including airline, departure time, and total price.",
			MinimalToolSet:   []string{"search_flights", "book_flight"},
			ToolExpectations: []models.ToolExpectation{
				{
					ToolName: "search_flights",
					Arguments: []models.ArgumentAssertion{
						{ArgName: "origin", Assertions: []string{"is Boston or a Boston-area airport code"}},
						{ArgName: "destination", Assertions: []string{"is Denver or DEN"}},
					},
				},
				{
					ToolName: "book_flight",
					Arguments: []models.ArgumentAssertion{
						{ArgName: "flight_id", Assertions: []string{"matches a flight id returned by the search"}},
					},
				},
			},
			ResponseQuality: &models.ResponseQualityExpectation{
				Assertion: "states the booked flight and its price without inventing details",
			},
		},
		{
			DatasetID:        ds.ID,
			Input:            "Cancel my hotel reservation HX-2291 and confirm the refund policy.",
			ExpectedResponse: "Cancellation confirmed with the applicable refund policy quoted.",
			BehaviorAssertions: []string{
				"the agent cancels reservation HX-2291 before discussing refunds",
				"the agent quotes the refund policy from tool output rather than from memory",
			},
			ResponseQuality: &models.ResponseQualityExpectation{
				Assertion: "confirms the cancellation and quotes the refund policy",
			},
		},
		{
			DatasetID:        ds.ID,
			Input:            "What documents do I need for a layover in Reykjavik as a US citizen?",
			ExpectedResponse: "US citizens transiting Iceland need a valid passport; no transit visa for short layovers.",
			ResponseQuality: &models.ResponseQualityExpectation{
				Assertion: "mentions a valid passport and correctly states no transit visa is required",
			},
		},
	}
	for _, tc := range cases {
		if err := c.CreateTestCase(ctx, tc); err != nil {
			return nil, err
		}
	}

	slog.Info("Seeded demo dataset", "dataset_id", ds.ID, "test_cases", len(cases))
	return ds, nil
}
