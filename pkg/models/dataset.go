package models

import "time"

// DatasetSeed is the human-readable description a dataset was created from.
type DatasetSeed struct {
	Name   string `json:"name"`
	Goal   string `json:"goal,omitempty"`
	Domain string `json:"domain,omitempty"`
}

// Dataset groups test cases. TestCaseIDs is the exact set of test cases whose
// dataset_id equals this dataset's id.
type Dataset struct {
	ID          string      `json:"dataset_id"`
	Seed        DatasetSeed `json:"seed"`
	RiskTier    string      `json:"risk_tier,omitempty"`
	TestCaseIDs []string    `json:"test_case_ids"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
