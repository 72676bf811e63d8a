package models

import "time"

// ScoringMode controls how the judge LLM is instructed to grade assertions.
type ScoringMode string

const (
	ScoringBinary ScoringMode = "binary"
	ScoringRubric ScoringMode = "rubric"
)

// DefaultRubricPassThreshold is the rubric-average gate applied when criteria
// are scored individually.
const DefaultRubricPassThreshold = 3.5

// RubricCriterion is one ordered rubric entry with 1-5 level descriptors.
type RubricCriterion struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Levels      map[int]string `json:"levels,omitempty"`
}

// JudgeConfig is a versioned bundle of judge prompt templates, scoring mode,
// and rubric. Exactly one config is globally active; version history is
// append-only.
type JudgeConfig struct {
	ID          string      `json:"judge_config_id"`
	Version     int         `json:"judge_config_version"`
	Name        string      `json:"name"`
	ScoringMode ScoringMode `json:"scoring_mode"`
	// Rubric criteria shape the prompt the judge model sees; individual
	// verdicts remain booleans unless numeric scores are returned.
	Criteria      []RubricCriterion `json:"criteria,omitempty"`
	PassThreshold float64           `json:"pass_threshold,omitempty"`
	SystemPrompt  string            `json:"system_prompt"`
	// UserPromptTemplateSingle grades one assertion; UserPromptTemplateBatched
	// grades all assertions of one tool in a single call.
	UserPromptTemplateSingle  string    `json:"user_prompt_template_single"`
	UserPromptTemplateBatched string    `json:"user_prompt_template_batched"`
	Notes                     string    `json:"notes,omitempty"`
	IsActive                  bool      `json:"is_active"`
	CreatedAt                 time.Time `json:"created_at"`
}

// SystemPrompt is an internal LLM template row (proposal generation,
// comparison explanation) keyed by name.
type SystemPrompt struct {
	Name      string    `json:"name"`
	Text      string    `json:"text"`
	UpdatedAt time.Time `json:"updated_at"`
}
