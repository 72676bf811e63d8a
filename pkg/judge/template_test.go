package judge

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentevalhq/agenteval/pkg/models"
)

func TestRenderTemplate(t *testing.T) {
	out := renderTemplate("check {{assertion}} against {{tool_name}}", map[string]string{
		"assertion": "origin is Boston",
		"tool_name": "search_flights",
	})
	assert.Equal(t, "check origin is Boston against search_flights", out)
}

func TestRenderTemplateLeavesUnknownPlaceholders(t *testing.T) {
	out := renderTemplate("{{known}} and {{unknown}}", map[string]string{"known": "x"})
	assert.Equal(t, "x and {{unknown}}", out)
}

func TestAssertionsBlockNumbersFromZero(t *testing.T) {
	block := assertionsBlock([]BatchAssertion{
		{ArgName: "origin", Text: "is Boston"},
		{Text: "agent cancels before refunding"},
	})
	assert.Equal(t, "0. [origin] is Boston\n1. agent cancels before refunding", block)
}

func TestRubricBlockBinaryModeEmpty(t *testing.T) {
	jc := &models.JudgeConfig{ScoringMode: models.ScoringBinary}
	assert.Empty(t, rubricBlock(jc))
}

func TestRubricBlockRendersLevelsInOrder(t *testing.T) {
	jc := &models.JudgeConfig{
		ScoringMode: models.ScoringRubric,
		Criteria: []models.RubricCriterion{
			{
				Name:        "Click Accuracy",
				Description: "acted on the right elements",
				Levels:      map[int]string{2: "mostly wrong", 1: "all wrong", 3: "mixed"},
			},
		},
	}
	block := rubricBlock(jc)
	assert.Contains(t, block, "Click Accuracy: acted on the right elements")
	assert.Regexp(t, `(?s)1: all wrong.*2: mostly wrong.*3: mixed`, block)
}
