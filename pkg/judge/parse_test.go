package judge

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoerceBool(t *testing.T) {
	cases := []struct {
		raw  string
		want bool
	}{
		{`true`, true},
		{`false`, false},
		{`"true"`, true},
		{`"True"`, true},
		{`"yes"`, true},
		{`"pass"`, true},
		{`"passed"`, true},
		{`"1"`, true},
		{`1`, true},
		{`0`, false},
		{`"false"`, false},
		{`"no"`, false},
		{`"maybe"`, false},
		{`null`, false},
		{``, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, coerceBool(json.RawMessage(tc.raw)), "raw=%s", tc.raw)
	}
}

func TestExtractJSON(t *testing.T) {
	span, ok := extractJSON("Sure, here is my verdict:\n```json\n{\"passed\": true}\n```")
	assert.True(t, ok)
	assert.Equal(t, `{"passed": true}`, span)

	_, ok = extractJSON("no json here")
	assert.False(t, ok)

	_, ok = extractJSON("} backwards {")
	assert.False(t, ok)
}

func TestParseSingle(t *testing.T) {
	v := parseSingle(`{"passed": true, "reasoning": "looks right"}`)
	assert.True(t, v.Passed)
	assert.Equal(t, "looks right", v.Reasoning)

	v = parseSingle(`The answer: {"passed": "false", "reasoning": "wrong city"}`)
	assert.False(t, v.Passed)
	assert.Equal(t, "wrong city", v.Reasoning)

	// Results-shaped reply to a single question takes the first entry.
	v = parseSingle(`{"results": [{"index": 0, "passed": "yes", "reasoning": "ok"}]}`)
	assert.True(t, v.Passed)
}

func TestParseSingleDegradesOnGarbage(t *testing.T) {
	v := parseSingle("I refuse to answer in JSON")
	assert.False(t, v.Passed)
	assert.Contains(t, v.Reasoning, "no JSON")

	v = parseSingle(`{"passed": tru`)
	assert.False(t, v.Passed)
}

func TestParseBatchInOrder(t *testing.T) {
	out := `{"results": [
		{"index": 0, "passed": true, "reasoning": "a"},
		{"index": 1, "passed": false, "reasoning": "b"},
		{"index": 2, "passed": "yes", "reasoning": "c"}
	]}`
	verdicts := parseBatch(out, 3)
	assert.Len(t, verdicts, 3)
	assert.True(t, verdicts[0].Passed)
	assert.False(t, verdicts[1].Passed)
	assert.True(t, verdicts[2].Passed)
	assert.Equal(t, "b", verdicts[1].Reasoning)
}

func TestParseBatchPadsMissingVerdicts(t *testing.T) {
	out := `{"results": [{"index": 0, "passed": true, "reasoning": "only one"}]}`
	verdicts := parseBatch(out, 3)
	assert.Len(t, verdicts, 3)
	assert.True(t, verdicts[0].Passed)
	assert.False(t, verdicts[1].Passed)
	assert.False(t, verdicts[2].Passed)
}

func TestParseBatchTruncatesSurplus(t *testing.T) {
	out := `{"results": [
		{"index": 0, "passed": true},
		{"index": 1, "passed": true},
		{"index": 5, "passed": true}
	]}`
	verdicts := parseBatch(out, 2)
	assert.Len(t, verdicts, 2)
	assert.True(t, verdicts[0].Passed)
	assert.True(t, verdicts[1].Passed)
}

func TestParseBatchHandlesMissingIndexes(t *testing.T) {
	// Models that ignore the index contract still get positional credit.
	out := `{"results": [{"passed": true}, {"passed": false}]}`
	verdicts := parseBatch(out, 2)
	assert.True(t, verdicts[0].Passed)
	assert.False(t, verdicts[1].Passed)
}

func TestParseBatchFailsClosedOnGarbage(t *testing.T) {
	verdicts := parseBatch("not json at all", 2)
	assert.Len(t, verdicts, 2)
	for _, v := range verdicts {
		assert.False(t, v.Passed)
		assert.Contains(t, v.Reasoning, "failed to parse")
	}
}
