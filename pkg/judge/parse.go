package judge

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// Verdict is one graded assertion outcome, ordered by the caller's index.
type Verdict struct {
	Passed    bool
	Reasoning string
}

// rawVerdict accepts the loose shapes judge models actually produce: booleans
// arrive as bool, string, or number.
type rawVerdict struct {
	// Index is a pointer so a reply that omits it falls back to positional
	// order instead of clobbering index zero.
	Index     *int            `json:"index"`
	Passed    json.RawMessage `json:"passed"`
	Reasoning string          `json:"reasoning"`
}

type rawResponse struct {
	Passed    json.RawMessage `json:"passed"`
	Reasoning string          `json:"reasoning"`
	Results   []rawVerdict    `json:"results"`
}

// coerceBool maps the model's notion of truth onto a bool. Models sporadically
// return "passed": "false" or "passed": "yes"; anything unrecognized is false.
func coerceBool(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "yes", "pass", "passed", "1":
			return true
		}
		return false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n == 1
	}
	return false
}

// extractJSON pulls the first-{ to last-} span out of model output, tolerating
// prose or code fences around the object.
func extractJSON(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// parseSingle extracts one verdict from model output. Parse failures degrade
// to a failed verdict carrying the raw output; grading never throws.
func parseSingle(output string) Verdict {
	span, ok := extractJSON(output)
	if !ok {
		return Verdict{Passed: false, Reasoning: "judge returned no JSON: " + truncate(output, 500)}
	}
	var raw rawResponse
	if err := json.Unmarshal([]byte(span), &raw); err != nil {
		return Verdict{Passed: false, Reasoning: "failed to parse judge output: " + truncate(output, 500)}
	}
	if len(raw.Results) > 0 {
		return Verdict{Passed: coerceBool(raw.Results[0].Passed), Reasoning: raw.Results[0].Reasoning}
	}
	return Verdict{Passed: coerceBool(raw.Passed), Reasoning: raw.Reasoning}
}

// parseBatch extracts exactly expected verdicts in index order. Missing
// indexes fail closed; surplus results are dropped with a logged discrepancy.
func parseBatch(output string, expected int) []Verdict {
	verdicts := make([]Verdict, expected)
	for i := range verdicts {
		verdicts[i] = Verdict{Passed: false, Reasoning: "no verdict returned for this assertion"}
	}

	span, ok := extractJSON(output)
	if !ok {
		markAllParseFailed(verdicts, output)
		return verdicts
	}
	var raw rawResponse
	if err := json.Unmarshal([]byte(span), &raw); err != nil {
		markAllParseFailed(verdicts, output)
		return verdicts
	}

	if len(raw.Results) != expected {
		slog.Warn("Judge verdict count mismatch",
			"expected", expected, "got", len(raw.Results))
	}
	for position, rv := range raw.Results {
		// Some models ignore the index contract and just reply in order.
		idx := position
		if rv.Index != nil && *rv.Index >= 0 && *rv.Index < expected {
			idx = *rv.Index
		}
		if idx >= expected {
			continue
		}
		verdicts[idx] = Verdict{Passed: coerceBool(rv.Passed), Reasoning: rv.Reasoning}
	}
	return verdicts
}

func markAllParseFailed(verdicts []Verdict, output string) {
	reason := "failed to parse judge output: " + truncate(output, 500)
	for i := range verdicts {
		verdicts[i] = Verdict{Passed: false, Reasoning: reason}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
