package llm

import "strings"

// modelPricing maps model-name prefixes to USD per million tokens (in, out).
// Unknown models cost zero; accounting still records token counts.
var modelPricing = []struct {
	prefix  string
	inPerM  float64
	outPerM float64
}{
	{"gpt-4o-mini", 0.15, 0.60},
	{"gpt-4o", 2.50, 10.00},
	{"gpt-4.1-mini", 0.40, 1.60},
	{"gpt-4.1", 2.00, 8.00},
	{"claude-3-5-haiku", 0.80, 4.00},
	{"claude-sonnet", 3.00, 15.00},
	{"gemini-2.0-flash", 0.10, 0.40},
}

// EstimateCost returns the dollar cost of a call by model-prefix lookup.
func EstimateCost(model string, tokensIn, tokensOut int) float64 {
	for _, p := range modelPricing {
		if strings.HasPrefix(model, p.prefix) {
			return float64(tokensIn)/1e6*p.inPerM + float64(tokensOut)/1e6*p.outPerM
		}
	}
	return 0
}
