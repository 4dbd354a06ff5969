package agent

import "math"

// PriceFunc computes the USD cost of one call from its token counts. Cost
// formulas are provider-specific; each provider configuration supplies a
// table keyed by model identifier.
type PriceFunc func(model string, inputTokens, outputTokens int64) float64

// ModelPrice holds per-million-token rates for one model.
type ModelPrice struct {
	InputPerMTok  float64 `yaml:"inputPerMTok" json:"inputPerMTok"`
	OutputPerMTok float64 `yaml:"outputPerMTok" json:"outputPerMTok"`
}

// Cost applies the rates to actual token counts, at six-decimal precision.
func (p ModelPrice) Cost(inputTokens, outputTokens int64) float64 {
	cost := float64(inputTokens)/1e6*p.InputPerMTok + float64(outputTokens)/1e6*p.OutputPerMTok
	return math.Round(cost*1e6) / 1e6
}

// TablePricing builds a PriceFunc from a per-model rate table. Unknown
// models price at zero rather than failing the call; cost accounting must
// never block play.
func TablePricing(table map[string]ModelPrice) PriceFunc {
	return func(model string, in, out int64) float64 {
		price, ok := table[model]
		if !ok {
			return 0
		}
		return price.Cost(in, out)
	}
}

// FreePricing prices every call at zero. Used for tests and local models.
func FreePricing(string, int64, int64) float64 { return 0 }
