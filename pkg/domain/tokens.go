package domain

import "math"

// TokenUsage accumulates per-participant and per-game consumption. Counters
// only ever increase; resets and restorations preserve them.
type TokenUsage struct {
	InputTokens  int64   `json:"inputTokens"`
	OutputTokens int64   `json:"outputTokens"`
	TotalTokens  int64   `json:"totalTokens"`
	CostUSD      float64 `json:"costUSD"`
}

// Add folds another usage sample into the counters. If the sample carries no
// authoritative total, the total is derived from input+output.
func (u *TokenUsage) Add(sample TokenUsage) {
	u.InputTokens += sample.InputTokens
	u.OutputTokens += sample.OutputTokens
	if sample.TotalTokens > 0 {
		u.TotalTokens += sample.TotalTokens
	} else {
		u.TotalTokens += sample.InputTokens + sample.OutputTokens
	}
	u.CostUSD = roundCost(u.CostUSD + sample.CostUSD)
}

// roundCost keeps cost at six-decimal (micro-dollar) precision.
func roundCost(c float64) float64 {
	return math.Round(c*1e6) / 1e6
}
