// Package metrics tracks token usage and estimated cost across a batch.
package metrics

import "sync"

// Pricing is the per-million-token price of the classification model.
type Pricing struct {
	InputPer1M  float64 `mapstructure:"input_per_1m" yaml:"input_per_1m"`
	OutputPer1M float64 `mapstructure:"output_per_1m" yaml:"output_per_1m"`
}

// DefaultPricing returns pricing for the default classification model
// (USD per 1M tokens).
func DefaultPricing() Pricing {
	return Pricing{
		InputPer1M:  3.00,
		OutputPer1M: 15.00,
	}
}

// Usage is an immutable snapshot of accumulated token usage.
type Usage struct {
	InputTokens      int     `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens     int     `json:"output_tokens" yaml:"output_tokens"`
	TotalTokens      int     `json:"total_tokens" yaml:"total_tokens"`
	Requests         int     `json:"requests" yaml:"requests"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd" yaml:"estimated_cost_usd"`
}

// UsageAccumulator is a process-scoped running total of token usage. It is
// explicitly passed to every pipeline, never shared via package state, and is
// safe for concurrent additive updates from parallel workers. No ordering is
// guaranteed across documents, only correctness of the final sums.
type UsageAccumulator struct {
	mu      sync.Mutex
	pricing Pricing

	inputTokens  int
	outputTokens int
	requests     int
}

// NewUsageAccumulator creates an accumulator with the given pricing.
func NewUsageAccumulator(p Pricing) *UsageAccumulator {
	return &UsageAccumulator{pricing: p}
}

// Add records one completed request's token counts. Counts are recorded even
// for responses that later fail validation: cost was incurred regardless.
func (a *UsageAccumulator) Add(inputTokens, outputTokens int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inputTokens += inputTokens
	a.outputTokens += outputTokens
	a.requests++
}

// Snapshot returns the current totals and derived cost estimate.
func (a *UsageAccumulator) Snapshot() Usage {
	a.mu.Lock()
	defer a.mu.Unlock()

	cost := float64(a.inputTokens)/1_000_000*a.pricing.InputPer1M +
		float64(a.outputTokens)/1_000_000*a.pricing.OutputPer1M

	return Usage{
		InputTokens:      a.inputTokens,
		OutputTokens:     a.outputTokens,
		TotalTokens:      a.inputTokens + a.outputTokens,
		Requests:         a.requests,
		EstimatedCostUSD: cost,
	}
}
