package metrics

import (
	"math"
	"sync"
	"testing"
)

func TestUsageAccumulator(t *testing.T) {
	acc := NewUsageAccumulator(DefaultPricing())

	acc.Add(1000, 200)
	acc.Add(500, 100)

	snap := acc.Snapshot()
	if snap.InputTokens != 1500 || snap.OutputTokens != 300 {
		t.Errorf("tokens = %d/%d, want 1500/300", snap.InputTokens, snap.OutputTokens)
	}
	if snap.TotalTokens != 1800 {
		t.Errorf("total = %d, want 1800", snap.TotalTokens)
	}
	if snap.Requests != 2 {
		t.Errorf("requests = %d, want 2", snap.Requests)
	}

	// 1500 input at $3/1M plus 300 output at $15/1M.
	want := 1500.0/1_000_000*3.00 + 300.0/1_000_000*15.00
	if math.Abs(snap.EstimatedCostUSD-want) > 1e-12 {
		t.Errorf("cost = %v, want %v", snap.EstimatedCostUSD, want)
	}
}

func TestUsageAccumulatorZero(t *testing.T) {
	acc := NewUsageAccumulator(DefaultPricing())
	snap := acc.Snapshot()
	if snap.TotalTokens != 0 || snap.Requests != 0 || snap.EstimatedCostUSD != 0 {
		t.Errorf("fresh accumulator = %+v, want zeros", snap)
	}
}

func TestUsageAccumulatorConcurrent(t *testing.T) {
	acc := NewUsageAccumulator(Pricing{InputPer1M: 1, OutputPer1M: 1})

	const workers = 16
	const perWorker = 100

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				acc.Add(10, 1)
			}
		}()
	}
	wg.Wait()

	snap := acc.Snapshot()
	if snap.InputTokens != workers*perWorker*10 {
		t.Errorf("input tokens = %d, want %d", snap.InputTokens, workers*perWorker*10)
	}
	if snap.Requests != workers*perWorker {
		t.Errorf("requests = %d, want %d", snap.Requests, workers*perWorker)
	}
}
