package providers

import (
	"context"
	"sync/atomic"
	"time"
)

const MockName = "mock"

// MockClassifier is a Classifier for testing. Its zero value returns an empty
// successful response; configure fields to shape behavior.
type MockClassifier struct {
	// ResponseText is returned on success.
	ResponseText string

	// InputTokens/OutputTokens populate the usage counters.
	InputTokens  int
	OutputTokens int

	// Err, when set, is returned instead of a response.
	Err error

	// FailFirst makes the first N calls return Err, then succeed.
	FailFirst int

	// Latency is simulated per call.
	Latency time.Duration

	calls atomic.Int64
}

// Name returns the provider identifier.
func (c *MockClassifier) Name() string {
	return MockName
}

// Calls reports how many Classify invocations were made.
func (c *MockClassifier) Calls() int {
	return int(c.calls.Load())
}

// Classify returns the configured response or error.
func (c *MockClassifier) Classify(ctx context.Context, req *ClassifyRequest) (*RawResponse, error) {
	count := c.calls.Add(1)

	if c.Latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.Latency):
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if c.Err != nil && (c.FailFirst == 0 || count <= int64(c.FailFirst)) {
		return nil, c.Err
	}

	return &RawResponse{
		Text:         c.ResponseText,
		InputTokens:  c.InputTokens,
		OutputTokens: c.OutputTokens,
		Provider:     MockName,
		Model:        "mock-model",
		RequestID:    req.RequestID,
		Attempts:     1,
	}, nil
}
