// Package providers contains vision classifier clients. Each client packages
// page images plus instructions into a single model request and returns the
// raw structured text, leaving parsing and validation to the caller.
package providers

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Classifier is the interface all classification backends implement.
type Classifier interface {
	// Name returns the provider identifier (e.g., "anthropic", "openai").
	Name() string

	// Classify sends one request and returns the raw model output. Transient
	// failures are retried internally with exponential backoff; non-transient
	// failures propagate immediately.
	Classify(ctx context.Context, req *ClassifyRequest) (*RawResponse, error)
}

// ClassifyRequest packages selected page images with static instructions.
// Constructed fresh per document; never reused or mutated.
type ClassifyRequest struct {
	Instructions string   // Full classification prompt
	Pages        [][]byte // Encoded PNG page images, in document order
	Model        string   // Override model (client default if empty)
	MaxTokens    int
	Temperature  float64
	RequestID    string // Assigned by the client if empty
}

// RawResponse is the unstructured classifier output plus usage counters.
// Transient; consumed immediately by the validator. Usage is recorded even
// when the text subsequently fails validation, since cost was incurred
// regardless of validity.
type RawResponse struct {
	Text string `json:"text"`

	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`

	Provider      string        `json:"provider"`
	Model         string        `json:"model"`
	RequestID     string        `json:"request_id"`
	Attempts      int           `json:"attempts"`
	ExecutionTime time.Duration `json:"execution_time"`
}

// APIError is a classifier request failure with retryability classification.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
	Transient  bool
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s API error: %s", e.Provider, e.Message)
}

// IsTransient reports whether err represents a retryable service failure
// (rate limiting, server-side errors, network failures). Authentication and
// malformed-request failures are not transient.
func IsTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient
	}
	// Cancellation is never retried.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// Unclassified errors are network-level failures; treat as transient.
	return true
}

// transientStatus reports whether an HTTP status code is worth retrying.
func transientStatus(statusCode int) bool {
	switch statusCode {
	case 429: // Rate limited
		return true
	case 529: // Anthropic "overloaded"
		return true
	default:
		return statusCode >= 500
	}
}

// RetryPolicy bounds the call-and-retry cycle for transient failures.
type RetryPolicy struct {
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	Delay       time.Duration `mapstructure:"delay" yaml:"delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
}

// DefaultRetryPolicy returns the standard policy: 3 attempts with exponential
// backoff bounded to a 4-10 second wait window.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Delay:       4 * time.Second,
		MaxDelay:    10 * time.Second,
	}
}

// normalize fills zero values with defaults.
func (p RetryPolicy) normalize() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.Delay <= 0 {
		p.Delay = def.Delay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	return p
}
