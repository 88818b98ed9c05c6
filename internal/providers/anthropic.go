package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
)

const (
	AnthropicName         = "anthropic"
	AnthropicBaseURL      = "https://api.anthropic.com"
	AnthropicAPIVersion   = "2023-06-01"
	AnthropicDefaultModel = "claude-sonnet-4-20250514"
)

// AnthropicConfig holds configuration for the Anthropic Messages API client.
type AnthropicConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	RateLimit   float64 // Requests per second
	Retry       RetryPolicy
	HTTPClient  *http.Client // Optional (tests)
}

// AnthropicClient implements Classifier using the Anthropic Messages API.
type AnthropicClient struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	retry       RetryPolicy
	limiter     *RateLimiter
	client      *http.Client
}

// NewAnthropicClient creates a new Anthropic classifier client.
func NewAnthropicClient(cfg AnthropicConfig) *AnthropicClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = AnthropicBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = AnthropicDefaultModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &AnthropicClient{
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		retry:       cfg.Retry.normalize(),
		limiter:     NewRateLimiter(cfg.RateLimit),
		client:      httpClient,
	}
}

// Name returns the provider identifier.
func (c *AnthropicClient) Name() string {
	return AnthropicName
}

// Classify sends the page images and instructions as a single Messages API
// request. Transient failures (429, 5xx, overloaded, network) are retried
// with exponential backoff; everything else propagates immediately.
func (c *AnthropicClient) Classify(ctx context.Context, req *ClassifyRequest) (*RawResponse, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	model := req.Model
	if model == "" {
		model = c.model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	content := make([]anthropicContent, 0, len(req.Pages)+1)
	content = append(content, anthropicContent{Type: "text", Text: req.Instructions})
	for _, page := range req.Pages {
		content = append(content, anthropicContent{
			Type: "image",
			Source: &anthropicImageSource{
				Type:      "base64",
				MediaType: "image/png",
				Data:      base64.StdEncoding.EncodeToString(page),
			},
		})
	}

	body := anthropicRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		Messages: []anthropicMessage{
			{Role: "user", Content: content},
		},
	}

	var apiResp *anthropicResponse
	attempts := 0

	err := retry.Do(
		func() error {
			attempts++
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := c.doRequest(ctx, &body)
			if err != nil {
				if !IsTransient(err) {
					return retry.Unrecoverable(err)
				}
				return err
			}
			apiResp = resp
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.retry.MaxAttempts)),
		retry.Delay(c.retry.Delay),
		retry.MaxDelay(c.retry.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}

	text := ""
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return &RawResponse{
		Text:          text,
		InputTokens:   apiResp.Usage.InputTokens,
		OutputTokens:  apiResp.Usage.OutputTokens,
		Provider:      AnthropicName,
		Model:         apiResp.Model,
		RequestID:     requestID,
		Attempts:      attempts,
		ExecutionTime: time.Since(start),
	}, nil
}

// doRequest performs one HTTP round trip and classifies failures.
func (c *AnthropicClient) doRequest(ctx context.Context, body *anthropicRequest) (*anthropicResponse, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/messages", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", AnthropicAPIVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &APIError{Provider: AnthropicName, Message: err.Error(), Transient: true}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Provider: AnthropicName, Message: fmt.Sprintf("failed to read response: %v", err), Transient: true}
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(respBody)
		var apiErr anthropicErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return nil, &APIError{
			Provider:   AnthropicName,
			StatusCode: resp.StatusCode,
			Message:    msg,
			Transient:  transientStatus(resp.StatusCode),
		}
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &APIError{Provider: AnthropicName, Message: fmt.Sprintf("failed to unmarshal response: %v", err), Transient: true}
	}
	if len(parsed.Content) == 0 {
		return nil, &APIError{Provider: AnthropicName, Message: "empty content in response", Transient: true}
	}

	return &parsed, nil
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type   string                `json:"type"`
	Text   string                `json:"text,omitempty"`
	Source *anthropicImageSource `json:"source,omitempty"`
}

type anthropicImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type anthropicErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
