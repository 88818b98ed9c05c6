package providers

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	OpenAIName         = "openai"
	OpenAIDefaultModel = "gpt-4o"
)

// OpenAIConfig holds configuration for the OpenAI classifier client.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string // Optional override (also enables OpenAI-compatible backends)
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	RateLimit   float64 // Requests per second
	Retry       RetryPolicy
	HTTPClient  *http.Client // Optional (tests)
}

// OpenAIClient implements Classifier using the official OpenAI SDK against
// the chat completions API with image content parts.
type OpenAIClient struct {
	model       string
	maxTokens   int
	temperature float64
	retry       RetryPolicy
	limiter     *RateLimiter
	client      openai.Client
}

// NewOpenAIClient creates a new OpenAI classifier client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = OpenAIDefaultModel
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

	// SDK transport retries are disabled so the retry policy here matches the
	// other providers exactly.
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		retry:       cfg.Retry.normalize(),
		limiter:     NewRateLimiter(cfg.RateLimit),
		client:      openai.NewClient(opts...),
	}
}

// Name returns the provider identifier.
func (c *OpenAIClient) Name() string {
	return OpenAIName
}

// Classify sends the page images and instructions as one chat completion.
func (c *OpenAIClient) Classify(ctx context.Context, req *ClassifyRequest) (*RawResponse, error) {
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

	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(req.Instructions),
	}
	for _, page := range req.Pages {
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(page),
		}))
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(parts)},
		MaxTokens:   openai.Int(int64(maxTokens)),
		Temperature: openai.Float(req.Temperature),
	}

	var completion *openai.ChatCompletion
	attempts := 0

	err := retry.Do(
		func() error {
			attempts++
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := c.client.Chat.Completions.New(ctx, params)
			if err != nil {
				classified := classifyOpenAIError(err)
				if !IsTransient(classified) {
					return retry.Unrecoverable(classified)
				}
				return classified
			}
			if len(resp.Choices) == 0 {
				return &APIError{Provider: OpenAIName, Message: "empty choices in response", Transient: true}
			}
			completion = resp
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

	return &RawResponse{
		Text:          completion.Choices[0].Message.Content,
		InputTokens:   int(completion.Usage.PromptTokens),
		OutputTokens:  int(completion.Usage.CompletionTokens),
		Provider:      OpenAIName,
		Model:         completion.Model,
		RequestID:     requestID,
		Attempts:      attempts,
		ExecutionTime: time.Since(start),
	}, nil
}

// classifyOpenAIError maps SDK errors onto the shared APIError taxonomy.
func classifyOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &APIError{
			Provider:   OpenAIName,
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Message,
			Transient:  transientStatus(apiErr.StatusCode),
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &APIError{Provider: OpenAIName, Message: err.Error(), Transient: true}
}
