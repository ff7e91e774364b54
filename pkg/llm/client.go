// Package llm is the host's chat-completion collaborator. It talks to any
// OpenAI-compatible endpoint using the configured credentials and model, and
// is the only component that ever sees those credentials.
package llm

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/llm-inline/llmi/pkg/logger"
	llmtypes "github.com/llm-inline/llmi/pkg/types/llm"
	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

// ErrNotConfigured is returned when the API key or base URL is missing
var ErrNotConfigured = errors.New("LLM endpoint is not configured: set LLM_API_KEY and LLM_BASE_URL (or llm.api_key and llm.base_url)")

// Completer produces a completion for a single-turn request
type Completer interface {
	Complete(ctx context.Context, req llmtypes.Request) (*llmtypes.Response, error)
}

// Client is an OpenAI-compatible chat-completion client
type Client struct {
	config     llmtypes.Config
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for API calls
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates a client. Credentials are not validated until the first
// call so commands that never reach the model work without them.
func NewClient(config llmtypes.Config, opts ...Option) *Client {
	if config.Model == "" {
		config.Model = llmtypes.DefaultModel
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = llmtypes.DefaultMaxTokens
	}
	if config.Timeout <= 0 {
		config.Timeout = llmtypes.DefaultTimeout
	}
	if config.Retry.Attempts <= 0 {
		config.Retry = llmtypes.DefaultRetryConfig
	}

	c := &Client{config: config}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the configured default model
func (c *Client) Model() string {
	return c.config.Model
}

// Complete sends the prompt and returns the first choice's text
func (c *Client) Complete(ctx context.Context, req llmtypes.Request) (*llmtypes.Response, error) {
	if c.config.APIKey == "" || c.config.BaseURL == "" {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, errors.New("prompt cannot be empty")
	}

	clientConfig := openai.DefaultConfig(c.config.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(c.config.BaseURL, "/")
	if c.httpClient != nil {
		clientConfig.HTTPClient = c.httpClient
	}
	client := openai.NewClientWithConfig(clientConfig)

	params := c.buildRequest(req)

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	response, err := c.createChatCompletionWithRetry(ctx, client, params)
	if err != nil {
		return nil, err
	}
	if len(response.Choices) == 0 {
		return nil, errors.New("LLM returned no choices")
	}

	choice := response.Choices[0]
	return &llmtypes.Response{
		Text:         choice.Message.Content,
		Model:        response.Model,
		FinishReason: string(choice.FinishReason),
		Usage: llmtypes.Usage{
			InputTokens:  response.Usage.PromptTokens,
			OutputTokens: response.Usage.CompletionTokens,
		},
	}, nil
}

func (c *Client) buildRequest(req llmtypes.Request) openai.ChatCompletionRequest {
	var messages []openai.ChatCompletionMessage
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	temperature := llmtypes.DefaultTemperature
	if c.config.Temperature != nil {
		temperature = *c.config.Temperature
	}
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	params := openai.ChatCompletionRequest{
		Model:       c.config.Model,
		Messages:    messages,
		MaxTokens:   c.config.MaxTokens,
		Temperature: wireFloat(temperature),
		Stop:        req.Stop,
		Seed:        req.Seed,
	}
	if req.Model != "" {
		params.Model = req.Model
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = req.MaxTokens
	}
	if req.TopP != nil {
		params.TopP = wireFloat(*req.TopP)
	}
	if req.FrequencyPenalty != nil {
		params.FrequencyPenalty = float32(*req.FrequencyPenalty)
	}
	if req.PresencePenalty != nil {
		params.PresencePenalty = float32(*req.PresencePenalty)
	}
	return params
}

// wireFloat converts a sampling value for go-openai, whose float fields are
// omitted when zero. An explicit 0 is sent as the smallest positive float32.
func wireFloat(v float64) float32 {
	if v == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(v)
}

func (c *Client) createChatCompletionWithRetry(ctx context.Context, client *openai.Client, params openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	var response openai.ChatCompletionResponse
	retryConfig := c.config.Retry

	initialDelay := time.Duration(retryConfig.InitialDelay) * time.Millisecond
	maxDelay := time.Duration(retryConfig.MaxDelay) * time.Millisecond

	var delayType retry.DelayTypeFunc
	switch retryConfig.BackoffType {
	case "fixed":
		delayType = retry.FixedDelay
	default:
		delayType = retry.BackOffDelay
	}

	err := retry.Do(
		func() error {
			var apiErr error
			response, apiErr = client.CreateChatCompletion(ctx, params)
			return apiErr
		},
		retry.RetryIf(isRetryableError),
		retry.Attempts(uint(retryConfig.Attempts)),
		retry.Delay(initialDelay),
		retry.DelayType(delayType),
		retry.MaxDelay(maxDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithError(err).
				WithField("attempt", n+1).
				WithField("max_attempts", retryConfig.Attempts).
				Warn("retrying chat completion call")
		}),
	)
	if err != nil {
		return response, errors.Wrap(err, "chat completion failed")
	}
	return response, nil
}

// isRetryableError reports whether a failed call is worth repeating: rate
// limits, server errors and transport failures are; client errors are not.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 0 || reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}

	return false
}
