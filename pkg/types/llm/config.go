// Package llm holds the types shared by the chat-completion client, the ask
// command and the skill runtime bridge.
package llm

import "time"

// Defaults applied when configuration or a request leaves a value unset
const (
	DefaultModel       = "doubao-seed-1.6-flash"
	DefaultMaxTokens   = 4000
	DefaultTemperature = 0.3
	DefaultTimeout     = 120 * time.Second
)

// Config holds the configuration for the LLM client
type Config struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature *float64      `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Retry       RetryConfig   `mapstructure:"retry"`
}

// RetryConfig controls retries of failed completion calls
type RetryConfig struct {
	Attempts     int    `mapstructure:"attempts"`      // Attempts is the total number of tries, including the first
	InitialDelay int    `mapstructure:"initial_delay"` // InitialDelay in milliseconds
	MaxDelay     int    `mapstructure:"max_delay"`     // MaxDelay in milliseconds
	BackoffType  string `mapstructure:"backoff_type"`  // BackoffType is "fixed" or "exponential"
}

// DefaultRetryConfig is used when no retry settings are configured
var DefaultRetryConfig = RetryConfig{
	Attempts:     3,
	InitialDelay: 1000,
	MaxDelay:     10000,
	BackoffType:  "exponential",
}

// Request is a single-turn completion request
type Request struct {
	Prompt           string
	SystemPrompt     string
	Model            string
	MaxTokens        int
	Temperature      *float64
	TopP             *float64
	FrequencyPenalty *float64
	PresencePenalty  *float64
	Seed             *int
	Stop             []string
}

// Response is the result of a completion request
type Response struct {
	Text         string
	Model        string
	FinishReason string
	Usage        Usage
}
