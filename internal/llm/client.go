// Package llm is the boundary to the remote classifier.
//
// A Client sends one prompt and returns the model's raw text. It makes no
// judgment about that text: parsing and allow-list enforcement belong to the
// guard package. Clients never retry; a failed call is reported once and the
// caller degrades it to an UNMAPPED result.
package llm

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/timvw/taxomap/internal/model"
)

// Request defaults for classification calls.
const (
	DefaultTemperature = 0.1
	DefaultMaxTokens   = 220
	DefaultTimeout     = 30 * time.Second
)

// Completion is the raw outcome of a successful remote call.
type Completion struct {
	// Text is the generated text, untouched.
	Text string
	// Usage is nil when the provider did not report token counts.
	Usage *model.TokenUsage
}

// Client sends a prompt to a hosted LLM.
type Client interface {
	// Complete performs exactly one request. Any transport failure, timeout,
	// non-success status or empty response is returned as an error.
	Complete(ctx context.Context, prompt string) (*Completion, error)

	// Provider returns the provider name (e.g., "groq", "anthropic", "openai").
	Provider() string

	// Model returns the model name used for classification.
	Model() string
}

// Config holds settings shared by all clients.
type Config struct {
	// BaseURL is the API endpoint. Empty uses the SDK default.
	BaseURL string
	// APIKey is the API key.
	APIKey string
	// Model is the model name.
	Model string
	// MaxTokens bounds the completion length.
	MaxTokens int64
	// Temperature is the sampling temperature. Negative means DefaultTemperature.
	Temperature float64
	// Timeout bounds a single request.
	Timeout time.Duration
	// ExtraHeaders are additional HTTP headers (e.g., "api-key" for Azure).
	ExtraHeaders map[string]string
}

func (c Config) withDefaults() Config {
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Temperature < 0 {
		c.Temperature = DefaultTemperature
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

var tracer = otel.Tracer("taxomap/llm")

func usageOf(input, output, total int64) *model.TokenUsage {
	u := model.TokenUsage{InputTokens: input, OutputTokens: output, TotalTokens: total}
	if !u.Reported() {
		return nil
	}
	if u.TotalTokens == 0 {
		u.TotalTokens = u.InputTokens + u.OutputTokens
	}
	return &u
}
