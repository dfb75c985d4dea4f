package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AnthropicClient classifies through the Anthropic Messages API.
// Works with both direct Anthropic API and Azure AI Foundry.
type AnthropicClient struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(cfg Config) *AnthropicClient {
	cfg = cfg.withDefaults()

	opts := []option.RequestOption{
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	for k, v := range cfg.ExtraHeaders {
		opts = append(opts, option.WithHeader(k, v))
	}

	return &AnthropicClient{
		client:      anthropic.NewClient(opts...),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

// Provider returns "anthropic".
func (c *AnthropicClient) Provider() string {
	return "anthropic"
}

// Model returns the model name.
func (c *AnthropicClient) Model() string {
	return c.model
}

// Complete sends prompt as a single user message and returns the raw reply.
func (c *AnthropicClient) Complete(ctx context.Context, prompt string) (*Completion, error) {
	ctx, span := tracer.Start(ctx, "chat "+c.model,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gen_ai.operation.name", "chat"),
			attribute.String("gen_ai.provider.name", "anthropic"),
			attribute.String("gen_ai.request.model", c.model),
			attribute.Int64("gen_ai.request.max_tokens", c.maxTokens),
			attribute.Float64("gen_ai.request.temperature", c.temperature),

			attribute.String("langfuse.observation.type", "generation"),
		),
	)
	defer span.End()

	inputMessages := []map[string]string{
		{"role": "user", "content": prompt},
	}
	if inputJSON, err := json.Marshal(inputMessages); err == nil {
		span.SetAttributes(attribute.String("gen_ai.input.messages", string(inputJSON)))
	}

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(c.temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(prompt),
			),
		},
	})
	if err != nil {
		span.SetAttributes(attribute.String("error.type", "api_error"))
		return nil, fmt.Errorf("anthropic API call failed: %w", err)
	}

	var parts []string
	for _, block := range resp.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		span.SetAttributes(attribute.String("error.type", "empty_response"))
		return nil, fmt.Errorf("anthropic API returned no text content")
	}
	text := strings.Join(parts, "")

	span.SetAttributes(
		attribute.String("gen_ai.response.model", string(resp.Model)),
		attribute.String("gen_ai.response.id", resp.ID),
		attribute.Int64("gen_ai.usage.input_tokens", resp.Usage.InputTokens),
		attribute.Int64("gen_ai.usage.output_tokens", resp.Usage.OutputTokens),
	)
	if string(resp.StopReason) != "" {
		span.SetAttributes(attribute.StringSlice("gen_ai.response.finish_reasons", []string{string(resp.StopReason)}))
	}

	outputMessages := []map[string]string{
		{"role": "assistant", "content": text},
	}
	if outputJSON, err := json.Marshal(outputMessages); err == nil {
		span.SetAttributes(attribute.String("gen_ai.output.messages", string(outputJSON)))
	}

	return &Completion{
		Text:  text,
		Usage: usageOf(resp.Usage.InputTokens, resp.Usage.OutputTokens, 0),
	}, nil
}
