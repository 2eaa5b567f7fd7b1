package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient proposes candidates through the OpenAI Chat Completions API
// in JSON mode.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	decoder *Decoder

	Stats *GenerationStats
}

// NewOpenAIClient builds a client. baseURL may point at any
// OpenAI-compatible endpoint; empty uses the public API.
func NewOpenAIClient(apiKey, model, baseURL string, decoder *Decoder) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIClient{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		decoder: decoder,
		Stats:   NewGenerationStats(time.Hour),
	}, nil
}

func (c *OpenAIClient) Name() string  { return "openai" }
func (c *OpenAIClient) Model() string { return c.model }

func (c *OpenAIClient) ExtractCandidates(ctx context.Context, prompt string) ([]Decoded, error) {
	start := time.Now()
	out, err := c.extract(ctx, prompt)
	c.Stats.Record(time.Since(start).Milliseconds(), len(out), err)
	return out, err
}

func (c *OpenAIClient) extract(ctx context.Context, prompt string) ([]Decoded, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You extract grounded, citation-backed facts from documents and answer only in JSON.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0.1,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && (apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500) {
			return nil, &RetryableError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
		}
		return nil, fmt.Errorf("openai api: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from openai")
	}
	return c.decoder.Decode([]byte(resp.Choices[0].Message.Content))
}
