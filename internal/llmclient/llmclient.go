// Package llmclient implements component C: a single-call, text-in /
// text-out wrapper over a hosted chat model. Decoding parameters are
// fixed at construction; the client exposes no streaming or tool-use
// surface to callers, matching SPEC_FULL §4.C/§9's rejection of the
// source's tool-calling control flow.
package llmclient

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Typed error kinds from §4.C / §7.
var (
	ErrUnavailable = errors.New("llmclient: unavailable")
	ErrTimeout     = errors.New("llmclient: timeout")
	ErrEmpty       = errors.New("llmclient: empty reply")
)

// Client is the complete(prompt) -> string contract.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// OpenAIClient is the concrete single-shot implementation.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// New builds an OpenAIClient with decoding parameters fixed for the
// lifetime of the client: low temperature and a bounded maximum output,
// per §4.C.
func New(apiKey, model string, maxTokens int) *OpenAIClient {
	if model == "" {
		model = openai.GPT4o
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &OpenAIClient{
		client:      openai.NewClient(apiKey),
		model:       model,
		temperature: 0.2,
		maxTokens:   maxTokens,
	}
}

// Complete issues a single, non-streaming, tool-free chat completion.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmpty
	}
	return resp.Choices[0].Message.Content, nil
}
