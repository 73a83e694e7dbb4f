package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Compile-time check that OpenAIEngine implements Engine.
var _ Engine = (*OpenAIEngine)(nil)

// OpenAIEngine talks to any OpenAI-compatible chat completion API
// (OpenAI, OpenRouter, Volcengine Ark, vLLM and similar).
type OpenAIEngine struct {
	client *openai.Client
}

// NewOpenAIEngine creates an OpenAIEngine. An empty baseURL keeps the
// library default.
func NewOpenAIEngine(apiKey, baseURL string, timeout time.Duration) *OpenAIEngine {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &OpenAIEngine{client: openai.NewClientWithConfig(cfg)}
}

// Chat sends a non-streaming chat completion request.
func (e *OpenAIEngine) Chat(ctx context.Context, model string, messages []Message, opts Options) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    make([]openai.ChatCompletionMessage, len(messages)),
		Temperature: opts.Temperature,
	}
	for i, m := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	if opts.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := e.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", classifyOpenAIError(err))
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed calls the embeddings endpoint for a single input.
func (e *OpenAIEngine) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", classifyOpenAIError(err))
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding: %w", ErrEmptyResponse)
	}
	return resp.Data[0].Embedding, nil
}

// IsRunning reports whether the models endpoint answers within two seconds.
func (e *OpenAIEngine) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := e.client.ListModels(ctx)
	return err == nil
}

// classifyOpenAIError wraps HTTP-level failures in the retryable sentinels.
func classifyOpenAIError(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	case status >= 500:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
