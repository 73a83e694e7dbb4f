package engine

import (
	"context"
	"errors"
)

// Engine abstracts a text-generation and embedding backend (an
// OpenAI-compatible API or a local Ollama server). Agents and the
// similarity index depend on this interface, never on a concrete client.
type Engine interface {
	// Chat sends messages to the given model and returns the assistant's reply.
	Chat(ctx context.Context, model string, messages []Message, opts Options) (string, error)

	// Embed returns the embedding vector for text using the given model.
	Embed(ctx context.Context, model string, text string) ([]float32, error)

	// IsRunning reports whether the backend is reachable.
	IsRunning(ctx context.Context) bool
}

var (
	// ErrRateLimited marks a backend refusal due to quota (HTTP 429).
	ErrRateLimited = errors.New("backend rate limited")

	// ErrUnavailable marks a transient backend failure (HTTP 5xx).
	ErrUnavailable = errors.New("backend unavailable")

	// ErrEmptyResponse is returned when the backend answers without content.
	ErrEmptyResponse = errors.New("backend returned no content")
)

// Retryable reports whether err is worth another attempt.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnavailable)
}
