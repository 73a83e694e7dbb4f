package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Compile-time check that OllamaEngine implements Engine.
var _ Engine = (*OllamaEngine)(nil)

// OllamaEngine talks to a local Ollama server over its HTTP API.
type OllamaEngine struct {
	baseURL    string
	httpClient *http.Client
}

// NewOllamaEngine creates an OllamaEngine for baseURL. timeout bounds a
// single request; zero means no client-side limit.
func NewOllamaEngine(baseURL string, timeout time.Duration) *OllamaEngine {
	return &OllamaEngine{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Format   string         `json:"format,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message Message `json:"message"`
}

// Chat calls POST /api/chat without streaming.
func (e *OllamaEngine) Chat(ctx context.Context, model string, messages []Message, opts Options) (string, error) {
	cr := ollamaChatRequest{
		Model:    model,
		Messages: messages,
		Options:  map[string]any{"temperature": opts.Temperature},
	}
	if opts.JSON {
		cr.Format = "json"
	}

	var result ollamaChatResponse
	if err := e.post(ctx, "/api/chat", cr, &result); err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}
	if strings.TrimSpace(result.Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return result.Message.Content, nil
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed calls POST /api/embed and returns the first embedding.
func (e *OllamaEngine) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	var result ollamaEmbedResponse
	if err := e.post(ctx, "/api/embed", ollamaEmbedRequest{Model: model, Input: text}, &result); err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("embed: %w", ErrEmptyResponse)
	}
	return result.Embeddings[0], nil
}

func (e *OllamaEngine) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", path, err)
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// statusError maps a non-200 HTTP status to an error, wrapping the
// retryable sentinels where they apply.
func statusError(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w (HTTP %d)", ErrRateLimited, code)
	case code >= 500:
		return fmt.Errorf("%w (HTTP %d)", ErrUnavailable, code)
	default:
		return fmt.Errorf("unexpected status %d", code)
	}
}

type ollamaTags struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// IsRunning returns true if GET /api/tags answers 200 within two seconds.
func (e *OllamaEngine) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ListModels returns the names of the locally available models.
func (e *OllamaEngine) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting model list: %w", err)
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		return nil, err
	}
	var tags ollamaTags
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	names := make([]string, len(tags.Models))
	for i, m := range tags.Models {
		names[i] = m.Name
	}
	return names, nil
}

// HasModel reports whether name is available, ignoring a ":tag" suffix.
func (e *OllamaEngine) HasModel(ctx context.Context, name string) bool {
	models, err := e.ListModels(ctx)
	if err != nil {
		return false
	}
	for _, m := range models {
		if m == name || strings.HasPrefix(m, name+":") {
			return true
		}
	}
	return false
}

// PullModel downloads a model and reports each streamed progress line.
func (e *OllamaEngine) PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error {
	body, err := json.Marshal(map[string]any{"name": name, "stream": true})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating pull request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// Pulls outlive the per-request timeout.
	resp, err := (&http.Client{Transport: e.httpClient.Transport}).Do(req)
	if err != nil {
		return fmt.Errorf("pulling model %s: %w", name, err)
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		return fmt.Errorf("pull %s: %w", name, err)
	}

	dec := json.NewDecoder(resp.Body)
	for {
		var p PullProgress
		if err := dec.Decode(&p); err == io.EOF {
			break
		} else if err != nil {
			return fmt.Errorf("reading pull progress: %w", err)
		}
		if onProgress != nil {
			onProgress(p)
		}
	}
	return nil
}
