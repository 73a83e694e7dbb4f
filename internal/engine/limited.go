package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/time/rate"
)

const initialBackoff = 500 * time.Millisecond

// Limited wraps an Engine with a requests-per-minute limiter and bounded
// retries on rate-limit and 5xx failures.
type Limited struct {
	next    Engine
	limiter *rate.Limiter
	retries int
	backoff time.Duration
	logger  *slog.Logger
}

// NewLimited wraps next. rpm <= 0 disables limiting; retries is the number
// of extra attempts after the first.
func NewLimited(next Engine, rpm, retries int, logger *slog.Logger) *Limited {
	limit := rate.Inf
	burst := 1
	if rpm > 0 {
		limit = rate.Limit(float64(rpm) / 60)
		burst = max(1, rpm/60)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Limited{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
		retries: max(0, retries),
		backoff: initialBackoff,
		logger:  logger,
	}
}

// Chat waits for a limiter slot and retries retryable failures.
func (l *Limited) Chat(ctx context.Context, model string, messages []Message, opts Options) (string, error) {
	var out string
	err := l.do(ctx, "chat", func() error {
		var err error
		out, err = l.next.Chat(ctx, model, messages, opts)
		return err
	})
	return out, err
}

// Embed waits for a limiter slot and retries retryable failures.
func (l *Limited) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	var out []float32
	err := l.do(ctx, "embed", func() error {
		var err error
		out, err = l.next.Embed(ctx, model, text)
		return err
	})
	return out, err
}

// IsRunning is not rate limited.
func (l *Limited) IsRunning(ctx context.Context) bool {
	return l.next.IsRunning(ctx)
}

// Unwrap returns the wrapped engine.
func (l *Limited) Unwrap() Engine {
	return l.next
}

func (l *Limited) do(ctx context.Context, op string, call func() error) error {
	var lastErr error
	for attempt := 0; attempt <= l.retries; attempt++ {
		if err := l.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("waiting for rate limiter: %w", err)
		}
		lastErr = call()
		if lastErr == nil || !Retryable(lastErr) {
			return lastErr
		}
		if attempt == l.retries {
			break
		}
		delay := time.Duration(float64(l.backoff) * math.Pow(2, float64(attempt)))
		l.logger.Warn("backend call failed, retrying", "op", op, "attempt", attempt+1, "delay", delay, "error", lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, l.retries+1, lastErr)
}
