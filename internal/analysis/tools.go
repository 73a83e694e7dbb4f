// Package analysis renders the fixed analysis prompts (weather impact,
// social trends, seasonal events) and sends them to the text-generation
// backend. Backend failures never reach the caller: each operation
// degrades to its own placeholder text.
package analysis

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/flowerdesk/internal/prompts"
)

// Generator produces a completion for one rendered prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Operation names.
const (
	OpWeather = "weather_impact"
	OpSocial  = "social_trends"
	OpEvents  = "seasonal_events"
)

// Header lines that open every result, one per operation.
const (
	HeaderWeather = "【天气影响分析】"
	HeaderSocial  = "【社交媒体趋势】"
	HeaderEvents  = "【节日事件分析】"
)

// Placeholder bodies returned when the backend fails. Callers compare
// against these exact values.
const (
	PlaceholderWeather = "暂无天气影响分析"
	PlaceholderSocial  = "暂无社交媒体趋势分析"
	PlaceholderEvents  = "暂无节日事件分析"
)

// BlockDelimiter joins the outputs of several operations that ran for
// the same task. Each block starts with its operation header.
const BlockDelimiter = "\n\n---\n\n"

// DefaultTimeout bounds one backend call.
const DefaultTimeout = 60 * time.Second

// Result is the outcome of one operation. It is always usable: when the
// backend failed, Degraded is set and Body holds the placeholder.
type Result struct {
	Op       string
	Header   string
	Body     string
	Degraded bool
}

// Text is the header line followed by the body.
func (r Result) Text() string {
	return r.Header + "\n" + r.Body
}

// Tools is the analysis facade.
type Tools struct {
	gen     Generator
	prompts *prompts.Catalog
	logger  *slog.Logger
	timeout time.Duration
}

// New creates Tools. A nil logger discards output.
func New(gen Generator, catalog *prompts.Catalog, logger *slog.Logger) *Tools {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Tools{gen: gen, prompts: catalog, logger: logger, timeout: DefaultTimeout}
}

// WithTimeout returns a copy of t using d per backend call.
func (t *Tools) WithTimeout(d time.Duration) *Tools {
	c := *t
	c.timeout = d
	return &c
}

// WeatherImpact analyzes how the season's weather in location affects
// demand for product.
func (t *Tools) WeatherImpact(ctx context.Context, product, location, season string) Result {
	data := struct{ Product, Location, Season string }{product, location, season}
	return t.run(ctx, OpWeather, HeaderWeather, PlaceholderWeather, prompts.WeatherImpact, data)
}

// SocialTrends analyzes social media sentiment around product.
func (t *Tools) SocialTrends(ctx context.Context, product string) Result {
	data := struct{ Product string }{product}
	return t.run(ctx, OpSocial, HeaderSocial, PlaceholderSocial, prompts.SocialTrends, data)
}

// SeasonalEvents analyzes holidays within timeframe for product.
func (t *Tools) SeasonalEvents(ctx context.Context, product, timeframe string) Result {
	data := struct{ Product, Timeframe string }{product, timeframe}
	return t.run(ctx, OpEvents, HeaderEvents, PlaceholderEvents, prompts.SeasonalEvents, data)
}

func (t *Tools) run(ctx context.Context, op, header, placeholder, tmpl string, data any) Result {
	degraded := Result{Op: op, Header: header, Body: placeholder, Degraded: true}

	prompt, err := t.prompts.Render(tmpl, data)
	if err != nil {
		t.logger.Error("rendering analysis prompt", "op", op, "error", err)
		return degraded
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	start := time.Now()
	out, err := t.gen.Generate(ctx, prompt)
	if err != nil {
		t.logger.Warn("analysis backend call failed", "op", op, "error", err)
		return degraded
	}
	out = strings.TrimSpace(out)
	if out == "" {
		t.logger.Warn("analysis backend returned empty text", "op", op)
		return degraded
	}
	t.logger.Debug("analysis complete", "op", op, "duration", time.Since(start), "chars", len([]rune(out)))
	return Result{Op: op, Header: header, Body: out}
}

// Season maps t's month to a Chinese season name.
func Season(t time.Time) string {
	switch t.Month() {
	case time.March, time.April, time.May:
		return "春季"
	case time.June, time.July, time.August:
		return "夏季"
	case time.September, time.October, time.November:
		return "秋季"
	default:
		return "冬季"
	}
}
