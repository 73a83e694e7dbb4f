// Package marketing generates and refines marketing plans.
package marketing

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kalambet/flowerdesk/internal/prompts"
)

// Apologies returned when the backend fails.
const (
	GenerateFailed = "抱歉,生成方案时出现错误,请稍后重试。"
	RefineFailed   = "抱歉,优化方案时出现错误,请稍后重试。"
)

// Generator produces plan text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Agent writes marketing plans.
type Agent struct {
	gen     Generator
	prompts *prompts.Catalog
	logger  *slog.Logger
}

// New creates an Agent. A nil logger discards output.
func New(gen Generator, catalog *prompts.Catalog, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Agent{gen: gen, prompts: catalog, logger: logger}
}

// Generate drafts a plan for product aimed at target with goal. On failure
// it returns GenerateFailed.
func (a *Agent) Generate(ctx context.Context, product, target, goal string) string {
	data := struct{ Product, Target, Goal string }{product, target, goal}
	out, err := a.run(ctx, prompts.MarketingGenerate, data)
	if err != nil {
		a.logger.Error("generating marketing plan", "product", product, "error", err)
		return GenerateFailed
	}
	return out
}

// Refine reworks plan according to feedback. On failure it returns
// RefineFailed.
func (a *Agent) Refine(ctx context.Context, plan, feedback string) string {
	data := struct{ Plan, Feedback string }{plan, feedback}
	out, err := a.run(ctx, prompts.MarketingRefine, data)
	if err != nil {
		a.logger.Error("refining marketing plan", "error", err)
		return RefineFailed
	}
	return out
}

func (a *Agent) run(ctx context.Context, name string, data any) (string, error) {
	prompt, err := a.prompts.Render(name, data)
	if err != nil {
		return "", err
	}
	out, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
