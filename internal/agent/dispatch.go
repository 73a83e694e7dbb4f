package agent

import (
	"context"
	"strings"

	"github.com/kalambet/flowerdesk/internal/analysis"
)

// params are the per-task inputs derived from the objective.
type params struct {
	Objective string
	Product   string
	Location  string
	Season    string
	Timeframe string
}

// rule routes a task whose name contains one of keywords to an analysis
// operation.
type rule struct {
	name     string
	keywords []string
	run      func(ctx context.Context, t Analyzer, p params) analysis.Result
}

// rules in priority order. A task that matches several runs each of them
// in this order.
var rules = []rule{
	{
		name:     "weather",
		keywords: []string{"天气", "weather"},
		run: func(ctx context.Context, t Analyzer, p params) analysis.Result {
			return t.WeatherImpact(ctx, p.Product, p.Location, p.Season)
		},
	},
	{
		name:     "social",
		keywords: []string{"社交", "social"},
		run: func(ctx context.Context, t Analyzer, p params) analysis.Result {
			return t.SocialTrends(ctx, p.Product)
		},
	},
	{
		name:     "holiday",
		keywords: []string{"节日", "节假日", "holiday"},
		run: func(ctx context.Context, t Analyzer, p params) analysis.Result {
			return t.SeasonalEvents(ctx, p.Product, p.Timeframe)
		},
	},
}

// matchRules returns the rules whose keywords occur in name, ignoring case.
// No match means the task takes the generic path.
func matchRules(name string) []rule {
	lower := strings.ToLower(name)
	var out []rule
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// productName is the first whitespace-delimited token of objective.
// Multi-word product names are cut to their first word.
func productName(objective string) string {
	fields := strings.Fields(objective)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// locationOf finds a "XX地区" phrase after the product token.
func locationOf(objective string) string {
	fields := strings.Fields(objective)
	for _, f := range fields[min(1, len(fields)):] {
		if i := strings.Index(f, "地区"); i > 0 {
			return f[:i]
		}
	}
	return ""
}
