package inventory

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kalambet/flowerdesk/internal/report"
	"github.com/kalambet/flowerdesk/internal/storage"
)

// maxStoredEvents caps the events kept in a stored record.
const maxStoredEvents = 5

// Record converts a payload into a storable record. Each JSON column is
// shrunk field by field until it fits its cap, so it stays valid JSON.
func Record(product string, p Payload, at time.Time) storage.InventoryRecord {
	return storage.InventoryRecord{
		Timestamp: storage.Timestamp(at),
		Product:   product,
		Factors: fitJSON(storage.MaxFactorsLen, func(n int) any {
			return clipFactors(p.Factors, n)
		}),
		Strategy: fitJSON(storage.MaxStrategyLen, func(n int) any {
			s := p.Strategy
			return report.Strategy{
				SuggestedLevel:  clip(s.SuggestedLevel, n),
				ReorderTime:     clip(s.ReorderTime, n),
				SafetyStock:     clip(s.SafetyStock, n),
				Recommendations: clip(s.Recommendations, n),
			}
		}),
		Logistics: fitJSON(storage.MaxLogisticsLen, func(n int) any {
			l := p.Logistics
			return report.Logistics{
				Routes:           clip(l.Routes, n),
				Resources:        clip(l.Resources, n),
				Timeliness:       clip(l.Timeliness, n),
				CostOptimization: clip(l.CostOptimization, n),
			}
		}),
	}.Fit()
}

// fitJSON marshals build(n) with a shrinking per-string cap n until the
// result is at most limit characters.
func fitJSON(limit int, build func(n int) any) string {
	for n := limit; ; n = n * 2 / 3 {
		s := marshal(build(n))
		if utf8.RuneCountInString(s) <= limit || n == 0 {
			return s
		}
	}
}

func marshal(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return strings.TrimSpace(buf.String())
}

func clipFactors(f report.Factors, n int) report.Factors {
	w, so := f.WeatherImpact, f.SocialTrends
	out := report.Factors{
		WeatherImpact: report.WeatherImpact{
			Impact:          clip(w.Impact, n),
			BehaviorChanges: clip(w.BehaviorChanges, n),
			DemandForecast:  clip(w.DemandForecast, n),
			Recommendations: clip(w.Recommendations, n),
		},
		SocialTrends: report.SocialTrends{
			MarketHeat:      clip(so.MarketHeat, n),
			DiscussionFocus: clip(so.DiscussionFocus, n),
			ReputationTrend: clip(so.ReputationTrend, n),
			RelatedTopics:   clip(so.RelatedTopics, n),
		},
		SeasonalEvents: []report.Event{},
	}
	for i, ev := range f.SeasonalEvents {
		if i == maxStoredEvents || n == 0 {
			break
		}
		c := report.Event{Event: clip(ev.Event, n), Impact: []string{}}
		for _, line := range ev.Impact {
			c.Impact = append(c.Impact, clip(line, n))
		}
		out.SeasonalEvents = append(out.SeasonalEvents, c)
	}
	return out
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
