// Package report shapes the executor's result log into the fixed
// inventory payload: weather, social and holiday factors plus strategy
// and logistics summaries. Format is a pure function.
package report

import (
	"strings"
	"unicode/utf8"

	"github.com/kalambet/flowerdesk/internal/analysis"
	"github.com/kalambet/flowerdesk/internal/extract"
)

// NoData fills the primary field of a record whose bucket is empty.
const NoData = "暂无数据"

// SummaryLimit caps the free-text field of Strategy and Logistics.
const SummaryLimit = 200

// Boilerplate for the fixed Strategy and Logistics fields.
const (
	DefaultSuggestedLevel = "根据需求预测保持适中库存水平"
	DefaultReorderTime    = "库存降至安全库存时补货"
	DefaultSafetyStock    = "建议保持两周销量的安全库存"
	DefaultRoutes         = "优先选择就近仓库发货"
	DefaultResources      = "根据订单量动态调配运力"
	DefaultTimeliness     = "保证鲜花24小时内送达"
)

// WeatherImpact is the parsed weather analysis.
type WeatherImpact struct {
	Impact          string `json:"impact"`
	BehaviorChanges string `json:"behavior_changes"`
	DemandForecast  string `json:"demand_forecast"`
	Recommendations string `json:"recommendations"`
}

// SocialTrends is the parsed social media analysis.
type SocialTrends struct {
	MarketHeat      string `json:"market_heat"`
	DiscussionFocus string `json:"discussion_focus"`
	ReputationTrend string `json:"reputation_trend"`
	RelatedTopics   string `json:"related_topics"`
}

// Event is one holiday and its impact lines.
type Event struct {
	Event  string   `json:"event"`
	Impact []string `json:"impact"`
}

// Factors groups the three external factor analyses.
type Factors struct {
	WeatherImpact  WeatherImpact `json:"weather_impact"`
	SocialTrends   SocialTrends  `json:"social_trends"`
	SeasonalEvents []Event       `json:"seasonal_events"`
}

// Strategy summarizes inventory strategy results.
type Strategy struct {
	SuggestedLevel  string `json:"suggested_level"`
	ReorderTime     string `json:"reorder_time"`
	SafetyStock     string `json:"safety_stock"`
	Recommendations string `json:"recommendations"`
}

// Logistics summarizes logistics results.
type Logistics struct {
	Routes           string `json:"routes"`
	Resources        string `json:"resources"`
	Timeliness       string `json:"timeliness"`
	CostOptimization string `json:"cost_optimization"`
}

// Formatted is the output of Format.
type Formatted struct {
	Factors   Factors   `json:"factors"`
	Strategy  Strategy  `json:"strategy"`
	Logistics Logistics `json:"logistics"`
	// Analysis holds blocks that matched no bucket. It is not part of
	// the serialized payload.
	Analysis []string `json:"-"`
}

// Empty returns the payload used when the pipeline failed outright: every
// field empty and no events.
func Empty() Formatted {
	return Formatted{Factors: Factors{SeasonalEvents: []Event{}}}
}

// Format classifies every result block into one bucket and shapes each
// bucket into its record. Missing buckets produce defaults.
func Format(results []string) Formatted {
	b := classify(results)
	return Formatted{
		Factors: Factors{
			WeatherImpact:  weatherRecord(b[bucketWeather]),
			SocialTrends:   socialRecord(b[bucketSocial]),
			SeasonalEvents: parseEvents(b[bucketEvents]),
		},
		Strategy: Strategy{
			SuggestedLevel:  DefaultSuggestedLevel,
			ReorderTime:     DefaultReorderTime,
			SafetyStock:     DefaultSafetyStock,
			Recommendations: summarize(b[bucketStrategy]),
		},
		Logistics: Logistics{
			Routes:           DefaultRoutes,
			Resources:        DefaultResources,
			Timeliness:       DefaultTimeliness,
			CostOptimization: summarize(b[bucketLogistics]),
		},
		Analysis: b[bucketAnalysis],
	}
}

var weatherMarkers = []extract.Marker{
	{Keyword: "天气特点", Key: "impact"},
	{Keyword: "消费者行为", Key: "behavior_changes"},
	{Keyword: "需求预期", Key: "demand_forecast"},
	{Keyword: "应对策略", Key: "recommendations"},
}

var socialMarkers = []extract.Marker{
	{Keyword: "市场热度", Key: "market_heat"},
	{Keyword: "讨论焦点", Key: "discussion_focus"},
	{Keyword: "口碑", Key: "reputation_trend"},
	{Keyword: "话题", Key: "related_topics"},
}

func weatherRecord(blocks []string) WeatherImpact {
	if len(blocks) == 0 {
		return WeatherImpact{Impact: NoData}
	}
	f := fields(blocks, weatherMarkers)
	return WeatherImpact{
		Impact:          f[0],
		BehaviorChanges: f[1],
		DemandForecast:  f[2],
		Recommendations: f[3],
	}
}

func socialRecord(blocks []string) SocialTrends {
	if len(blocks) == 0 {
		return SocialTrends{MarketHeat: NoData}
	}
	f := fields(blocks, socialMarkers)
	return SocialTrends{
		MarketHeat:      f[0],
		DiscussionFocus: f[1],
		ReputationTrend: f[2],
		RelatedTopics:   f[3],
	}
}

// fields extracts one value per marker from the bucket text. When no
// marker matches, paragraphs fill the fields in order.
func fields(blocks []string, markers []extract.Marker) []string {
	text := stripHeaders(strings.Join(blocks, "\n\n"))
	m := extract.Extract(text, markers)

	out := make([]string, len(markers))
	matched := false
	for i, mk := range markers {
		out[i] = m[mk.Key]
		matched = matched || out[i] != ""
	}
	if matched {
		return out
	}
	for i, p := range extract.Paragraphs(text) {
		if i >= len(out) {
			break
		}
		out[i] = p
	}
	return out
}

// parseEvents reads "name：impact" lines. Lines without the separator
// continue the most recent event; before the first event they are dropped.
func parseEvents(blocks []string) []Event {
	events := []Event{}
	for _, line := range extract.Lines(stripHeaders(strings.Join(blocks, "\n"))) {
		name, impact, ok := strings.Cut(line, extract.DefaultSeparator)
		if ok {
			name = strings.TrimLeft(strings.TrimSpace(name), "0123456789.、)-*# ")
			if name == "" {
				name = strings.TrimSpace(line)
			}
			ev := Event{Event: name, Impact: []string{}}
			if impact = strings.TrimSpace(impact); impact != "" {
				ev.Impact = append(ev.Impact, impact)
			}
			events = append(events, ev)
			continue
		}
		if n := len(events); n > 0 {
			events[n-1].Impact = append(events[n-1].Impact, line)
		}
	}
	return events
}

func summarize(blocks []string) string {
	return truncate(stripHeaders(strings.Join(blocks, "\n")), SummaryLimit)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

var headers = []string{analysis.HeaderWeather, analysis.HeaderSocial, analysis.HeaderEvents}

// stripHeaders drops operation header lines.
func stripHeaders(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, l := range lines {
		t := strings.TrimSpace(l)
		if isHeader(t) {
			continue
		}
		out = append(out, l)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func isHeader(line string) bool {
	for _, h := range headers {
		if line == h {
			return true
		}
	}
	return false
}
