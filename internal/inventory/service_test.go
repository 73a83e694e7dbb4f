package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/kalambet/flowerdesk/internal/agent"
	"github.com/kalambet/flowerdesk/internal/analysis"
	"github.com/kalambet/flowerdesk/internal/prompts"
	"github.com/kalambet/flowerdesk/internal/report"
	"github.com/kalambet/flowerdesk/internal/storage"
)

// scriptedGen answers by prompt topic.
type scriptedGen struct {
	fn func(prompt string) (string, error)
}

func (g *scriptedGen) Generate(_ context.Context, prompt string) (string, error) {
	return g.fn(prompt)
}

func roseBackend(prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "天气对产品需求"):
		return "1. 天气特点对需求的影响：北京春季回暖\n2. 消费者行为变化：踏青送花增多\n3. 需求预期变化：需求上升\n4. 建议的应对策略：提前备货", nil
	case strings.Contains(prompt, "社交媒体上的潜在趋势"):
		return "1. 当前市场热度：持续走高\n2. 消费者讨论焦点：花束包装\n3. 口碑评价趋势：正面\n4. 相关话题热度：#春日花束", nil
	case strings.Contains(prompt, "节假日对该产品的影响"):
		return "情人节：玫瑰需求翻倍\n需提前锁定花源\n母亲节：带动混搭花束", nil
	default:
		return "库存策略：" + strings.Repeat("保持适量安全库存并分批补货。", 30), nil
	}
}

func newService(t *testing.T, fn func(string) (string, error)) (*Service, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	catalog := prompts.MustLoad()
	gen := &scriptedGen{fn: fn}
	tools := analysis.New(gen, catalog, nil)
	exec := agent.New(tools, gen, catalog, nil, agent.Config{
		Now: func() time.Time { return time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC) },
	}, nil)
	return New(exec, gen, catalog, store, nil), store
}

func TestObjective(t *testing.T) {
	if got := Objective("玫瑰", "北京"); got != "玫瑰 北京地区库存策略" {
		t.Errorf("Objective = %q", got)
	}
	if got := Objective("兰花", " "); got != "兰花 全国地区库存策略" {
		t.Errorf("Objective default city = %q", got)
	}
}

func TestAnalyzeRose(t *testing.T) {
	svc, store := newService(t, roseBackend)

	p := svc.Analyze(context.Background(), "玫瑰", "北京")
	if p.Status != StatusSuccess {
		t.Fatalf("status = %q, want %q", p.Status, StatusSuccess)
	}
	if p.Factors.WeatherImpact.Impact != "北京春季回暖" {
		t.Errorf("weather impact = %q", p.Factors.WeatherImpact.Impact)
	}
	if p.Factors.SocialTrends.MarketHeat != "持续走高" {
		t.Errorf("market_heat = %q", p.Factors.SocialTrends.MarketHeat)
	}
	if len(p.Factors.SeasonalEvents) != 2 || p.Factors.SeasonalEvents[0].Event != "情人节" {
		t.Errorf("events = %+v", p.Factors.SeasonalEvents)
	}
	if n := utf8.RuneCountInString(p.Strategy.Recommendations); n == 0 || n > report.SummaryLimit {
		t.Errorf("strategy recommendations has %d runes", n)
	}

	recs, err := store.Recent(context.Background(), 5)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(recs))
	}
	if recs[0].Product != "玫瑰" {
		t.Errorf("record product = %q, want %q", recs[0].Product, "玫瑰")
	}
	var f report.Factors
	if err := json.Unmarshal([]byte(recs[0].Factors), &f); err != nil {
		t.Errorf("stored factors are not valid JSON: %v", err)
	}
}

func TestAnalyzeBackendDown(t *testing.T) {
	svc, _ := newService(t, func(string) (string, error) {
		return "", errors.New("connection refused")
	})

	p := svc.Analyze(context.Background(), "兰花", "")
	if p.Status != StatusError {
		t.Errorf("status = %q, want %q", p.Status, StatusError)
	}
	if p.Factors.WeatherImpact.Impact != analysis.PlaceholderWeather {
		t.Errorf("impact = %q, want %q", p.Factors.WeatherImpact.Impact, analysis.PlaceholderWeather)
	}
	if p.Factors.SocialTrends.MarketHeat != analysis.PlaceholderSocial {
		t.Errorf("market_heat = %q, want %q", p.Factors.SocialTrends.MarketHeat, analysis.PlaceholderSocial)
	}
}

type panicRunner struct{}

func (panicRunner) Run(context.Context, string) (*agent.Report, error) {
	panic("boom")
}

type errRunner struct{ err error }

func (r errRunner) Run(context.Context, string) (*agent.Report, error) {
	return nil, r.err
}

func TestAnalyzeNeverFails(t *testing.T) {
	tests := []struct {
		name    string
		runner  Runner
		product string
	}{
		{"panic", panicRunner{}, "玫瑰"},
		{"runner error", errRunner{agent.ErrEmptyObjective}, "玫瑰"},
		{"blank product", errRunner{nil}, "  "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := New(tt.runner, nil, prompts.MustLoad(), nil, nil)
			p := svc.Analyze(context.Background(), tt.product, "北京")
			if p.Status != StatusError {
				t.Errorf("status = %q, want %q", p.Status, StatusError)
			}
			if p.Factors.WeatherImpact.Impact != "" || p.Factors.SeasonalEvents == nil {
				t.Errorf("factors = %+v, want empty", p.Factors)
			}
		})
	}
}

type failingStore struct{ calls int }

func (s *failingStore) Insert(context.Context, storage.InventoryRecord) (int64, error) {
	s.calls++
	return 0, storage.ErrConstraint
}

func TestAnalyzePersistFailureIsLogged(t *testing.T) {
	svc, _ := newService(t, roseBackend)
	fs := &failingStore{}
	svc.store = fs

	p := svc.Analyze(context.Background(), "玫瑰", "北京")
	if p.Status != StatusSuccess {
		t.Errorf("status = %q, want %q", p.Status, StatusSuccess)
	}
	if fs.calls != 1 {
		t.Errorf("Insert calls = %d, want 1", fs.calls)
	}
}

func TestRecordFitsCaps(t *testing.T) {
	long := strings.Repeat("很长的分析内容", 200)
	p := Payload{
		Factors: report.Factors{
			WeatherImpact: report.WeatherImpact{Impact: long, BehaviorChanges: long},
			SocialTrends:  report.SocialTrends{MarketHeat: long},
			SeasonalEvents: []report.Event{
				{Event: "春节", Impact: []string{long, long}},
				{Event: "元宵节", Impact: []string{long}},
			},
		},
		Strategy:  report.Strategy{SuggestedLevel: long, Recommendations: long},
		Logistics: report.Logistics{Routes: long, CostOptimization: long},
	}
	rec := Record("玫瑰", p, time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC))

	for name, v := range map[string]struct {
		s   string
		max int
	}{
		"factors":   {rec.Factors, storage.MaxFactorsLen},
		"strategy":  {rec.Strategy, storage.MaxStrategyLen},
		"logistics": {rec.Logistics, storage.MaxLogisticsLen},
	} {
		if n := utf8.RuneCountInString(v.s); n > v.max {
			t.Errorf("%s has %d runes, cap %d", name, n, v.max)
		}
		if !json.Valid([]byte(v.s)) {
			t.Errorf("%s is not valid JSON: %s", name, v.s)
		}
	}

	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()
	if _, err := store.Insert(context.Background(), rec); err != nil {
		t.Errorf("Insert fitted record: %v", err)
	}
}

func TestPlan(t *testing.T) {
	var seen []string
	svc, _ := newService(t, func(prompt string) (string, error) {
		seen = append(seen, prompt)
		if strings.Contains(prompt, "制定详细的库存策略") {
			return "1. 建议库存水平：800束\n2. 补货时间点：每周一\n3. 安全库存量：200束\n4. 物流方案：冷链直送", nil
		}
		return "1. 配送路线规划：城区环线\n2. 运力资源调配：高峰加派\n3. 时效性保障：当日达\n4. 成本优化措施：拼单配送", nil
	})

	plan, err := svc.Plan(context.Background(), "玫瑰", "需求上升")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	want := StrategyPlan{InventoryLevel: "800束", ReorderPoint: "每周一", SafetyStock: "200束", LogisticsPlan: "冷链直送"}
	got := plan.Strategy
	got.Raw = ""
	if got != want {
		t.Errorf("strategy = %+v, want %+v", got, want)
	}
	if plan.Logistics.Routes != "城区环线" || plan.Logistics.CostOptimization != "拼单配送" {
		t.Errorf("logistics = %+v", plan.Logistics)
	}
	if len(seen) != 2 || !strings.Contains(seen[1], "800束") {
		t.Errorf("logistics prompt should carry the strategy, prompts = %q", seen)
	}
}

func TestPlanLogisticsMarker(t *testing.T) {
	svc, _ := newService(t, func(prompt string) (string, error) {
		if strings.Contains(prompt, "制定详细的库存策略") {
			return "物流：节前运力紧张\n建议库存水平：600束\n安全库存量：100束", nil
		}
		return "配送路线规划：郊区专线", nil
	})

	plan, err := svc.Plan(context.Background(), "百合", "")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.Strategy.LogisticsPlan != "" {
		t.Errorf("LogisticsPlan = %q, want empty without a 物流方案 line", plan.Strategy.LogisticsPlan)
	}
	if plan.Strategy.InventoryLevel != "600束" || plan.Strategy.SafetyStock != "100束" {
		t.Errorf("strategy = %+v", plan.Strategy)
	}
}

func TestPlanErrors(t *testing.T) {
	svc, _ := newService(t, func(string) (string, error) { return "", errors.New("quota exceeded") })

	if _, err := svc.Plan(context.Background(), "", "x"); !errors.Is(err, ErrNoProduct) {
		t.Errorf("Plan blank product error = %v, want ErrNoProduct", err)
	}
	if _, err := svc.Plan(context.Background(), "玫瑰", "x"); err == nil {
		t.Error("Plan with failing backend should return an error")
	}
}
