package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kalambet/flowerdesk/internal/extract"
	"github.com/kalambet/flowerdesk/internal/prompts"
)

// ErrNoProduct is returned by Plan when product is blank.
var ErrNoProduct = errors.New("product is required")

// StrategyPlan is a generated inventory strategy.
type StrategyPlan struct {
	InventoryLevel string `json:"inventory_level"`
	ReorderPoint   string `json:"reorder_point"`
	SafetyStock    string `json:"safety_stock"`
	LogisticsPlan  string `json:"logistics_plan"`
	Raw            string `json:"raw"`
}

// LogisticsPlan is an optimized logistics plan.
type LogisticsPlan struct {
	Routes           string `json:"routes"`
	Resources        string `json:"resources"`
	Timeliness       string `json:"timeliness"`
	CostOptimization string `json:"cost_optimization"`
	Raw              string `json:"raw"`
}

// Plan pairs a strategy with the logistics plan derived from it.
type Plan struct {
	Strategy  StrategyPlan  `json:"strategy"`
	Logistics LogisticsPlan `json:"logistics"`
}

var strategyMarkers = []extract.Marker{
	{Keyword: "库存水平", Key: "inventory_level"},
	{Keyword: "补货时间", Key: "reorder_point"},
	{Keyword: "安全库存", Key: "safety_stock"},
	{Keyword: "物流方案", Key: "logistics_plan"},
}

var logisticsMarkers = []extract.Marker{
	{Keyword: "配送路线", Key: "routes"},
	{Keyword: "运力资源", Key: "resources"},
	{Keyword: "时效性", Key: "timeliness"},
	{Keyword: "成本优化", Key: "cost_optimization"},
}

// Plan generates an inventory strategy for product from a prior analysis
// and then optimizes its logistics.
func (s *Service) Plan(ctx context.Context, product, analysis string) (Plan, error) {
	if strings.TrimSpace(product) == "" {
		return Plan{}, ErrNoProduct
	}

	strategy, err := s.generateStrategy(ctx, product, analysis)
	if err != nil {
		return Plan{}, err
	}
	logistics, err := s.optimizeLogistics(ctx, strategy.Raw)
	if err != nil {
		return Plan{Strategy: strategy}, err
	}
	return Plan{Strategy: strategy, Logistics: logistics}, nil
}

func (s *Service) generateStrategy(ctx context.Context, product, analysis string) (StrategyPlan, error) {
	raw, err := s.generate(ctx, prompts.InventoryStrategy, struct{ Product, Analysis string }{product, analysis})
	if err != nil {
		return StrategyPlan{}, fmt.Errorf("generating strategy: %w", err)
	}
	m := extract.Extract(raw, strategyMarkers)
	return StrategyPlan{
		InventoryLevel: m["inventory_level"],
		ReorderPoint:   m["reorder_point"],
		SafetyStock:    m["safety_stock"],
		LogisticsPlan:  m["logistics_plan"],
		Raw:            raw,
	}, nil
}

func (s *Service) optimizeLogistics(ctx context.Context, strategy string) (LogisticsPlan, error) {
	raw, err := s.generate(ctx, prompts.LogisticsPlan, struct{ Strategy string }{strategy})
	if err != nil {
		return LogisticsPlan{}, fmt.Errorf("optimizing logistics: %w", err)
	}
	m := extract.Extract(raw, logisticsMarkers)
	return LogisticsPlan{
		Routes:           m["routes"],
		Resources:        m["resources"],
		Timeliness:       m["timeliness"],
		CostOptimization: m["cost_optimization"],
		Raw:              raw,
	}, nil
}

func (s *Service) generate(ctx context.Context, name string, data any) (string, error) {
	prompt, err := s.prompts.Render(name, data)
	if err != nil {
		return "", err
	}
	out, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
