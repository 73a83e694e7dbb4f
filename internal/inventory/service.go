// Package inventory drives one inventory analysis end to end: it builds
// the objective, runs the pipeline, shapes the payload and stores a record
// of it.
package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/flowerdesk/internal/agent"
	"github.com/kalambet/flowerdesk/internal/prompts"
	"github.com/kalambet/flowerdesk/internal/report"
	"github.com/kalambet/flowerdesk/internal/storage"
)

// Payload statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// DefaultCity is used when a request names no city.
const DefaultCity = "全国"

// Runner runs the pipeline for one objective.
type Runner interface {
	Run(ctx context.Context, objective string) (*agent.Report, error)
}

// Generator produces text for the planner.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// RecordStore persists analysis records.
type RecordStore interface {
	Insert(ctx context.Context, r storage.InventoryRecord) (int64, error)
}

// Payload is the analysis response.
type Payload struct {
	Factors   report.Factors   `json:"factors"`
	Strategy  report.Strategy  `json:"strategy"`
	Logistics report.Logistics `json:"logistics"`
	Status    string           `json:"status"`
}

// ErrorPayload is the analysis answer when nothing could be analyzed:
// empty sections and status error.
func ErrorPayload() Payload {
	f := report.Empty()
	return Payload{Factors: f.Factors, Strategy: f.Strategy, Logistics: f.Logistics, Status: StatusError}
}

// Service is the top-level analysis driver.
type Service struct {
	runner  Runner
	gen     Generator
	prompts *prompts.Catalog
	store   RecordStore
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a Service. store may be nil to skip persistence.
func New(runner Runner, gen Generator, catalog *prompts.Catalog, store RecordStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		runner:  runner,
		gen:     gen,
		prompts: catalog,
		store:   store,
		logger:  logger,
		now:     time.Now,
	}
}

// Objective builds the pipeline objective for product in city.
func Objective(product, city string) string {
	city = strings.TrimSpace(city)
	if city == "" {
		city = DefaultCity
	}
	return fmt.Sprintf("%s %s地区库存策略", strings.TrimSpace(product), city)
}

// Analyze runs the pipeline for product in city. It never fails: pipeline
// errors and panics come back as an empty payload with StatusError.
func (s *Service) Analyze(ctx context.Context, product, city string) (p Payload) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("inventory analysis panicked", "product", product, "panic", r)
			p = ErrorPayload()
		}
	}()

	if strings.TrimSpace(product) == "" {
		s.logger.Warn("inventory analysis without product")
		return ErrorPayload()
	}

	objective := Objective(product, city)
	rep, err := s.runner.Run(ctx, objective)
	if err != nil {
		s.logger.Error("running pipeline", "objective", objective, "error", err)
		return ErrorPayload()
	}

	f := report.Format(rep.Texts())
	p = Payload{
		Factors:   f.Factors,
		Strategy:  f.Strategy,
		Logistics: f.Logistics,
		Status:    StatusSuccess,
	}
	if len(rep.Results) == 0 || rep.Degraded == len(rep.Results) {
		p.Status = StatusError
	}
	if len(f.Analysis) > 0 {
		s.logger.Debug("unclassified analysis blocks", "count", len(f.Analysis))
	}

	s.persist(ctx, rep.Product, p)
	return p
}

func (s *Service) persist(ctx context.Context, product string, p Payload) {
	if s.store == nil {
		return
	}
	rec := Record(product, p, s.now())
	id, err := s.store.Insert(ctx, rec)
	if err != nil {
		s.logger.Error("saving inventory record", "product", product, "error", err)
		return
	}
	s.logger.Info("inventory record saved", "id", id, "product", rec.Product)
}
