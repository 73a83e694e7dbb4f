package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kalambet/flowerdesk/internal/analysis"
	"github.com/kalambet/flowerdesk/internal/prompts"
	"github.com/kalambet/flowerdesk/internal/retrieval"
)

// Analyzer is the analysis facade the executor dispatches to.
type Analyzer interface {
	WeatherImpact(ctx context.Context, product, location, season string) analysis.Result
	SocialTrends(ctx context.Context, product string) analysis.Result
	SeasonalEvents(ctx context.Context, product, timeframe string) analysis.Result
}

// Generator runs the generic task prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// SimilarityIndex stores successful results and surfaces earlier tasks
// as context for later ones.
type SimilarityIndex interface {
	Add(ctx context.Context, id, text string, metadata map[string]string) error
	QueryNearest(ctx context.Context, text string, k int) ([]retrieval.Match, error)
	Len(ctx context.Context) int
}

// Config holds run parameters.
type Config struct {
	// Location is used when the objective names no "XX地区".
	Location string
	// Timeframe is the holiday look-ahead window, e.g. "3个月".
	Timeframe string
	// ContextK caps how many earlier tasks are retrieved as context.
	ContextK int
	// Now supplies the clock for season derivation.
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Location == "" {
		c.Location = "全国主要城市"
	}
	if c.Timeframe == "" {
		c.Timeframe = "3个月"
	}
	if c.ContextK <= 0 {
		c.ContextK = 5
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Executor runs the fixed pipeline. It is safe for concurrent use; each
// call to Run gets its own task list, result log and similarity index.
type Executor struct {
	tools    Analyzer
	gen      Generator
	prompts  *prompts.Catalog
	newIndex func() SimilarityIndex
	cfg      Config
	logger   *slog.Logger
	nextID   atomic.Int64
}

// New creates an Executor. newIndex is called once per run; it may be nil
// to run without a similarity index.
func New(tools Analyzer, gen Generator, catalog *prompts.Catalog, newIndex func() SimilarityIndex, cfg Config, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{
		tools:    tools,
		gen:      gen,
		prompts:  catalog,
		newIndex: newIndex,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
}

// Report is the outcome of one run.
type Report struct {
	Objective string           `json:"objective"`
	Product   string           `json:"product"`
	State     State            `json:"-"`
	Tasks     []Task           `json:"tasks"`
	Results   []AnalysisResult `json:"results"`
	// Degraded counts tasks whose every operation returned a placeholder.
	Degraded int `json:"degraded"`
	// Failed counts tasks excluded from Results.
	Failed int `json:"failed"`
}

// Texts returns the result log as plain strings.
func (r *Report) Texts() []string {
	out := make([]string, len(r.Results))
	for i, res := range r.Results {
		out[i] = res.Text
	}
	return out
}

// Execute runs the pipeline and returns the result log.
func (e *Executor) Execute(ctx context.Context, objective string) ([]string, error) {
	rep, err := e.Run(ctx, objective)
	if err != nil {
		return nil, err
	}
	return rep.Texts(), nil
}

// Run executes the fixed tasks serially. A failing task is logged and left
// out of the results; the remaining tasks still run. Only an objective
// without a product token fails the run.
func (e *Executor) Run(ctx context.Context, objective string) (*Report, error) {
	product := productName(objective)
	if product == "" {
		return nil, ErrEmptyObjective
	}

	rep := &Report{Objective: objective, Product: product, State: NotStarted}
	for _, name := range FixedTasks {
		rep.Tasks = append(rep.Tasks, Task{ID: e.nextID.Add(1), Name: name, Status: StatusPending})
	}

	var index SimilarityIndex
	if e.newIndex != nil {
		index = e.newIndex()
	}

	p := params{
		Objective: objective,
		Product:   product,
		Location:  e.cfg.Location,
		Season:    analysis.Season(e.cfg.Now()),
		Timeframe: e.cfg.Timeframe,
	}
	if loc := locationOf(objective); loc != "" {
		p.Location = loc
	}

	rep.State = Running
	e.logger.Info("pipeline started", "objective", objective, "product", product, "location", p.Location, "season", p.Season)

	for i := range rep.Tasks {
		task := &rep.Tasks[i]
		taskCtx := e.retrieveContext(ctx, index, objective)

		text, degraded := e.runTask(ctx, task.Name, p, taskCtx)
		task.Status = StatusDone

		if text == "" || strings.HasPrefix(text, ErrorPrefix) {
			rep.Failed++
			continue
		}
		if degraded {
			rep.Degraded++
		}
		rep.Results = append(rep.Results, AnalysisResult{TaskName: task.Name, Text: text})

		if index != nil {
			id := fmt.Sprintf("task-%d", task.ID)
			if err := index.Add(ctx, id, text, map[string]string{"task": task.Name}); err != nil {
				e.logger.Warn("indexing task result", "task", task.Name, "error", err)
			}
		}
	}

	rep.State = Completed
	e.logger.Info("pipeline completed", "objective", objective, "results", len(rep.Results), "degraded", rep.Degraded, "failed", rep.Failed)
	return rep, nil
}

// retrieveContext returns labels of earlier tasks similar to objective.
// Any failure means no context.
func (e *Executor) retrieveContext(ctx context.Context, index SimilarityIndex, objective string) []string {
	if index == nil || index.Len(ctx) == 0 {
		return nil
	}
	matches, err := index.QueryNearest(ctx, objective, e.cfg.ContextK)
	if err != nil {
		e.logger.Warn("retrieving task context", "error", err)
		return nil
	}
	labels := make([]string, 0, len(matches))
	for _, m := range matches {
		if label := m.Metadata["task"]; label != "" {
			labels = append(labels, label)
		}
	}
	return labels
}

// runTask executes one task and never panics. Failures come back as
// ErrorPrefix-ed text.
func (e *Executor) runTask(ctx context.Context, name string, p params, taskCtx []string) (text string, degraded bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("task panicked", "task", name, "panic", r)
			text, degraded = fmt.Sprintf("%s %s: %v", ErrorPrefix, name, r), false
		}
	}()

	matched := matchRules(name)
	if len(matched) == 0 {
		out, err := e.generic(ctx, name, p, taskCtx)
		if err != nil {
			e.logger.Error("task failed", "task", name, "error", err)
			return fmt.Sprintf("%s %s: %v", ErrorPrefix, name, err), false
		}
		return out, false
	}

	blocks := make([]string, 0, len(matched))
	degraded = true
	for _, r := range matched {
		res := r.run(ctx, e.tools, p)
		degraded = degraded && res.Degraded
		blocks = append(blocks, res.Text())
		e.logger.Debug("task operation done", "task", name, "rule", r.name, "degraded", res.Degraded)
	}
	return strings.Join(blocks, analysis.BlockDelimiter), degraded
}

func (e *Executor) generic(ctx context.Context, name string, p params, taskCtx []string) (string, error) {
	prompt, err := e.prompts.Render(prompts.GenericTask, struct {
		Objective string
		Task      string
		Context   []string
	}{p.Objective, name, taskCtx})
	if err != nil {
		return "", err
	}
	out, err := e.gen.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generic execution: %w", err)
	}
	return strings.TrimSpace(out), nil
}
