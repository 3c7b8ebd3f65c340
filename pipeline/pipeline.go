// Package pipeline runs the stages of pledge on a feature model: load, classify, generate and prioritize.
//
// A Pipeline owns the state of one feature model. Its stages run one at a time:
// every exported method holds the pipeline lock for its whole duration.
// Products handed out by a stage are never modified by the pipeline afterwards.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crillab/pledge/classify"
	"github.com/crillab/pledge/config"
	"github.com/crillab/pledge/distance"
	"github.com/crillab/pledge/fm"
	"github.com/crillab/pledge/generate"
	"github.com/crillab/pledge/metrics"
	"github.com/crillab/pledge/oracle"
	"github.com/crillab/pledge/prioritize"
	"github.com/crillab/pledge/product"
	"github.com/crillab/pledge/progress"
	"github.com/crillab/pledge/store"
)

// ErrNoModel is returned when a stage needs a feature model and none was loaded.
var ErrNoModel = errors.New("no feature model loaded")

// An Option customizes a Pipeline.
type Option func(*Pipeline)

// WithMetrics makes the pipeline record its activity in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithStore makes the pipeline cache classifications and archive runs in s.
func WithStore(s *store.Store) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithProgress makes the pipeline report the progress of its stages to s.
func WithProgress(s *progress.Stream) Option {
	return func(p *Pipeline) { p.progress = s }
}

// A Pipeline holds a feature model and the results derived from it.
type Pipeline struct {
	mu             sync.Mutex
	cfg            *config.Config
	logger         *zap.Logger
	metrics        *metrics.Metrics
	store          *store.Store
	progress       *progress.Stream
	rng            *rand.Rand
	model          *fm.Model
	oracle         oracle.Oracle
	classification *classify.Classification
}

// New returns a pipeline configured by cfg.
// If logger is nil, nothing is logged.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	p := &Pipeline{cfg: cfg, logger: logger, rng: rand.New(rand.NewSource(seed))}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) report() progress.Func {
	if p.progress == nil {
		return nil
	}
	return p.progress.Func()
}

func (p *Pipeline) observe(stage progress.Stage, start time.Time) {
	d := time.Since(start)
	p.metrics.ObserveStage(string(stage), d)
	p.logger.Debug("Stage done", zap.String("stage", string(stage)), zap.Duration("duration", d))
}

// Load loads the feature model at path and builds its oracle.
// Any previous model and classification are dropped.
func (p *Pipeline) Load(path string, format fm.Format) (*fm.Model, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer p.observe(progress.Load, time.Now())
	p.report().Report(progress.Load, 0)
	m, err := fm.Load(path, format)
	if err != nil {
		return nil, err
	}
	if err := p.setModel(m); err != nil {
		return nil, err
	}
	p.report().Report(progress.Load, 100)
	p.logger.Info("Feature model loaded",
		zap.String("path", path),
		zap.String("format", m.Format.String()),
		zap.Int("features", m.NbFeatures()),
		zap.Int("clauses", len(m.Clauses)))
	return m, nil
}

// SetModel replaces the model of the pipeline.
func (p *Pipeline) SetModel(m *fm.Model) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.setModel(m)
}

func (p *Pipeline) setModel(m *fm.Model) error {
	o, err := oracle.New(m, oracle.Options{
		Backend:        p.cfg.Backend,
		EnumerationCap: p.cfg.Oracle.EnumerationCap,
		Seed:           p.rng.Int63() | 1,
		Metrics:        p.metrics,
	})
	if err != nil {
		return fmt.Errorf("could not build oracle: %w", err)
	}
	p.model, p.oracle, p.classification = m, o, nil
	return nil
}

// tracked keeps the pipeline on the latest build of its oracle,
// so that a stage starts on the oracle the previous stage rebuilt.
type tracked struct {
	oracle.Oracle
	p *Pipeline
}

func (t *tracked) Rebuild() (oracle.Oracle, error) {
	o, err := t.Oracle.Rebuild()
	if err != nil {
		return nil, err
	}
	t.p.oracle = o
	t.p.logger.Debug("Oracle rebuilt")
	return &tracked{Oracle: o, p: t.p}, nil
}

func (p *Pipeline) current() oracle.Oracle {
	return &tracked{Oracle: p.oracle, p: p}
}

// Model returns the current feature model, or nil.
func (p *Pipeline) Model() *fm.Model {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.model
}

// Classify returns the classification of the features of the current model.
// It is computed once per model, and cached in the store if there is one.
func (p *Pipeline) Classify(ctx context.Context) (*classify.Classification, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.classify(ctx)
}

func (p *Pipeline) classify(ctx context.Context) (*classify.Classification, error) {
	if p.model == nil {
		return nil, ErrNoModel
	}
	if p.classification != nil {
		return p.classification, nil
	}
	digest := p.model.Digest()
	if p.store != nil {
		c, ok, err := p.store.Classification(digest)
		if err != nil {
			p.logger.Warn("Could not read cached classification", zap.Error(err))
		} else if ok && c.NbFeatures() == p.model.NbFeatures() {
			p.logger.Debug("Classification found in cache", zap.String("digest", digest))
			p.classification = c
			p.report().Report(progress.Classify, 100)
			return c, nil
		}
	}
	defer p.observe(progress.Classify, time.Now())
	c, err := classify.Classify(ctx, p.current(), p.report())
	if err != nil {
		return nil, fmt.Errorf("could not classify features: %w", err)
	}
	p.classification = c
	p.logger.Info("Features classified",
		zap.Int("core", len(c.Core())),
		zap.Int("dead", len(c.Dead())),
		zap.Int("free", len(c.Free())))
	if p.store != nil {
		if err := p.store.SaveClassification(digest, c); err != nil {
			p.logger.Warn("Could not cache classification", zap.Error(err))
		}
	}
	return c, nil
}

// Explain returns a minimal set of constraints, described with feature names,
// explaining why the named feature is core or dead.
func (p *Pipeline) Explain(ctx context.Context, feature string) (classify.Kind, []string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, err := p.classify(ctx)
	if err != nil {
		return classify.Free, nil, err
	}
	f, ok := p.model.Index(feature)
	if !ok {
		return classify.Free, nil, fmt.Errorf("unknown feature %q", feature)
	}
	kind := c.Kind(f)
	switch kind {
	case classify.Core:
		f = -f
	case classify.Dead:
	default:
		return kind, nil, nil
	}
	clauses, err := classify.Explain(p.model, f)
	if err != nil {
		return kind, nil, err
	}
	return kind, classify.Describe(p.model, clauses), nil
}

// Generate samples products from the current model, with the configured strategy.
func (p *Pipeline) Generate(ctx context.Context) (*generate.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generate(ctx)
}

func (p *Pipeline) generate(ctx context.Context) (*generate.Result, error) {
	gcfg := p.cfg.Generation
	strategy, err := generate.Lookup(gcfg.Strategy)
	if err != nil {
		return nil, err
	}
	metric, err := distance.Lookup(p.cfg.Metric)
	if err != nil {
		return nil, err
	}
	c, err := p.classify(ctx)
	if errors.Is(err, classify.ErrUnsatisfiable) {
		p.logger.Warn("Feature model is unsatisfiable, no product generated", zap.String("strategy", strategy.Name()))
		return &generate.Result{Status: generate.StatusUnsatisfiable}, nil
	}
	if err != nil {
		return nil, err
	}
	defer p.observe(progress.Generate, time.Now())
	res, err := strategy.Generate(ctx, p.current(), c, generate.Options{
		Count:    gcfg.Count,
		Budget:   gcfg.Budget,
		Metric:   metric,
		MaxStall: gcfg.MaxStall,
		MaxFlips: gcfg.MaxFlips,
		Rand:     rand.New(rand.NewSource(p.rng.Int63())),
		Report:   p.report(),
		Metrics:  p.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("could not generate products: %w", err)
	}
	fields := []zap.Field{
		zap.String("strategy", strategy.Name()),
		zap.Int("products", len(res.Products)),
		zap.Int("requested", gcfg.Count),
		zap.Stringer("status", res.Status),
		zap.Int("rebuilds", res.Rebuilds),
	}
	if res.Generations > 0 {
		fields = append(fields, zap.Int("generations", res.Generations))
	}
	if len(res.Products) < gcfg.Count {
		p.logger.Warn("Fewer products than requested", fields...)
	} else {
		p.logger.Info("Products generated", fields...)
	}
	return res, nil
}

// Prioritize orders products with the configured strategy.
// It does not need a model.
func (p *Pipeline) Prioritize(ctx context.Context, products []*product.Product) (*prioritize.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prioritize(ctx, products)
}

func (p *Pipeline) prioritize(ctx context.Context, products []*product.Product) (*prioritize.Result, error) {
	pcfg := p.cfg.Prioritization
	strategy, err := prioritize.Lookup(pcfg.Strategy)
	if err != nil {
		return nil, err
	}
	metric, err := distance.Lookup(p.cfg.Metric)
	if err != nil {
		return nil, err
	}
	if pcfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, pcfg.Timeout)
		defer cancel()
	}
	defer p.observe(progress.Prioritize, time.Now())
	p.report().Report(progress.Prioritize, 0)
	res, err := strategy.Prioritize(ctx, products, metric)
	if err != nil {
		return nil, fmt.Errorf("could not prioritize products: %w", err)
	}
	p.report().Report(progress.Prioritize, 100)
	if res.Skipped > 0 {
		p.metrics.Skip(res.Skipped)
		p.logger.Warn("Undefined distances counted as 0",
			zap.Int("pairs", res.Skipped),
			zap.String("metric", metric.Name))
	}
	if res.Status != prioritize.StatusComplete {
		p.logger.Warn("Prioritization interrupted, returning best order so far", zap.Stringer("status", res.Status))
	}
	p.logger.Info("Products prioritized",
		zap.String("strategy", strategy.Name()),
		zap.Int("products", len(res.Products)),
		zap.Float64("fitness", res.FitnessSum))
	return res, nil
}

// Run loads the model at path, then classifies, generates and prioritizes.
// If prioritization is disabled in the configuration, products are returned in generation order.
// The run is archived if the pipeline has a store.
func (p *Pipeline) Run(ctx context.Context, path string, format fm.Format) (*store.Run, error) {
	start := time.Now()
	if _, err := p.Load(path, format); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	gen, err := p.generate(ctx)
	if err != nil {
		return nil, err
	}
	run := &store.Run{
		Model:            path,
		Digest:           p.model.Digest(),
		Backend:          p.cfg.Backend,
		Generator:        p.cfg.Generation.Strategy,
		Metric:           p.cfg.Metric,
		GenerationStatus: gen.Status.String(),
		Rebuilds:         gen.Rebuilds,
		FitnessSum:       gen.Fitness,
		Features:         p.model.Features,
	}
	products := gen.Products
	if p.cfg.Prioritization.Strategy != "" {
		prio, err := p.prioritize(ctx, products)
		if err != nil {
			return nil, err
		}
		products = prio.Products
		run.Prioritizer = p.cfg.Prioritization.Strategy
		run.PrioritizationStatus = prio.Status.String()
		run.FitnessSum = prio.FitnessSum
	}
	run.SetProducts(products)
	run.Duration = time.Since(start)
	if p.store != nil {
		id, err := p.store.SaveRun(run)
		if err != nil {
			return nil, err
		}
		p.logger.Info("Run archived", zap.String("id", id))
	}
	return run, nil
}
