package service

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/tenure/internal/domain/design"
	"github.com/okian/tenure/internal/domain/fit"
	"github.com/okian/tenure/internal/domain/model"
	"github.com/okian/tenure/internal/domain/survival"
	"github.com/okian/tenure/pkg/logger"
	"github.com/okian/tenure/pkg/metrics"
)

// Analysis outcome labels.
const (
	statusDone   = "done"
	statusFailed = "failed"
)

// Pipeline runs one survival analysis end to end: design matrix, hazard
// coefficients, hazard ratios, risk scores, concordance and curves.
type Pipeline struct {
	fitter             fit.Fitter
	strataWorkers      int
	concordanceWorkers int
	logger             logger.Logger
	now                func() time.Time
}

// PipelineOption applies a configuration option to the Pipeline.
type PipelineOption func(*Pipeline)

// WithStrataWorkers bounds the goroutines estimating stratum curves.
func WithStrataWorkers(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.strataWorkers = n
		}
	}
}

// WithConcordanceCheck recomputes the concordance index pairwise with n
// workers and fails the run when both results differ. Zero disables it.
func WithConcordanceCheck(n int) PipelineOption {
	return func(p *Pipeline) {
		if n >= 0 {
			p.concordanceWorkers = n
		}
	}
}

// WithPipelineLogger sets a custom logger for the pipeline.
func WithPipelineLogger(l logger.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPipeline builds a pipeline whose default coefficients come from f.
// f may be nil when every run supplies its own fitter.
func NewPipeline(f fit.Fitter, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		fitter: f,
		logger: logger.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run analyses ds with the default fitter.
func (p *Pipeline) Run(ctx context.Context, ds model.Dataset) (Report, error) {
	return p.RunWith(ctx, ds, p.fitter)
}

// RunWith analyses ds with the coefficients supplied by f.
func (p *Pipeline) RunWith(ctx context.Context, ds model.Dataset, f fit.Fitter) (Report, error) {
	start := p.now()
	rep, err := p.run(ctx, ds, f)
	latency := float64(time.Since(start).Microseconds()) / 1000

	if err != nil {
		metrics.RecordAnalysis(statusFailed, latency, len(ds.Observations), 0)
		return Report{}, err
	}

	metrics.RecordAnalysis(statusDone, latency, rep.N, rep.Concordance.Comparable)
	if v, ok := rep.Concordance.Float(); ok {
		metrics.SetConcordance(v)
	}
	if rep.Strata != nil {
		metrics.AddStrataCurves(len(rep.Strata.Groups))
	}
	p.logger.Debug(ctx, "analysis complete",
		logger.Int("n", rep.N),
		logger.Int("events", rep.Events),
		logger.Int64("comparable_pairs", rep.Concordance.Comparable),
		logger.Float64("latency_ms", latency),
	)
	return rep, nil
}

func (p *Pipeline) run(ctx context.Context, ds model.Dataset, f fit.Fitter) (Report, error) {
	if len(ds.Observations) == 0 {
		return Report{}, ErrEmptyDataset
	}
	if f == nil {
		return Report{}, ErrNoFitter
	}

	m, tr, err := design.Build(ds.Observations, ds.Numeric, ds.Categorical)
	if err != nil {
		return Report{}, fmt.Errorf("design matrix: %w", err)
	}

	durations := model.Durations(ds.Observations)
	events := model.Events(ds.Observations)

	coefs, err := f.Fit(ctx, m, durations, events)
	if err != nil {
		return Report{}, fmt.Errorf("coefficients: %w", err)
	}

	risk, err := design.RiskScores(m, coefs)
	if err != nil {
		return Report{}, fmt.Errorf("risk scores: %w", err)
	}

	cindex, err := survival.Concordance(durations, events, risk)
	if err != nil {
		return Report{}, fmt.Errorf("concordance: %w", err)
	}
	if p.concordanceWorkers > 0 {
		ref, err := survival.PairwiseConcordance(ctx, durations, events, risk, p.concordanceWorkers)
		if err != nil {
			return Report{}, fmt.Errorf("pairwise concordance: %w", err)
		}
		if ref != cindex {
			return Report{}, fmt.Errorf("%w: sweep %+v, pairwise %+v", ErrConcordanceMismatch, cindex, ref)
		}
	}

	rep := Report{
		CreatedAt:    p.now().UTC(),
		N:            len(ds.Observations),
		Events:       model.EventCount(ds.Observations),
		Concordance:  cindex,
		HazardRatios: design.HazardRatios(coefs),
		Transform:    tr,
		Note:         ConcordanceNote,
	}

	if ds.Strata != "" {
		st, err := StratifiedCurves(ctx, ds.Observations, ds.Strata, p.strataWorkers)
		if err != nil {
			return Report{}, fmt.Errorf("stratified curves: %w", err)
		}
		rep.Overall = st.Overall
		rep.Strata = &st
	} else {
		rep.Overall, err = survival.EstimateCurve(durations, events)
		if err != nil {
			return Report{}, fmt.Errorf("survival curve: %w", err)
		}
	}

	if t, ok := rep.Overall.Median(); ok {
		rep.Median = &t
	}
	return rep, nil
}
