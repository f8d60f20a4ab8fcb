package service

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/okian/tenure/internal/domain/design"
	"github.com/okian/tenure/internal/domain/model"
	"github.com/okian/tenure/internal/domain/survival"
)

// StratumCurve is the survival curve of the observations sharing one value of
// the stratifying covariate. Value is "" for observations missing it.
type StratumCurve struct {
	Value  string         `json:"value"`
	N      int            `json:"n"`
	Events int            `json:"events"`
	Curve  survival.Curve `json:"curve"`
}

// Strata holds the curve of the whole population and one curve per stratum,
// sorted by value.
type Strata struct {
	By      string         `json:"by,omitempty"`
	Overall survival.Curve `json:"overall"`
	Groups  []StratumCurve `json:"groups"`
}

// ByValue indexes the stratum curves by value.
func (s Strata) ByValue() map[string]survival.Curve {
	out := make(map[string]survival.Curve, len(s.Groups))
	for _, g := range s.Groups {
		out[g.Value] = g.Curve
	}
	return out
}

// StratumValue returns the stratum key of o for the covariate name, and
// whether o carries the covariate at all.
func StratumValue(o model.Observation, name string) (string, bool) {
	if o.HasCategorical(name) {
		v, _ := o.CategoricalValue(name)
		return v, true
	}
	if o.HasNumeric(name) {
		v, ok := o.NumericValue(name)
		if !ok {
			return "", true
		}
		return strconv.FormatFloat(v, 'g', -1, 64), true
	}
	return "", false
}

// StratifiedCurves estimates the overall curve and one curve per value of the
// covariate by. Curves are computed concurrently by at most workers goroutines.
func StratifiedCurves(ctx context.Context, obs []model.Observation, by string, workers int) (Strata, error) {
	if by == "" {
		return Strata{}, fmt.Errorf("%w: empty stratum name", design.ErrUnknownFeature)
	}

	groups := make(map[string][]model.Observation)
	known := false
	for i := range obs {
		v, ok := StratumValue(obs[i], by)
		known = known || ok
		groups[v] = append(groups[v], obs[i])
	}
	if !known && len(obs) > 0 {
		return Strata{}, fmt.Errorf("%w: %s", design.ErrUnknownFeature, by)
	}

	values := make([]string, 0, len(groups))
	for v := range groups {
		values = append(values, v)
	}
	sort.Strings(values)

	if workers < 1 {
		workers = runtime.NumCPU()
	}

	out := Strata{By: by, Groups: make([]StratumCurve, len(values))}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	g.Go(func() error {
		c, err := curveOf(gctx, obs)
		if err != nil {
			return fmt.Errorf("overall curve: %w", err)
		}
		out.Overall = c
		return nil
	})
	for i, v := range values {
		i, part := i, groups[v]
		g.Go(func() error {
			c, err := curveOf(gctx, part)
			if err != nil {
				return fmt.Errorf("stratum %q: %w", values[i], err)
			}
			out.Groups[i] = StratumCurve{
				Value:  values[i],
				N:      len(part),
				Events: model.EventCount(part),
				Curve:  c,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Strata{}, err
	}
	return out, nil
}

// curveOf estimates the curve of obs. An empty population has the
// one-point curve (0, 1).
func curveOf(ctx context.Context, obs []model.Observation) (survival.Curve, error) {
	if err := ctx.Err(); err != nil {
		return survival.Curve{}, err
	}
	if len(obs) == 0 {
		return survival.Degenerate(0), nil
	}
	return survival.EstimateCurve(model.Durations(obs), model.Events(obs))
}
