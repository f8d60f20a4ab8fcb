package survival_test

import (
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/okian/tenure/internal/domain/survival"
	. "github.com/smartystreets/goconvey/convey"
)

const tolerance = 1e-4

func TestEstimateCurve(t *testing.T) {
	Convey("Given the worked example with same-time censoring", t, func() {
		durations := []float64{1, 1, 2, 3, 3, 4}
		events := []bool{true, false, true, true, true, false}

		curve, err := survival.EstimateCurve(durations, events)
		So(err, ShouldBeNil)

		Convey("Then the curve has one point per event time plus the origin", func() {
			So(curve.Len(), ShouldEqual, 4)
			So(curve.Times(), ShouldResemble, []float64{0, 1, 2, 3})
		})

		Convey("Then survival follows the product-limit steps", func() {
			s := curve.Survival()
			So(s[0], ShouldEqual, 1.0)
			So(s[1], ShouldAlmostEqual, 0.8333, tolerance)
			So(s[2], ShouldAlmostEqual, 0.625, tolerance)
			So(s[3], ShouldAlmostEqual, 0.2083, tolerance)
		})

		Convey("Then subjects censored at an event time stay in that denominator", func() {
			p := curve.Points()
			So(p[1].AtRisk, ShouldEqual, 6)
			So(p[1].Events, ShouldEqual, 1)
			So(p[1].Censored, ShouldEqual, 1)
			So(p[2].AtRisk, ShouldEqual, 4)
			So(p[3].AtRisk, ShouldEqual, 3)
			So(p[3].Events, ShouldEqual, 2)
		})

		Convey("Then the input order does not matter", func() {
			shuffled, err := survival.EstimateCurve(
				[]float64{4, 3, 1, 3, 2, 1},
				[]bool{false, true, false, true, true, true},
			)
			So(err, ShouldBeNil)
			So(shuffled.Points(), ShouldResemble, curve.Points())
		})
	})

	Convey("Given an all-censored population", t, func() {
		curve, err := survival.EstimateCurve([]float64{3, 1, 2}, []bool{false, false, false})
		So(err, ShouldBeNil)

		Convey("Then the curve is the single origin point", func() {
			So(curve.Len(), ShouldEqual, 1)
			So(curve.Points()[0].Time, ShouldEqual, 0)
			So(curve.Points()[0].Survival, ShouldEqual, 1)
		})
	})

	Convey("Given a population exhausted by events", t, func() {
		curve, err := survival.EstimateCurve([]float64{2, 2, 5}, []bool{true, true, true})
		So(err, ShouldBeNil)

		Convey("Then survival reaches zero at the last event", func() {
			s := curve.Survival()
			So(s[len(s)-1], ShouldEqual, 0)
			So(s[1], ShouldAlmostEqual, 1.0/3.0, 1e-12)
		})
	})

	Convey("Given events at time zero", t, func() {
		curve, err := survival.EstimateCurve([]float64{0, 1, 1, 2}, []bool{true, false, true, false})
		So(err, ShouldBeNil)

		Convey("Then a second point at t=0 follows the origin", func() {
			p := curve.Points()
			So(p[0], ShouldResemble, survival.Point{Time: 0, Survival: 1, AtRisk: 4})
			So(p[1].Time, ShouldEqual, 0)
			So(p[1].Survival, ShouldAlmostEqual, 0.75, 1e-12)
		})
	})

	Convey("Given invalid inputs", t, func() {
		Convey("When lengths differ", func() {
			_, err := survival.EstimateCurve([]float64{1, 2}, []bool{true})
			So(errors.Is(err, survival.ErrLengthMismatch), ShouldBeTrue)
		})

		Convey("When the input is empty", func() {
			_, err := survival.EstimateCurve(nil, nil)
			So(errors.Is(err, survival.ErrEmptyInput), ShouldBeTrue)
		})

		Convey("When a duration is negative or not finite", func() {
			_, err := survival.EstimateCurve([]float64{1, -1}, []bool{true, true})
			So(errors.Is(err, survival.ErrInvalidDuration), ShouldBeTrue)

			_, err = survival.EstimateCurve([]float64{1, math.NaN()}, []bool{true, true})
			So(errors.Is(err, survival.ErrInvalidDuration), ShouldBeTrue)

			_, err = survival.EstimateCurve([]float64{math.Inf(1)}, []bool{true})
			So(errors.Is(err, survival.ErrInvalidDuration), ShouldBeTrue)
		})
	})
}

func TestEstimateCurveProperties(t *testing.T) {
	Convey("Given random censored populations", t, func() {
		rng := rand.New(rand.NewSource(7))

		for trial := 0; trial < 200; trial++ {
			n := 1 + rng.Intn(60)
			durations := make([]float64, n)
			events := make([]bool, n)
			distinctEvents := map[float64]bool{}
			for i := range durations {
				durations[i] = float64(rng.Intn(15))
				events[i] = rng.Intn(3) > 0
				if events[i] {
					distinctEvents[durations[i]] = true
				}
			}

			curve, err := survival.EstimateCurve(durations, events)
			So(err, ShouldBeNil)

			p := curve.Points()
			So(p[0].Time, ShouldEqual, 0)
			So(p[0].Survival, ShouldEqual, 1)
			So(len(p), ShouldBeLessThanOrEqualTo, len(distinctEvents)+1)
			for i := 1; i < len(p); i++ {
				So(p[i].Survival, ShouldBeLessThanOrEqualTo, p[i-1].Survival)
				So(p[i].Survival, ShouldBeGreaterThanOrEqualTo, 0)
				So(p[i].Time, ShouldBeGreaterThanOrEqualTo, p[i-1].Time)
			}
		}
	})
}

func TestCurve(t *testing.T) {
	Convey("Given an estimated curve", t, func() {
		curve, err := survival.EstimateCurve(
			[]float64{1, 1, 2, 3, 3, 4},
			[]bool{true, false, true, true, true, false},
		)
		So(err, ShouldBeNil)

		Convey("Then At evaluates the right-continuous step function", func() {
			So(curve.At(-1), ShouldEqual, 1)
			So(curve.At(0.5), ShouldEqual, 1)
			So(curve.At(1), ShouldAlmostEqual, 0.8333, tolerance)
			So(curve.At(2.9), ShouldAlmostEqual, 0.625, tolerance)
			So(curve.At(100), ShouldAlmostEqual, 0.2083, tolerance)
		})

		Convey("Then the median survival time is the first drop to one half", func() {
			m, ok := curve.Median()
			So(ok, ShouldBeTrue)
			So(m, ShouldEqual, 3)
		})

		Convey("Then Points returns a copy", func() {
			p := curve.Points()
			p[1].Survival = 42
			So(curve.Points()[1].Survival, ShouldAlmostEqual, 0.8333, tolerance)
		})

		Convey("Then it survives a JSON round trip", func() {
			raw, err := json.Marshal(curve)
			So(err, ShouldBeNil)

			var back survival.Curve
			So(json.Unmarshal(raw, &back), ShouldBeNil)
			So(back.Points(), ShouldResemble, curve.Points())
		})
	})

	Convey("Given a degenerate curve", t, func() {
		curve := survival.Degenerate(1)

		Convey("Then it has only the origin and no median", func() {
			So(curve.Len(), ShouldEqual, 1)
			_, ok := curve.Median()
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Given JSON that breaks the curve invariants", t, func() {
		var c survival.Curve
		So(json.Unmarshal([]byte(`[{"time":1,"survival":1}]`), &c), ShouldNotBeNil)
		So(json.Unmarshal([]byte(`[{"time":0,"survival":1},{"time":1,"survival":0.5},{"time":2,"survival":0.7}]`), &c), ShouldNotBeNil)
	})
}
