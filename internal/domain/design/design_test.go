package design_test

import (
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/okian/tenure/internal/domain/design"
	"github.com/okian/tenure/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func customers() []model.Observation {
	return []model.Observation{
		{ID: "c1", Duration: 3, Event: true,
			Numeric:     map[string]float64{"monthly_charges": 70, "support_tickets": 2},
			Categorical: map[string]string{"contract": "monthly", "partner": "yes"}},
		{ID: "c2", Duration: 12, Event: false,
			Numeric:     map[string]float64{"monthly_charges": 50, "support_tickets": math.NaN()},
			Categorical: map[string]string{"contract": "annual", "partner": "no"}},
		{ID: "c3", Duration: 7, Event: true,
			Numeric:     map[string]float64{"monthly_charges": math.NaN(), "support_tickets": 4},
			Categorical: map[string]string{"contract": "monthly", "partner": ""}},
		{ID: "c4", Duration: 24, Event: false,
			Numeric:     map[string]float64{"monthly_charges": 40, "support_tickets": 0},
			Categorical: map[string]string{"contract": "", "partner": "no"}},
	}
}

var (
	numeric     = []string{"monthly_charges", "support_tickets"}
	categorical = []string{"contract", "partner"}
)

func TestBuild(t *testing.T) {
	Convey("Given customers with missing covariates", t, func() {
		obs := customers()

		m, tr, err := design.Build(obs, numeric, categorical)
		So(err, ShouldBeNil)

		Convey("Then numeric columns come first and indicators are sorted per feature", func() {
			So(m.Columns(), ShouldResemble, []string{
				"monthly_charges", "support_tickets",
				"contract_annual", "contract_monthly",
				"partner_no", "partner_yes",
			})
			So(tr.Width(), ShouldEqual, 6)
			So(m.Rows(), ShouldEqual, 4)
			So(m.Cols(), ShouldEqual, 6)
		})

		Convey("Then missing numeric values take the median", func() {
			// monthly_charges observed: 40, 50, 70 -> 50; support_tickets: 0, 2, 4 -> 2.
			So(m.At(2, 0), ShouldEqual, 50.0)
			So(m.At(1, 1), ShouldEqual, 2.0)
		})

		Convey("Then missing categories take the mode", func() {
			// contract mode is "monthly"; partner mode is "no".
			So(m.Row(3)[2:4], ShouldResemble, []float64{0, 1})
			So(m.Row(2)[4:6], ShouldResemble, []float64{1, 0})
		})

		Convey("Then every row has exactly one indicator per categorical feature", func() {
			for i := 0; i < m.Rows(); i++ {
				row := m.Row(i)
				So(row[2]+row[3], ShouldEqual, 1.0)
				So(row[4]+row[5], ShouldEqual, 1.0)
			}
		})

		Convey("Then Column extracts a named column", func() {
			col, ok := m.Column("contract_annual")
			So(ok, ShouldBeTrue)
			So(col, ShouldResemble, []float64{0, 1, 0, 0})

			_, ok = m.Column("nope")
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Given an even number of numeric values", t, func() {
		obs := []model.Observation{
			{Numeric: map[string]float64{"x": 1}},
			{Numeric: map[string]float64{"x": 4}},
			{Numeric: map[string]float64{"x": math.NaN()}},
		}
		m, _, err := design.Build(obs, []string{"x"}, nil)
		So(err, ShouldBeNil)

		Convey("Then the median averages the two middle values", func() {
			So(m.At(2, 0), ShouldEqual, 2.5)
		})
	})

	Convey("Given a tie between two most frequent categories", t, func() {
		obs := []model.Observation{
			{Categorical: map[string]string{"plan": "gold"}},
			{Categorical: map[string]string{"plan": "basic"}},
			{Categorical: map[string]string{"plan": ""}},
		}
		tr, err := design.Fit(obs, nil, []string{"plan"})
		So(err, ShouldBeNil)

		Convey("Then the smallest category wins", func() {
			So(tr.Categorical()[0].Mode, ShouldEqual, "basic")
		})
	})
}

func TestBuildDeterminism(t *testing.T) {
	Convey("Given the same customers in a different row order", t, func() {
		obs := customers()
		rng := rand.New(rand.NewSource(7))

		base, _, err := design.Build(obs, numeric, categorical)
		So(err, ShouldBeNil)

		for trial := 0; trial < 20; trial++ {
			perm := rng.Perm(len(obs))
			shuffled := make([]model.Observation, len(obs))
			for i, p := range perm {
				shuffled[i] = obs[p]
			}

			m, _, err := design.Build(shuffled, numeric, categorical)
			So(err, ShouldBeNil)
			So(m.Columns(), ShouldResemble, base.Columns())

			for i, p := range perm {
				So(m.Row(i), ShouldResemble, base.Row(p))
			}
		}
	})
}

func TestApply(t *testing.T) {
	Convey("Given a transform fitted on customers", t, func() {
		tr, err := design.Fit(customers(), numeric, categorical)
		So(err, ShouldBeNil)

		Convey("When applied to a customer with an unseen category", func() {
			m, err := tr.Apply([]model.Observation{{
				Numeric:     map[string]float64{"monthly_charges": 99, "support_tickets": 1},
				Categorical: map[string]string{"contract": "biennial", "partner": "yes"},
			}})
			So(err, ShouldBeNil)

			Convey("Then its indicator block is all zero", func() {
				So(m.Row(0), ShouldResemble, []float64{99, 1, 0, 0, 0, 1})
			})
		})

		Convey("When applied to a customer without any covariates", func() {
			m, err := tr.Apply([]model.Observation{{}})
			So(err, ShouldBeNil)

			Convey("Then every value is imputed", func() {
				So(m.Row(0), ShouldResemble, []float64{50, 2, 0, 1, 1, 0})
			})
		})

		Convey("When applied to an infinite value", func() {
			_, err := tr.Apply([]model.Observation{{Numeric: map[string]float64{"monthly_charges": math.Inf(1)}}})
			So(errors.Is(err, design.ErrInvalidValue), ShouldBeTrue)
		})

		Convey("When round-tripped through JSON", func() {
			raw, err := json.Marshal(tr)
			So(err, ShouldBeNil)

			var back design.Transform
			So(json.Unmarshal(raw, &back), ShouldBeNil)

			Convey("Then it yields the same columns and imputations", func() {
				So(back.Columns(), ShouldResemble, tr.Columns())
				a, _ := tr.Apply(customers())
				b, _ := back.Apply(customers())
				So(b, ShouldResemble, a)
			})
		})
	})
}

func TestFitErrors(t *testing.T) {
	Convey("Given customers", t, func() {
		obs := customers()

		Convey("When a covariate is absent from every customer", func() {
			_, err := design.Fit(obs, []string{"age"}, nil)
			So(errors.Is(err, design.ErrUnknownFeature), ShouldBeTrue)

			_, err = design.Fit(obs, nil, []string{"region"})
			So(errors.Is(err, design.ErrUnknownFeature), ShouldBeTrue)
		})

		Convey("When a covariate is requested twice", func() {
			_, err := design.Fit(obs, []string{"monthly_charges"}, []string{"monthly_charges"})
			So(errors.Is(err, design.ErrDuplicateFeature), ShouldBeTrue)
		})

		Convey("When a covariate is missing everywhere", func() {
			blank := []model.Observation{
				{Numeric: map[string]float64{"x": math.NaN()}, Categorical: map[string]string{"y": ""}},
			}
			_, err := design.Fit(blank, []string{"x"}, nil)
			So(errors.Is(err, design.ErrEmptyColumn), ShouldBeTrue)

			_, err = design.Fit(blank, nil, []string{"y"})
			So(errors.Is(err, design.ErrEmptyColumn), ShouldBeTrue)
		})
	})

	Convey("Given a transform document with unsorted categories", t, func() {
		var tr design.Transform
		err := json.Unmarshal([]byte(`{"numeric":[],"categorical":[{"name":"c","mode":"b","categories":["b","a"]}]}`), &tr)
		So(err, ShouldNotBeNil)
	})
}

func TestColumnCollision(t *testing.T) {
	Convey("Given a numeric covariate named like an indicator column", t, func() {
		obs := []model.Observation{
			{Numeric: map[string]float64{"plan_a": 1}, Categorical: map[string]string{"plan": "a"}},
			{Numeric: map[string]float64{"plan_a": 2}, Categorical: map[string]string{"plan": "b"}},
		}

		Convey("When the design is built", func() {
			_, _, err := design.Build(obs, []string{"plan_a"}, []string{"plan"})

			Convey("Then the colliding column is rejected", func() {
				So(errors.Is(err, design.ErrDuplicateFeature), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, `"plan_a"`)
			})
		})

		Convey("When the categories do not collide", func() {
			_, tr, err := design.Build(obs, []string{"plan_a"}, []string{"tier"})

			Convey("Then only unknown features are reported", func() {
				So(errors.Is(err, design.ErrUnknownFeature), ShouldBeTrue)
				So(tr.Width(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given an encoded transform whose columns collide", t, func() {
		data := `{"numeric":[{"name":"plan_a","median":1}],"categorical":[{"name":"plan","mode":"a","categories":["a","b"]}]}`

		Convey("Then it cannot be restored", func() {
			var tr design.Transform
			err := json.Unmarshal([]byte(data), &tr)
			So(errors.Is(err, design.ErrDuplicateFeature), ShouldBeTrue)
		})
	})
}

func TestNewMatrix(t *testing.T) {
	Convey("Given explicit rows", t, func() {
		m, err := design.NewMatrix([]string{"a", "b"}, [][]float64{{1, 2}, {3, 4}})
		So(err, ShouldBeNil)
		So(m.At(1, 0), ShouldEqual, 3.0)

		Convey("Then Row returns a copy", func() {
			r := m.Row(0)
			r[0] = 100
			So(m.At(0, 0), ShouldEqual, 1.0)
		})
	})

	Convey("Given malformed input", t, func() {
		_, err := design.NewMatrix([]string{"a", "a"}, nil)
		So(errors.Is(err, design.ErrDuplicateFeature), ShouldBeTrue)

		_, err = design.NewMatrix([]string{"a", "b"}, [][]float64{{1}})
		So(errors.Is(err, design.ErrShape), ShouldBeTrue)
	})
}
