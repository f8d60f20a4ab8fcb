package model_test

import (
	"math"
	"testing"

	"github.com/okian/tenure/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestObservation(t *testing.T) {
	convey.Convey("Given an observation with present and missing covariates", t, func() {
		obs := model.Observation{
			ID:       "C100001",
			Duration: 12,
			Event:    true,
			Numeric: map[string]float64{
				"monthly_charges": 70.5,
				"support_tickets": math.NaN(),
			},
			Categorical: map[string]string{
				"contract":     "Month-to-month",
				"tech_support": "",
			},
		}

		convey.Convey("Then present values are returned", func() {
			v, ok := obs.NumericValue("monthly_charges")
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(v, convey.ShouldEqual, 70.5)

			c, ok := obs.CategoricalValue("contract")
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(c, convey.ShouldEqual, "Month-to-month")
		})

		convey.Convey("Then missing values report not ok but are still carried", func() {
			_, ok := obs.NumericValue("support_tickets")
			convey.So(ok, convey.ShouldBeFalse)
			convey.So(obs.HasNumeric("support_tickets"), convey.ShouldBeTrue)

			_, ok = obs.CategoricalValue("tech_support")
			convey.So(ok, convey.ShouldBeFalse)
			convey.So(obs.HasCategorical("tech_support"), convey.ShouldBeTrue)
		})

		convey.Convey("Then absent covariates are not carried", func() {
			convey.So(obs.HasNumeric("late_payments"), convey.ShouldBeFalse)
			convey.So(obs.HasCategorical("partner"), convey.ShouldBeFalse)
		})
	})

	convey.Convey("Given several observations", t, func() {
		obs := []model.Observation{
			{Duration: 1, Event: true},
			{Duration: 4, Event: false},
			{Duration: 2.5, Event: true},
		}

		convey.Convey("Then vectors are extracted in order", func() {
			convey.So(model.Durations(obs), convey.ShouldResemble, []float64{1, 4, 2.5})
			convey.So(model.Events(obs), convey.ShouldResemble, []bool{true, false, true})
			convey.So(model.EventCount(obs), convey.ShouldEqual, 2)
		})
	})
}

func TestJobStatus(t *testing.T) {
	convey.Convey("Given the job statuses", t, func() {
		convey.So(model.JobPending.Terminal(), convey.ShouldBeFalse)
		convey.So(model.JobRunning.Terminal(), convey.ShouldBeFalse)
		convey.So(model.JobDone.Terminal(), convey.ShouldBeTrue)
		convey.So(model.JobFailed.Terminal(), convey.ShouldBeTrue)
	})
}
