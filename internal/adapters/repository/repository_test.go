package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/tenure/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := New(context.Background(), WithSQLite(filepath.Join(t.TempDir(), "data", "tenure.db")))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLStoreJobs(t *testing.T) {
	Convey("Given a SQLite store", t, func() {
		ctx := context.Background()
		s := newTestStore(t)
		base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

		So(s.Ping(ctx), ShouldBeNil)

		Convey("When a job is created", func() {
			job := model.Job{ID: "job-1", Status: model.JobPending, CreatedAt: base, UpdatedAt: base}
			So(s.CreateJob(ctx, job), ShouldBeNil)

			Convey("Then it can be read back", func() {
				got, err := s.GetJob(ctx, "job-1")
				So(err, ShouldBeNil)
				So(got.ID, ShouldEqual, "job-1")
				So(got.Status, ShouldEqual, model.JobPending)
				So(got.CreatedAt.Equal(base), ShouldBeTrue)
			})

			Convey("Then creating it twice fails", func() {
				So(s.CreateJob(ctx, job), ShouldNotBeNil)
			})

			Convey("Then it can be moved to failed with a message", func() {
				later := base.Add(time.Minute)
				So(s.UpdateJob(ctx, "job-1", model.JobFailed, "boom", later), ShouldBeNil)

				got, err := s.GetJob(ctx, "job-1")
				So(err, ShouldBeNil)
				So(got.Status, ShouldEqual, model.JobFailed)
				So(got.Error, ShouldEqual, "boom")
				So(got.UpdatedAt.Equal(later), ShouldBeTrue)
			})
		})

		Convey("When reading or updating an unknown job", func() {
			_, err := s.GetJob(ctx, "missing")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)

			err = s.UpdateJob(ctx, "missing", model.JobDone, "", base)
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("When creating a job without an ID", func() {
			err := s.CreateJob(ctx, model.Job{Status: model.JobPending})
			So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)
		})

		Convey("When several jobs exist", func() {
			for i, id := range []string{"a", "b", "c"} {
				at := base.Add(time.Duration(i) * time.Second)
				So(s.CreateJob(ctx, model.Job{ID: id, Status: model.JobPending, CreatedAt: at, UpdatedAt: at}), ShouldBeNil)
			}
			So(s.UpdateJob(ctx, "b", model.JobDone, "", base), ShouldBeNil)

			Convey("Then ListJobs returns the newest first up to the limit", func() {
				jobs, err := s.ListJobs(ctx, 2)
				So(err, ShouldBeNil)
				So(len(jobs), ShouldEqual, 2)
				So(jobs[0].ID, ShouldEqual, "c")
				So(jobs[1].ID, ShouldEqual, "b")
			})

			Convey("Then a non-positive limit is rejected", func() {
				_, err := s.ListJobs(ctx, 0)
				So(errors.Is(err, ErrInvalidLimit), ShouldBeTrue)
			})

			Convey("Then CountJobs groups by status", func() {
				counts, err := s.CountJobs(ctx)
				So(err, ShouldBeNil)
				So(counts[model.JobPending], ShouldEqual, 2)
				So(counts[model.JobDone], ShouldEqual, 1)
				So(counts[model.JobFailed], ShouldEqual, 0)
			})
		})
	})
}

func TestSQLStoreReports(t *testing.T) {
	Convey("Given a SQLite store with one job", t, func() {
		ctx := context.Background()
		s := newTestStore(t)
		at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		So(s.CreateJob(ctx, model.Job{ID: "job-1", Status: model.JobRunning, CreatedAt: at, UpdatedAt: at}), ShouldBeNil)

		Convey("When a report with a defined C-index is saved", func() {
			c := 0.75
			rec := Record{
				JobID:     "job-1",
				Summary:   model.Summary{CIndex: &c, N: 4, Events: 2, Comparable: 4, Note: "harrell"},
				Report:    []byte(`{"n":4}`),
				CreatedAt: at,
			}
			So(s.SaveReport(ctx, rec), ShouldBeNil)

			Convey("Then it is read back unchanged", func() {
				got, err := s.GetReport(ctx, "job-1")
				So(err, ShouldBeNil)
				So(*got.Summary.CIndex, ShouldEqual, 0.75)
				So(got.Summary.N, ShouldEqual, 4)
				So(got.Summary.Events, ShouldEqual, 2)
				So(got.Summary.Comparable, ShouldEqual, int64(4))
				So(got.Summary.Note, ShouldEqual, "harrell")
				So(string(got.Report), ShouldEqual, `{"n":4}`)
				So(got.CreatedAt.Equal(at), ShouldBeTrue)
			})

			Convey("Then saving again replaces it", func() {
				rec.Summary.CIndex = nil
				rec.Summary.Comparable = 0
				rec.Report = []byte(`{"n":5}`)
				So(s.SaveReport(ctx, rec), ShouldBeNil)

				got, err := s.GetReport(ctx, "job-1")
				So(err, ShouldBeNil)
				So(got.Summary.CIndex, ShouldBeNil)
				So(got.Summary.Comparable, ShouldEqual, int64(0))
				So(string(got.Report), ShouldEqual, `{"n":5}`)
			})
		})

		Convey("When a report is missing", func() {
			_, err := s.GetReport(ctx, "job-1")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("When a report has no body", func() {
			err := s.SaveReport(ctx, Record{JobID: "job-1"})
			So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)
		})
	})
}

func TestNewStore(t *testing.T) {
	Convey("Given store options", t, func() {
		ctx := context.Background()

		Convey("An unknown driver is rejected", func() {
			_, err := New(ctx, WithDriver("oracle"))
			So(errors.Is(err, ErrUnsupportedDriver), ShouldBeTrue)
		})

		Convey("Postgres without a DSN is rejected", func() {
			_, err := New(ctx, WithPostgres(""))
			So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)
		})

		Convey("An in-memory SQLite database works", func() {
			s, err := New(ctx, WithSQLite(":memory:"))
			So(err, ShouldBeNil)
			defer s.Close()
			So(s.CreateJob(ctx, model.Job{ID: "x", Status: model.JobPending}), ShouldBeNil)
			_, err = s.GetJob(ctx, "x")
			So(err, ShouldBeNil)
		})
	})
}

func TestRebind(t *testing.T) {
	Convey("Given a query with placeholders", t, func() {
		q := "SELECT * FROM t WHERE a = ? AND b = ?"

		Convey("SQLite keeps question marks", func() {
			s := &SQLStore{driver: DriverSQLite}
			So(s.rebind(q), ShouldEqual, q)
		})

		Convey("Postgres gets numbered placeholders", func() {
			s := &SQLStore{driver: DriverPostgres}
			So(s.rebind(q), ShouldEqual, "SELECT * FROM t WHERE a = $1 AND b = $2")
		})
	})
}
