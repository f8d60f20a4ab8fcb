package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/tenure/internal/adapters/repository"
	service "github.com/okian/tenure/internal/app"
	"github.com/okian/tenure/internal/domain/design"
	"github.com/okian/tenure/internal/domain/fit"
	"github.com/okian/tenure/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// gatedFitter blocks every fit until the gate is closed.
type gatedFitter struct {
	gate chan struct{}
	next fit.Fitter
}

func (g gatedFitter) Fit(ctx context.Context, m design.Matrix, durations []float64, events []bool) (design.Coefficients, error) {
	select {
	case <-g.gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.next.Fit(ctx, m, durations, events)
}

// slowStore delays job creation and can fail the first attempt.
type slowStore struct {
	repository.Store
	delay     time.Duration
	failFirst bool
	calls     atomic.Int32
}

var errStoreDown = errors.New("store down")

func (s *slowStore) CreateJob(ctx context.Context, job model.Job) error {
	time.Sleep(s.delay)
	if s.calls.Add(1) == 1 && s.failFirst {
		return errStoreDown
	}
	return s.Store.CreateJob(ctx, job)
}

func submitConcurrently(ctx context.Context, svc *service.Service, sub service.Submission, n int) ([]model.Job, []error) {
	jobs := make([]model.Job, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			jobs[i], errs[i] = svc.Submit(ctx, sub)
		}(i)
	}
	wg.Wait()
	return jobs, errs
}

func newStore(t *testing.T) repository.Store {
	t.Helper()
	s, err := repository.New(context.Background(), repository.WithSQLite(filepath.Join(t.TempDir(), "tenure.db")))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func waitFor(ctx context.Context, svc *service.Service, id string) model.Job {
	deadline := time.Now().Add(5 * time.Second)
	for {
		job, err := svc.Get(ctx, id)
		if err == nil && job.Status.Terminal() || time.Now().After(deadline) {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestService(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		p := service.NewPipeline(fit.NewStatic(map[string]float64{"score": 0.5}))
		svc := service.New(newStore(t), p,
			service.WithWorkerCount(2),
			service.WithQueueSize(16),
			service.WithMaxObservations(10),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When an analysis is submitted", func() {
			job, err := svc.Submit(ctx, service.Submission{Dataset: dataset()})
			So(err, ShouldBeNil)
			So(job.ID, ShouldNotBeEmpty)
			So(job.Status, ShouldEqual, model.JobPending)

			Convey("Then it completes with a stored report", func() {
				done := waitFor(ctx, svc, job.ID)
				So(done.Status, ShouldEqual, model.JobDone)

				rep, err := svc.GetReport(ctx, job.ID)
				So(err, ShouldBeNil)
				So(rep.ID, ShouldEqual, job.ID)
				So(rep.N, ShouldEqual, 4)
				So(rep.Concordance.Value(), ShouldEqual, 1.0)
				So(rep.Strata, ShouldNotBeNil)

				jobs, err := svc.ListJobs(ctx, 10)
				So(err, ShouldBeNil)
				So(len(jobs), ShouldEqual, 1)
			})
		})

		Convey("When coefficients do not match the design", func() {
			job, err := svc.Submit(ctx, service.Submission{
				Dataset:      dataset(),
				Coefficients: map[string]float64{"other": 1},
			})
			So(err, ShouldBeNil)

			Convey("Then the job fails with the cause", func() {
				done := waitFor(ctx, svc, job.ID)
				So(done.Status, ShouldEqual, model.JobFailed)
				So(done.Error, ShouldContainSubstring, "coefficients")

				_, err := svc.GetReport(ctx, job.ID)
				So(errors.Is(err, service.ErrReportNotReady), ShouldBeTrue)
			})
		})

		Convey("When the same idempotency key is used twice", func() {
			sub := service.Submission{IdempotencyKey: "retry-1", Dataset: dataset()}
			first, err := svc.Submit(ctx, sub)
			So(err, ShouldBeNil)
			second, err := svc.Submit(ctx, sub)
			So(err, ShouldBeNil)

			Convey("Then both calls return the same job", func() {
				So(second.ID, ShouldEqual, first.ID)
			})
		})

		Convey("When the dataset is empty or too large", func() {
			_, err := svc.Submit(ctx, service.Submission{})
			So(errors.Is(err, service.ErrEmptyDataset), ShouldBeTrue)

			big := dataset()
			for len(big.Observations) <= 10 {
				big.Observations = append(big.Observations, cohort()...)
			}
			_, err = svc.Submit(ctx, service.Submission{Dataset: big})
			So(errors.Is(err, service.ErrTooManyObservations), ShouldBeTrue)
		})

		Convey("When an unknown job is requested", func() {
			_, err := svc.Get(ctx, "missing")
			So(errors.Is(err, service.ErrJobNotFound), ShouldBeTrue)

			_, err = svc.GetReport(ctx, "missing")
			So(errors.Is(err, service.ErrJobNotFound), ShouldBeTrue)
		})

		Convey("Then stats describe the service", func() {
			stats := svc.GetStats(ctx)
			So(stats["started"], ShouldEqual, true)
			So(stats["workerCount"], ShouldEqual, 2)
			So(stats["queueSize"], ShouldEqual, 16)
			So(svc.Ping(ctx), ShouldBeNil)
		})
	})

	Convey("Given a saturated service", t, func() {
		ctx := context.Background()
		gate := make(chan struct{})
		p := service.NewPipeline(gatedFitter{gate: gate, next: fit.NewStatic(map[string]float64{"score": 0.5})})
		svc := service.New(newStore(t), p, service.WithWorkerCount(1), service.WithQueueSize(1))
		So(svc.Start(ctx), ShouldBeNil)

		var rejected error
		var accepted []model.Job
		for i := 0; i < 8; i++ {
			job, err := svc.Submit(ctx, service.Submission{Dataset: dataset()})
			if err != nil {
				rejected = err
				break
			}
			accepted = append(accepted, job)
		}

		Convey("Then further submissions are rejected with backpressure", func() {
			So(errors.Is(rejected, service.ErrQueueFull), ShouldBeTrue)
		})

		Convey("Then a pending job has no report yet", func() {
			_, err := svc.GetReport(ctx, accepted[0].ID)
			So(errors.Is(err, service.ErrReportNotReady), ShouldBeTrue)
		})

		close(gate)
		So(svc.Stop(ctx), ShouldBeNil)
	})

	Convey("Given a service whose store is slow to create jobs", t, func() {
		ctx := context.Background()
		store := &slowStore{Store: newStore(t), delay: 50 * time.Millisecond}
		svc := service.New(store, service.NewPipeline(fit.NewStatic(map[string]float64{"score": 0.5})),
			service.WithWorkerCount(1),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()
		sub := service.Submission{IdempotencyKey: "burst", Dataset: dataset()}

		Convey("When duplicates arrive while the first job is being stored", func() {
			jobs, errs := submitConcurrently(ctx, svc, sub, 8)

			Convey("Then every caller gets the same stored job", func() {
				for i := range jobs {
					So(errs[i], ShouldBeNil)
					So(jobs[i].ID, ShouldEqual, jobs[0].ID)
				}
				So(store.calls.Load(), ShouldEqual, int32(1))
			})
		})

		Convey("When the first attempt fails to store its job", func() {
			store.failFirst = true
			jobs, errs := submitConcurrently(ctx, svc, sub, 2)

			Convey("Then the duplicate takes over the key", func() {
				failed := 0
				var ok model.Job
				for i := range errs {
					if errs[i] != nil {
						So(errors.Is(errs[i], errStoreDown), ShouldBeTrue)
						failed++
						continue
					}
					ok = jobs[i]
				}
				So(failed, ShouldEqual, 1)
				stored, err := svc.Get(ctx, ok.ID)
				So(err, ShouldBeNil)
				So(stored.ID, ShouldEqual, ok.ID)
			})
		})
	})

	Convey("Given a service that was never started", t, func() {
		svc := service.New(newStore(t), nil)
		_, err := svc.Submit(context.Background(), service.Submission{Dataset: dataset()})
		So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
	})
}
