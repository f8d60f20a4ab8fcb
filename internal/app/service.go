// Package service runs survival analyses, either directly through a Pipeline
// or asynchronously as jobs behind the HTTP API.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	eventqueue "github.com/okian/tenure/internal/adapters/mq/queue"
	workerpool "github.com/okian/tenure/internal/adapters/mq/worker"
	"github.com/okian/tenure/internal/adapters/repository"
	"github.com/okian/tenure/internal/domain/dedupe"
	"github.com/okian/tenure/internal/domain/fit"
	"github.com/okian/tenure/internal/domain/model"
	"github.com/okian/tenure/pkg/logger"
	"github.com/okian/tenure/pkg/metrics"
)

// Submission is one analysis request.
type Submission struct {
	// IdempotencyKey makes retried submissions return the first job.
	IdempotencyKey string
	Dataset        model.Dataset
	// Coefficients override the pipeline's default coefficient source.
	Coefficients map[string]float64
}

// Service accepts analysis jobs, runs them on a worker pool and persists
// their reports.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    repository.Store
	pipeline *Pipeline
	deduper  dedupe.Deduper
	queue    eventqueue.Queue
	pool     *workerpool.Pool

	// Configuration
	workerCount     int
	queueSize       int
	dedupeSize      int
	maxObservations int

	// State
	started bool
	// creating holds a channel per job ID that is claimed but not yet stored.
	creating sync.Map

	logger logger.Logger
	now    func() time.Time
	newID  func() string
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of pending jobs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many idempotency keys are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithMaxObservations caps the size of a submitted dataset. Zero disables the cap.
func WithMaxObservations(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxObservations = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service that stores jobs in store and runs them with p.
func New(store repository.Store, p *Pipeline, opts ...Option) *Service {
	s := &Service{
		store:       store,
		pipeline:    p,
		workerCount: runtime.NumCPU(),
		queueSize:   1024,
		dedupeSize:  50_000,
		logger:      logger.Nop(),
		now:         time.Now,
		newID:       uuid.NewString,
	}

	for _, opt := range opts {
		opt(s)
	}
	if s.pipeline == nil {
		s.pipeline = NewPipeline(nil)
	}

	return s
}

// Start initializes the queue and starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.store == nil {
		return fmt.Errorf("%w: no repository", ErrNotStarted)
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, workerpool.ProcessorFunc(s.process),
		workerpool.WithLogger(s.logger),
	)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "analysis service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize),
	)
	return nil
}

// Stop stops accepting jobs and waits for running ones to finish.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info(ctx, "stopping analysis service...")
	err := s.pool.Shutdown(ctx)
	s.started = false
	s.logger.Info(ctx, "analysis service stopped")
	return err
}

// Submit validates sub, records a pending job and queues it.
func (s *Service) Submit(ctx context.Context, sub Submission) (model.Job, error) { //nolint:gocritic // hugeParam: Submission is passed by value
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return model.Job{}, ErrNotStarted
	}
	n := len(sub.Dataset.Observations)
	if n == 0 {
		return model.Job{}, ErrEmptyDataset
	}
	if s.maxObservations > 0 && n > s.maxObservations {
		return model.Job{}, fmt.Errorf("%w: %d > %d", ErrTooManyObservations, n, s.maxObservations)
	}

	id := s.newID()
	if sub.IdempotencyKey != "" {
		created := make(chan struct{})
		s.creating.Store(id, created)
		defer func() {
			close(created)
			s.creating.Delete(id)
		}()

		for {
			existing, claimed := s.deduper.Claim(ctx, sub.IdempotencyKey, id)
			if claimed {
				break
			}
			s.logger.Debug(ctx, "duplicate submission",
				logger.String("idempotency_key", sub.IdempotencyKey),
				logger.String("job_id", existing),
			)
			job, err := s.awaitCreated(ctx, existing)
			if !errors.Is(err, ErrJobNotFound) {
				return job, err
			}
			// The first submission released the key without storing a job.
		}
	}

	now := s.now().UTC()
	job := model.Job{ID: id, Status: model.JobPending, CreatedAt: now, UpdatedAt: now}
	if err := s.store.CreateJob(ctx, job); err != nil {
		s.release(ctx, sub.IdempotencyKey)
		return model.Job{}, fmt.Errorf("create job: %w", err)
	}

	task := model.Task{
		JobID:        id,
		Dataset:      sub.Dataset,
		Coefficients: sub.Coefficients,
		SubmittedAt:  now,
	}
	if !s.queue.Enqueue(ctx, task) {
		s.release(ctx, sub.IdempotencyKey)
		if err := s.store.UpdateJob(ctx, id, model.JobFailed, ErrQueueFull.Error(), s.now().UTC()); err != nil {
			s.logger.Error(ctx, "failed to mark rejected job", logger.String("job_id", id), logger.Error(err))
		}
		metrics.RecordError("service", "queue_full")
		return model.Job{}, ErrQueueFull
	}
	metrics.UpdateQueue(s.queue.Len(ctx), s.queue.Cap())

	s.logger.Info(ctx, "analysis queued",
		logger.String("job_id", id),
		logger.Int("observations", n),
	)
	return job, nil
}

// awaitCreated returns the job of a concurrent submission once that
// submission has stored it or given up.
func (s *Service) awaitCreated(ctx context.Context, id string) (model.Job, error) {
	if v, ok := s.creating.Load(id); ok {
		select {
		case <-v.(chan struct{}):
		case <-ctx.Done():
			return model.Job{}, ctx.Err()
		}
	}
	return s.Get(ctx, id)
}

func (s *Service) release(ctx context.Context, key string) {
	if key != "" {
		s.deduper.Release(ctx, key)
	}
}

// process runs one queued analysis and persists its outcome.
func (s *Service) process(ctx context.Context, t model.Task) error { //nolint:gocritic // hugeParam: Task is passed by value for channel semantics
	if err := s.store.UpdateJob(ctx, t.JobID, model.JobRunning, "", s.now().UTC()); err != nil {
		return fmt.Errorf("mark running: %w", err)
	}

	var (
		rep Report
		err error
	)
	if len(t.Coefficients) > 0 {
		rep, err = s.pipeline.RunWith(ctx, t.Dataset, fit.NewStatic(t.Coefficients))
	} else {
		rep, err = s.pipeline.Run(ctx, t.Dataset)
	}
	if err != nil {
		s.fail(ctx, t.JobID, err)
		return err
	}

	rep.ID = t.JobID
	body, err := json.Marshal(rep)
	if err != nil {
		s.fail(ctx, t.JobID, err)
		return fmt.Errorf("encode report: %w", err)
	}

	rec := repository.Record{
		JobID:     t.JobID,
		Summary:   rep.Summary(),
		Report:    body,
		CreatedAt: rep.CreatedAt,
	}
	if err := s.store.SaveReport(ctx, rec); err != nil {
		s.fail(ctx, t.JobID, err)
		return fmt.Errorf("save report: %w", err)
	}
	if err := s.store.UpdateJob(ctx, t.JobID, model.JobDone, "", s.now().UTC()); err != nil {
		return fmt.Errorf("mark done: %w", err)
	}

	s.logger.Info(ctx, "analysis done",
		logger.String("job_id", t.JobID),
		logger.Int("n", rep.N),
		logger.Int64("comparable_pairs", rep.Concordance.Comparable),
	)
	return nil
}

func (s *Service) fail(ctx context.Context, id string, cause error) {
	if err := s.store.UpdateJob(ctx, id, model.JobFailed, cause.Error(), s.now().UTC()); err != nil {
		s.logger.Error(ctx, "failed to mark job failed", logger.String("job_id", id), logger.Error(err))
	}
}

// Get returns the job with the given ID.
func (s *Service) Get(ctx context.Context, id string) (model.Job, error) {
	job, err := s.store.GetJob(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return job, err
}

// GetReport returns the report of a finished job.
func (s *Service) GetReport(ctx context.Context, id string) (Report, error) {
	rec, err := s.store.GetReport(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		job, jerr := s.Get(ctx, id)
		if jerr != nil {
			return Report{}, jerr
		}
		return Report{}, fmt.Errorf("%w: %s is %s", ErrReportNotReady, id, job.Status)
	}
	if err != nil {
		return Report{}, err
	}

	var rep Report
	if err := json.Unmarshal(rec.Report, &rep); err != nil {
		return Report{}, fmt.Errorf("decode report %s: %w", id, err)
	}
	return rep, nil
}

// ListJobs returns up to limit jobs, newest first.
func (s *Service) ListJobs(ctx context.Context, limit int) ([]model.Job, error) {
	return s.store.ListJobs(ctx, limit)
}

// Ping checks the repository.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["activeWorkers"] = s.pool.Active()
		stats["idempotencyKeys"] = s.deduper.Size()

		metrics.UpdateQueue(queueLen, s.queue.Cap())
		metrics.UpdateWorkers(s.pool.Size(), s.pool.Active())
	}

	if counts, err := s.store.CountJobs(ctx); err == nil {
		jobs := make(map[string]int, len(counts))
		for status, n := range counts {
			jobs[string(status)] = n
		}
		stats["jobs"] = jobs
	} else {
		s.logger.Warn(ctx, "failed to count jobs", logger.Error(err))
	}

	return stats
}
