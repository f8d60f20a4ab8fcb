package synth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/tenure/internal/domain/model"
	"github.com/okian/tenure/pkg/logger"
)

// Validate reports the first invalid load setting.
func (c Config) Validate() error {
	switch {
	case c.Customers <= 0:
		return fmt.Errorf("%w: customers must be positive", ErrInvalidConfig)
	case c.Analyses <= 0:
		return fmt.Errorf("%w: analyses must be positive", ErrInvalidConfig)
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	case c.BaseURL == "":
		return fmt.Errorf("%w: base url must be set", ErrInvalidConfig)
	case c.PollInterval <= 0:
		return fmt.Errorf("%w: poll interval must be positive", ErrInvalidConfig)
	}
	return nil
}

// Run submits cfg.Analyses synthetic datasets to the server and waits until
// every accepted job is done, failed or cfg.Wait has passed.
func Run(ctx context.Context, cfg Config, log logger.Logger) (Stats, error) {
	if err := cfg.Validate(); err != nil {
		return Stats{}, err
	}
	if log == nil {
		log = logger.Nop()
	}
	stats := Stats{StartTime: time.Now()}

	log.Info(ctx, "starting synthetic load",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("analyses", cfg.Analyses),
		logger.Int("customers", cfg.Customers),
		logger.Int("workers", cfg.Workers),
	)

	client := NewClient(cfg.BaseURL, cfg.Timeout)
	if err := client.Health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	ids, err := submitAll(ctx, cfg, client, &stats, log)
	if err != nil {
		return stats, err
	}

	wctx := ctx
	if cfg.Wait > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, cfg.Wait)
		defer cancel()
	}
	if err := awaitJobs(wctx, cfg, client, ids, &stats); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return stats, err
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	log.Info(ctx, "synthetic load finished",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("accepted", stats.Accepted),
		logger.Int("rejected", stats.Rejected),
		logger.Int("done", stats.Done),
		logger.Int("failed", stats.Failed),
		logger.Int("pending", stats.Pending),
		logger.Duration("duration", stats.Duration),
	)
	return stats, nil
}

// submitAll generates and posts every dataset on cfg.Workers goroutines and
// returns the IDs of accepted jobs.
func submitAll(ctx context.Context, cfg Config, client *Client, stats *Stats, log logger.Logger) ([]string, error) {
	var (
		generated int64
		submitted int64
		rejected  int64

		mu       sync.Mutex
		ids      []string
		firstErr error
	)

	seeds := make(chan uint64, cfg.Workers*2)
	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for seed := range seeds {
				customers, err := Generate(ctx, cfg.Customers, seed, 1)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					continue
				}
				atomic.AddInt64(&generated, 1)

				atomic.AddInt64(&submitted, 1)
				job, err := client.Submit(ctx, customers, cfg.Strata, "synth-"+strconv.FormatUint(seed, 10))
				if err != nil {
					atomic.AddInt64(&rejected, 1)
					log.Warn(ctx, "submission failed", logger.Any("seed", seed), logger.Error(err))
					continue
				}
				mu.Lock()
				ids = append(ids, job.ID)
				mu.Unlock()
			}
		}()
	}

	go func() {
		defer close(seeds)
		for k := 0; k < cfg.Analyses; k++ {
			select {
			case <-ctx.Done():
				return
			case seeds <- cfg.Seed + uint64(k):
			}
		}
	}()
	wg.Wait()

	stats.Generated = int(atomic.LoadInt64(&generated))
	stats.Submitted = int(atomic.LoadInt64(&submitted))
	stats.Rejected = int(atomic.LoadInt64(&rejected))
	stats.Accepted = len(ids)

	if firstErr != nil {
		return ids, fmt.Errorf("generation failed: %w", firstErr)
	}
	if err := ctx.Err(); err != nil {
		return ids, err
	}
	return ids, nil
}

// awaitJobs polls every job until it is terminal or ctx ends. Jobs still
// running at that point are counted as pending.
func awaitJobs(ctx context.Context, cfg Config, client *Client, ids []string, stats *Stats) error {
	pending := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		pending[id] = struct{}{}
	}
	defer func() { stats.Pending = len(pending) }()

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for len(pending) > 0 {
		for id := range pending {
			job, err := client.Job(ctx, id)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return err
			}
			switch job.Status {
			case model.JobDone:
				stats.Done++
			case model.JobFailed:
				stats.Failed++
			default:
				continue
			}
			delete(pending, id)
		}
		if len(pending) == 0 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
