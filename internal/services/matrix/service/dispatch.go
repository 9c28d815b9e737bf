package service

import (
	"context"
	"iter"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	perr "otp4gb/internal/platform/errors"
	"otp4gb/internal/platform/logger"
	"otp4gb/internal/services/matrix/domain"
)

// Dispatch pool and retry defaults
const (
	maxWorkers         = 10
	defaultMaxAttempts = 3
	defaultRetryDelay  = 2 * time.Second
)

// Dispatcher drains jobs through a bounded worker pool with a per-job
// retry budget. Job failures become errored results, never run
// failures; only a broken sink or cancellation aborts the run
type Dispatcher struct {
	Planner domain.Planner

	// Workers caps the pool; 0 picks min(GOMAXPROCS, 10)
	Workers int

	// MaxAttempts per job including the first try; defaults to 3
	MaxAttempts int

	// RetryDelay is the fixed pause between attempts; defaults to 2s
	RetryDelay time.Duration
}

func (d *Dispatcher) workerCount() int {
	w := d.Workers
	if w <= 0 {
		w = runtime.GOMAXPROCS(0)
	}
	return min(w, maxWorkers)
}

// Run feeds every job to the pool and hands each result to sink.
// Cancelling ctx stops new dispatch while in-flight requests finish
// and their results are still written
func (d *Dispatcher) Run(ctx context.Context, jobs iter.Seq[domain.Job], sink domain.ResultSink) error {
	w := d.workerCount()
	log := logger.C(ctx)
	log.Info().Int("workers", w).Msg("dispatching jobs")

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	feed := make(chan domain.Job)
	go func() {
		defer close(feed)
		for job := range jobs {
			select {
			case <-runCtx.Done():
				return
			case feed <- job:
			}
		}
	}()

	var completed, errored int64
	var mu sync.Mutex
	var sinkErr error
	var wg sync.WaitGroup
	sem := make(chan struct{}, w)

	worker := func() {
		defer func() { <-sem; wg.Done() }()
		for job := range feed {
			res := d.dispatch(runCtx, job)
			if res.Errored {
				atomic.AddInt64(&errored, 1)
				log.Warn().
					Str("origin", job.OriginID).
					Str("destination", job.DestinationID).
					Str("period", job.Period).
					Str("modes", job.ModeLabel()).
					Int("attempts", len(res.Attempts)).
					Str("last_error", res.Attempts[len(res.Attempts)-1].Message).
					Msg("job exhausted attempts")
			}
			if err := sink.Consume(res); err != nil {
				mu.Lock()
				if sinkErr == nil {
					sinkErr = err
				}
				mu.Unlock()
				log.Error().Err(err).Msg("result sink write failed, aborting run")
				stop()
				return
			}
			atomic.AddInt64(&completed, 1)
		}
	}

	for range w {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go worker()
	}
	wg.Wait()

	log.Info().
		Int64("completed", completed).
		Int64("errored", errored).
		Msg("dispatch finished")

	if err := ctx.Err(); err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	return sinkErr
}

// dispatch runs one job to completion. The engine call itself is not
// cut short by cancellation so an in-flight request can land; the
// client timeout still bounds it. Cancellation only stops further
// retries
func (d *Dispatcher) dispatch(ctx context.Context, job domain.Job) domain.Result {
	attempts := d.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	delay := d.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}
	callCtx := context.WithoutCancel(ctx)

	var trail []domain.AttemptError
	for i := range attempts {
		res, err := d.Planner.Plan(callCtx, job.PlanRequest())
		if err == nil {
			return domain.Result{
				Job:      job,
				URL:      res.URL,
				Raw:      res.Raw,
				Response: res.Response,
				Attempts: trail,
			}
		}
		trail = append(trail, domain.AttemptError{
			Attempt: i + 1,
			Kind:    perr.CodeOf(err).String(),
			Message: err.Error(),
		})
		if !perr.Retryable(err) || i == attempts-1 {
			break
		}
		if sleepCtx(ctx, delay) != nil {
			break
		}
	}
	return domain.Result{Job: job, Attempts: trail, Errored: true}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
