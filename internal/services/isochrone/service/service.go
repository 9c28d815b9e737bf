// Package service implements the isochrone batch: reachability
// requests for every centroid and mode combination, dispatched with
// bounded parallelism and per-request retry, responses persisted one
// line per request
package service

import (
	"context"
	"encoding/json"
	"iter"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"otp4gb/internal/adapters/centroids"
	"otp4gb/internal/adapters/engine"
	perr "otp4gb/internal/platform/errors"
	"otp4gb/internal/platform/logger"
	"otp4gb/internal/platform/paths"
	ptime "otp4gb/internal/platform/time"
	"otp4gb/internal/runconfig"
	"otp4gb/internal/services/isochrone/domain"
)

// Pool and retry defaults, matching the matrix dispatcher's
const (
	maxWorkers         = 10
	defaultMaxAttempts = 3
	defaultRetryDelay  = 2 * time.Second
)

// Config holds the service knobs that come from the environment rather
// than the run folder's config file
type Config struct {
	// Heap is the engine -Xmx value when this run supervises it
	Heap string

	MaxAttempts int
	RetryDelay  time.Duration
}

// Service runs the isochrone batch for one run folder
type Service struct {
	Folder string
	Params *runconfig.ProcessConfig
	Layout paths.Layout
	Cfg    Config
}

// New constructs the isochrone service for a run folder
func New(folder string, params *runconfig.ProcessConfig, layout paths.Layout, cfg Config) *Service {
	if params == nil {
		panic("isochrone.Service requires a non nil run config")
	}
	return &Service{Folder: folder, Params: params, Layout: layout, Cfg: cfg}
}

// Run implements domain.RunnerPort: expand requests, dispatch them
// against the engine and persist the responses. An engine already
// answering on the configured address is reused; otherwise one is
// started and stopped around the batch
func (s *Service) Run(ctx context.Context) error {
	ctx = logger.WithRun(ctx, uuid.NewString())
	log := logger.C(ctx)
	log.Info().Str("folder", s.Folder).Msg("starting isochrone run")

	zones, err := s.loadZones()
	if err != nil {
		return err
	}
	querier, shutdown, err := s.engine(ctx)
	if err != nil {
		return err
	}
	defer shutdown()

	stamp := s.Params.Isochrones.Datetime.Format(ptime.CompactStamp)
	sink := NewResponseWriter(s.Folder, stamp)
	runErr := s.dispatch(ctx, s.requests(zones), querier, sink)

	files := len(sink.Paths())
	if err := sink.Close(); err != nil && runErr == nil {
		runErr = err
	}

	stats := sink.Stats()
	log.Info().
		Int("answered", stats.Answered).
		Int("errored", stats.Errored).
		Int("files", files).
		Msg("isochrone run finished")
	return runErr
}

// SaveParameters implements domain.RunnerPort: write the request
// parameters the batch would send, one JSON line per request, without
// dialling the engine
func (s *Service) SaveParameters(ctx context.Context) error {
	ctx = logger.WithRun(ctx, uuid.NewString())
	log := logger.C(ctx)

	zones, err := s.loadZones()
	if err != nil {
		return err
	}

	dir := filepath.Join(s.Folder, "parameters")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeStartup, "create parameters dir %s", dir)
	}
	stamp := s.Params.Isochrones.Datetime.Format(ptime.CompactStamp)
	path := filepath.Join(dir, "isochrone_parameters_"+stamp+".jsonl")

	f, err := os.Create(path + ".part")
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeStartup, "create parameters file %s", path)
	}
	enc := json.NewEncoder(f)
	count := 0
	for req := range s.requests(zones) {
		if err := enc.Encode(req); err != nil {
			_ = f.Close()
			_ = os.Remove(path + ".part")
			return perr.Wrapf(err, perr.ErrorCodeJSON, "encode parameters line")
		}
		count++
	}
	if err := f.Close(); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "close parameters file %s", path)
	}
	if err := os.Rename(path+".part", path); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "finalise parameters file %s", path)
	}

	log.Info().Int("requests", count).Str("path", path).Msg("request parameters saved")
	return nil
}

// requests yields the batch mode-major: every centroid for one mode
// combination before the next. All configured cutoffs travel in one
// request, the way the engine's traveltime API accepts them
func (s *Service) requests(zones *centroids.Data) iter.Seq[domain.Request] {
	iso := s.Params.Isochrones
	return func(yield func(domain.Request) bool) {
		for _, modes := range iso.Modes {
			for _, z := range zones.Origins {
				req := domain.Request{
					ZoneID:        z.ID,
					Location:      z.Point,
					Travel:        iso.Datetime.Time,
					CutoffSeconds: iso.CutoffSeconds,
					Modes:         modes,
				}
				if !yield(req) {
					return
				}
			}
		}
	}
}

// dispatch drains requests through a bounded worker pool with the same
// retry semantics as the matrix dispatcher
func (s *Service) dispatch(
	ctx context.Context,
	reqs iter.Seq[domain.Request],
	querier domain.Querier,
	sink domain.ResponseSink,
) error {
	w := s.workerCount()
	log := logger.C(ctx)
	log.Info().Int("workers", w).Msg("dispatching isochrone requests")

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	feed := make(chan domain.Request)
	go func() {
		defer close(feed)
		for req := range reqs {
			select {
			case <-runCtx.Done():
				return
			case feed <- req:
			}
		}
	}()

	var errored int64
	var mu sync.Mutex
	var sinkErr error
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for req := range feed {
			res := s.query(runCtx, querier, req)
			if res.Errored {
				atomic.AddInt64(&errored, 1)
				log.Warn().
					Str("zone", req.ZoneID).
					Str("modes", req.ModeLabel()).
					Int("attempts", len(res.Attempts)).
					Str("last_error", res.Attempts[len(res.Attempts)-1].Message).
					Msg("isochrone request exhausted attempts")
			}
			if err := sink.Consume(res); err != nil {
				mu.Lock()
				if sinkErr == nil {
					sinkErr = err
				}
				mu.Unlock()
				log.Error().Err(err).Msg("response sink write failed, aborting run")
				stop()
				return
			}
		}
	}
	for range w {
		wg.Add(1)
		go worker()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	return sinkErr
}

// query runs one request to completion with the per-request retry
// budget. Cancellation stops further retries, not the in-flight call
func (s *Service) query(ctx context.Context, querier domain.Querier, req domain.Request) domain.Result {
	attempts := s.Cfg.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	delay := s.Cfg.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}
	callCtx := context.WithoutCancel(ctx)

	var trail []domain.AttemptError
	for i := range attempts {
		res, err := querier.Isochrone(callCtx, req.EngineRequest())
		if err == nil {
			return domain.Result{Request: req, URL: res.URL, Raw: res.Raw, Attempts: trail}
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
	return domain.Result{Request: req, Attempts: trail, Errored: true}
}

func (s *Service) workerCount() int {
	w := s.Params.NumberOfThreads
	if w <= 0 {
		w = runtime.GOMAXPROCS(0)
	}
	return min(w, maxWorkers)
}

// engine hands back the querier for this batch: an engine already
// answering on the configured address is reused as-is, otherwise a
// supervised child process is started unless no_server forbids it
func (s *Service) engine(ctx context.Context) (domain.Querier, func(), error) {
	client := engine.NewClient(engine.Options{BaseURL: s.Params.EngineBaseURL()})
	if err := client.Ping(ctx); err == nil {
		logger.C(ctx).Info().Str("url", client.BaseURL()).Msg("reusing already running engine")
		return client, func() {}, nil
	}
	if s.Params.NoServer {
		return client, func() {}, nil
	}

	jar, err := s.Layout.CheckBin(engine.JarName())
	if err != nil {
		return nil, nil, err
	}
	sup := engine.NewSupervisor(engine.SupervisorOptions{
		BaseDir: s.Folder,
		JarPath: jar,
		Port:    s.Params.Port,
		Heap:    s.Cfg.Heap,
	})
	if err := sup.Start(ctx); err != nil {
		return nil, nil, err
	}
	shutdown := func() {
		if err := sup.Stop(context.WithoutCancel(ctx)); err != nil {
			logger.C(ctx).Error().Err(err).Msg("stopping engine failed")
		}
	}
	return sup.Client(), shutdown, nil
}

func (s *Service) loadZones() (*centroids.Data, error) {
	iso := s.Params.Isochrones
	cols := centroids.Columns{ID: iso.IDColumn, Lat: iso.LatColumn, Lon: iso.LonColumn}
	path := filepath.Join(s.Layout.Assets, iso.Centroids)
	extents := s.Params.Extents
	return centroids.Load(path, "", cols, &extents)
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
